package model

import (
	"errors"
	"strings"
	"time"
)

// Event is the canonical, source-agnostic representation of one dance event.
//
// Optional attributes are pointers: nil means absent, never "".
type Event struct {
	Name    string
	Details *string
	// Links[0] is the primary link.
	Links []string
	Time  EventTime

	Country string
	State   *string
	City    string

	Styles   []DanceStyle
	Workshop bool
	Social   bool

	Bands   []string
	Callers []string

	Price        *string
	Organisation *string
	Cancelled    bool

	// Source names the adapter which produced the event. nil for events that
	// were added by hand.
	Source *string
}

// Validate checks the invariants every published event must satisfy.
func (e Event) Validate() error {
	var errs []error
	if strings.TrimSpace(e.Name) == "" {
		errs = append(errs, errors.New("name is empty"))
	}
	if len(e.Links) == 0 || strings.TrimSpace(e.Links[0]) == "" {
		errs = append(errs, errors.New("no primary link"))
	}
	if e.Time.IsZero() {
		errs = append(errs, errors.New("time is unset"))
	} else if e.Time.End().Before(e.Time.Start()) {
		errs = append(errs, ErrInvalidTime)
	}
	if strings.TrimSpace(e.Country) == "" {
		errs = append(errs, errors.New("country is empty"))
	}
	if strings.TrimSpace(e.City) == "" {
		errs = append(errs, errors.New("city is empty"))
	}
	if len(e.Styles) == 0 {
		errs = append(errs, errors.New("no dance styles"))
	}
	return errors.Join(errs...)
}

// PrimaryLink returns Links[0], or "" when there are no links.
func (e Event) PrimaryLink() string {
	if len(e.Links) == 0 {
		return ""
	}
	return e.Links[0]
}

// StartDate is the calendar date the event starts on.
func (e Event) StartDate() time.Time { return e.Time.StartDate() }

// HasStyle reports whether s is one of the event's styles.
func (e Event) HasStyle(s DanceStyle) bool {
	for _, st := range e.Styles {
		if st == s {
			return true
		}
	}
	return false
}

// Key identifies the same real-world event across fetch cycles.
type Key string

// Key is the primary link when there is one, otherwise the tuple
// (organisation, name, city, start date).
func (e Event) Key() Key {
	if link := strings.TrimSpace(e.PrimaryLink()); link != "" {
		return Key("link:" + link)
	}
	org := ""
	if e.Organisation != nil {
		org = *e.Organisation
	}
	return Key(strings.Join([]string{"tuple", org, e.Name, e.City, e.StartDate().Format(DateLayout)}, "\x1f"))
}

// Window is an inclusive range of calendar dates.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow returns the window from the date of from through horizon later.
func NewWindow(from time.Time, horizon time.Duration) Window {
	return Window{Start: Date(from), End: Date(from.Add(horizon))}
}

// Contains reports whether the calendar date of t falls inside w.
func (w Window) Contains(t time.Time) bool {
	d := Date(t)
	return !d.Before(w.Start) && !d.After(w.End)
}

// StringPtr returns a pointer to s, or nil when s is blank.
func StringPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
