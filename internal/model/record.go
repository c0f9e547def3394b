package model

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Document is the top-level shape of a persisted events file.
type Document struct {
	Events []Event `yaml:"events"`
}

// record is the flattened on-disk form of an Event. Whole-day events use
// start_date/end_date, timestamped events use start/end.
type record struct {
	Name         string       `yaml:"name"`
	Details      *string      `yaml:"details,omitempty"`
	Links        []string     `yaml:"links"`
	StartDate    string       `yaml:"start_date,omitempty"`
	EndDate      string       `yaml:"end_date,omitempty"`
	Start        string       `yaml:"start,omitempty"`
	End          string       `yaml:"end,omitempty"`
	Country      string       `yaml:"country"`
	State        *string      `yaml:"state,omitempty"`
	City         string       `yaml:"city"`
	Styles       []DanceStyle `yaml:"styles"`
	Workshop     bool         `yaml:"workshop"`
	Social       bool         `yaml:"social"`
	Bands        []string     `yaml:"bands,omitempty"`
	Callers      []string     `yaml:"callers,omitempty"`
	Price        *string      `yaml:"price,omitempty"`
	Organisation *string      `yaml:"organisation,omitempty"`
	Cancelled    bool         `yaml:"cancelled,omitempty"`
	Source       *string      `yaml:"source,omitempty"`
}

// MarshalYAML implements yaml.Marshaler.
func (e Event) MarshalYAML() (any, error) {
	if e.Time.IsZero() {
		return nil, fmt.Errorf("event %q: time is unset", e.Name)
	}
	r := record{
		Name:         e.Name,
		Details:      e.Details,
		Links:        e.Links,
		Country:      e.Country,
		State:        e.State,
		City:         e.City,
		Styles:       e.Styles,
		Workshop:     e.Workshop,
		Social:       e.Social,
		Bands:        e.Bands,
		Callers:      e.Callers,
		Price:        e.Price,
		Organisation: e.Organisation,
		Cancelled:    e.Cancelled,
		Source:       e.Source,
	}
	if e.Time.IsDateOnly() {
		r.StartDate = e.Time.Start().Format(DateLayout)
		r.EndDate = e.Time.End().Format(DateLayout)
	} else {
		r.Start = e.Time.Start().Format(time.RFC3339)
		r.End = e.Time.End().Format(time.RFC3339)
	}
	return r, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *Event) UnmarshalYAML(value *yaml.Node) error {
	var r record
	if err := value.Decode(&r); err != nil {
		return err
	}

	t, err := r.eventTime()
	if err != nil {
		return fmt.Errorf("event %q (line %d): %w", r.Name, value.Line, err)
	}
	styles := make([]DanceStyle, 0, len(r.Styles))
	for _, s := range r.Styles {
		st, err := ParseDanceStyle(string(s))
		if err != nil {
			return fmt.Errorf("event %q (line %d): %w", r.Name, value.Line, err)
		}
		styles = append(styles, st)
	}

	*e = Event{
		Name:         r.Name,
		Details:      r.Details,
		Links:        r.Links,
		Time:         t,
		Country:      r.Country,
		State:        r.State,
		City:         r.City,
		Styles:       StyleSet(styles...),
		Workshop:     r.Workshop,
		Social:       r.Social,
		Bands:        r.Bands,
		Callers:      r.Callers,
		Price:        r.Price,
		Organisation: r.Organisation,
		Cancelled:    r.Cancelled,
		Source:       r.Source,
	}
	return nil
}

func (r record) eventTime() (EventTime, error) {
	hasDates := r.StartDate != "" || r.EndDate != ""
	hasTimes := r.Start != "" || r.End != ""
	switch {
	case hasDates && hasTimes:
		return EventTime{}, errors.New("both dates and timestamps given")
	case hasDates:
		if r.StartDate == "" || r.EndDate == "" {
			return EventTime{}, errors.New("start_date and end_date must both be set")
		}
		s, err := time.Parse(DateLayout, r.StartDate)
		if err != nil {
			return EventTime{}, err
		}
		e, err := time.Parse(DateLayout, r.EndDate)
		if err != nil {
			return EventTime{}, err
		}
		return DateOnly(s, e)
	case hasTimes:
		if r.Start == "" || r.End == "" {
			return EventTime{}, errors.New("start and end must both be set")
		}
		s, err := time.Parse(time.RFC3339, r.Start)
		if err != nil {
			return EventTime{}, err
		}
		e, err := time.Parse(time.RFC3339, r.End)
		if err != nil {
			return EventTime{}, err
		}
		return DateTime(s, e)
	default:
		return EventTime{}, errors.New("no time given")
	}
}

// MarshalEvents serializes events as a Document.
func MarshalEvents(events []Event) ([]byte, error) {
	return yaml.Marshal(Document{Events: events})
}

// UnmarshalEvents parses a Document. An empty input yields no events.
func UnmarshalEvents(data []byte) ([]Event, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Events, nil
}
