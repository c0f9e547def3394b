// Package source defines the capability set every event feed adapter
// implements, and the intermediate representations the import pipeline
// hands to those adapters.
package source

import (
	"errors"
	"time"

	"dancefeed/internal/model"
)

// ErrMissingField marks a record lacking a mandatory attribute.
var ErrMissingField = errors.New("missing mandatory field")

// Descriptor is the static configuration of one source.
type Descriptor struct {
	// Name is the provenance tag stamped onto every event the source produces.
	Name string
	// URLs are the feed endpoints. Several endpoints share one adapter and
	// their batches are concatenated.
	URLs []string
	// Decoder turns a fetched payload into records.
	Decoder Decoder

	DefaultOrganisation *string
	// DefaultTimezone is the IANA zone assumed for floating timestamps and
	// required of explicitly zoned ones. nil means no expectation.
	DefaultTimezone *string
	// AcceptUTC admits explicit UTC timestamps even when DefaultTimezone is
	// set, for feeds that label local wall clock as UTC.
	AcceptUTC bool
	// Horizon bounds how far into the future the feed lists events.
	Horizon time.Duration

	Bands   Roster
	Callers Roster
}

// Adapter supplies per-source classification and fixup hooks. All hooks are
// pure functions of their inputs.
type Adapter interface {
	Descriptor() Descriptor

	Workshop(p *EventParts) bool
	Social(p *EventParts) bool
	// Styles returning an empty set drops the event.
	Styles(p *EventParts) []model.DanceStyle
	// Location returns an error when the raw location has an unexpected shape.
	Location(p *EventParts) (Location, error)
	// Fixup post-processes the assembled event. Returning false vetoes it.
	Fixup(p *EventParts, e model.Event) (model.Event, bool)
}

// Location is where an event takes place.
type Location struct {
	Country string
	State   *string
	City    string
}

// Decoder parses one feed payload.
type Decoder interface {
	// Decode returns one record per native event. A structural failure of the
	// whole payload is returned as an error; problems with single events are
	// reported on the record instead.
	Decode(body []byte, opts DecodeOptions) ([]Record, error)
}

// DecodeOptions passes source configuration into a Decoder.
type DecodeOptions struct {
	FeedURL         string
	DefaultTimezone *string
	AcceptUTC       bool
	// Window bounds recurrence expansion.
	Window model.Window
}

// Record is the raw intermediate extracted from one native feed event. Every
// field may be absent.
type Record struct {
	URL         *string
	Summary     *string
	Description *string
	Location    *string
	Organiser   *string
	Categories  []string
	Price       *string
	// Cancelled is set when the feed marks the event as cancelled.
	Cancelled bool

	Time *model.EventTime
	// TimeErr is set when the record had time properties that could not be
	// resolved.
	TimeErr error
	// Err is set for other malformed fields (e.g. an unparseable price).
	Err error
}

// Label identifies a record in logs.
func (r Record) Label() (summary, url string) {
	if r.Summary != nil {
		summary = *r.Summary
	}
	if r.URL != nil {
		url = *r.URL
	}
	return summary, url
}
