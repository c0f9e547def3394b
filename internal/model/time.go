package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTime is returned when an event's end precedes its start.
var ErrInvalidTime = errors.New("event ends before it starts")

// EventTime is either a whole-day span (inclusive dates) or a pair of
// timestamps with a fixed UTC offset. The zero value is not valid; build one
// with DateOnly or DateTime.
type EventTime struct {
	dateOnly bool
	start    time.Time
	end      time.Time
}

// DateOnly builds a whole-day span. Only the calendar dates of start and end
// are kept; end is inclusive.
func DateOnly(start, end time.Time) (EventTime, error) {
	s, e := Date(start), Date(end)
	if e.Before(s) {
		return EventTime{}, fmt.Errorf("%w: %s > %s", ErrInvalidTime, s.Format(DateLayout), e.Format(DateLayout))
	}
	return EventTime{dateOnly: true, start: s, end: e}, nil
}

// DateTime builds a timestamped span. Each endpoint keeps its own UTC offset
// but loses any named zone.
func DateTime(start, end time.Time) (EventTime, error) {
	if end.Before(start) {
		return EventTime{}, fmt.Errorf("%w: %s > %s", ErrInvalidTime, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return EventTime{start: FixedOffset(start), end: FixedOffset(end)}, nil
}

// DateLayout is the layout of whole-day dates in persisted records.
const DateLayout = "2006-01-02"

// Date truncates t to midnight UTC of its calendar date in t's own location.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FixedOffset rewrites t into an unnamed zone carrying only its current offset.
func FixedOffset(t time.Time) time.Time {
	_, off := t.Zone()
	return t.In(time.FixedZone("", off))
}

func (t EventTime) IsDateOnly() bool { return t.dateOnly }

// Start is the first day (DateOnly) or start timestamp (DateTime).
func (t EventTime) Start() time.Time { return t.start }

// End is the inclusive last day (DateOnly) or end timestamp (DateTime).
func (t EventTime) End() time.Time { return t.end }

// IsZero reports whether t was never set.
func (t EventTime) IsZero() bool { return t.start.IsZero() && t.end.IsZero() }

// StartDate is the local calendar date the event starts on.
func (t EventTime) StartDate() time.Time { return Date(t.start) }

// EndDate is the local calendar date the event ends on.
func (t EventTime) EndDate() time.Time { return Date(t.end) }

// Equal compares two times by kind and instant.
func (t EventTime) Equal(o EventTime) bool {
	return t.dateOnly == o.dateOnly && t.start.Equal(o.start) && t.end.Equal(o.end)
}

// MultiDay reports whether the event spans more than one calendar date.
func (t EventTime) MultiDay() bool {
	return !t.StartDate().Equal(t.EndDate())
}

func (t EventTime) String() string {
	if t.dateOnly {
		return t.start.Format(DateLayout) + ".." + t.end.Format(DateLayout)
	}
	return t.start.Format(time.RFC3339) + ".." + t.end.Format(time.RFC3339)
}
