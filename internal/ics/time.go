package ics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"dancefeed/internal/model"
)

var (
	// ErrMismatchedTime means DTSTART and DTEND are of different shapes or zones.
	ErrMismatchedTime = errors.New("mismatched start and end times")
	// ErrTimezone means a timestamp's zone is missing, unknown, or not the one
	// the source declares.
	ErrTimezone = errors.New("unexpected timezone")
	// ErrAmbiguousTime means a local time is repeated or skipped by a DST
	// transition in its zone.
	ErrAmbiguousTime = errors.New("ambiguous local time")
)

const (
	layoutDate     = "20060102"
	layoutDateTime = "20060102T150405"
)

// propTime is a DTSTART/DTEND value before zone resolution.
type propTime struct {
	value    string
	tzid     string
	dateOnly bool
	utc      bool
}

func readPropTime(p *ical.IANAProperty) propTime {
	pt := propTime{value: strings.TrimSpace(p.Value)}
	if params := p.ICalParameters; params != nil {
		if vs, ok := params[string(ical.ParameterValue)]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			pt.dateOnly = true
		}
		if tzs, ok := params[string(ical.ParameterTzid)]; ok && len(tzs) > 0 {
			pt.tzid = strings.Trim(tzs[0], `"`)
		}
	}
	if !strings.Contains(pt.value, "T") {
		pt.dateOnly = true
	}
	if strings.HasSuffix(pt.value, "Z") {
		pt.utc = true
		pt.value = strings.TrimSuffix(pt.value, "Z")
	}
	return pt
}

// resolved is an event time plus the zone its wall clock was read in, which
// recurrence expansion needs to follow DST.
type resolved struct {
	time model.EventTime
	loc  *time.Location
	// start and end in loc.
	start time.Time
	end   time.Time
}

// resolveTime interprets DTSTART/DTEND. A nil result with nil error means
// the event carries no time at all.
func resolveTime(startProp, endProp *ical.IANAProperty, defaultTZ *string, acceptUTC bool) (*resolved, error) {
	if startProp == nil || endProp == nil {
		return nil, nil
	}
	start, end := readPropTime(startProp), readPropTime(endProp)

	switch {
	case start.dateOnly && end.dateOnly:
		s, err := time.Parse(layoutDate, start.value)
		if err != nil {
			return nil, fmt.Errorf("parse DTSTART %q: %w", start.value, err)
		}
		e, err := time.Parse(layoutDate, end.value)
		if err != nil {
			return nil, fmt.Errorf("parse DTEND %q: %w", end.value, err)
		}
		// DTEND is exclusive for whole-day events.
		e = e.AddDate(0, 0, -1)
		et, err := model.DateOnly(s, e)
		if err != nil {
			return nil, err
		}
		return &resolved{time: et, loc: time.UTC, start: s, end: e}, nil

	case !start.dateOnly && !end.dateOnly:
		if start.utc != end.utc || start.tzid != end.tzid {
			return nil, fmt.Errorf("%w: start zone %q, end zone %q", ErrMismatchedTime, start.zoneName(), end.zoneName())
		}
		loc, err := zoneFor(start, defaultTZ, acceptUTC)
		if err != nil {
			return nil, err
		}
		s, err := start.in(loc)
		if err != nil {
			return nil, fmt.Errorf("DTSTART: %w", err)
		}
		e, err := end.in(loc)
		if err != nil {
			return nil, fmt.Errorf("DTEND: %w", err)
		}
		et, err := model.DateTime(s, e)
		if err != nil {
			return nil, err
		}
		return &resolved{time: et, loc: loc, start: s, end: e}, nil

	default:
		return nil, fmt.Errorf("%w: one endpoint is whole-day, the other timestamped", ErrMismatchedTime)
	}
}

func (pt propTime) zoneName() string {
	switch {
	case pt.utc:
		return "UTC"
	case pt.tzid != "":
		return pt.tzid
	default:
		return "floating"
	}
}

// zoneFor picks the location a timestamp's wall clock is read in. UTC
// timestamps are accepted when the source expects no zone or opts in.
func zoneFor(pt propTime, defaultTZ *string, acceptUTC bool) (*time.Location, error) {
	switch {
	case pt.utc:
		if defaultTZ != nil && !acceptUTC {
			return nil, fmt.Errorf("%w: UTC, expected %s", ErrTimezone, *defaultTZ)
		}
		return time.UTC, nil
	case pt.tzid != "":
		if defaultTZ != nil && pt.tzid != *defaultTZ {
			return nil, fmt.Errorf("%w: %s, expected %s", ErrTimezone, pt.tzid, *defaultTZ)
		}
		loc, err := time.LoadLocation(pt.tzid)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrTimezone, pt.tzid, err)
		}
		return loc, nil
	case defaultTZ != nil:
		loc, err := time.LoadLocation(*defaultTZ)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrTimezone, *defaultTZ, err)
		}
		return loc, nil
	default:
		return nil, fmt.Errorf("%w: floating time and no default timezone", ErrTimezone)
	}
}

func (pt propTime) in(loc *time.Location) (time.Time, error) {
	wall, err := time.Parse(layoutDateTime, pt.value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", pt.value, err)
	}
	if loc == time.UTC {
		return wall, nil
	}
	return InZone(wall, loc)
}

// InZone reads the wall clock of wall (its zone is ignored) as a local time
// in loc. Local times that a DST transition repeats or skips are rejected
// with ErrAmbiguousTime.
func InZone(wall time.Time, loc *time.Location) (time.Time, error) {
	y, mo, d := wall.Date()
	h, mi, s := wall.Clock()
	naive := time.Date(y, mo, d, h, mi, s, wall.Nanosecond(), time.UTC)
	guess := time.Date(y, mo, d, h, mi, s, wall.Nanosecond(), loc)

	offsets := make(map[int]struct{}, 3)
	for _, near := range []time.Time{guess.Add(-12 * time.Hour), guess, guess.Add(12 * time.Hour)} {
		_, off := near.Zone()
		offsets[off] = struct{}{}
	}

	var matches []time.Time
	for off := range offsets {
		cand := naive.Add(-time.Duration(off) * time.Second).In(loc)
		cy, cmo, cd := cand.Date()
		ch, cmi, cs := cand.Clock()
		if cy != y || cmo != mo || cd != d || ch != h || cmi != mi || cs != s {
			continue
		}
		dup := false
		for _, m := range matches {
			if m.Equal(cand) {
				dup = true
			}
		}
		if !dup {
			matches = append(matches, cand)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return time.Time{}, fmt.Errorf("%w: %s does not exist in %s", ErrAmbiguousTime, naive.Format("2006-01-02 15:04:05"), loc)
	default:
		return time.Time{}, fmt.Errorf("%w: %s occurs twice in %s", ErrAmbiguousTime, naive.Format("2006-01-02 15:04:05"), loc)
	}
}
