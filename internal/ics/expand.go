package ics

import (
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"dancefeed/internal/model"
	"dancefeed/internal/source"
)

// maxOccurrences caps the expansion of a single series.
const maxOccurrences = 1000

// expand turns a recurring record into one record per occurrence starting
// within window. Each occurrence's URL gets a #YYYY-MM-DD fragment so the
// occurrences stay distinguishable.
func expand(base source.Record, res *resolved, rule string, exdates []time.Time, window model.Window) ([]source.Record, error) {
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return nil, err
	}
	r.DTStart(res.start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range exdates {
		set.ExDate(ex)
	}

	from := time.Date(window.Start.Year(), window.Start.Month(), window.Start.Day(), 0, 0, 0, 0, res.loc)
	until := time.Date(window.End.Year(), window.End.Month(), window.End.Day(), 23, 59, 59, 0, res.loc)
	starts := set.Between(from, until, true)
	if len(starts) > maxOccurrences {
		starts = starts[:maxOccurrences]
	}

	out := make([]source.Record, 0, len(starts))
	for _, s := range starts {
		var et model.EventTime
		if res.time.IsDateOnly() {
			days := int(res.end.Sub(res.start).Hours() / 24)
			et, err = model.DateOnly(s, s.AddDate(0, 0, days))
		} else {
			// Re-read the wall clock so occurrences after a DST change keep
			// their local start time.
			var start time.Time
			start, err = InZone(s, res.loc)
			if err == nil {
				et, err = model.DateTime(start, start.Add(res.end.Sub(res.start)))
			}
		}
		if err != nil {
			rec := base
			rec.Time = nil
			rec.TimeErr = err
			out = append(out, rec)
			continue
		}

		rec := base
		rec.Time = &et
		if base.URL != nil {
			u := occurrenceURL(*base.URL, et.StartDate())
			rec.URL = &u
		}
		out = append(out, rec)
	}
	if len(out) == 0 {
		return nil, errNoOccurrences
	}
	return out, nil
}

var errNoOccurrences = errors.New("no occurrences inside fetch window")

func occurrenceURL(u string, date time.Time) string {
	if strings.Contains(u, "#") {
		return u
	}
	return u + "#" + date.Format(model.DateLayout)
}

// exDates reads EXDATE values in the zone of the series start.
func exDates(ve *ical.VEvent, res *resolved) []time.Time {
	var out []time.Time
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		loc := res.loc
		if tzs, ok := p.ICalParameters[string(ical.ParameterTzid)]; ok && len(tzs) > 0 {
			if l, err := time.LoadLocation(strings.Trim(tzs[0], `"`)); err == nil {
				loc = l
			}
		}
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			var (
				t   time.Time
				err error
			)
			switch {
			case part == "":
				continue
			case strings.HasSuffix(part, "Z"):
				t, err = time.Parse(layoutDateTime+"Z", part)
			case strings.Contains(part, "T"):
				t, err = time.ParseInLocation(layoutDateTime, part, loc)
			default:
				t, err = time.ParseInLocation(layoutDate, part, res.loc)
				if err == nil && !res.time.IsDateOnly() {
					// A date-only EXDATE on a timed series removes that day's occurrence.
					t = time.Date(t.Year(), t.Month(), t.Day(), res.start.Hour(), res.start.Minute(), res.start.Second(), 0, res.loc)
				}
			}
			if err == nil {
				out = append(out, t)
			}
		}
	}
	return out
}
