package ics

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	ical "github.com/arran4/golang-ical"

	appLog "dancefeed/internal/log"
	"dancefeed/internal/source"
)

// Decoder decodes iCalendar feeds into records.
type Decoder struct{}

var _ source.Decoder = Decoder{}

// Decode parses body as a VCALENDAR. Each VEVENT yields one record, or one
// per occurrence inside opts.Window when it carries an RRULE.
func (Decoder) Decode(body []byte, opts source.DecodeOptions) ([]source.Record, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	events := cal.Events()
	cats, err := rawCategories(body)
	if err != nil || len(cats) != len(events) {
		cats = nil
	}

	records := make([]source.Record, 0)
	for i, ve := range events {
		var raw []string
		if cats != nil {
			raw = cats[i]
		}
		records = append(records, decodeVEvent(ve, raw, opts)...)
	}
	return records, nil
}

// decodeVEvent converts ve. rawCats holds its CATEGORIES values with escapes
// intact; when nil the parsed values are split on every comma.
func decodeVEvent(ve *ical.VEvent, rawCats []string, opts source.DecodeOptions) []source.Record {
	var rec source.Record

	if p := ve.GetProperty(ical.ComponentPropertyUrl); p != nil && strings.TrimSpace(p.Value) != "" {
		u := strings.TrimSpace(p.Value)
		rec.URL = &u
	}
	rec.Summary = textProp(ve, ical.ComponentPropertySummary)
	rec.Description = textProp(ve, ical.ComponentPropertyDescription)
	rec.Location = textProp(ve, ical.ComponentPropertyLocation)

	if rawCats != nil {
		for _, v := range rawCats {
			for _, c := range splitEscaped(v, ',') {
				addCategory(&rec, ical.FromText(c))
			}
		}
	} else {
		for _, p := range ve.GetProperties(ical.ComponentPropertyCategories) {
			for _, c := range strings.Split(p.Value, ",") {
				addCategory(&rec, c)
			}
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyOrganizer); p != nil {
		if cns, ok := p.ICalParameters[string(ical.ParameterCn)]; ok && len(cns) > 0 {
			if cn := strings.Trim(strings.TrimSpace(cns[0]), `"`); cn != "" {
				rec.Organiser = &cn
			}
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil && strings.EqualFold(strings.TrimSpace(p.Value), "CANCELLED") {
		rec.Cancelled = true
	}

	res, err := resolveTime(ve.GetProperty(ical.ComponentPropertyDtStart), ve.GetProperty(ical.ComponentPropertyDtEnd), opts.DefaultTimezone, opts.AcceptUTC)
	if err != nil {
		rec.TimeErr = err
		return []source.Record{rec}
	}
	if res == nil {
		return []source.Record{rec}
	}
	rec.Time = &res.time

	rule := ve.GetProperty(ical.ComponentPropertyRrule)
	if rule == nil || strings.TrimSpace(rule.Value) == "" || opts.Window.Start.IsZero() {
		return []source.Record{rec}
	}

	occurrences, err := expand(rec, res, rule.Value, exDates(ve, res), opts.Window)
	if err != nil {
		summary, url := rec.Label()
		appLog.Warn("ics: recurrence expansion failed; keeping first occurrence",
			"err", err, "summary", summary, "url", url, "rrule", rule.Value)
		return []source.Record{rec}
	}
	return occurrences
}

func textProp(ve *ical.VEvent, prop ical.ComponentProperty) *string {
	p := ve.GetProperty(prop)
	if p == nil {
		return nil
	}
	// The parser has already undone TEXT escaping.
	s := strings.TrimSpace(source.DecodeEntities(p.Value))
	return &s
}

func addCategory(rec *source.Record, c string) {
	if c = strings.TrimSpace(source.DecodeEntities(c)); c != "" {
		rec.Categories = append(rec.Categories, c)
	}
}

// rawCategories returns the CATEGORIES values of every top-level VEVENT in
// document order, before TEXT unescaping. Once unescaped, a list separator
// and an escaped comma inside one category look the same.
func rawCategories(body []byte) ([][]string, error) {
	cs := ical.NewCalendarStream(bytes.NewReader(body))
	var (
		out   [][]string
		stack []string
	)
	for {
		l, err := cs.ReadLine()
		if l != nil && len(*l) > 0 {
			name, value := splitContentLine(string(*l))
			switch strings.ToUpper(name) {
			case "BEGIN":
				stack = append(stack, strings.ToUpper(strings.TrimSpace(value)))
				if inVEvent(stack) {
					out = append(out, []string{})
				}
			case "END":
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
			case "CATEGORIES":
				if inVEvent(stack) {
					out[len(out)-1] = append(out[len(out)-1], value)
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, err
		}
	}
}

func inVEvent(stack []string) bool {
	return len(stack) == 2 && stack[1] == "VEVENT"
}

// splitContentLine splits an unfolded content line into its property name
// and raw value. The value starts at the first colon outside a quoted
// parameter value.
func splitContentLine(line string) (name, value string) {
	end := strings.IndexAny(line, ";:")
	if end < 0 {
		return line, ""
	}
	name = line[:end]
	quoted := false
	for i := end; i < len(line); i++ {
		switch line[i] {
		case '"':
			quoted = !quoted
		case ':':
			if !quoted {
				return name, line[i+1:]
			}
		}
	}
	return name, ""
}

// splitEscaped splits s on sep, ignoring separators escaped with a backslash.
func splitEscaped(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case sep:
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}
