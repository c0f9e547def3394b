package model

import (
	"sort"
	"time"
)

// Month is a run of events starting in the same calendar month.
type Month struct {
	// Start is the first day of the month.
	Start  time.Time
	Events []Event
}

// Name formats the month as e.g. "January 2024".
func (m Month) Name() string {
	return m.Start.Format("January 2006")
}

// SortByStart stable-sorts events in place by ascending start date.
func SortByStart(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].StartDate().Before(events[j].StartDate())
	})
}

// GroupByMonth sorts a copy of events by start date and groups consecutive
// events sharing a calendar month. Empty groups are never produced.
func GroupByMonth(events []Event) []Month {
	sorted := make([]Event, len(events))
	copy(sorted, events)
	SortByStart(sorted)

	var months []Month
	for _, ev := range sorted {
		d := ev.StartDate()
		n := len(months)
		if n > 0 && months[n-1].Start.Year() == d.Year() && months[n-1].Start.Month() == d.Month() {
			months[n-1].Events = append(months[n-1].Events, ev)
			continue
		}
		months = append(months, Month{
			Start:  time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC),
			Events: []Event{ev},
		})
	}
	return months
}
