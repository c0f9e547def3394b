package model

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(DateLayout, s)
	require.NoError(t, err)
	return d
}

func wholeDay(t *testing.T, name, start string) Event {
	t.Helper()
	et, err := DateOnly(day(t, start), day(t, start))
	require.NoError(t, err)
	return Event{
		Name:    name,
		Links:   []string{"https://example.com/" + name},
		Time:    et,
		Country: "USA",
		City:    "Boston",
		Styles:  []DanceStyle{Contra},
	}
}

func TestMatches_EmptyFiltersAcceptAll(t *testing.T) {
	events := []Event{
		wholeDay(t, "a", "2024-01-02"),
		{Name: "bare"},
	}
	for _, e := range events {
		assert.True(t, e.Matches(Filters{}), e.Name)
	}
}

func TestMatches_CountryIsExact(t *testing.T) {
	usa := "USA"
	f := Filters{Country: &usa}

	e := wholeDay(t, "a", "2024-01-02")
	assert.True(t, e.Matches(f))

	e.Country = "usa"
	assert.False(t, e.Matches(f))

	e.Country = "USA "
	assert.False(t, e.Matches(f))
}

func TestMatches_FreeTextIsCaseInsensitiveSubstring(t *testing.T) {
	e := wholeDay(t, "Spring Contra Weekend", "2024-01-02")
	e.Bands = []string{"Stomp Rocket"}
	e.Callers = []string{"Lisa Greenleaf"}

	city, band, caller, name := "bost", "ROCKET", "greenleaf", "contra week"
	assert.True(t, e.Matches(Filters{City: &city, Band: &band, Caller: &caller, Name: &name}))

	other := "Supertrad"
	assert.False(t, e.Matches(Filters{Band: &other}))
}

func TestMatches_OptionalFieldsAbsent(t *testing.T) {
	e := wholeDay(t, "a", "2024-01-02")
	org, state := "CDSS", "MA"
	assert.False(t, e.Matches(Filters{Organisation: &org}))
	assert.False(t, e.Matches(Filters{State: &state}))

	e.Organisation = &org
	e.State = &state
	assert.True(t, e.Matches(Filters{Organisation: &org, State: &state}))
}

func TestMatches_StyleAndFlags(t *testing.T) {
	e := wholeDay(t, "a", "2024-01-02")
	e.Social = true
	balfolk, contra := Balfolk, Contra
	yes, no := true, false

	assert.True(t, e.Matches(Filters{Style: &contra, Social: &yes, Workshop: &no}))
	assert.False(t, e.Matches(Filters{Style: &balfolk}))
	assert.False(t, e.Matches(Filters{Workshop: &yes}))
}

func TestGroupByMonth(t *testing.T) {
	events := []Event{
		wholeDay(t, "feb", "2024-02-03"),
		wholeDay(t, "jan15", "2024-01-15"),
		wholeDay(t, "jan2", "2024-01-02"),
	}

	months := GroupByMonth(events)
	require.Len(t, months, 2)

	assert.Equal(t, day(t, "2024-01-01"), months[0].Start)
	assert.Equal(t, "January 2024", months[0].Name())
	require.Len(t, months[0].Events, 2)
	assert.Equal(t, "jan2", months[0].Events[0].Name)
	assert.Equal(t, "jan15", months[0].Events[1].Name)

	assert.Equal(t, day(t, "2024-02-01"), months[1].Start)
	require.Len(t, months[1].Events, 1)

	// Input untouched.
	assert.Equal(t, "feb", events[0].Name)
}

func TestGroupByMonth_StableAndSplitsYears(t *testing.T) {
	events := []Event{
		wholeDay(t, "first", "2024-01-05"),
		wholeDay(t, "next-year", "2025-01-05"),
		wholeDay(t, "second", "2024-01-05"),
	}
	months := GroupByMonth(events)
	require.Len(t, months, 2)
	assert.Equal(t, "first", months[0].Events[0].Name)
	assert.Equal(t, "second", months[0].Events[1].Name)
	assert.Equal(t, 2025, months[1].Start.Year())

	assert.Empty(t, GroupByMonth(nil))
}

func TestKey(t *testing.T) {
	e := wholeDay(t, "a", "2024-01-02")
	assert.Equal(t, Key("link:https://example.com/a"), e.Key())

	e.Links = nil
	org := "CDSS"
	e.Organisation = &org
	k1 := e.Key()
	e.Details = StringPtr("changed details do not matter")
	assert.Equal(t, k1, e.Key())

	e.City = "Cambridge"
	assert.NotEqual(t, k1, e.Key())
}

func TestDateOnly_RejectsReversed(t *testing.T) {
	_, err := DateOnly(day(t, "2024-01-03"), day(t, "2024-01-02"))
	assert.ErrorIs(t, err, ErrInvalidTime)
}

func TestDateTime_KeepsOffset(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	start := time.Date(2024, 7, 1, 19, 0, 0, 0, berlin)
	et, err := DateTime(start, start.Add(3*time.Hour))
	require.NoError(t, err)

	_, off := et.Start().Zone()
	assert.Equal(t, 2*60*60, off)
	assert.True(t, et.Start().Equal(start))
	assert.False(t, et.IsDateOnly())
}

func TestWindow(t *testing.T) {
	w := NewWindow(time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC), 30*24*time.Hour)
	assert.True(t, w.Contains(day(t, "2024-01-01")))
	assert.True(t, w.Contains(day(t, "2024-01-31")))
	assert.False(t, w.Contains(day(t, "2024-02-01")))
	assert.False(t, w.Contains(day(t, "2023-12-31")))
}

func TestEventsYAML(t *testing.T) {
	e := wholeDay(t, "Dance", "2024-03-09")
	e.Price = StringPtr("$5-$20")
	src := "cdss"
	e.Source = &src

	loc := time.FixedZone("", -5*60*60)
	timed, err := DateTime(time.Date(2024, 3, 10, 19, 30, 0, 0, loc), time.Date(2024, 3, 10, 22, 0, 0, 0, loc))
	require.NoError(t, err)
	e2 := wholeDay(t, "Timed", "2024-03-10")
	e2.Time = timed
	e2.Cancelled = true

	data, err := MarshalEvents([]Event{e, e2})
	require.NoError(t, err)
	assert.Contains(t, string(data), "start_date: \"2024-03-09\"")
	assert.Contains(t, string(data), "start: \"2024-03-10T19:30:00-05:00\"")
	assert.NotContains(t, string(data), "details")

	got, err := UnmarshalEvents(data)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Time.IsDateOnly())
	assert.Equal(t, "$5-$20", *got[0].Price)
	assert.Equal(t, "cdss", *got[0].Source)
	assert.Nil(t, got[0].Details)
	assert.True(t, got[1].Time.Equal(timed))
	assert.True(t, got[1].Cancelled)
}

func TestUnmarshalEvents_RejectsUnknownStyle(t *testing.T) {
	_, err := UnmarshalEvents([]byte(`events:
  - name: x
    links: [https://x]
    start_date: 2024-01-01
    end_date: 2024-01-01
    country: UK
    city: London
    styles: [disco]
`))
	assert.Error(t, err)
}

func TestParseFilters(t *testing.T) {
	q := url.Values{}
	q.Set("country", "USA")
	q.Set("style", "contra")
	q.Set("workshop", "true")
	q.Set("city", "")

	f, err := ParseFilters(q)
	require.NoError(t, err)
	assert.Equal(t, "USA", *f.Country)
	assert.Equal(t, Contra, *f.Style)
	assert.True(t, *f.Workshop)
	assert.Nil(t, f.City)
	assert.Nil(t, f.Social)

	q.Set("style", "disco")
	_, err = ParseFilters(q)
	assert.Error(t, err)
}

func TestDanceStylesNamed(t *testing.T) {
	styles := DanceStyles()
	require.Len(t, styles, 10)
	for _, st := range styles {
		assert.NotEqual(t, string(st), st.Name(), st)
	}
	assert.Equal(t, "Balfolk", Balfolk.Name())
	assert.Equal(t, "tango", DanceStyle("tango").Name())

	styles[0] = "changed"
	assert.NotEqual(t, DanceStyle("changed"), DanceStyles()[0])
}

func TestEventTimeMultiDay(t *testing.T) {
	day := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	single, err := DateOnly(day, day)
	require.NoError(t, err)
	assert.False(t, single.MultiDay())

	weekend, err := DateOnly(day, day.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.True(t, weekend.MultiDay())

	loc := time.FixedZone("CEST", 2*3600)
	evening, err := DateTime(time.Date(2024, 5, 10, 19, 0, 0, 0, loc), time.Date(2024, 5, 10, 23, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.False(t, evening.MultiDay())
}
