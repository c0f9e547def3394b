package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dancefeed/internal/aggregate"
	"dancefeed/internal/corpus"
	"dancefeed/internal/metrics"
	"dancefeed/internal/model"
)

func event(name, country string, start time.Time) model.Event {
	et, _ := model.DateOnly(start, start)
	return model.Event{
		Name:    name,
		Links:   []string{"https://example.org/" + name},
		Time:    et,
		Country: country,
		City:    "Somewhere",
		Styles:  []model.DanceStyle{model.Balfolk},
		Social:  true,
	}
}

func testCorpus() *corpus.Corpus {
	return corpus.New([]model.Event{
		event("a", "USA", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)),
		event("b", "UK", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)),
		event("c", "USA", time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)),
	})
}

type fakeSubmitter struct {
	got []model.Event
	err error
}

func (f *fakeSubmitter) Submit(_ context.Context, e model.Event) (string, error) {
	f.got = append(f.got, e)
	if f.err != nil {
		return "", f.err
	}
	return "https://github.com/o/r/pull/9", nil
}

type fakeRefresher struct {
	last *aggregate.Summary
	err  error
}

func (f *fakeRefresher) Run(context.Context) (aggregate.Summary, error) {
	if f.err != nil {
		return aggregate.Summary{}, f.err
	}
	s := aggregate.Summary{ID: "cycle-1", Sources: 4, Imported: 10, Total: 12}
	f.last = &s
	return s, nil
}

func (f *fakeRefresher) Last() (aggregate.Summary, bool) {
	if f.last == nil {
		return aggregate.Summary{}, false
	}
	return *f.last, true
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := NewServer(Options{Corpus: testCorpus()})
	rec := do(t, s.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestEventsGroupedByMonth(t *testing.T) {
	s := NewServer(Options{Corpus: testCorpus()})
	rec := do(t, s.Handler(), http.MethodGet, "/api/events", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp eventsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 3, resp.Count)
	require.Len(t, resp.Months, 2)
	assert.Equal(t, "January 2024", resp.Months[0].Name)
	assert.Len(t, resp.Months[0].Events, 2)
	assert.Equal(t, "February 2024", resp.Months[1].Name)
	assert.Equal(t, "2024-02-03", resp.Months[1].Events[0].StartDate)
}

func TestEventsMarkMultiDay(t *testing.T) {
	start := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	weekend := event("weekend", "UK", start)
	weekend.Time, _ = model.DateOnly(start, start.AddDate(0, 0, 2))
	s := NewServer(Options{Corpus: corpus.New([]model.Event{weekend, event("evening", "UK", start)})})

	rec := do(t, s.Handler(), http.MethodGet, "/api/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp eventsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Months, 1)
	multi := map[string]bool{}
	for _, e := range resp.Months[0].Events {
		multi[e.Name] = e.MultiDay
	}
	assert.Equal(t, map[string]bool{"weekend": true, "evening": false}, multi)
}

func TestStyles(t *testing.T) {
	s := NewServer(Options{Corpus: testCorpus()})
	rec := do(t, s.Handler(), http.MethodGet, "/api/styles", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var styles []styleDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&styles))
	require.Len(t, styles, len(model.DanceStyles()))
	assert.Contains(t, styles, styleDTO{Tag: "e-ceilidh", Name: "English Ceilidh"})
	assert.Contains(t, styles, styleDTO{Tag: "scd", Name: "Scottish Country Dance"})
}

func TestEventsFiltered(t *testing.T) {
	s := NewServer(Options{Corpus: testCorpus()})
	rec := do(t, s.Handler(), http.MethodGet, "/api/events?country=USA", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp eventsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Count)

	rec = do(t, s.Handler(), http.MethodGet, "/api/events?style=tango", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

const submission = `{
  "name": "Summer Ceilidh",
  "links": ["https://example.org/ceilidh"],
  "start": "2024-06-01T19:30:00+01:00",
  "end": "2024-06-01T23:00:00+01:00",
  "country": "UK",
  "city": "Leeds",
  "styles": ["e-ceilidh"],
  "social": true,
  "price": "£ 8-12"
}`

func TestSubmit(t *testing.T) {
	sub := &fakeSubmitter{}
	s := NewServer(Options{Corpus: testCorpus(), Submitter: sub})

	rec := do(t, s.Handler(), http.MethodPost, "/api/events", submission)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "https://github.com/o/r/pull/9")

	require.Len(t, sub.got, 1)
	e := sub.got[0]
	assert.Equal(t, "Summer Ceilidh", e.Name)
	assert.False(t, e.Time.IsDateOnly())
	assert.Equal(t, "£8-£12", *e.Price)
	assert.Nil(t, e.Source)
	assert.Equal(t, []model.DanceStyle{model.EnglishCeilidh}, e.Styles)
}

func TestSubmitRejectsInvalid(t *testing.T) {
	sub := &fakeSubmitter{}
	s := NewServer(Options{Corpus: testCorpus(), Submitter: sub})

	for name, body := range map[string]string{
		"not json":      "{",
		"unknown field": `{"name": "x", "colour": "red"}`,
		"no time":       `{"name": "x", "links": ["l"], "country": "UK", "city": "Leeds", "styles": ["scd"]}`,
		"bad style":     `{"name": "x", "links": ["l"], "start_date": "2024-06-01", "country": "UK", "city": "Leeds", "styles": ["tango"]}`,
		"no city":       `{"name": "x", "links": ["https://example.org/x"], "start_date": "2024-06-01", "country": "UK", "styles": ["scd"]}`,
		"bad link":      `{"name": "x", "links": ["not a url"], "start_date": "2024-06-01", "country": "UK", "city": "Leeds", "styles": ["scd"]}`,
		"no styles":     `{"name": "x", "links": ["https://example.org/x"], "start_date": "2024-06-01", "country": "UK", "city": "Leeds", "styles": []}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(t, s.Handler(), http.MethodPost, "/api/events", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, sub.got)
}

func TestSubmitFailures(t *testing.T) {
	s := NewServer(Options{Corpus: testCorpus()})
	rec := do(t, s.Handler(), http.MethodPost, "/api/events", submission)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	s = NewServer(Options{Corpus: testCorpus(), Submitter: &fakeSubmitter{err: errors.New("boom")}})
	rec = do(t, s.Handler(), http.MethodPost, "/api/events", submission)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestBasicAuthGuardsWrites(t *testing.T) {
	sub := &fakeSubmitter{}
	s := NewServer(Options{
		Corpus:    testCorpus(),
		Submitter: sub,
		BasicAuth: &BasicAuth{Username: "admin", Password: "secret"},
	})

	rec := do(t, s.Handler(), http.MethodPost, "/api/events", submission)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(submission))
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)

	// Reads stay open.
	rec = do(t, s.Handler(), http.MethodGet, "/api/events", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshAndStatus(t *testing.T) {
	ref := &fakeRefresher{}
	s := NewServer(Options{Corpus: testCorpus(), Refresher: ref})

	rec := do(t, s.Handler(), http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "last_cycle")

	rec = do(t, s.Handler(), http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cycle-1")

	rec = do(t, s.Handler(), http.MethodGet, "/api/status", "")
	var status statusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, 3, status.Events)
	require.NotNil(t, status.LastCycle)
	assert.Equal(t, 12, status.LastCycle.Total)

	ref.err = aggregate.ErrCycleRunning
	rec = do(t, s.Handler(), http.MethodPost, "/api/refresh", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.SetCorpusSize(3)
	s := NewServer(Options{Corpus: testCorpus(), Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})})

	rec := do(t, s.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dancefeed_corpus_events 3")
}
