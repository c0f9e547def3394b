// Package importer fetches each source, decodes its feed and turns the
// records into validated events.
package importer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"dancefeed/internal/fetch"
	appLog "dancefeed/internal/log"
	"dancefeed/internal/metrics"
	"dancefeed/internal/model"
	"dancefeed/internal/source"
)

var (
	// ErrFetch marks a source whose feed could not be retrieved.
	ErrFetch = errors.New("fetch failed")
	// ErrParse marks a source whose payload could not be decoded as a whole.
	ErrParse = errors.New("parse failed")
	// ErrNoStyle marks an event for which the adapter derived no dance style.
	ErrNoStyle = errors.New("no dance style")
)

// Fetcher retrieves the raw body of a feed URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// EventError is a problem with a single upstream event. The event is
// skipped; the rest of the source is still imported.
type EventError struct {
	Source  string
	Summary string
	URL     string
	Err     error
}

func (e *EventError) Error() string {
	return fmt.Sprintf("%s: event %q (%s): %v", e.Source, e.Summary, e.URL, e.Err)
}

func (e *EventError) Unwrap() error { return e.Err }

// Batch is the output of one successful source import.
type Batch struct {
	Source string
	Events []model.Event
	// Window is the date range the source is authoritative for this cycle.
	Window model.Window
	// Skipped counts records that were dropped with an EventError.
	Skipped int
}

type Option func(*Pipeline)

// WithClock overrides time.Now, which anchors every source window.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// Pipeline runs adapters against a Fetcher.
type Pipeline struct {
	fetcher Fetcher
	now     func() time.Time
	metrics *metrics.Metrics
}

func New(f Fetcher, opts ...Option) *Pipeline {
	p := &Pipeline{fetcher: f, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Import fetches and converts every endpoint of a. A fetch or decode failure
// on any endpoint fails the whole source.
func (p *Pipeline) Import(ctx context.Context, a source.Adapter) (Batch, error) {
	desc := a.Descriptor()
	batch := Batch{Source: desc.Name, Window: model.NewWindow(p.now(), desc.Horizon)}

	for _, url := range desc.URLs {
		body, err := p.fetcher.Fetch(ctx, url)
		if err != nil {
			p.metrics.RecordSourceFailure(desc.Name, metrics.FailureFetch)
			return Batch{}, fmt.Errorf("%s: %w: %s: %w", desc.Name, ErrFetch, fetch.RedactURL(url), err)
		}
		records, err := desc.Decoder.Decode(body, source.DecodeOptions{
			FeedURL:         url,
			DefaultTimezone: desc.DefaultTimezone,
			AcceptUTC:       desc.AcceptUTC,
			Window:          batch.Window,
		})
		if err != nil {
			p.metrics.RecordSourceFailure(desc.Name, metrics.FailureParse)
			return Batch{}, fmt.Errorf("%s: %w: %s: %w", desc.Name, ErrParse, fetch.RedactURL(url), err)
		}

		for _, rec := range records {
			ev, ok, err := convert(a, desc, url, rec)
			switch {
			case err != nil:
				batch.Skipped++
				p.metrics.RecordEvent(desc.Name, metrics.OutcomeSkipped)
				summary, link := rec.Label()
				appLog.Warn("skipping event", "source", desc.Name, "summary", summary, "url", link, "err", err)
			case !ok:
				p.metrics.RecordEvent(desc.Name, metrics.OutcomeDropped)
			default:
				p.metrics.RecordEvent(desc.Name, metrics.OutcomeImported)
				batch.Events = append(batch.Events, ev)
			}
		}
	}

	p.metrics.RecordSourceSuccess(desc.Name, p.now())
	appLog.Info("source imported", "source", desc.Name, "events", len(batch.Events), "skipped", batch.Skipped)
	return batch, nil
}

// convert builds one event from rec. ok is false when the adapter vetoed it.
func convert(a source.Adapter, desc source.Descriptor, feedURL string, rec source.Record) (model.Event, bool, error) {
	summary, link := rec.Label()
	eventErr := func(err error) error {
		return &EventError{Source: desc.Name, Summary: summary, URL: link, Err: err}
	}

	parts, err := source.NewEventParts(feedURL, rec)
	if err != nil {
		return model.Event{}, false, eventErr(err)
	}

	styles := model.StyleSet(a.Styles(&parts)...)
	if len(styles) == 0 {
		return model.Event{}, false, eventErr(ErrNoStyle)
	}
	loc, err := a.Location(&parts)
	if err != nil {
		return model.Event{}, false, eventErr(err)
	}

	name := desc.Name
	ev := model.Event{
		Name:         parts.Summary,
		Details:      model.StringPtr(parts.Description),
		Links:        []string{parts.URL},
		Time:         parts.Time,
		Country:      loc.Country,
		State:        loc.State,
		City:         loc.City,
		Styles:       styles,
		Workshop:     a.Workshop(&parts),
		Social:       a.Social(&parts),
		Bands:        desc.Bands.Match(parts.Summary, parts.Description),
		Callers:      desc.Callers.Match(parts.Summary, parts.Description),
		Price:        parts.Price,
		Organisation: organisation(parts.Organiser, desc.DefaultOrganisation),
		Cancelled:    parts.Cancelled,
		Source:       &name,
	}

	ev, ok := a.Fixup(&parts, ev)
	if !ok {
		appLog.Debug("event vetoed", "source", desc.Name, "summary", summary, "url", link)
		return model.Event{}, false, nil
	}
	if err := ev.Validate(); err != nil {
		return model.Event{}, false, eventErr(err)
	}
	return ev, true, nil
}

func organisation(organiser, def *string) *string {
	if organiser != nil && *organiser != "" {
		o := *organiser
		return &o
	}
	if def != nil {
		o := *def
		return &o
	}
	return nil
}

// ImportAll imports all adapters in parallel and returns the batches of the
// sources that succeeded, in adapter order. Failures of individual sources
// are combined into the returned error; they never affect other sources.
func (p *Pipeline) ImportAll(ctx context.Context, srcs []source.Adapter) ([]Batch, error) {
	type result struct {
		batch Batch
		err   error
	}
	results := make([]result, len(srcs))

	var wg sync.WaitGroup
	for i, a := range srcs {
		wg.Add(1)
		go func(i int, a source.Adapter) {
			defer wg.Done()
			b, err := p.Import(ctx, a)
			results[i] = result{batch: b, err: err}
		}(i, a)
	}
	wg.Wait()

	var (
		batches []Batch
		errs    error
	)
	for i, r := range results {
		if r.err != nil {
			appLog.Error("source failed; skipped this cycle", r.err, "source", srcs[i].Descriptor().Name)
			errs = multierr.Append(errs, r.err)
			continue
		}
		batches = append(batches, r.batch)
	}
	return batches, errs
}
