// Package aggregate runs the fetch and reconcile cycle over all configured
// sources and schedules it.
package aggregate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"dancefeed/internal/corpus"
	"dancefeed/internal/importer"
	appLog "dancefeed/internal/log"
	"dancefeed/internal/metrics"
	"dancefeed/internal/model"
	"dancefeed/internal/reconcile"
	"dancefeed/internal/source"
)

// ErrCycleRunning is returned by Run while another cycle is in progress.
var ErrCycleRunning = errors.New("aggregation cycle already running")

// Store persists the reconciled corpus.
type Store interface {
	Save(events []model.Event) error
}

// Importer is the part of importer.Pipeline a Runner needs.
type Importer interface {
	ImportAll(ctx context.Context, srcs []source.Adapter) ([]importer.Batch, error)
}

// Summary describes one finished cycle.
type Summary struct {
	ID       string
	Started  time.Time
	Duration time.Duration
	// Sources is the number of adapters run; Failed how many were skipped.
	Sources  int
	Failed   int
	Imported int
	Total    int
	// SourceErr combines the source-level errors. It never aborts a cycle.
	SourceErr error
}

// Runner owns the cycle. Only one cycle runs at a time.
type Runner struct {
	importer Importer
	adapters []source.Adapter
	corpus   *corpus.Corpus
	store    Store
	metrics  *metrics.Metrics
	now      func() time.Time

	mu sync.Mutex

	lastMu sync.Mutex
	last   *Summary
}

// New creates a Runner. store and m may be nil.
func New(imp Importer, adapters []source.Adapter, c *corpus.Corpus, store Store, m *metrics.Metrics) *Runner {
	return &Runner{
		importer: imp,
		adapters: adapters,
		corpus:   c,
		store:    store,
		metrics:  m,
		now:      time.Now,
	}
}

// Run imports every source, reconciles the batches against the current
// corpus, swaps the result in and persists it. Source failures are reported
// in the summary; the returned error is set only when the cycle could not
// run or the result could not be saved.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	if !r.mu.TryLock() {
		return Summary{}, ErrCycleRunning
	}
	defer r.mu.Unlock()

	sum := Summary{ID: uuid.NewString(), Started: r.now(), Sources: len(r.adapters)}
	appLog.Info("cycle start", "cycle", sum.ID, "sources", sum.Sources)

	batches, srcErr := r.importer.ImportAll(ctx, r.adapters)
	if err := ctx.Err(); err != nil {
		return sum, err
	}
	sum.SourceErr = srcErr
	sum.Failed = sum.Sources - len(batches)

	coverage := make(reconcile.Coverage, len(batches))
	var fresh []model.Event
	for _, b := range batches {
		// Several batches from one source extend its window.
		if w, ok := coverage[b.Source]; ok {
			if b.Window.Start.Before(w.Start) {
				w.Start = b.Window.Start
			}
			if b.Window.End.After(w.End) {
				w.End = b.Window.End
			}
			coverage[b.Source] = w
		} else {
			coverage[b.Source] = b.Window
		}
		fresh = append(fresh, b.Events...)
	}
	sum.Imported = len(fresh)

	merged := reconcile.Reconcile(r.corpus.Events(), fresh, coverage)
	r.corpus.Replace(merged)
	sum.Total = len(merged)
	r.metrics.SetCorpusSize(sum.Total)

	var saveErr error
	if r.store != nil {
		if saveErr = r.store.Save(merged); saveErr != nil {
			appLog.Error("cycle: saving corpus failed", saveErr, "cycle", sum.ID)
		}
	}

	sum.Duration = r.now().Sub(sum.Started)
	r.metrics.ObserveCycle(sum.Duration)
	r.lastMu.Lock()
	r.last = &sum
	r.lastMu.Unlock()
	appLog.Info("cycle done",
		"cycle", sum.ID,
		"imported", sum.Imported,
		"total", sum.Total,
		"failed_sources", sum.Failed,
		"duration", sum.Duration,
	)
	return sum, saveErr
}

// Last returns the summary of the most recent finished cycle.
func (r *Runner) Last() (Summary, bool) {
	r.lastMu.Lock()
	defer r.lastMu.Unlock()
	if r.last == nil {
		return Summary{}, false
	}
	return *r.last, true
}
