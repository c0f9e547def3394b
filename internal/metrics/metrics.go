package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes of a single upstream record.
const (
	OutcomeImported = "imported"
	OutcomeSkipped  = "skipped"
	OutcomeDropped  = "dropped"
)

// Kinds of source-level failure.
const (
	FailureFetch = "fetch"
	FailureParse = "parse"
)

// Metrics holds the aggregation collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	importEvents   *prometheus.CounterVec
	sourceFailures *prometheus.CounterVec
	lastSuccessTS  *prometheus.GaugeVec
	cycleDuration  prometheus.Histogram
	corpusEvents   prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		importEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dancefeed",
			Name:      "import_events_total",
			Help:      "Upstream records processed, by source and outcome",
		}, []string{"source", "outcome"}),
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dancefeed",
			Name:      "source_failures_total",
			Help:      "Sources skipped for a cycle, by kind of failure",
		}, []string{"source", "kind"}),
		lastSuccessTS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dancefeed",
			Name:      "source_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful import per source",
		}, []string{"source"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dancefeed",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a full fetch and reconcile cycle",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		corpusEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dancefeed",
			Name:      "corpus_events",
			Help:      "Events in the live corpus",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.importEvents, m.sourceFailures, m.lastSuccessTS, m.cycleDuration, m.corpusEvents)
	}
	return m
}

func (m *Metrics) RecordEvent(source, outcome string) {
	if m == nil {
		return
	}
	m.importEvents.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) RecordSourceFailure(source, kind string) {
	if m == nil {
		return
	}
	m.sourceFailures.WithLabelValues(source, kind).Inc()
}

func (m *Metrics) RecordSourceSuccess(source string, at time.Time) {
	if m == nil {
		return
	}
	m.lastSuccessTS.WithLabelValues(source).Set(float64(at.Unix()))
}

func (m *Metrics) ObserveCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.cycleDuration.Observe(d.Seconds())
}

func (m *Metrics) SetCorpusSize(n int) {
	if m == nil {
		return
	}
	m.corpusEvents.Set(float64(n))
}
