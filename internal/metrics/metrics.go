// Package metrics exposes expansion and similarity activity to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/icewall905/tuneforge/internal/domain"
	"github.com/icewall905/tuneforge/internal/expansion"
)

// Breaker state values reported by the breaker gauge.
const (
	breakerClosed   = 0
	breakerHalfOpen = 1
	breakerOpen     = 2
)

// Metrics implements expansion.Observer and similarity.Observer.
type Metrics struct {
	registry *prometheus.Registry

	jobsStarted     prometheus.Counter
	jobsFinished    *prometheus.CounterVec
	jobDuration     prometheus.Histogram
	jobsActive      prometheus.Gauge
	roundsTotal     prometheus.Counter
	roundDuration   prometheus.Histogram
	candidatesTotal *prometheus.CounterVec
	suggestFailures *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec

	statsRecomputed prometheus.Counter
	vectorCacheHits prometheus.Counter
	vectorCacheMiss prometheus.Counter
}

// New creates the collectors and registers them with registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.jobsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tuneforge_jobs_started_total",
		Help: "Total number of expansion jobs that started running",
	})
	m.jobsFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tuneforge_jobs_finished_total",
		Help: "Total number of expansion jobs that reached a terminal state",
	}, []string{"status"})
	m.jobDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tuneforge_job_duration_seconds",
		Help:    "Wall time of expansion jobs",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34m
	})
	m.jobsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tuneforge_jobs_running",
		Help: "Number of expansion jobs currently running",
	})
	m.roundsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tuneforge_rounds_total",
		Help: "Total number of expansion rounds",
	})
	m.roundDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tuneforge_round_duration_seconds",
		Help:    "Wall time of a single expansion round",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
	m.candidatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tuneforge_candidates_total",
		Help: "Suggested candidates by outcome",
	}, []string{"outcome"}) // accepted, duplicate, unmatched, rejected
	m.suggestFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tuneforge_suggestion_failures_total",
		Help: "Failed suggestion requests by source",
	}, []string{"source"})
	m.breakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tuneforge_suggestion_breaker_state",
		Help: "Circuit breaker state per source (0 closed, 1 half-open, 2 open)",
	}, []string{"source"})

	m.statsRecomputed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tuneforge_feature_stats_recomputed_total",
		Help: "Number of times feature min/max statistics were recomputed",
	})
	m.vectorCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tuneforge_vector_cache_hits_total",
		Help: "Normalized vector cache hits",
	})
	m.vectorCacheMiss = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tuneforge_vector_cache_misses_total",
		Help: "Normalized vector cache misses",
	})
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.jobsStarted, m.jobsFinished, m.jobDuration, m.jobsActive,
		m.roundsTotal, m.roundDuration, m.candidatesTotal, m.suggestFailures, m.breakerState,
		m.statsRecomputed, m.vectorCacheHits, m.vectorCacheMiss,
	}
}

// Describe implements the Collector interface
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

// Registry returns the registry the collectors were registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) JobStarted() {
	m.jobsStarted.Inc()
	m.jobsActive.Inc()
}

func (m *Metrics) JobFinished(status domain.JobStatus, duration time.Duration) {
	m.jobsActive.Dec()
	m.jobsFinished.WithLabelValues(string(status)).Inc()
	m.jobDuration.Observe(duration.Seconds())
}

func (m *Metrics) RoundCompleted(r expansion.RoundResult) {
	m.roundsTotal.Inc()
	m.roundDuration.Observe(r.Duration.Seconds())
	m.candidatesTotal.WithLabelValues("accepted").Add(float64(r.Accepted))
	m.candidatesTotal.WithLabelValues("duplicate").Add(float64(r.Duplicates))
	m.candidatesTotal.WithLabelValues("unmatched").Add(float64(r.Unmatched))
	m.candidatesTotal.WithLabelValues("rejected").Add(float64(r.Rejected))
}

func (m *Metrics) SuggestionFailed(source string) {
	m.suggestFailures.WithLabelValues(source).Inc()
}

// BreakerStateChanged matches suggest.BreakerConfig.OnStateChange.
func (m *Metrics) BreakerStateChanged(source, state string) {
	v := breakerClosed
	switch state {
	case "open":
		v = breakerOpen
	case "half-open":
		v = breakerHalfOpen
	}
	m.breakerState.WithLabelValues(source).Set(float64(v))
}

func (m *Metrics) StatsRecomputed() { m.statsRecomputed.Inc() }
func (m *Metrics) VectorCacheHit()  { m.vectorCacheHits.Inc() }
func (m *Metrics) VectorCacheMiss() { m.vectorCacheMiss.Inc() }
