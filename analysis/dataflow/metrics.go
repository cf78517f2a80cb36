package dataflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts the work done by analyses. A nil *Metrics disables
// collection.
type Metrics struct {
	Registry *prometheus.Registry

	blocks     prometheus.Counter
	passes     *prometheus.CounterVec
	iterations *prometheus.CounterVec
	calls      *prometheus.CounterVec
	cache      *prometheus.CounterVec
	duration   prometheus.Histogram
}

// NewMetrics registers the analysis metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		blocks: f.NewCounter(prometheus.CounterOpts{
			Namespace: "goat_flow",
			Name:      "blocks_processed_total",
			Help:      "Number of basic blocks processed by the fixed-point engine",
		}),
		passes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "goat_flow",
			Name:      "passes_total",
			Help:      "Number of fixed-point passes by kind",
		}, []string{"pass"}),
		iterations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "goat_flow",
			Name:      "pass_iterations_total",
			Help:      "Number of worklist iterations by kind of pass",
		}, []string{"pass"}),
		calls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "goat_flow",
			Name:      "calls_total",
			Help:      "Number of invocations by outcome",
		}, []string{"outcome"}),
		cache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "goat_flow",
			Name:      "cache_requests_total",
			Help:      "Result cache lookups by result",
		}, []string{"result"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "goat_flow",
			Name:      "activation_duration_seconds",
			Help:      "Time spent analyzing one activation",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
		}),
	}
}

// Enabled checks whether the Metrics object is available.
func (m *Metrics) Enabled() bool {
	return m != nil
}

func (m *Metrics) block() {
	if m != nil {
		m.blocks.Inc()
	}
}

func (m *Metrics) pass(exceptional bool, iterations int) {
	if m == nil {
		return
	}
	kind := "normal"
	if exceptional {
		kind = "exception-paths"
	}
	m.passes.WithLabelValues(kind).Inc()
	m.iterations.WithLabelValues(kind).Add(float64(iterations))
}

func (m *Metrics) call(outcome string) {
	if m != nil {
		m.calls.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) cacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cache.WithLabelValues("hit").Inc()
	} else {
		m.cache.WithLabelValues("miss").Inc()
	}
}

// timer starts measuring an activation; the returned function stops it.
func (m *Metrics) timer() func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	return func() { m.duration.Observe(time.Since(start).Seconds()) }
}
