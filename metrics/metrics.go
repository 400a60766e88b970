package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const DefaultPrefix = "bridge_validator"

// Outcomes of a handled event.
const (
	OutcomeActed   = "acted"
	OutcomeSkipped = "skipped"
	OutcomeStale   = "stale"
	OutcomeFailed  = "failed"
)

// Results of a submission.
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
)

type Metrics struct {
	registry *prometheus.Registry

	events      *prometheus.CounterVec
	decisions   *prometheus.CounterVec
	submissions *prometheus.CounterVec
	guardWait   prometheus.Histogram
	handlers    prometheus.Gauge
}

// New creates the validator metrics on their own registry, together with
// the Go runtime and process collectors.
func New(prefix string) *Metrics {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_events_total",
			Help: "Bridge events received",
		}, []string{"direction", "kind"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_decisions_total",
			Help: "Outcome of every handled bridge event",
		}, []string{"direction", "kind", "outcome"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_submissions_total",
			Help: "Transactions submitted by this validator",
		}, []string{"ledger", "method", "result"}),
		guardWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "_guard_wait_seconds",
			Help:    "Time spent waiting for the handler guard",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		handlers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_handlers_running",
			Help: "Event handlers currently running, waiting ones included",
		}),
	}

	m.registry.MustRegister(
		m.events,
		m.decisions,
		m.submissions,
		m.guardWait,
		m.handlers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) EventReceived(direction, kind string) {
	m.events.WithLabelValues(direction, kind).Inc()
}

func (m *Metrics) Decision(direction, kind, outcome string) {
	m.decisions.WithLabelValues(direction, kind, outcome).Inc()
}

func (m *Metrics) Submission(ledger, method string, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailed
	}
	m.submissions.WithLabelValues(ledger, method, result).Inc()
}

func (m *Metrics) GuardWaited(seconds float64) {
	m.guardWait.Observe(seconds)
}

func (m *Metrics) HandlerStarted() {
	m.handlers.Inc()
}

func (m *Metrics) HandlerDone() {
	m.handlers.Dec()
}
