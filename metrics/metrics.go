package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "comicbot"

// Metrics holds every collector the bot exports. Each instance owns its
// registry, so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	CommandsTotal      *prometheus.CounterVec
	CommandDuration    *prometheus.HistogramVec
	StatusPollsTotal   *prometheus.CounterVec
	AnnotationsTotal   *prometheus.CounterVec
	AnnotationDuration prometheus.Histogram
	UpstreamDuration   *prometheus.HistogramVec
}

// New creates a Metrics instance with registered collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CommandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands handled, by command and outcome",
		}, []string{"command", "outcome"}),
		CommandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Time taken to handle a command",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"command"}),
		StatusPollsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "update_status_polls_total",
			Help:      "Database update status checks, by outcome",
		}, []string{"outcome"}),
		AnnotationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "annotations_total",
			Help:      "Explanation requests, by outcome",
		}, []string{"outcome"}),
		AnnotationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "annotation_duration_seconds",
			Help:      "Time taken to obtain an explanation",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		UpstreamDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Search backend request latency, by operation and status code",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "code"}),
	}
}

// ObserveCommand implements bot.Recorder.
func (m *Metrics) ObserveCommand(command, outcome string, d time.Duration) {
	m.CommandsTotal.WithLabelValues(command, outcome).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(d.Seconds())
}

// ObservePoll implements orchestrator.Recorder.
func (m *Metrics) ObservePoll(outcome string) {
	m.StatusPollsTotal.WithLabelValues(outcome).Inc()
}

// ObserveAnnotation implements annotation.Recorder.
func (m *Metrics) ObserveAnnotation(outcome string, d time.Duration) {
	m.AnnotationsTotal.WithLabelValues(outcome).Inc()
	m.AnnotationDuration.Observe(d.Seconds())
}

// ObserveRequest implements backend.Observer. Status 0 is reported as "none".
func (m *Metrics) ObserveRequest(op string, status int, d time.Duration) {
	code := "none"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.UpstreamDuration.WithLabelValues(op, code).Observe(d.Seconds())
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
