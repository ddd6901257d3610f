// Package metrics exposes Prometheus collectors for the playground.
//
// Collectors live on their own registry rather than the global default one,
// so tests can build as many Metrics as they like without duplicate
// registration panics.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/jsmemes/internal/executor"
)

// Outcome labels for jsmemes_executions_total.
const (
	OutcomeSucceeded   = "succeeded"
	OutcomeRejected    = "rejected"
	OutcomeSyntaxError = "syntax_error"
	OutcomeInterrupted = "interrupted"
	OutcomeBusy        = "busy"
	OutcomeFailed      = "failed"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	// Execution metrics
	Executions        *prometheus.CounterVec
	ExecutionDuration prometheus.Histogram
	ConsoleEvents     *prometheus.CounterVec

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry, along with the standard
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Executions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsmemes_executions_total",
				Help: "Snippet executions by outcome",
			},
			[]string{"outcome"},
		),
		ExecutionDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jsmemes_execution_duration_seconds",
				Help:    "Time from request to result for snippet executions",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		ConsoleEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsmemes_console_events_total",
				Help: "Console calls captured from snippets, by channel",
			},
			[]string{"channel"},
		),

		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsmemes_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jsmemes_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// TrackSessions exports the live session count, read on every scrape.
func (m *Metrics) TrackSessions(count func() int) {
	promauto.With(m.registry).NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "jsmemes_sessions_active",
			Help: "Playground sessions currently holding an executor",
		},
		func() float64 { return float64(count()) },
	)
}

// ObserveExecution records one call to Executor.Execute.
func (m *Metrics) ObserveExecution(res *executor.ExecutionResult, err error, elapsed time.Duration) {
	m.Executions.WithLabelValues(Outcome(res, err)).Inc()
	m.ExecutionDuration.Observe(elapsed.Seconds())
	if res == nil {
		return
	}
	for _, ev := range res.Events {
		m.ConsoleEvents.WithLabelValues(string(ev.Channel)).Inc()
	}
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route, status string, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Outcome classifies an Execute return for the outcome label.
func Outcome(res *executor.ExecutionResult, err error) string {
	if err != nil {
		if errors.Is(err, executor.ErrConcurrentExecution) {
			return OutcomeBusy
		}
		return OutcomeFailed
	}
	if res == nil {
		return OutcomeFailed
	}
	if res.Succeeded {
		return OutcomeSucceeded
	}

	var (
		syntax  *executor.SyntaxError
		unsafe  *executor.UnsafeCodeError
		tooLong *executor.TooLongError
	)
	switch {
	case errors.As(res.Err, &syntax):
		return OutcomeSyntaxError
	case errors.As(res.Err, &unsafe), errors.As(res.Err, &tooLong):
		return OutcomeRejected
	case errors.Is(res.Err, executor.ErrInterrupted):
		return OutcomeInterrupted
	}
	return OutcomeFailed
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the registry, mainly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
