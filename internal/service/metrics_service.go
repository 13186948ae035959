package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the optimization runs behind it.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	runsTotal       *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	bestFitness     *prometheus.HistogramVec
	sessionsTotal   prometheus.Counter
	progressTotal   prometheus.Counter
	runsInFlight    prometheus.Gauge
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	runsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_runs_total",
		Help: "Total number of finished generation runs",
	}, []string{"algorithm", "status"})

	runDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scheduler_run_duration_seconds",
		Help:    "Wall-clock duration of generation runs",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"algorithm"})

	bestFitness := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scheduler_best_fitness",
		Help:    "Final best fitness of finished runs",
		Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
	}, []string{"algorithm"})

	sessionsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_sessions_scheduled_total",
		Help: "Total sessions placed across all finished runs",
	})

	progressTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_progress_events_total",
		Help: "Total progress events published by running solvers",
	})

	runsInFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_runs_in_flight",
		Help: "Number of generation runs currently executing",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, runsTotal, runDuration, bestFitness, sessionsTotal, progressTotal, runsInFlight, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		runsTotal:       runsTotal,
		runDuration:     runDuration,
		bestFitness:     bestFitness,
		sessionsTotal:   sessionsTotal,
		progressTotal:   progressTotal,
		runsInFlight:    runsInFlight,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RunStarted marks a generation run as executing.
func (m *MetricsService) RunStarted() {
	if m == nil {
		return
	}
	m.runsInFlight.Inc()
}

// RunEnded marks an executing run as done, whatever its outcome.
func (m *MetricsService) RunEnded() {
	if m == nil {
		return
	}
	m.runsInFlight.Dec()
}

// RunFinished records the terminal outcome of a generation run.
func (m *MetricsService) RunFinished(algorithm, status string, fitness float64, scheduled int, duration time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(algorithm, status).Inc()
	m.runDuration.WithLabelValues(algorithm).Observe(duration.Seconds())
	if fitness > 0 {
		m.bestFitness.WithLabelValues(algorithm).Observe(fitness)
	}
	if scheduled > 0 {
		m.sessionsTotal.Add(float64(scheduled))
	}
}

// ObserveProgressEvent counts one published progress event.
func (m *MetricsService) ObserveProgressEvent() {
	if m == nil {
		return
	}
	m.progressTotal.Inc()
}
