package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the transcode service.
type Metrics struct {
	registry           *prometheus.Registry
	requestsTotal      prometheus.Counter
	jobsSubmittedTotal prometheus.Counter
	jobsCancelledTotal prometheus.Counter
	activeJobs         prometheus.Gauge
	finishedJobs       prometheus.Gauge
	failedJobs         prometheus.Gauge
	errorsTotal        prometheus.Counter
}

// New creates and registers Prometheus metrics for the transcode service.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transcode_requests_total",
		Help: "Total number of HTTP requests received",
	})
	jobsSubmittedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transcode_jobs_submitted_total",
		Help: "Total number of jobs accepted for transcoding",
	})
	jobsCancelledTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transcode_jobs_cancelled_total",
		Help: "Total number of jobs cancelled by clients",
	})
	activeJobs := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "transcode_active_jobs",
		Help: "Number of jobs that are running or paused",
	})
	finishedJobs := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "transcode_finished_jobs",
		Help: "Number of jobs that completed successfully",
	})
	failedJobs := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "transcode_failed_jobs",
		Help: "Number of jobs that ended in an error",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transcode_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})

	registry.MustRegister(
		requestsTotal,
		jobsSubmittedTotal,
		jobsCancelledTotal,
		activeJobs,
		finishedJobs,
		failedJobs,
		errorsTotal,
	)

	return &Metrics{
		registry:           registry,
		requestsTotal:      requestsTotal,
		jobsSubmittedTotal: jobsSubmittedTotal,
		jobsCancelledTotal: jobsCancelledTotal,
		activeJobs:         activeJobs,
		finishedJobs:       finishedJobs,
		failedJobs:         failedJobs,
		errorsTotal:        errorsTotal,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncJobsSubmitted increments the jobs submitted counter.
func (m *Metrics) IncJobsSubmitted() {
	m.jobsSubmittedTotal.Inc()
}

// IncJobsCancelled increments the jobs cancelled counter.
func (m *Metrics) IncJobsCancelled() {
	m.jobsCancelledTotal.Inc()
}

// SetActiveJobs sets the active jobs gauge.
func (m *Metrics) SetActiveJobs(n int) {
	m.activeJobs.Set(float64(n))
}

// SetFinishedJobs sets the finished jobs gauge.
func (m *Metrics) SetFinishedJobs(n int) {
	m.finishedJobs.Set(float64(n))
}

// SetFailedJobs sets the failed jobs gauge.
func (m *Metrics) SetFailedJobs(n int) {
	m.failedJobs.Set(float64(n))
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active jobs).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
