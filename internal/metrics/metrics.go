package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	globalMetrics *Metrics
	globalMu      sync.RWMutex
)

// Metrics holds all Prometheus metrics for ZapSend
type Metrics struct {
	// Dispatch counters
	EmailsSentTotal    *prometheus.CounterVec
	EmailsFailedTotal  *prometheus.CounterVec
	EmailsSkippedTotal prometheus.Counter
	SendRetriesTotal   prometheus.Counter
	DispatchRunsTotal  *prometheus.CounterVec

	// Send timing
	SendDurationSeconds *prometheus.HistogramVec

	// Auth counters
	LoginAttemptsTotal *prometheus.CounterVec

	// Suggestion counters
	SuggestRequestsTotal *prometheus.CounterVec

	// API metrics
	APIRequestsTotal          *prometheus.CounterVec
	APIRequestDurationSeconds *prometheus.HistogramVec

	// System metrics
	UptimeSeconds prometheus.Gauge
	Goroutines    prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		EmailsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zapsend_emails_sent_total",
				Help: "Total number of emails accepted by the SMTP server",
			},
			[]string{"mode"},
		),
		EmailsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zapsend_emails_failed_total",
				Help: "Total number of emails that failed to send",
			},
			[]string{"mode", "error_type"},
		),
		EmailsSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "zapsend_emails_skipped_total",
				Help: "Total number of recipients skipped by validation",
			},
		),
		SendRetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "zapsend_send_retries_total",
				Help: "Total number of retry attempts on transient send failures",
			},
		),
		DispatchRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zapsend_dispatch_runs_total",
				Help: "Total number of completed dispatch runs",
			},
			[]string{"mode", "status"},
		),
		SendDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zapsend_send_duration_seconds",
				Help:    "Duration of individual SMTP submissions in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 30},
			},
			[]string{"mode"},
		),
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zapsend_login_attempts_total",
				Help: "Total number of login attempts",
			},
			[]string{"result"},
		),
		SuggestRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zapsend_suggest_requests_total",
				Help: "Total number of subject suggestion requests",
			},
			[]string{"status"},
		),
		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zapsend_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		APIRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zapsend_api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		UptimeSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "zapsend_uptime_seconds",
				Help: "Server uptime in seconds",
			},
		),
		Goroutines: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "zapsend_goroutines",
				Help: "Number of active goroutines",
			},
		),

		registry: reg,
	}

	reg.MustRegister(
		m.EmailsSentTotal,
		m.EmailsFailedTotal,
		m.EmailsSkippedTotal,
		m.SendRetriesTotal,
		m.DispatchRunsTotal,
		m.SendDurationSeconds,
		m.LoginAttemptsTotal,
		m.SuggestRequestsTotal,
		m.APIRequestsTotal,
		m.APIRequestDurationSeconds,
		m.UptimeSeconds,
		m.Goroutines,
	)

	return m
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetGlobal sets the global metrics instance
func SetGlobal(m *Metrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
}

// Global returns the global metrics instance
func Global() *Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}

// IncEmailsSent increments the sent email counter
func IncEmailsSent(mode string) {
	m := Global()
	if m != nil {
		m.EmailsSentTotal.WithLabelValues(mode).Inc()
	}
}

// IncEmailsFailed increments the failed email counter
func IncEmailsFailed(mode, errorType string) {
	m := Global()
	if m != nil {
		m.EmailsFailedTotal.WithLabelValues(mode, errorType).Inc()
	}
}

// IncEmailsSkipped increments the skipped recipient counter
func IncEmailsSkipped() {
	m := Global()
	if m != nil {
		m.EmailsSkippedTotal.Inc()
	}
}

// IncSendRetries increments the retry counter
func IncSendRetries() {
	m := Global()
	if m != nil {
		m.SendRetriesTotal.Inc()
	}
}

// IncDispatchRuns increments the completed run counter
func IncDispatchRuns(mode, status string) {
	m := Global()
	if m != nil {
		m.DispatchRunsTotal.WithLabelValues(mode, status).Inc()
	}
}

// ObserveSendDuration records the duration of one SMTP submission
func ObserveSendDuration(mode string, seconds float64) {
	m := Global()
	if m != nil {
		m.SendDurationSeconds.WithLabelValues(mode).Observe(seconds)
	}
}

// IncLoginAttempts increments the login attempt counter
func IncLoginAttempts(result string) {
	m := Global()
	if m != nil {
		m.LoginAttemptsTotal.WithLabelValues(result).Inc()
	}
}

// IncSuggestRequests increments the suggestion request counter
func IncSuggestRequests(status string) {
	m := Global()
	if m != nil {
		m.SuggestRequestsTotal.WithLabelValues(status).Inc()
	}
}

// ObserveAPIRequest records one HTTP request
func ObserveAPIRequest(method, path, status string, seconds float64) {
	m := Global()
	if m != nil {
		m.APIRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.APIRequestDurationSeconds.WithLabelValues(method, path).Observe(seconds)
	}
}
