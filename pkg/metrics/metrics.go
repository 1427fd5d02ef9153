package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Tracking metrics
	LinksCreated        prometheus.Counter
	ClicksRecorded      *prometheus.CounterVec
	ConversionsRecorded *prometheus.CounterVec
	RevenueAttributed   prometheus.Counter

	// Geo lookup metrics
	GeoLookups *prometheus.CounterVec

	// Ledger collaborator metrics
	LedgerCalls    *prometheus.CounterVec
	LedgerDuration *prometheus.HistogramVec
	LedgerFailures *prometheus.CounterVec

	// Expiration sweep metrics
	SweepRuns     *prometheus.CounterVec
	SweepDuration prometheus.Histogram
	LinksExpired  prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		LinksCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tracking_links_created_total",
				Help: "Total number of tracking links created",
			},
		),

		ClicksRecorded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracking_clicks_recorded_total",
				Help: "Total number of click recording attempts",
			},
			[]string{"outcome"},
		),

		ConversionsRecorded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracking_conversions_recorded_total",
				Help: "Total number of conversion attribution attempts",
			},
			[]string{"outcome"},
		),

		RevenueAttributed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tracking_revenue_attributed_total",
				Help: "Total revenue attributed to tracking links",
			},
		),

		GeoLookups: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geo_lookups_total",
				Help: "Total number of IP geolocation lookups",
			},
			[]string{"status"},
		),

		LedgerCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_calls_total",
				Help: "Total number of revenue ledger calls",
			},
			[]string{"status"},
		),

		LedgerDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_call_duration_seconds",
				Help:    "Revenue ledger call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),

		LedgerFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_failures_total",
				Help: "Total number of revenue ledger failures",
			},
			[]string{"error_type"},
		),

		SweepRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expiration_sweep_runs_total",
				Help: "Total number of expiration sweep runs",
			},
			[]string{"status"},
		),

		SweepDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "expiration_sweep_duration_seconds",
				Help:    "Expiration sweep duration in seconds",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
			},
		),

		LinksExpired: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tracking_links_expired_total",
				Help: "Total number of tracking links transitioned to expired",
			},
		),
	}
}

// HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// Link creation counter
func (m *Metrics) RecordLinkCreated() {
	m.LinksCreated.Inc()
}

// Click recording outcome counter
func (m *Metrics) RecordClick(outcome string) {
	m.ClicksRecorded.WithLabelValues(outcome).Inc()
}

// Conversion attribution outcome counter
func (m *Metrics) RecordConversion(outcome string, revenue float64) {
	m.ConversionsRecorded.WithLabelValues(outcome).Inc()
	if outcome == "success" && revenue > 0 {
		m.RevenueAttributed.Add(revenue)
	}
}

// Geo lookup result counter
func (m *Metrics) RecordGeoLookup(status string) {
	m.GeoLookups.WithLabelValues(status).Inc()
}

// Ledger call metrics
func (m *Metrics) RecordLedgerCall(status string, duration time.Duration) {
	m.LedgerCalls.WithLabelValues(status).Inc()
	m.LedgerDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// Ledger failure metrics
func (m *Metrics) RecordLedgerFailure(errorType string) {
	m.LedgerFailures.WithLabelValues(errorType).Inc()
}

// Expiration sweep metrics
func (m *Metrics) RecordSweep(status string, expired int, duration time.Duration) {
	m.SweepRuns.WithLabelValues(status).Inc()
	m.SweepDuration.Observe(duration.Seconds())
	if expired > 0 {
		m.LinksExpired.Add(float64(expired))
	}
}

// HTTP requests in flight counter
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// HTTP requests in flight counter
func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}
