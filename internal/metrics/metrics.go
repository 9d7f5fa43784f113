// Package metrics holds Prometheus instruments that are used across the
// site.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ContactSubmissions counts dispatcher outcomes by label: ok, invalid,
	// captcha_failed, not_configured, delivery_failed, network_error.
	ContactSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contact_submissions_total",
			Help: "Contact submissions by terminal outcome.",
		}, []string{"outcome"})

	OutboundDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contact_outbound_duration_seconds",
			Help:    "Latency of Turnstile and webhook calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"target", "result"})

	ContentLoadErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_load_errors_total",
			Help: "Failures reading artist records or the image manifest.",
		}, []string{"source"})

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP responses by status code.",
		}, []string{"code"})

	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Requests rejected with 429 by the contact rate limiter.",
		})
)

func init() {
	prometheus.MustRegister(
		ContactSubmissions,
		OutboundDuration,
		ContentLoadErrors,
		HTTPRequests,
		RateLimited,
	)
}
