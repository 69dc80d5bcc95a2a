package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_dispatch_total",
			Help: "Total dispatches by notification type and outcome",
		},
		[]string{"type", "outcome"},
	)

	ChannelSendTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_channel_send_total",
			Help: "Per-channel send attempts by result",
		},
		[]string{"channel", "result"},
	)

	RateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_rate_limited_total",
			Help: "Dispatches denied by the rate limiter",
		},
	)

	DispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notifier_dispatch_duration_seconds",
			Help:    "End-to-end dispatch latency",
			Buckets: prometheus.DefBuckets,
		},
	)

	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notifier_http_request_duration_seconds",
			Help:    "Histogram of response durations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)

// Init registers all collectors with the default registry.
func Init() {
	prometheus.MustRegister(
		DispatchTotal,
		ChannelSendTotal,
		RateLimitedTotal,
		DispatchDuration,
		RequestCount,
		RequestDuration,
	)
}
