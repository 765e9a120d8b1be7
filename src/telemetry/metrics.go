package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Direction labels.
const (
	In  = "in"
	Out = "out"
)

var (
	Registry = prometheus.NewRegistry()

	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maelnode",
			Name:      "messages_total",
			Help:      "Total number of messages read or written, by body type.",
		},
		[]string{"direction", "type"},
	)

	UnhandledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "maelnode",
			Name:      "unhandled_messages_total",
			Help:      "Messages that had no handler and produced no reply.",
		},
	)

	DecodeErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "maelnode",
			Name:      "decode_errors_total",
			Help:      "Input lines that could not be decoded.",
		},
	)

	HandleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "maelnode",
			Name:      "handle_duration_seconds",
			Help:      "Time spent dispatching a message, by body type.",
			// 10us .. ~80ms
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 14),
		},
		[]string{"type"},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "maelnode",
			Name:      "build_info",
			Help:      "Build info (constant 1, labeled by version).",
		},
		[]string{"version"},
	)

	startTime = time.Now()
	uptime    = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "maelnode",
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds.",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)
)

func init() {
	Registry.MustRegister(MessagesTotal, UnhandledTotal, DecodeErrorsTotal, HandleDuration, buildInfo, uptime)
}

// MetricsHandler exposes the registry in the Prometheus text format.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// SetBuildInfo should be called once at startup.
func SetBuildInfo(version string) {
	buildInfo.WithLabelValues(version).Set(1)
}

// TypeLabel bounds label cardinality: types outside known are reported as
// "other".
func TypeLabel(typ string, known func(string) bool) string {
	if typ == "" || !known(typ) {
		return "other"
	}
	return typ
}

// ObserveHandled records one dispatched inbound message.
func ObserveHandled(typ string, handled bool, d time.Duration) {
	MessagesTotal.WithLabelValues(In, typ).Inc()
	HandleDuration.WithLabelValues(typ).Observe(d.Seconds())
	if !handled {
		UnhandledTotal.Inc()
	}
}

// ObserveSent records one outbound message.
func ObserveSent(typ string) {
	MessagesTotal.WithLabelValues(Out, typ).Inc()
}
