package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Message directions.
const (
	Inbound  = "in"
	Outbound = "out"
)

var (
	registerOnce sync.Once

	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ipkchat",
			Subsystem: "session",
			Name:      "messages_total",
			Help:      "Protocol messages sent and received.",
		},
		[]string{"direction", "kind"},
	)
	replyWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ipkchat",
			Subsystem: "session",
			Name:      "reply_wait_seconds",
			Help:      "Time between an AUTH or JOIN and its REPLY.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"kind", "outcome"},
	)
	violationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ipkchat",
			Subsystem: "session",
			Name:      "violations_total",
			Help:      "Inbound frames rejected as protocol violations.",
		},
		[]string{"reason"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ipkchat",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Requests served by the metrics listener.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ipkchat",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Metrics listener request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	sessionsEnded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ipkchat",
			Subsystem: "session",
			Name:      "ended_total",
			Help:      "Sessions ended, by cause.",
		},
		[]string{"reason"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(messagesTotal, replyWait, violationsTotal, sessionsEnded, httpRequests, httpDuration)
	})
}

func RecordMessage(direction, kind string) {
	RegisterMetrics()
	messagesTotal.WithLabelValues(direction, kind).Inc()
}

// RecordReplyWait observes one reply wait. outcome is ok, nok, timeout or
// canceled.
func RecordReplyWait(kind, outcome string, waited time.Duration) {
	RegisterMetrics()
	replyWait.WithLabelValues(kind, outcome).Observe(waited.Seconds())
}

func RecordViolation(reason string) {
	RegisterMetrics()
	violationsTotal.WithLabelValues(reason).Inc()
}

func RecordSessionEnd(reason string) {
	RegisterMetrics()
	sessionsEnded.WithLabelValues(reason).Inc()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
