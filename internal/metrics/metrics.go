package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	transitions   *prometheus.CounterVec
	completions   prometheus.Counter
	notifications *prometheus.CounterVec
	imports       *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

var get = sync.OnceValue(func() *metrics {
	return &metrics{
		transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventflow",
			Name:      "transitions_total",
			Help:      "Approval workflow actions by outcome.",
		}, []string{"action", "result"}),
		completions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "eventflow",
			Name:      "completions_total",
			Help:      "Approved events moved to completed.",
		}),
		notifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventflow",
			Name:      "notifications_total",
			Help:      "Notification enqueue and delivery attempts.",
		}, []string{"kind", "result"}),
		imports: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventflow",
			Name:      "venue_imports_total",
			Help:      "Venue import batches by outcome.",
		}, []string{"result"}),
		httpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "eventflow",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
})

func Transition(action, result string) {
	get().transitions.WithLabelValues(action, result).Inc()
}

func Completed() {
	get().completions.Inc()
}

func Notification(kind, result string) {
	get().notifications.WithLabelValues(kind, result).Inc()
}

func VenueImport(result string) {
	get().imports.WithLabelValues(result).Inc()
}

func ObserveHTTP(method, route, status string, seconds float64) {
	get().httpDuration.WithLabelValues(method, route, status).Observe(seconds)
}

// Result maps an error onto a low-cardinality label.
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}
