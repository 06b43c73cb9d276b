// internal/metrics/metrics.go
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	bytesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinysato",
			Subsystem: "stream",
			Name:      "bytes_sent_total",
			Help:      "Bytes handed to a printer transport.",
		},
		[]string{"transport"},
	)
	statusQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinysato",
			Subsystem: "status",
			Name:      "queries_total",
			Help:      "Printer status queries by result.",
		},
		[]string{"result"},
	)
	readinessWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tinysato",
			Subsystem: "status",
			Name:      "readiness_wait_seconds",
			Help:      "Time spent waiting for a printer to become ready.",
			Buckets:   []float64{0, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"ready"},
	)
	discoveryRounds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinysato",
			Subsystem: "discovery",
			Name:      "rounds_total",
			Help:      "Discovery rounds by kind and result.",
		},
		[]string{"kind", "result"},
	)
	discoveryResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinysato",
			Subsystem: "discovery",
			Name:      "responses_total",
			Help:      "Discovery datagrams by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register adds all collectors to the default registry. Safe to call repeatedly.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(bytesSent, statusQueries, readinessWait, discoveryRounds, discoveryResponses)
	})
}

func RecordBytesSent(transport string, n int) {
	bytesSent.WithLabelValues(transport).Add(float64(n))
}

func RecordStatusQuery(result string) {
	statusQueries.WithLabelValues(result).Inc()
}

func RecordReadinessWait(d time.Duration, ready bool) {
	readinessWait.WithLabelValues(strconv.FormatBool(ready)).Observe(d.Seconds())
}

func RecordDiscoveryRound(kind, result string) {
	discoveryRounds.WithLabelValues(kind, result).Inc()
}

func RecordDiscoveryResponse(outcome string) {
	discoveryResponses.WithLabelValues(outcome).Inc()
}
