package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	askRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tableqa_ask_requests_total",
			Help: "Total number of questions processed, by outcome (ok or failure kind).",
		},
		[]string{"outcome"},
	)
	askLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tableqa_ask_latency_ms",
			Help:    "End-to-end question latency in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 20000, 60000},
		},
	)
	stageLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tableqa_stage_latency_ms",
			Help:    "Pipeline stage latency in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000},
		},
		[]string{"stage"},
	)
	inFlightQuestions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tableqa_inflight_questions",
			Help: "Questions currently being processed.",
		},
	)
	retrievedResultBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tableqa_retrieved_result_bytes",
			Help:    "Size of the retrieved result text handed to the answer composer.",
			Buckets: prometheus.ExponentialBuckets(16, 4, 8),
		},
	)
)

func init() {
	prometheus.MustRegister(
		askRequestsTotal,
		askLatencyMs,
		stageLatencyMs,
		inFlightQuestions,
		retrievedResultBytes,
	)
}

func ObserveAsk(outcome string, elapsed time.Duration) {
	askRequestsTotal.WithLabelValues(outcome).Inc()
	askLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveStage(stage string, elapsed time.Duration) {
	stageLatencyMs.WithLabelValues(stage).Observe(float64(elapsed.Milliseconds()))
}

func ObserveRetrievedResult(size int) {
	if size < 0 {
		size = 0
	}
	retrievedResultBytes.Observe(float64(size))
}

func IncInFlight() {
	inFlightQuestions.Inc()
}

func DecInFlight() {
	inFlightQuestions.Dec()
}
