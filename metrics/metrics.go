// Package metrics exposes Prometheus instrumentation for the serve path.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChunksProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "callsift",
		Name:      "chunks_processed_total",
		Help:      "Audio chunks run through the pipeline.",
	})

	Alerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "callsift",
		Name:      "alerts_total",
		Help:      "Fraud alerts fired, by risk level.",
	}, []string{"risk_level"})

	ChunkLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "callsift",
		Name:      "chunk_latency_seconds",
		Help:      "Per-chunk processing latency.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "callsift",
		Name:      "ws_clients",
		Help:      "Connected websocket clients.",
	})
)

// Handler returns the scrape endpoint handler.
func Handler() http.Handler { return promhttp.Handler() }
