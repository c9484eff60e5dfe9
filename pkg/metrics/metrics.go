// Package metrics holds the Prometheus collectors shared by the cache,
// gateway and sync engine, plus the /metrics handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	GatewayCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "standards_gateway_calls_total",
			Help: "Remote file gateway calls by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "standards_cache_lookups_total",
			Help: "Local cache lookups by kind (file, metadata) and result (hit, miss)",
		},
		[]string{"kind", "result"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "standards_cache_evictions_total",
			Help: "Files removed from the local cache by reason (expired, size, clear)",
		},
		[]string{"reason"},
	)

	CacheBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "standards_cache_bytes",
			Help: "Bytes held in the local cache after the last cleanup pass",
		},
	)

	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "standards_sync_runs_total",
			Help: "Synchronization runs by type and terminal status",
		},
		[]string{"type", "status"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "standards_sync_duration_seconds",
			Help:    "Duration of synchronization runs",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"type"},
	)
)

// Outcome 将 error 归为 ok / error 标签
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func Handler() http.Handler {
	return promhttp.Handler()
}
