// Package metrics holds the Prometheus collectors for tile downloads.
//
// Collectors register with the default registry via promauto:
//   - tilebook_tile_requests_total{outcome} (Counter): resolver requests by outcome
//     (ok, boundary, transient, fatal, canceled)
//   - tilebook_tile_request_duration_seconds (Histogram): resolver round-trip time
//   - tilebook_retries_total (Counter): transient failures that spent retry budget
//   - tilebook_retry_exhausted_total (Counter): fetches that ran out of budget
//   - tilebook_probe_requests_total{kind} (Counter): grid and length probes
//   - tilebook_pages_total{status} (Counter): page units assembled or failed
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for tile requests.
const (
	OutcomeOK        = "ok"
	OutcomeBoundary  = "boundary"
	OutcomeTransient = "transient"
	OutcomeFatal     = "fatal"
	OutcomeCanceled  = "canceled"
)

// Probe kinds.
const (
	ProbeGrid   = "grid"
	ProbeLength = "length"
)

var (
	TileRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tilebook_tile_requests_total",
		Help: "Resolver tile requests by outcome",
	}, []string{"outcome"})

	TileRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tilebook_tile_request_duration_seconds",
		Help:    "Resolver tile request round-trip time",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	Retries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tilebook_retries_total",
		Help: "Transient failures that consumed retry budget",
	})

	RetryExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tilebook_retry_exhausted_total",
		Help: "Tile fetches that failed after exhausting their retry budget",
	})

	ProbeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tilebook_probe_requests_total",
		Help: "Boundary probes by kind",
	}, []string{"kind"})

	Pages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tilebook_pages_total",
		Help: "Page units by final status",
	}, []string{"status"})
)

// ObserveTileRequest records one resolver round trip.
func ObserveTileRequest(outcome string, elapsed time.Duration) {
	TileRequests.WithLabelValues(outcome).Inc()
	TileRequestDuration.Observe(elapsed.Seconds())
}
