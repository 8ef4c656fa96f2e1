// Package metrics exposes the node's Prometheus gauges/counters over
// promhttp.Handler(), mirroring the teacher's internal/syncer metrics
// block.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BlocksIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mojave_blocks_ingested_total",
		Help: "Total number of signed blocks accepted by moj_sendBroadcastBlock into the pending heap.",
	})

	PendingHeapSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mojave_pending_heap_size",
		Help: "Size of the ingestor's pending block heap, sampled after each accepted moj_sendBroadcastBlock.",
	})

	BatchesSealed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mojave_batches_sealed_total",
		Help: "Total number of batches sealed by the batch producer.",
	})

	ProofJobsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mojave_proof_jobs_pending",
		Help: "Current number of proof jobs awaiting completion in the prover job store.",
	})

	ProofJobsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mojave_proof_jobs_completed_total",
		Help: "Total number of signed proof responses accepted by moj_sendProofResponse.",
	})

	LeaderAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mojave_leader_acquired",
		Help: "1 if this process currently holds leadership, 0 otherwise.",
	})
)

// SetLeader records the current leadership state as a 0/1 gauge.
func SetLeader(isLeader bool) {
	if isLeader {
		LeaderAcquired.Set(1)
		return
	}
	LeaderAcquired.Set(0)
}
