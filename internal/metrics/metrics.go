// Package metrics holds the Prometheus collectors exported at /metrics.
//
// Counters:
//   - rex_snapshot_corruptions_total: snapshots that failed to parse and were reset
//   - rex_enrichment_total{outcome}: page-metadata lookups (hit, empty, failed, cached, skipped)
//   - rex_keyword_strategy_total{strategy}: keyword derivations (llm, split, llm_fallback)
//   - rex_ingest_rows_total{outcome}: dataset rows (kept, filtered, malformed)
//   - rex_items_created_total{source}: items appended (api, seed, dataset)
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SnapshotCorruptions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rex_snapshot_corruptions_total",
			Help: "Snapshots that failed to parse and were backed up and reset",
		},
	)

	Enrichment = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rex_enrichment_total",
			Help: "Page-metadata enrichment attempts by outcome",
		},
		[]string{"outcome"},
	)

	KeywordStrategy = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rex_keyword_strategy_total",
			Help: "Search keyword derivations by strategy",
		},
		[]string{"strategy"},
	)

	IngestRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rex_ingest_rows_total",
			Help: "Dataset rows seen during bulk ingestion by outcome",
		},
		[]string{"outcome"},
	)

	ItemsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rex_items_created_total",
			Help: "Items appended to the collection by source",
		},
		[]string{"source"},
	)
)
