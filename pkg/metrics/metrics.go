// Package metrics exposes Prometheus counters for the normalization
// engine. Contract-driven discards are deliberately counted here: rows a
// contract silently drops are not failures, but the loss must stay
// traceable.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsWritten tracks rows written to job files.
	// Labels: table
	RowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_rows_written_total",
			Help: "Total number of rows written to job files",
		},
		[]string{"table"},
	)

	// RowsDiscarded tracks rows dropped before writing.
	// Labels: table, reason (filtered_table, contract_row, empty_row)
	RowsDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_rows_discarded_total",
			Help: "Total number of rows discarded during normalization",
		},
		[]string{"table", "reason"},
	)

	// TablesFiltered counts tables excluded by a contract decision.
	TablesFiltered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "strata_tables_filtered_total",
			Help: "Total number of tables excluded by schema contracts",
		},
	)

	// SchemaUpdates counts committed partial table updates.
	// Labels: table
	SchemaUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_schema_updates_total",
			Help: "Total number of partial table updates committed",
		},
		[]string{"table"},
	)

	// FilesImported counts columnar files registered via the import fast
	// path, without rewriting their bytes.
	FilesImported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "strata_files_imported_total",
			Help: "Total number of extracted files imported without rewrite",
		},
	)

	// FilesRewritten counts columnar files that required a full rewrite.
	FilesRewritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "strata_files_rewritten_total",
			Help: "Total number of extracted files rewritten during normalization",
		},
	)

	// LoadsNormalized counts completed load packages.
	LoadsNormalized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "strata_loads_normalized_total",
			Help: "Total number of load packages fully normalized",
		},
	)
)
