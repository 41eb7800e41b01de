// Package strata implements the normalization stage of an Extract, Load
// and Transform pipeline: it turns extracted files of nested items into
// flat, relational, per-table job files ready for a database loader, while
// inferring and evolving the table schemas on the fly.
//
// # Architecture
//
// Strata processes one load package at a time. A load package is a
// directory of extracted item files, each named
// "<table>.<file_id>.<format>", where format is jsonl for row-oriented
// batches or parquet for columnar data.
//
// Row-oriented files go through full decomposition: nested objects are
// flattened into path-composed columns, nested lists become child tables
// linked by row ids, data types are inferred per value and reconciled with
// the schema, and schema contracts decide whether unknown tables and
// columns evolve the schema, get discarded, or freeze the load with an
// error.
//
// Columnar files carry their own schema and take one of two paths: files
// that already match the destination shape and need no system columns are
// hard-linked into the job directory without decoding a single data page,
// everything else is rewritten row group by row group with the requested
// system columns appended.
//
// The schema a run started with is mutated in place; every committed
// change is also returned to the caller as an ordered update so that
// downstream stages can replay the evolution.
//
// # Quick Start
//
//	sch, _ := schema.LoadFile("schema.yaml")
//	cfg := config.NewNormalizeConfig(sch.Name)
//	cfg.LoadID = ids.NewLoadID()
//
//	norm, _ := storage.NewNormalizeStorage("./extracted")
//	jobs, _ := storage.NewDataItemStorage("./jobs", cfg.Destination.PreferredFileFormat, cfg.Compression, log)
//
//	result, err := normalize.New(jobs, norm, sch, cfg, log).Run(ctx)
//
// See the cmd/strata CLI for a complete wiring.
package strata
