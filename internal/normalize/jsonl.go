package normalize

import (
	"bufio"
	"bytes"
	"context"

	"go.uber.org/zap"

	"github.com/strata-etl/strata/pkg/config"
	"github.com/strata-etl/strata/pkg/errors"
	strjson "github.com/strata-etl/strata/pkg/json"
	"github.com/strata-etl/strata/pkg/metrics"
	"github.com/strata-etl/strata/pkg/schema"
	"github.com/strata-etl/strata/pkg/storage"
)

// JSONLNormalizer processes one row-oriented extracted file: each line is
// a batch of nested items which are decomposed, contract-filtered, coerced
// against the shared schema and written to per-table job files. One
// instance processes exactly one file; its filter caches are not shared.
type JSONLNormalizer struct {
	itemStorage *storage.DataItemStorage
	normStorage *storage.NormalizeStorage
	schema      *schema.Schema
	loadID      string
	cfg         *config.NormalizeConfig
	log         *zap.Logger

	tableContracts  map[string]schema.Contract
	filteredTables  map[string]struct{}
	filteredColumns map[string]map[string]schema.ContractMode
	// quick access to column schemas for the writers below
	columnSchemas map[string][]schema.Column
}

// NewJSONLNormalizer creates a normalizer for one extracted file.
func NewJSONLNormalizer(itemStorage *storage.DataItemStorage, normStorage *storage.NormalizeStorage, sch *schema.Schema, loadID string, cfg *config.NormalizeConfig, log *zap.Logger) *JSONLNormalizer {
	return &JSONLNormalizer{
		itemStorage:     itemStorage,
		normStorage:     normStorage,
		schema:          sch,
		loadID:          loadID,
		cfg:             cfg,
		log:             log,
		tableContracts:  make(map[string]schema.Contract),
		filteredTables:  make(map[string]struct{}),
		filteredColumns: make(map[string]map[string]schema.ContractMode),
		columnSchemas:   make(map[string][]schema.Column),
	}
}

// normalizeChunk runs the full decompose/filter/coerce/contract pipeline
// over one batch of items. With skipWrite set, rows are discarded after
// schema discovery; used to materialize baseline columns for empty files.
func (n *JSONLNormalizer) normalizeChunk(ctx context.Context, rootTable string, items []interface{}, mayHavePUA, skipWrite bool) (schema.Update, error) {
	update := schema.Update{}
	dec := newDecomposer(n.schema.Naming(), n.loadID)

	for _, item := range items {
		// cancellation is checked once per item
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeCancelled, "normalization cancelled")
		}

		err := dec.decompose(item, rootTable, func(table, parent string, row *schema.Row) (bool, error) {
			// rows belonging to filtered out tables are skipped, and their
			// descendants pruned
			if _, filtered := n.filteredTables[table]; filtered {
				metrics.RowsDiscarded.WithLabelValues(table, "filtered_table").Inc()
				return false, nil
			}

			// structural row filter may eliminate some or all fields
			row = n.schema.FilterRow(table, row)
			if row.IsEmpty() {
				metrics.RowsDiscarded.WithLabelValues(table, "empty_row").Inc()
				return false, nil
			}

			// apply previously discovered contract filters before coercion
			// to avoid triggering migration for doomed columns
			if fc := n.filteredColumns[table]; fc != nil {
				var kept bool
				if row, kept = filterColumns(fc, row); !kept {
					metrics.RowsDiscarded.WithLabelValues(table, "contract_row").Inc()
					return false, nil
				}
				if row.IsEmpty() {
					metrics.RowsDiscarded.WithLabelValues(table, "empty_row").Inc()
					return false, nil
				}
			}

			// decode sentinel-encoded values
			if mayHavePUA {
				for _, k := range append([]string(nil), row.Keys()...) {
					v, _ := row.Get(k)
					row.Set(k, strjson.DecodePUA(v))
				}
			}

			// coerce values into the table schema, producing a partial
			// table when new columns are required
			row, partial, err := n.schema.CoerceRow(table, parent, row)
			if err != nil {
				return false, err
			}

			if partial != nil {
				contract, ok := n.tableContracts[table]
				if !ok {
					// the parent, if any, is guaranteed to exist in the
					// schema; the table itself may not yet
					key := parent
					if key == "" {
						key = table
					}
					contract = n.schema.ResolveContractSettingsForTable(key)
					n.tableContracts[table] = contract
				}

				adjusted, decisions, err := n.schema.ApplySchemaContract(contract, partial)
				if err != nil {
					return false, err
				}
				for _, d := range decisions {
					switch d.Entity {
					case schema.FilterTables:
						n.filteredTables[d.Name] = struct{}{}
						metrics.TablesFiltered.Inc()
					case schema.FilterColumns:
						fc := n.filteredColumns[table]
						if fc == nil {
							fc = make(map[string]schema.ContractMode)
							n.filteredColumns[table] = fc
						}
						fc[d.Name] = d.Mode
					}
				}

				if adjusted == nil {
					// the table-level contract rejected the migration
					metrics.RowsDiscarded.WithLabelValues(table, "contract_row").Inc()
					return false, nil
				}

				committed, err := n.schema.UpdateTable(adjusted)
				if err != nil {
					return false, err
				}
				update.Add(table, committed)
				metrics.SchemaUpdates.WithLabelValues(table).Inc()
				n.columnSchemas[table] = n.schema.GetTableColumns(table)

				// freshly created filters apply to the in-flight row too
				if fc := n.filteredColumns[table]; fc != nil && len(decisions) > 0 {
					var kept bool
					if row, kept = filterColumns(fc, row); !kept || row.IsEmpty() {
						metrics.RowsDiscarded.WithLabelValues(table, "contract_row").Inc()
						return false, nil
					}
				}
			}

			columns := n.columnSchemas[table]
			if columns == nil {
				columns = n.schema.GetTableColumns(table)
				n.columnSchemas[table] = columns
			}

			if !skipWrite {
				if err := n.itemStorage.WriteDataItem(table, row, columns); err != nil {
					return false, err
				}
				metrics.RowsWritten.WithLabelValues(table).Inc()
			}
			return true, nil
		})
		if err != nil {
			return nil, err
		}
	}
	return update, nil
}

// Process normalizes one extracted jsonl file into job files for the root
// table and its child tables, returning the schema updates committed while
// doing so, in commit order.
func (n *JSONLNormalizer) Process(ctx context.Context, extractedFile, rootTable string) ([]schema.Update, error) {
	f, err := n.normStorage.Open(extractedFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var updates []schema.Update
	lines := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		items, err := strjson.UnmarshalItems(line)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode items line").
				WithDetail("file", extractedFile).
				WithDetail("line", lines+1)
		}
		update, err := n.normalizeChunk(ctx, rootTable, items, strjson.MayHavePUA(line), false)
		if err != nil {
			return nil, err
		}
		updates = append(updates, update)
		lines++
		n.log.Debug("processed items line",
			zap.Int("line", lines),
			zap.String("file", extractedFile))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read extracted file").
			WithDetail("file", extractedFile)
	}

	if lines == 0 {
		if !n.schema.HasTableSeenData(rootTable) {
			// one synthetic empty item materializes the baseline system
			// columns without writing any data
			update, err := n.normalizeChunk(ctx, rootTable, []interface{}{map[string]interface{}{}}, false, true)
			if err != nil {
				return nil, err
			}
			updates = append(updates, update)
		}
		if err := n.itemStorage.WriteEmptyItemsFile(rootTable, n.schema.GetTableColumns(rootTable)); err != nil {
			return nil, err
		}
		n.log.Debug("no lines in extracted file, written empty job file",
			zap.String("file", extractedFile),
			zap.String("table", rootTable))
	}

	return updates, nil
}
