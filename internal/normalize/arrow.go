package normalize

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	pqfile "github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"go.uber.org/zap"

	"github.com/strata-etl/strata/pkg/config"
	"github.com/strata-etl/strata/pkg/errors"
	"github.com/strata-etl/strata/pkg/ids"
	"github.com/strata-etl/strata/pkg/metrics"
	"github.com/strata-etl/strata/pkg/schema"
	"github.com/strata-etl/strata/pkg/storage"
)

// arrowBatchSize caps the rows materialized per record while streaming a
// parquet file on the rewrite path.
const arrowBatchSize = 64 * 1024

// ArrowNormalizer processes one extracted parquet file. Whenever the file
// needs no system columns and already matches the destination shape it is
// imported as-is without decoding any data pages; otherwise it is rewritten
// row group by row group with the configured system columns appended.
type ArrowNormalizer struct {
	itemStorage *storage.DataItemStorage
	normStorage *storage.NormalizeStorage
	schema      *schema.Schema
	loadID      string
	cfg         *config.NormalizeConfig
	log         *zap.Logger
	mem         memory.Allocator
}

// NewArrowNormalizer creates a normalizer for one extracted parquet file.
func NewArrowNormalizer(itemStorage *storage.DataItemStorage, normStorage *storage.NormalizeStorage, sch *schema.Schema, loadID string, cfg *config.NormalizeConfig, log *zap.Logger) *ArrowNormalizer {
	return &ArrowNormalizer{
		itemStorage: itemStorage,
		normStorage: normStorage,
		schema:      sch,
		loadID:      loadID,
		cfg:         cfg,
		log:         log,
		mem:         memory.NewGoAllocator(),
	}
}

// fixSchemaPrecisions lowers timestamp and time column precisions that
// exceed what the destination supports. Parquet always stores these at
// full microsecond or nanosecond precision, so the stored schema has to be
// capped before loading.
func (n *ArrowNormalizer) fixSchemaPrecisions(rootTable string) ([]schema.Update, error) {
	table, ok := n.schema.Table(rootTable)
	if !ok {
		return nil, nil
	}
	maxPrecision := n.cfg.Destination.TimestampPrecision

	var fixed []schema.Column
	for _, col := range table.Columns() {
		if col.DataType != schema.TypeTimestamp && col.DataType != schema.TypeTime {
			continue
		}
		if col.Precision > maxPrecision {
			col.Precision = maxPrecision
			fixed = append(fixed, col)
		}
	}
	if len(fixed) == 0 {
		return nil, nil
	}

	committed, err := n.schema.UpdateTable(&schema.PartialTable{Name: rootTable, Columns: fixed})
	if err != nil {
		return nil, err
	}
	update := schema.Update{}
	update.Add(rootTable, committed)
	metrics.SchemaUpdates.WithLabelValues(rootTable).Inc()
	return []schema.Update{update}, nil
}

// Process normalizes one extracted parquet file, returning the schema
// updates committed while doing so.
func (n *ArrowNormalizer) Process(ctx context.Context, extractedFile, rootTable string) ([]schema.Update, error) {
	updates, err := n.fixSchemaPrecisions(rootTable)
	if err != nil {
		return nil, err
	}

	f, err := n.normStorage.Open(extractedFile)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to stat extracted file")
	}

	pf, err := pqfile.NewParquetReader(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read parquet metadata").
			WithDetail("file", extractedFile)
	}
	defer pf.Close()

	reader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: arrowBatchSize}, n.mem)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to open parquet file").
			WithDetail("file", extractedFile)
	}
	fileSchema, err := reader.Schema()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode embedded arrow schema").
			WithDetail("file", extractedFile)
	}

	naming := n.schema.Naming()
	addLoadID := n.cfg.Parquet.AddLoadID && !hasArrowField(fileSchema, schema.LoadIDColumn, naming)
	addRowID := n.cfg.Parquet.AddRowID && !hasArrowField(fileSchema, schema.RowIDColumn, naming)

	destColumns := n.schema.GetTableColumns(rootTable)
	mustRewrite := addLoadID || addRowID ||
		n.cfg.Destination.PreferredFileFormat != config.FormatParquet ||
		(len(destColumns) > 0 && shouldNormalizeArrowSchema(fileSchema, destColumns, naming))

	if !mustRewrite {
		n.log.Info("importing parquet file without rewrite",
			zap.String("file", extractedFile),
			zap.String("table", rootTable),
			zap.Int64("items", pf.NumRows()))
		wm := storage.WriterMetrics{
			FilePath: n.normStorage.FullPath(extractedFile),
			Items:    pf.NumRows(),
			Bytes:    stat.Size(),
		}
		if _, err := n.itemStorage.ImportItemsFile(rootTable, n.normStorage.FullPath(extractedFile), wm); err != nil {
			return nil, err
		}
		metrics.FilesImported.Inc()
		return updates, nil
	}

	n.log.Info("parquet file must be rewritten",
		zap.String("file", extractedFile),
		zap.String("table", rootTable),
		zap.Bool("add_load_id", addLoadID),
		zap.Bool("add_row_id", addRowID),
		zap.String("destination_format", string(n.cfg.Destination.PreferredFileFormat)))
	metrics.FilesRewritten.Inc()

	update, err := n.rewriteWithSystemColumns(ctx, pf, reader, fileSchema, rootTable, destColumns, addLoadID, addRowID)
	if err != nil {
		return nil, err
	}
	if len(update) > 0 {
		updates = append(updates, update)
	}
	return updates, nil
}

// rewriteWithSystemColumns streams the file row group by row group,
// appends the requested system columns and writes the result through the
// item storage in the destination format.
func (n *ArrowNormalizer) rewriteWithSystemColumns(ctx context.Context, pf *pqfile.Reader, reader *pqarrow.FileReader, fileSchema *arrow.Schema, rootTable string, preColumns []schema.Column, addLoadID, addRowID bool) (schema.Update, error) {
	update := schema.Update{}
	var injected []newColumn
	var newSchemaColumns []schema.Column

	if addLoadID {
		loadID := n.loadID
		// the load id repeats on every row; a dictionary keeps it to one
		// value per column chunk
		dictType := &arrow.DictionaryType{
			IndexType: arrow.PrimitiveTypes.Int8,
			ValueType: arrow.BinaryTypes.String,
		}
		injected = append(injected, newColumn{
			field: arrow.Field{Name: schema.LoadIDColumn, Type: dictType},
			build: func(mem memory.Allocator, numRows int) (arrow.Array, error) {
				b := array.NewDictionaryBuilder(mem, dictType)
				defer b.Release()
				db := b.(*array.BinaryDictionaryBuilder)
				for i := 0; i < numRows; i++ {
					if err := db.AppendString(loadID); err != nil {
						return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to build load id column")
					}
				}
				return b.NewArray(), nil
			},
		})
		newSchemaColumns = append(newSchemaColumns, schema.Column{
			Name:     schema.LoadIDColumn,
			DataType: schema.TypeText,
			Nullable: false,
		})
	}
	if addRowID {
		injected = append(injected, newColumn{
			field: arrow.Field{Name: schema.RowIDColumn, Type: arrow.BinaryTypes.String},
			build: func(mem memory.Allocator, numRows int) (arrow.Array, error) {
				b := array.NewStringBuilder(mem)
				defer b.Release()
				for _, id := range ids.NewRowIDs(numRows) {
					b.Append(id)
				}
				return b.NewArray(), nil
			},
		})
		newSchemaColumns = append(newSchemaColumns, schema.Column{
			Name:     schema.RowIDColumn,
			DataType: schema.TypeText,
			Nullable: false,
		})
	}

	if len(newSchemaColumns) > 0 {
		committed, err := n.schema.UpdateTable(&schema.PartialTable{Name: rootTable, Columns: newSchemaColumns})
		if err != nil {
			return nil, err
		}
		update.Add(rootTable, committed)
		metrics.SchemaUpdates.WithLabelValues(rootTable).Inc()
	}

	naming := n.schema.Naming()
	destColumns := n.schema.GetTableColumns(rootTable)

	// the destination shape only matters for writers that take batches
	// verbatim; row-adapting writers pick columns by name anyway. A table
	// the schema never saw before has no authoritative shape yet, the
	// batch itself is it.
	effectiveFields := append([]arrow.Field(nil), fileSchema.Fields()...)
	for _, nc := range injected {
		effectiveFields = append(effectiveFields, nc.field)
	}
	shapeNormalize := !n.itemStorage.AdaptsRows() && len(preColumns) > 0 &&
		shouldNormalizeArrowSchema(arrow.NewSchema(effectiveFields, nil), destColumns, naming)

	rowGroupsPerRead := n.cfg.Parquet.RowGroupsPerRead
	if rowGroupsPerRead < 1 {
		rowGroupsPerRead = 1
	}

	var itemsCount int64
	numRowGroups := pf.NumRowGroups()
	for start := 0; start < numRowGroups; start += rowGroupsPerRead {
		// cancellation is checked once per chunk of row groups
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeCancelled, "normalization cancelled")
		}

		end := start + rowGroupsPerRead
		if end > numRowGroups {
			end = numRowGroups
		}
		groups := make([]int, 0, end-start)
		for g := start; g < end; g++ {
			groups = append(groups, g)
		}

		rr, err := reader.GetRecordReader(ctx, nil, groups)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read parquet row groups").
				WithDetail("table", rootTable)
		}
		for rr.Next() {
			rec := rr.Record()
			rec, err := injectColumns(rec, injected, n.mem)
			if err != nil {
				rr.Release()
				return nil, err
			}
			if shapeNormalize {
				rec, err = normalizeBatch(rec, destColumns, naming, n.mem)
				if err != nil {
					rr.Release()
					return nil, err
				}
			}
			if err := n.itemStorage.WriteArrowBatch(rootTable, rec, destColumns); err != nil {
				rr.Release()
				return nil, err
			}
			itemsCount += rec.NumRows()
			metrics.RowsWritten.WithLabelValues(rootTable).Add(float64(rec.NumRows()))
		}
		err = rr.Err()
		rr.Release()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode parquet row groups").
				WithDetail("table", rootTable)
		}
	}

	if itemsCount == 0 {
		if err := n.itemStorage.WriteEmptyItemsFile(rootTable, destColumns); err != nil {
			return nil, err
		}
	}
	return update, nil
}
