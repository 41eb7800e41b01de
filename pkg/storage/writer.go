package storage

import (
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/strata-etl/strata/pkg/compression"
	"github.com/strata-etl/strata/pkg/errors"
	strjson "github.com/strata-etl/strata/pkg/json"
	"github.com/strata-etl/strata/pkg/schema"
)

// ItemWriter writes rows or whole Arrow batches into one job file.
type ItemWriter interface {
	// WriteRow appends one flat row, serialized per the column schema
	WriteRow(row *schema.Row, columns []schema.Column) error
	// WriteBatch appends a whole Arrow record batch
	WriteBatch(batch arrow.Record, columns []schema.Column) error
	// AdaptsRows reports whether WriteBatch decomposes batches into rows
	// itself; if so, callers need not normalize batch shape beforehand
	AdaptsRows() bool
	// Metrics returns the metrics accumulated so far
	Metrics() WriterMetrics
	// Close finishes the job file
	Close() error
}

// jsonlWriter writes rows as newline-delimited JSON, optionally through a
// compressing writer. It adapts Arrow batches row by row.
type jsonlWriter struct {
	file    *os.File
	out     io.WriteCloser
	metrics WriterMetrics
}

func newJSONLWriter(path string, alg compression.Algorithm) (*jsonlWriter, error) {
	f, err := os.Create(path) //nolint:gosec // G304: path built from storage root
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create job file")
	}
	out, err := compression.NewWriter(f, alg)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to wrap job file writer")
	}
	return &jsonlWriter{file: f, out: out, metrics: WriterMetrics{FilePath: path}}, nil
}

func (w *jsonlWriter) WriteRow(row *schema.Row, _ []schema.Column) error {
	buf := strjson.GetBuffer()
	defer strjson.PutBuffer(buf)
	// Encode appends the newline
	if err := strjson.NewEncoder(buf).Encode(row); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to serialize row")
	}
	n, err := w.out.Write(buf.Bytes())
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write row")
	}
	w.metrics.Items++
	w.metrics.Bytes += int64(n)
	return nil
}

func (w *jsonlWriter) WriteBatch(batch arrow.Record, columns []schema.Column) error {
	rows := int(batch.NumRows())
	cols := batch.Columns()
	fields := batch.Schema().Fields()
	for i := 0; i < rows; i++ {
		row := schema.NewRow()
		for j, col := range cols {
			row.Set(fields[j].Name, ArrowColumnValue(col, i))
		}
		if err := w.WriteRow(row, columns); err != nil {
			return err
		}
	}
	return nil
}

func (w *jsonlWriter) AdaptsRows() bool {
	return true
}

func (w *jsonlWriter) Metrics() WriterMetrics {
	return w.metrics
}

func (w *jsonlWriter) Close() error {
	if err := w.out.Close(); err != nil {
		_ = w.file.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush job file")
	}
	if err := w.file.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close job file")
	}
	if info, err := os.Stat(w.metrics.FilePath); err == nil {
		w.metrics.Bytes = info.Size()
	}
	return nil
}

// parquetWriter writes rows and batches as Parquet. The Arrow schema is
// fixed at creation; callers rotate to a new writer when the column set
// changes mid-file.
type parquetWriter struct {
	file        *os.File
	arrowSchema *arrow.Schema
	fileWriter  *pqarrow.FileWriter
	builder     *array.RecordBuilder
	pool        memory.Allocator
	buffered    int
	batchSize   int
	metrics     WriterMetrics
}

const parquetFlushRows = 1024

func newParquetWriter(path string, columns []schema.Column) (*parquetWriter, error) {
	arrowSchema, err := ColumnsToArrowSchema(columns)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeCapability, "failed to convert column schema")
	}
	return newParquetWriterForSchema(path, arrowSchema)
}

func newParquetWriterForSchema(path string, arrowSchema *arrow.Schema) (*parquetWriter, error) {
	f, err := os.Create(path) //nolint:gosec // G304: path built from storage root
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create job file")
	}

	pool := memory.NewGoAllocator()
	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithDictionaryDefault(true),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(pool))

	fw, err := pqarrow.NewFileWriter(arrowSchema, f, props, arrowProps)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create parquet writer")
	}

	return &parquetWriter{
		file:        f,
		arrowSchema: arrowSchema,
		fileWriter:  fw,
		builder:     array.NewRecordBuilder(pool, arrowSchema),
		pool:        pool,
		batchSize:   parquetFlushRows,
		metrics:     WriterMetrics{FilePath: path},
	}, nil
}

func (w *parquetWriter) WriteRow(row *schema.Row, _ []schema.Column) error {
	for i, field := range w.arrowSchema.Fields() {
		value, _ := row.Get(field.Name)
		if err := appendArrowValue(w.builder.Field(i), value); err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "failed to append value").
				WithDetail("column", field.Name)
		}
	}
	w.buffered++
	w.metrics.Items++
	if w.buffered >= w.batchSize {
		return w.flush()
	}
	return nil
}

func (w *parquetWriter) WriteBatch(batch arrow.Record, _ []schema.Column) error {
	// flush buffered rows first so row order is preserved
	if err := w.flush(); err != nil {
		return err
	}
	if err := w.fileWriter.Write(batch); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write record batch")
	}
	w.metrics.Items += batch.NumRows()
	return nil
}

func (w *parquetWriter) AdaptsRows() bool {
	return false
}

func (w *parquetWriter) flush() error {
	if w.buffered == 0 {
		return nil
	}
	rec := w.builder.NewRecord()
	defer rec.Release()
	if err := w.fileWriter.Write(rec); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write record batch")
	}
	w.buffered = 0
	return nil
}

func (w *parquetWriter) Metrics() WriterMetrics {
	return w.metrics
}

func (w *parquetWriter) Close() error {
	if err := w.flush(); err != nil {
		_ = w.file.Close()
		return err
	}
	if err := w.fileWriter.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close parquet writer")
	}
	// pqarrow closes the underlying writer when it owns it; the file is
	// opened by us, so close it explicitly and ignore double-close
	_ = w.file.Close()
	if info, err := os.Stat(w.metrics.FilePath); err == nil {
		w.metrics.Bytes = info.Size()
	}
	return nil
}

// SchemaMatches reports whether the writer's fixed Arrow schema still
// covers the column set. Used for mid-file rotation.
func (w *parquetWriter) SchemaMatches(columns []schema.Column) bool {
	fields := w.arrowSchema.Fields()
	if len(fields) != len(columns) {
		return false
	}
	for i, col := range columns {
		if fields[i].Name != col.Name {
			return false
		}
	}
	return true
}
