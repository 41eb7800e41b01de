package storage

import (
	"io"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow"
	"go.uber.org/zap"

	"github.com/strata-etl/strata/pkg/compression"
	"github.com/strata-etl/strata/pkg/config"
	"github.com/strata-etl/strata/pkg/errors"
	"github.com/strata-etl/strata/pkg/schema"
)

// DataItemStorage manages the job files of one load package. It keeps one
// open writer per table, rotates parquet writers when a table's column set
// changes mid-file, and records metrics per finished file.
type DataItemStorage struct {
	dir         string
	format      config.FileFormat
	compression compression.Algorithm
	log         *zap.Logger

	writers map[string]ItemWriter
	closed  []WriterMetrics
}

// NewDataItemStorage creates the job directory for a load package.
func NewDataItemStorage(dir string, format config.FileFormat, alg compression.Algorithm, log *zap.Logger) (*DataItemStorage, error) {
	switch format {
	case config.FormatJSONL, config.FormatParquet:
	default:
		return nil, errors.New(errors.ErrorTypeCapability, "unsupported job file format").
			WithDetail("format", string(format))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create job directory")
	}
	return &DataItemStorage{
		dir:         dir,
		format:      format,
		compression: alg,
		log:         log,
		writers:     make(map[string]ItemWriter),
	}, nil
}

// Format returns the destination encoding of freshly written job files.
func (s *DataItemStorage) Format() config.FileFormat {
	return s.format
}

// AdaptsRows reports whether batch writes are decomposed row-wise by the
// active writer kind, making structural batch normalization unnecessary.
func (s *DataItemStorage) AdaptsRows() bool {
	return s.format == config.FormatJSONL
}

func (s *DataItemStorage) jobPath(table string) string {
	name := BuildFileName(table, string(s.format))
	if s.format == config.FormatJSONL {
		name += s.compression.Extension()
	}
	return filepath.Join(s.dir, name)
}

func (s *DataItemStorage) writer(table string, columns []schema.Column) (ItemWriter, error) {
	w, ok := s.writers[table]
	if ok {
		// a schema migration mid-file forces a parquet rotation
		if pw, isParquet := w.(*parquetWriter); isParquet && !pw.SchemaMatches(columns) {
			if err := s.closeWriter(table); err != nil {
				return nil, err
			}
			ok = false
		}
	}
	if !ok {
		var err error
		w, err = s.newWriter(table, columns)
		if err != nil {
			return nil, err
		}
		s.writers[table] = w
	}
	return s.writers[table], nil
}

func (s *DataItemStorage) newWriter(table string, columns []schema.Column) (ItemWriter, error) {
	path := s.jobPath(table)
	switch s.format {
	case config.FormatJSONL:
		return newJSONLWriter(path, s.compression)
	case config.FormatParquet:
		return newParquetWriter(path, columns)
	default:
		return nil, errors.New(errors.ErrorTypeCapability, "unsupported job file format").
			WithDetail("format", string(s.format))
	}
}

func (s *DataItemStorage) closeWriter(table string) error {
	w, ok := s.writers[table]
	if !ok {
		return nil
	}
	delete(s.writers, table)
	if err := w.Close(); err != nil {
		return err
	}
	s.closed = append(s.closed, w.Metrics())
	return nil
}

// WriteDataItem writes one flat row to the table's job file.
func (s *DataItemStorage) WriteDataItem(table string, row *schema.Row, columns []schema.Column) error {
	w, err := s.writer(table, columns)
	if err != nil {
		return err
	}
	return w.WriteRow(row, columns)
}

// WriteArrowBatch writes a whole record batch to the table's job file.
func (s *DataItemStorage) WriteArrowBatch(table string, batch arrow.Record, columns []schema.Column) error {
	w, ok := s.writers[table]
	if !ok {
		var err error
		if s.format == config.FormatParquet {
			// batch shape is authoritative on the rewrite path
			w, err = newParquetWriterForSchema(s.jobPath(table), batch.Schema())
		} else {
			w, err = s.newWriter(table, columns)
		}
		if err != nil {
			return err
		}
		s.writers[table] = w
	}
	return w.WriteBatch(batch, columns)
}

// WriteEmptyItemsFile materializes an explicit empty job file for a table
// so downstream stages still see it.
func (s *DataItemStorage) WriteEmptyItemsFile(table string, columns []schema.Column) error {
	w, err := s.newWriter(table, columns)
	if err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	s.closed = append(s.closed, w.Metrics())
	s.log.Debug("written empty job file", zap.String("table", table))
	return nil
}

// ImportItemsFile registers an existing file as the job artifact for a
// table without copying its bytes. A hard link is attempted first; a plain
// copy is the fallback across filesystems.
func (s *DataItemStorage) ImportItemsFile(table, srcPath string, metrics WriterMetrics) (WriterMetrics, error) {
	info, err := ParseFileName(srcPath)
	if err != nil {
		return WriterMetrics{}, err
	}
	dstPath := filepath.Join(s.dir, BuildFileName(table, info.Format))

	if err := os.Link(srcPath, dstPath); err != nil {
		if err := copyFile(srcPath, dstPath); err != nil {
			return WriterMetrics{}, err
		}
	}

	metrics.FilePath = dstPath
	metrics.Imported = true
	s.closed = append(s.closed, metrics)
	return metrics, nil
}

// ClosedMetrics returns the metrics of every finished job file.
func (s *DataItemStorage) ClosedMetrics() []WriterMetrics {
	out := make([]WriterMetrics, len(s.closed))
	copy(out, s.closed)
	return out
}

// Close finishes all open job files.
func (s *DataItemStorage) Close() error {
	var firstErr error
	for table := range s.writers {
		if err := s.closeWriter(table); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // G304: paths come from storage roots
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to open import source")
	}
	defer in.Close()

	out, err := os.Create(dst) //nolint:gosec
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create import target")
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to copy import file")
	}
	return out.Close()
}
