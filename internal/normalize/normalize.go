package normalize

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/strata-etl/strata/pkg/config"
	"github.com/strata-etl/strata/pkg/errors"
	"github.com/strata-etl/strata/pkg/metrics"
	"github.com/strata-etl/strata/pkg/schema"
	"github.com/strata-etl/strata/pkg/storage"
)

// ItemsNormalizer normalizes one extracted file into per-table job files,
// returning the schema updates committed while doing so. Implementations
// are bound to one file and must not be reused.
type ItemsNormalizer interface {
	Process(ctx context.Context, extractedFile, rootTable string) ([]schema.Update, error)
}

// Result summarizes one normalization run.
type Result struct {
	LoadID       string
	Files        int
	RowsWritten  int64
	SchemaUpdate schema.Update
	JobMetrics   []storage.WriterMetrics
}

// Normalizer drives normalization of one load package: every extracted
// file is dispatched to a format-specific ItemsNormalizer and the schema
// updates are applied in file order against the shared schema.
type Normalizer struct {
	itemStorage *storage.DataItemStorage
	normStorage *storage.NormalizeStorage
	schema      *schema.Schema
	cfg         *config.NormalizeConfig
	log         *zap.Logger
}

// New creates a Normalizer over one load package.
func New(itemStorage *storage.DataItemStorage, normStorage *storage.NormalizeStorage, sch *schema.Schema, cfg *config.NormalizeConfig, log *zap.Logger) *Normalizer {
	return &Normalizer{
		itemStorage: itemStorage,
		normStorage: normStorage,
		schema:      sch,
		cfg:         cfg,
		log:         log,
	}
}

// normalizerFor picks the strategy matching the extracted file format.
func (n *Normalizer) normalizerFor(info storage.FileInfo) (ItemsNormalizer, error) {
	switch config.FileFormat(info.Format) {
	case config.FormatJSONL:
		return NewJSONLNormalizer(n.itemStorage, n.normStorage, n.schema, n.cfg.LoadID, n.cfg, n.log), nil
	case config.FormatParquet:
		return NewArrowNormalizer(n.itemStorage, n.normStorage, n.schema, n.cfg.LoadID, n.cfg, n.log), nil
	default:
		return nil, errors.New(errors.ErrorTypeCapability, "unsupported extracted file format").
			WithDetail("format", info.Format)
	}
}

// ProcessFile normalizes a single extracted file and merges the schema
// updates it produced.
func (n *Normalizer) ProcessFile(ctx context.Context, file string) (schema.Update, error) {
	info, err := storage.ParseFileName(file)
	if err != nil {
		return nil, err
	}
	rootTable := n.schema.Naming().NormalizePath(info.TableName)

	norm, err := n.normalizerFor(info)
	if err != nil {
		return nil, err
	}

	log := n.log.With(zap.String("file", file), zap.String("table", rootTable))
	log.Debug("normalizing extracted file")

	updates, err := norm.Process(ctx, file, rootTable)
	if err != nil {
		log.Error("failed to normalize extracted file", zap.Error(err))
		return nil, err
	}

	merged := schema.Update{}
	for _, u := range updates {
		merged.Merge(u)
	}
	return merged, nil
}

// Run normalizes every extracted file of the load package. Files are
// processed sequentially in name order so that schema evolution is
// deterministic; a cancelled context aborts between files and inside the
// normalizers themselves.
func (n *Normalizer) Run(ctx context.Context) (*Result, error) {
	started := time.Now()
	files, err := n.normStorage.ListFiles()
	if err != nil {
		return nil, err
	}

	result := &Result{LoadID: n.cfg.LoadID, SchemaUpdate: schema.Update{}}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeCancelled, "normalization cancelled")
		}
		update, err := n.ProcessFile(ctx, file)
		if err != nil {
			return nil, err
		}
		result.SchemaUpdate.Merge(update)
		result.Files++
	}

	if err := n.itemStorage.Close(); err != nil {
		return nil, err
	}
	for _, wm := range n.itemStorage.ClosedMetrics() {
		result.RowsWritten += wm.Items
		result.JobMetrics = append(result.JobMetrics, wm)
		// tables that produced rows have proven their baseline columns
		if wm.Items > 0 {
			if info, err := storage.ParseFileName(wm.FilePath); err == nil {
				n.schema.SetTableSeenData(info.TableName)
			}
		}
	}
	metrics.LoadsNormalized.Inc()

	n.log.Info("load package normalized",
		zap.String("load_id", n.cfg.LoadID),
		zap.Int("files", result.Files),
		zap.Int64("rows", result.RowsWritten),
		zap.Int("updated_tables", len(result.SchemaUpdate)),
		zap.Duration("duration", time.Since(started)))
	return result, nil
}
