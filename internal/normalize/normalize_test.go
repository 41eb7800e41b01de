package normalize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-etl/strata/pkg/config"
	"github.com/strata-etl/strata/pkg/errors"
	"github.com/strata-etl/strata/pkg/schema"
	"github.com/strata-etl/strata/pkg/storage"
	"github.com/strata-etl/strata/pkg/testutil"
)

func newRunFixture(t *testing.T, sch *schema.Schema, mutate func(*config.NormalizeConfig)) (*Normalizer, *arrowFixture) {
	t.Helper()
	f := newArrowFixture(t, sch, mutate)
	return New(f.itemStorage, f.normStorage, sch, f.cfg, testutil.TestLogger(t)), f
}

func TestRunWholePackage(t *testing.T) {
	sch := testutil.TestSchema(t, "shop")
	norm, f := newRunFixture(t, sch, func(c *config.NormalizeConfig) {
		c.Destination.PreferredFileFormat = config.FormatJSONL
	})

	testutil.WriteExtractedFile(t, f.extractDir, "items.f1.jsonl", []byte("{\"a\": 1}\n{\"a\": 2, \"b\": 3}\n"))
	testutil.WriteExtractedFile(t, f.extractDir, "users.f2.jsonl", []byte(`{"name": "ann"}`))

	result, err := norm.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Files)
	assert.Equal(t, int64(3), result.RowsWritten)
	assert.Contains(t, result.SchemaUpdate, "items")
	assert.Contains(t, result.SchemaUpdate, "users")
	// updates arrive in commit order per table
	assert.Len(t, result.SchemaUpdate["items"], 2)

	assert.True(t, sch.HasTableSeenData("items"))
	assert.True(t, sch.HasTableSeenData("users"))
}

func TestRunMixedFormats(t *testing.T) {
	sch := testutil.TestSchema(t, "shop")
	norm, f := newRunFixture(t, sch, func(c *config.NormalizeConfig) {
		c.Parquet.AddLoadID = false
		c.Parquet.AddRowID = false
	})

	writeParquetFile(t, f.extractDir, "events.f1.parquet", idNameSchema(), fillIDName)
	testutil.WriteExtractedFile(t, f.extractDir, "items.f2.jsonl", []byte(`{"a": 1}`))

	result, err := norm.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Files)

	var imported int
	for _, wm := range result.JobMetrics {
		if wm.Imported {
			imported++
		}
	}
	assert.Equal(t, 1, imported, "the parquet file takes the import fast path")
}

func TestRunUnsupportedFormat(t *testing.T) {
	norm, f := newRunFixture(t, testutil.TestSchema(t, "shop"), nil)
	testutil.WriteExtractedFile(t, f.extractDir, "items.f1.avro", []byte("x"))

	_, err := norm.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCapability))
}

func TestRunCancelled(t *testing.T) {
	norm, f := newRunFixture(t, testutil.TestSchema(t, "shop"), nil)
	testutil.WriteExtractedFile(t, f.extractDir, "items.f1.jsonl", []byte(`{"a": 1}`))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := norm.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCancelled(err))
}

func TestRunEmptyPackage(t *testing.T) {
	norm, _ := newRunFixture(t, testutil.TestSchema(t, "shop"), nil)

	result, err := norm.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Files)
	assert.Empty(t, result.SchemaUpdate)
}

func TestProcessFileNormalizesTableName(t *testing.T) {
	sch := testutil.TestSchema(t, "shop")
	norm, f := newRunFixture(t, sch, func(c *config.NormalizeConfig) {
		c.Destination.PreferredFileFormat = config.FormatJSONL
	})

	testutil.WriteExtractedFile(t, f.extractDir, "MyItems.f1.jsonl", []byte(`{"a": 1}`))

	update, err := norm.ProcessFile(context.Background(), "MyItems.f1.jsonl")
	require.NoError(t, err)
	assert.Contains(t, update, "my_items")
	assert.True(t, sch.HasTable("my_items"))
	require.NoError(t, f.itemStorage.Close())

	var fileInfo storage.FileInfo
	fileInfo, err = storage.ParseFileName(f.itemStorage.ClosedMetrics()[0].FilePath)
	require.NoError(t, err)
	assert.Equal(t, "my_items", fileInfo.TableName)
}
