package storage

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	pqfile "github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-etl/strata/pkg/compression"
	"github.com/strata-etl/strata/pkg/config"
	strjson "github.com/strata-etl/strata/pkg/json"
	"github.com/strata-etl/strata/pkg/schema"
	"github.com/strata-etl/strata/pkg/testutil"
)

func testColumns() []schema.Column {
	return []schema.Column{
		{Name: "id", DataType: schema.TypeBigInt, Nullable: true},
		{Name: "name", DataType: schema.TypeText, Nullable: true},
	}
}

func testRow(id int64, name string) *schema.Row {
	r := schema.NewRow()
	r.Set("id", id)
	r.Set("name", name)
	return r
}

func TestJSONLStorageWritesRows(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDataItemStorage(dir, config.FormatJSONL, compression.None, testutil.TestLogger(t))
	require.NoError(t, err)
	assert.True(t, s.AdaptsRows())

	require.NoError(t, s.WriteDataItem("items", testRow(1, "one"), testColumns()))
	require.NoError(t, s.WriteDataItem("items", testRow(2, "two"), testColumns()))
	require.NoError(t, s.Close())

	metrics := s.ClosedMetrics()
	require.Len(t, metrics, 1)
	assert.Equal(t, int64(2), metrics[0].Items)
	assert.False(t, metrics[0].Imported)

	data, err := os.ReadFile(metrics[0].FilePath)
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Equal(t, `{"id":1,"name":"one"}`, string(lines[0]))
}

func TestJSONLStorageCompressed(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDataItemStorage(dir, config.FormatJSONL, compression.Gzip, testutil.TestLogger(t))
	require.NoError(t, err)

	require.NoError(t, s.WriteDataItem("items", testRow(1, "one"), testColumns()))
	require.NoError(t, s.Close())

	metrics := s.ClosedMetrics()
	require.Len(t, metrics, 1)
	assert.Equal(t, ".gz", filepath.Ext(metrics[0].FilePath))

	f, err := os.Open(metrics[0].FilePath)
	require.NoError(t, err)
	defer f.Close()
	r, err := compression.NewReader(f, compression.Gzip)
	require.NoError(t, err)
	defer r.Close()

	scanner := bufio.NewScanner(r)
	require.True(t, scanner.Scan())
	var row map[string]interface{}
	require.NoError(t, strjson.Unmarshal(scanner.Bytes(), &row))
	assert.Equal(t, "one", row["name"])
}

func TestParquetStorageRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDataItemStorage(dir, config.FormatParquet, compression.None, testutil.TestLogger(t))
	require.NoError(t, err)
	assert.False(t, s.AdaptsRows())

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, s.WriteDataItem("items", testRow(i, "row"), testColumns()))
	}
	require.NoError(t, s.Close())

	metrics := s.ClosedMetrics()
	require.Len(t, metrics, 1)
	assert.Equal(t, int64(3), metrics[0].Items)

	f, err := os.Open(metrics[0].FilePath)
	require.NoError(t, err)
	pf, err := pqfile.NewParquetReader(f)
	require.NoError(t, err)
	defer pf.Close()
	assert.Equal(t, int64(3), pf.NumRows())

	reader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.NewGoAllocator())
	require.NoError(t, err)
	as, err := reader.Schema()
	require.NoError(t, err)
	require.Equal(t, 2, as.NumFields())
	assert.Equal(t, "id", as.Field(0).Name)
	assert.Equal(t, "name", as.Field(1).Name)
}

func TestParquetStorageRotatesOnSchemaChange(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDataItemStorage(dir, config.FormatParquet, compression.None, testutil.TestLogger(t))
	require.NoError(t, err)

	require.NoError(t, s.WriteDataItem("items", testRow(1, "one"), testColumns()))

	grown := append(testColumns(), schema.Column{Name: "extra", DataType: schema.TypeText, Nullable: true})
	row := testRow(2, "two")
	row.Set("extra", "x")
	require.NoError(t, s.WriteDataItem("items", row, grown))
	require.NoError(t, s.Close())

	// the migration forced a second job file
	metrics := s.ClosedMetrics()
	require.Len(t, metrics, 2)
	assert.Equal(t, int64(1), metrics[0].Items)
	assert.Equal(t, int64(1), metrics[1].Items)
}

func TestWriteEmptyItemsFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDataItemStorage(dir, config.FormatJSONL, compression.None, testutil.TestLogger(t))
	require.NoError(t, err)

	require.NoError(t, s.WriteEmptyItemsFile("items", testColumns()))
	require.NoError(t, s.Close())

	metrics := s.ClosedMetrics()
	require.Len(t, metrics, 1)
	assert.Equal(t, int64(0), metrics[0].Items)

	info, err := os.Stat(metrics[0].FilePath)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestImportItemsFileByteIdentical(t *testing.T) {
	srcDir := t.TempDir()
	payload := []byte("raw parquet bytes stand-in")
	srcPath := filepath.Join(srcDir, "items.abc123.parquet")
	require.NoError(t, os.WriteFile(srcPath, payload, 0o644))

	dir := t.TempDir()
	s, err := NewDataItemStorage(dir, config.FormatParquet, compression.None, testutil.TestLogger(t))
	require.NoError(t, err)

	wm, err := s.ImportItemsFile("items", srcPath, WriterMetrics{Items: 10, Bytes: int64(len(payload))})
	require.NoError(t, err)
	assert.True(t, wm.Imported)
	assert.Equal(t, int64(10), wm.Items)

	got, err := os.ReadFile(wm.FilePath)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	require.NoError(t, s.Close())
	assert.Len(t, s.ClosedMetrics(), 1)
}

func TestUnsupportedFormat(t *testing.T) {
	_, err := NewDataItemStorage(t.TempDir(), config.FileFormat("avro"), compression.None, testutil.TestLogger(t))
	require.Error(t, err)
}

func TestParquetReadBackValues(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDataItemStorage(dir, config.FormatParquet, compression.None, testutil.TestLogger(t))
	require.NoError(t, err)

	require.NoError(t, s.WriteDataItem("items", testRow(42, "answer"), testColumns()))
	require.NoError(t, s.Close())

	metrics := s.ClosedMetrics()
	require.Len(t, metrics, 1)

	f, err := os.Open(metrics[0].FilePath)
	require.NoError(t, err)
	pf, err := pqfile.NewParquetReader(f)
	require.NoError(t, err)
	defer pf.Close()

	reader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.NewGoAllocator())
	require.NoError(t, err)
	table, err := reader.ReadTable(context.Background())
	require.NoError(t, err)
	defer table.Release()

	require.Equal(t, int64(1), table.NumRows())
	idCol := table.Column(0).Data().Chunk(0)
	assert.Equal(t, int64(42), ArrowColumnValue(idCol, 0))
	nameCol := table.Column(1).Data().Chunk(0)
	assert.Equal(t, "answer", ArrowColumnValue(nameCol, 0))
}
