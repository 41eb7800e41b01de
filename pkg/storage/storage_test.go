package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFileName(t *testing.T) {
	info, err := ParseFileName("items.1a2b3c.jsonl")
	require.NoError(t, err)
	assert.Equal(t, FileInfo{TableName: "items", FileID: "1a2b3c", Format: "jsonl"}, info)
}

func TestParseFileNameCompressed(t *testing.T) {
	info, err := ParseFileName("items.1a2b3c.jsonl.gz")
	require.NoError(t, err)
	assert.Equal(t, "jsonl", info.Format)

	info, err = ParseFileName("items.1a2b3c.jsonl.zst")
	require.NoError(t, err)
	assert.Equal(t, "jsonl", info.Format)
}

func TestParseFileNameChildTable(t *testing.T) {
	info, err := ParseFileName("items__tags.xyz.parquet")
	require.NoError(t, err)
	assert.Equal(t, "items__tags", info.TableName)
	assert.Equal(t, "parquet", info.Format)
}

func TestParseFileNameFullPath(t *testing.T) {
	info, err := ParseFileName("/data/extracted/items.xyz.parquet")
	require.NoError(t, err)
	assert.Equal(t, "items", info.TableName)
}

func TestParseFileNameMalformed(t *testing.T) {
	for _, name := range []string{"items", "items.jsonl", "a.b.c.d"} {
		_, err := ParseFileName(name)
		assert.Error(t, err, "name %q", name)
	}
}

func TestBuildFileNameRoundTrip(t *testing.T) {
	name := BuildFileName("items__tags", "parquet")
	info, err := ParseFileName(name)
	require.NoError(t, err)
	assert.Equal(t, "items__tags", info.TableName)
	assert.Equal(t, "parquet", info.Format)
}

func TestNormalizeStorageListFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.2.jsonl", "a.1.jsonl", "c.3.parquet"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	s, err := NewNormalizeStorage(dir)
	require.NoError(t, err)

	files, err := s.ListFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.1.jsonl", "b.2.jsonl", "c.3.parquet"}, files)
}

func TestNormalizeStorageMissingDir(t *testing.T) {
	_, err := NewNormalizeStorage(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
