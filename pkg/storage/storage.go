// Package storage implements the file storages the normalization engine
// works against: reading extracted item files and writing per-table job
// files for the downstream loader. Job files are either freshly written
// (jsonl or parquet) or, on the columnar fast path, hard links to the
// original extracted file.
package storage

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/strata-etl/strata/pkg/errors"
	"github.com/strata-etl/strata/pkg/ids"
)

// FileInfo identifies one extracted or job file. File names follow
// "<table>.<file_id>.<format>[.<compression ext>]"; the table name may
// itself contain the "__" path separator but never a dot.
type FileInfo struct {
	TableName string
	FileID    string
	Format    string
}

// ParseFileName splits an item file name into its parts.
func ParseFileName(name string) (FileInfo, error) {
	base := filepath.Base(name)
	// strip a trailing compression extension
	for _, ext := range []string{".gz", ".zst"} {
		base = strings.TrimSuffix(base, ext)
	}
	parts := strings.Split(base, ".")
	if len(parts) != 3 {
		return FileInfo{}, errors.New(errors.ErrorTypeValidation, "malformed item file name").
			WithDetail("file", name)
	}
	return FileInfo{TableName: parts[0], FileID: parts[1], Format: parts[2]}, nil
}

// BuildFileName composes an item file name for a table.
func BuildFileName(table, format string) string {
	return table + "." + ids.NewRowID() + "." + format
}

// NormalizeStorage provides read access to the extracted item files of one
// load package.
type NormalizeStorage struct {
	dir string
}

// NewNormalizeStorage opens the extracted-files directory.
func NewNormalizeStorage(dir string) (*NormalizeStorage, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "extracted files directory not accessible")
	}
	if !info.IsDir() {
		return nil, errors.New(errors.ErrorTypeFile, "extracted files path is not a directory").
			WithDetail("path", dir)
	}
	return &NormalizeStorage{dir: dir}, nil
}

// ListFiles returns the names of all extracted item files, sorted.
func (s *NormalizeStorage) ListFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to list extracted files")
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Open opens an extracted file for reading.
func (s *NormalizeStorage) Open(name string) (*os.File, error) {
	f, err := os.Open(s.FullPath(name)) //nolint:gosec // G304: names come from ListFiles
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open extracted file").
			WithDetail("file", name)
	}
	return f, nil
}

// FullPath returns the absolute path of an extracted file.
func (s *NormalizeStorage) FullPath(name string) string {
	return filepath.Join(s.dir, name)
}
