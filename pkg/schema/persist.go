package schema

import (
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/strata-etl/strata/pkg/errors"
)

// schemaFile is the on-disk YAML representation of a schema.
type schemaFile struct {
	Name     string      `yaml:"name"`
	Version  int         `yaml:"version"`
	Settings Settings    `yaml:"settings"`
	Tables   []tableFile `yaml:"tables"`
}

type tableFile struct {
	Name     string    `yaml:"name"`
	Parent   string    `yaml:"parent,omitempty"`
	Contract *Contract `yaml:"contract,omitempty"`
	SeenData bool      `yaml:"seen_data,omitempty"`
	Columns  []Column  `yaml:"columns"`
}

// LoadFile reads a schema from a YAML file.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is operator supplied
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read schema file")
	}
	var sf schemaFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "failed to parse schema file")
	}

	s := New(sf.Name)
	s.Version = sf.Version
	if s.Version == 0 {
		s.Version = 1
	}
	s.Settings = sf.Settings
	if s.Settings.DefaultContract == (Contract{}) {
		s.Settings.DefaultContract = DefaultContract()
	}
	for _, tf := range sf.Tables {
		t := newTable(tf.Name, tf.Parent)
		t.Contract = tf.Contract
		t.SeenData = tf.SeenData
		for _, col := range tf.Columns {
			t.mergeColumn(col)
		}
		s.tables[tf.Name] = t
	}
	return s, nil
}

// SaveFile writes the schema to a YAML file. Tables are emitted in name
// order so the file diffs cleanly between versions.
func (s *Schema) SaveFile(path string) error {
	sf := schemaFile{
		Name:     s.Name,
		Version:  s.Version,
		Settings: s.Settings,
	}
	for _, name := range sortedTableNames(s.tables) {
		t := s.tables[name]
		sf.Tables = append(sf.Tables, tableFile{
			Name:     t.Name,
			Parent:   t.Parent,
			Contract: t.Contract,
			SeenData: t.SeenData,
			Columns:  t.Columns(),
		})
	}
	data, err := yaml.Marshal(&sf)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to marshal schema")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write schema file")
	}
	return nil
}

func sortedTableNames(tables map[string]*Table) []string {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
