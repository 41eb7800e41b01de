package schema

import (
	"regexp"

	"github.com/strata-etl/strata/pkg/errors"
)

// Settings carries schema-wide configuration applied during normalization.
type Settings struct {
	// DefaultContract applies to tables without an override
	DefaultContract Contract `yaml:"default_contract" json:"default_contract"`
	// ExcludePatterns maps a table name to regular expressions matched
	// against column names; matching fields are removed before coercion
	ExcludePatterns map[string][]string `yaml:"exclude_patterns,omitempty" json:"exclude_patterns,omitempty"`
}

// Schema is the versioned, mutable table schema shared by every normalizer
// of one load. It is not safe for concurrent mutation; the caller
// serializes access between files.
type Schema struct {
	Name     string
	Version  int
	Settings Settings

	naming   Naming
	tables   map[string]*Table
	excludes map[string][]*regexp.Regexp // compiled from Settings.ExcludePatterns
}

// New creates an empty schema with the default evolve contract.
func New(name string) *Schema {
	return &Schema{
		Name:     name,
		Version:  1,
		Settings: Settings{DefaultContract: DefaultContract()},
		tables:   make(map[string]*Table),
	}
}

// Naming returns the active naming convention.
func (s *Schema) Naming() Naming {
	return s.naming
}

// HasTable reports whether a table is defined.
func (s *Schema) HasTable(name string) bool {
	_, ok := s.tables[name]
	return ok
}

// Table returns a table definition.
func (s *Schema) Table(name string) (*Table, bool) {
	t, ok := s.tables[name]
	return t, ok
}

// TableNames returns the names of all defined tables.
func (s *Schema) TableNames() []string {
	out := make([]string, 0, len(s.tables))
	for name := range s.tables {
		out = append(out, name)
	}
	return out
}

// GetTableColumns returns the ordered column definitions of a table, or
// nil if the table is unknown.
func (s *Schema) GetTableColumns(name string) []Column {
	t, ok := s.tables[name]
	if !ok {
		return nil
	}
	return t.Columns()
}

// HasTableSeenData reports whether a table ever received data in a
// completed load. New tables materialized only through schema discovery
// have not.
func (s *Schema) HasTableSeenData(name string) bool {
	t, ok := s.tables[name]
	return ok && t.SeenData
}

// SetTableSeenData marks a table as having received data. Called by the
// loader when a package completes, and by tests.
func (s *Schema) SetTableSeenData(name string) {
	if t, ok := s.tables[name]; ok {
		t.SeenData = true
	}
}

// SetTableContract sets a per-table contract override.
func (s *Schema) SetTableContract(name string, c Contract) error {
	t, ok := s.tables[name]
	if !ok {
		t = newTable(name, "")
		s.tables[name] = t
	}
	t.Contract = &c
	return nil
}

// FilterRow applies the schema's structural row filters for a table:
// fields matching a configured exclude pattern are removed. The returned
// row may be empty.
func (s *Schema) FilterRow(table string, row *Row) *Row {
	patterns := s.compiledExcludes(table)
	if len(patterns) == 0 {
		return row
	}
	for _, name := range append([]string(nil), row.Keys()...) {
		for _, re := range patterns {
			if re.MatchString(name) {
				row.Delete(name)
				break
			}
		}
	}
	return row
}

func (s *Schema) compiledExcludes(table string) []*regexp.Regexp {
	if s.excludes == nil {
		s.excludes = make(map[string][]*regexp.Regexp, len(s.Settings.ExcludePatterns))
		for t, patterns := range s.Settings.ExcludePatterns {
			for _, p := range patterns {
				if re, err := regexp.Compile(p); err == nil {
					s.excludes[t] = append(s.excludes[t], re)
				}
			}
		}
	}
	return s.excludes[table]
}

// UpdateTable merges a partial table update into the schema and bumps the
// schema version. A table is created on first reference, linked to its
// parent. The applied partial is returned so callers can accumulate it.
func (s *Schema) UpdateTable(partial *PartialTable) (*PartialTable, error) {
	if partial == nil {
		return nil, nil
	}
	if partial.Name == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "partial table update without a table name")
	}
	t, ok := s.tables[partial.Name]
	if !ok {
		t = newTable(partial.Name, partial.Parent)
		s.tables[partial.Name] = t
	}
	for _, col := range partial.Columns {
		t.mergeColumn(col)
	}
	s.Version++
	return partial, nil
}
