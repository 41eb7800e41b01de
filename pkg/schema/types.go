// Package schema implements the versioned table schema shared by all
// normalizer instances of one load: tables and their ordered columns, row
// coercion with on-the-fly column inference, schema contracts, and the
// naming convention used to map item paths to table and column names.
package schema

// Engine-injected system columns.
const (
	// LoadIDColumn stamps each root row with the load id of the run
	LoadIDColumn = "_dlt_load_id"
	// RowIDColumn is the unique row identifier
	RowIDColumn = "_dlt_id"
	// ParentIDColumn links a child-table row to its parent row id
	ParentIDColumn = "_dlt_parent_id"
	// ListIdxColumn preserves the position of a row within its source list
	ListIdxColumn = "_dlt_list_idx"
)

// DataType is the destination-facing type of a column.
type DataType string

const (
	TypeText      DataType = "text"
	TypeBigInt    DataType = "bigint"
	TypeDouble    DataType = "double"
	TypeBool      DataType = "bool"
	TypeTimestamp DataType = "timestamp"
	TypeDate      DataType = "date"
	TypeTime      DataType = "time"
	TypeJSON      DataType = "json"
	TypeBinary    DataType = "binary"
	TypeDecimal   DataType = "decimal"
)

// Column describes a single destination column.
type Column struct {
	Name      string   `yaml:"name" json:"name"`
	DataType  DataType `yaml:"data_type" json:"data_type"`
	Nullable  bool     `yaml:"nullable" json:"nullable"`
	Precision int      `yaml:"precision,omitempty" json:"precision,omitempty"`
	Scale     int      `yaml:"scale,omitempty" json:"scale,omitempty"`
	Variant   bool     `yaml:"variant,omitempty" json:"variant,omitempty"`
}

// PartialTable is a diff adding or altering columns of one table. It is
// produced by CoerceRow when a row needs columns the table does not have
// yet, adjusted by contract evaluation, and finally merged with
// UpdateTable.
type PartialTable struct {
	Name    string   `yaml:"name" json:"name"`
	Parent  string   `yaml:"parent,omitempty" json:"parent,omitempty"`
	Columns []Column `yaml:"columns" json:"columns"`
}

// Table is one destination table tracked by the schema.
type Table struct {
	Name     string
	Parent   string
	Contract *Contract // optional per-table contract override
	SeenData bool      // set once a load for this table completed

	columns map[string]int // name -> index into order
	order   []Column
}

func newTable(name, parent string) *Table {
	return &Table{
		Name:    name,
		Parent:  parent,
		columns: make(map[string]int),
	}
}

// Column returns the column definition if present.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.columns[name]
	if !ok {
		return Column{}, false
	}
	return t.order[i], true
}

// HasColumn reports whether the table defines a column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// Columns returns the column definitions in declaration order.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.order))
	copy(out, t.order)
	return out
}

// mergeColumn inserts or replaces a column definition in place.
func (t *Table) mergeColumn(c Column) {
	if i, ok := t.columns[c.Name]; ok {
		t.order[i] = c
		return
	}
	t.columns[c.Name] = len(t.order)
	t.order = append(t.order, c)
}

// Update maps table names to the ordered partial updates committed for
// them while processing one extracted file. It is returned to the caller,
// never persisted by the engine itself.
type Update map[string][]*PartialTable

// Add appends a partial update for a table.
func (u Update) Add(table string, p *PartialTable) {
	u[table] = append(u[table], p)
}

// Merge appends all entries of other, preserving their order.
func (u Update) Merge(other Update) {
	for table, partials := range other {
		u[table] = append(u[table], partials...)
	}
}
