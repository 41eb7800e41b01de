package schema

import (
	"github.com/strata-etl/strata/pkg/errors"
)

// ContractMode governs how one entity class of a schema contract reacts to
// a change discovered during normalization.
type ContractMode string

const (
	// ModeEvolve accepts the change and migrates the schema
	ModeEvolve ContractMode = "evolve"
	// ModeFreeze rejects the change with an error
	ModeFreeze ContractMode = "freeze"
	// ModeDiscardRow silently drops rows that carry the change
	ModeDiscardRow ContractMode = "discard_row"
	// ModeDiscardValue silently drops the offending values only
	ModeDiscardValue ContractMode = "discard_value"
)

// Contract is the evolution policy for one table, resolved per entity
// class: whole tables, columns, and data type variants.
type Contract struct {
	Tables   ContractMode `yaml:"tables" json:"tables"`
	Columns  ContractMode `yaml:"columns" json:"columns"`
	DataType ContractMode `yaml:"data_type" json:"data_type"`
}

// DefaultContract allows full evolution.
func DefaultContract() Contract {
	return Contract{Tables: ModeEvolve, Columns: ModeEvolve, DataType: ModeEvolve}
}

// FilterEntity names the entity class a filter decision applies to.
type FilterEntity string

const (
	// FilterTables excludes a whole table
	FilterTables FilterEntity = "tables"
	// FilterColumns excludes or value-filters a single column
	FilterColumns FilterEntity = "columns"
)

// FilterDecision is a contract side effect discovered while applying a
// partial table update. Decisions are monotonic for the lifetime of a
// normalizer instance: once made they apply to every later row.
type FilterDecision struct {
	Entity FilterEntity
	Name   string
	Mode   ContractMode
}

// ResolveContractSettingsForTable returns the contract applicable to a
// table. Table-level overrides win; for tables not yet in the schema the
// caller passes the parent table name, since only the parent is guaranteed
// to be known. The lookup walks the parent chain up to the root table and
// falls back to the schema default.
func (s *Schema) ResolveContractSettingsForTable(name string) Contract {
	for cur := name; cur != ""; {
		t, ok := s.tables[cur]
		if !ok {
			break
		}
		if t.Contract != nil {
			return *t.Contract
		}
		cur = t.Parent
	}
	return s.Settings.DefaultContract
}

// ApplySchemaContract evaluates a partial table update against a contract.
// It returns the possibly trimmed partial update (nil when the table-level
// contract rejects the whole migration) and the filter decisions the
// caller must record. Freeze modes return a contract error instead.
func (s *Schema) ApplySchemaContract(contract Contract, partial *PartialTable) (*PartialTable, []FilterDecision, error) {
	if partial == nil {
		return nil, nil, nil
	}

	// a new table is governed by the tables entity
	if !s.HasTable(partial.Name) {
		switch contract.Tables {
		case ModeEvolve, "":
			// fall through to column checks below; columns of a brand new
			// table are part of the table migration itself
			return partial, nil, nil
		case ModeFreeze:
			return nil, nil, errors.New(errors.ErrorTypeContract, "contract frozen for new tables").
				WithDetail("table", partial.Name)
		default:
			// discard_row and discard_value both demote to excluding the table
			return nil, []FilterDecision{{Entity: FilterTables, Name: partial.Name, Mode: ModeDiscardRow}}, nil
		}
	}

	table := s.tables[partial.Name]
	kept := partial.Columns[:0:0]
	var decisions []FilterDecision
	for _, col := range partial.Columns {
		if table.HasColumn(col.Name) {
			// an in-place alteration (precision, nullability) is always allowed
			kept = append(kept, col)
			continue
		}
		mode := contract.Columns
		if col.Variant {
			mode = contract.DataType
		}
		switch mode {
		case ModeEvolve, "":
			kept = append(kept, col)
		case ModeFreeze:
			return nil, nil, errors.New(errors.ErrorTypeContract, "contract frozen for new columns").
				WithDetail("table", partial.Name).
				WithDetail("column", col.Name)
		case ModeDiscardRow, ModeDiscardValue:
			decisions = append(decisions, FilterDecision{Entity: FilterColumns, Name: col.Name, Mode: mode})
		}
	}

	trimmed := &PartialTable{Name: partial.Name, Parent: partial.Parent, Columns: kept}
	return trimmed, decisions, nil
}
