package normalize

import (
	"github.com/strata-etl/strata/pkg/schema"
)

// filterColumns applies accumulated contract decisions for one table to a
// candidate row. A column in discard_row mode discards the whole row;
// discard_value removes only the offending field. The row is modified in
// place; ok=false signals the row must not be written.
func filterColumns(filtered map[string]schema.ContractMode, row *schema.Row) (*schema.Row, bool) {
	for name, mode := range filtered {
		if !row.Has(name) {
			continue
		}
		switch mode {
		case schema.ModeDiscardRow:
			return nil, false
		case schema.ModeDiscardValue:
			row.Delete(name)
		}
	}
	return row, true
}
