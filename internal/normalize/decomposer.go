// Package normalize implements the normalization engine: decomposition of
// nested extracted items into flat table rows, on-the-fly schema inference
// and evolution under schema contracts, and the two normalizer strategies
// for row-oriented (jsonl) and columnar (parquet) input files.
package normalize

import (
	"sort"

	"github.com/strata-etl/strata/pkg/ids"
	"github.com/strata-etl/strata/pkg/schema"
)

// visitFunc receives each decomposed row in depth-first order. Returning
// descend=false prunes the row's children from the traversal; siblings are
// unaffected.
type visitFunc func(table, parent string, row *schema.Row) (descend bool, err error)

// decomposer turns one nested item into a sequence of (table, parent, flat
// row) triples. Nested objects flatten into path-composed column names;
// lists become child tables linked through parent row ids. The traversal
// is an explicit stack: children are pushed only after the visitor
// approves descent for their parent row.
type decomposer struct {
	naming     schema.Naming
	loadID     string
	maxNesting int
}

const defaultMaxNesting = 100

func newDecomposer(naming schema.Naming, loadID string) *decomposer {
	return &decomposer{naming: naming, loadID: loadID, maxNesting: defaultMaxNesting}
}

// workItem is one pending node of the traversal.
type workItem struct {
	table       string
	parent      string
	parentRowID string
	listIdx     int // position within the source list, -1 for the root
	value       interface{}
}

// decompose walks one item depth-first. Exhaustion of the item is normal
// termination, not an error.
func (d *decomposer) decompose(item interface{}, rootTable string, visit visitFunc) error {
	stack := []workItem{{
		table:   d.naming.NormalizePath(rootTable),
		listIdx: -1,
		value:   item,
	}}
	for len(stack) > 0 {
		w := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		row, children := d.flatten(w)
		descend, err := visit(w.table, w.parent, row)
		if err != nil {
			return err
		}
		if !descend {
			continue
		}
		// reversed push keeps source order on the LIFO stack
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return nil
}

// flatten produces the flat row for one node and collects its pending
// children. System columns are appended after the data columns: load id on
// root rows, parent linkage on child rows, a fresh row id on every row.
func (d *decomposer) flatten(w workItem) (*schema.Row, []workItem) {
	row := schema.NewRow()
	rowID := ids.NewRowID()
	var children []workItem

	if obj, ok := w.value.(map[string]interface{}); ok {
		children = d.flattenInto(row, w.table, "", obj, 0, rowID, children)
	} else {
		// a scalar list element becomes a single-column row
		row.Set("value", w.value)
	}

	if w.parent == "" {
		if d.loadID != "" {
			row.Set(schema.LoadIDColumn, d.loadID)
		}
	} else {
		row.Set(schema.ParentIDColumn, w.parentRowID)
		row.Set(schema.ListIdxColumn, int64(w.listIdx))
	}
	row.Set(schema.RowIDColumn, rowID)
	return row, children
}

func (d *decomposer) flattenInto(row *schema.Row, table, prefix string, obj map[string]interface{}, depth int, rowID string, children []workItem) []workItem {
	// decoded objects are maps, which iterate in random order; sorting the
	// keys trades source field order for column order that is stable
	// across runs and inputs
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := obj[k]
		name := d.naming.NormalizeIdentifier(k)
		if prefix != "" {
			name = d.naming.Compose(prefix, name)
		}
		switch tv := v.(type) {
		case map[string]interface{}:
			if depth+1 < d.maxNesting {
				children = d.flattenInto(row, table, name, tv, depth+1, rowID, children)
			} else {
				// beyond the nesting limit the object stays a json value
				row.Set(name, tv)
			}
		case []interface{}:
			childTable := d.naming.Compose(table, name)
			for i, el := range tv {
				children = append(children, workItem{
					table:       childTable,
					parent:      table,
					parentRowID: rowID,
					listIdx:     i,
					value:       el,
				})
			}
		default:
			row.Set(name, v)
		}
	}
	return children
}
