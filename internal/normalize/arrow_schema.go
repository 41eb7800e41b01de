package normalize

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/strata-etl/strata/pkg/errors"
	"github.com/strata-etl/strata/pkg/schema"
	"github.com/strata-etl/strata/pkg/storage"
)

// shouldNormalizeArrowSchema compares the embedded schema of a columnar
// batch with the destination column schema under the active naming
// convention. Any shape difference (reordering, missing or extra columns,
// unnormalized names) requires structural normalization.
func shouldNormalizeArrowSchema(as *arrow.Schema, columns []schema.Column, naming schema.Naming) bool {
	fields := as.Fields()
	if len(fields) != len(columns) {
		return true
	}
	for i, field := range fields {
		if naming.NormalizePath(field.Name) != columns[i].Name {
			return true
		}
	}
	return false
}

// normalizeBatch reorders and pads a record batch to match the
// destination column schema: columns are emitted in destination order,
// missing columns become null arrays, extra source columns are dropped.
func normalizeBatch(rec arrow.Record, columns []schema.Column, naming schema.Naming, mem memory.Allocator) (arrow.Record, error) {
	srcFields := rec.Schema().Fields()
	byName := make(map[string]int, len(srcFields))
	for i, f := range srcFields {
		byName[naming.NormalizePath(f.Name)] = i
	}

	numRows := rec.NumRows()
	outFields := make([]arrow.Field, 0, len(columns))
	outArrays := make([]arrow.Array, 0, len(columns))
	for _, col := range columns {
		if i, ok := byName[col.Name]; ok {
			f := srcFields[i]
			f.Name = col.Name
			outFields = append(outFields, f)
			outArrays = append(outArrays, rec.Column(i))
			continue
		}
		if !col.Nullable {
			return nil, errors.New(errors.ErrorTypeData, "batch is missing a non-nullable column").
				WithDetail("column", col.Name)
		}
		dt, err := storage.ColumnsToArrowSchema([]schema.Column{col})
		if err != nil {
			return nil, err
		}
		b := array.NewBuilder(mem, dt.Field(0).Type)
		b.AppendNulls(int(numRows))
		arr := b.NewArray()
		b.Release()
		outFields = append(outFields, dt.Field(0))
		outArrays = append(outArrays, arr)
	}

	outSchema := arrow.NewSchema(outFields, nil)
	return array.NewRecord(outSchema, outArrays, numRows), nil
}

// newColumn schedules injection of one system column into every batch.
type newColumn struct {
	field arrow.Field
	build func(mem memory.Allocator, numRows int) (arrow.Array, error)
}

// injectColumns appends the scheduled columns to a record batch.
func injectColumns(rec arrow.Record, cols []newColumn, mem memory.Allocator) (arrow.Record, error) {
	if len(cols) == 0 {
		return rec, nil
	}
	fields := append([]arrow.Field(nil), rec.Schema().Fields()...)
	arrays := append([]arrow.Array(nil), rec.Columns()...)
	for _, nc := range cols {
		arr, err := nc.build(mem, int(rec.NumRows()))
		if err != nil {
			return nil, err
		}
		fields = append(fields, nc.field)
		arrays = append(arrays, arr)
	}
	return array.NewRecord(arrow.NewSchema(fields, nil), arrays, rec.NumRows()), nil
}

// hasArrowField reports whether the embedded schema already carries a
// column, compared under the naming convention.
func hasArrowField(as *arrow.Schema, name string, naming schema.Naming) bool {
	for _, f := range as.Fields() {
		if naming.NormalizePath(f.Name) == name {
			return true
		}
	}
	return false
}
