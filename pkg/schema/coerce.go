package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/strata-etl/strata/pkg/errors"
	strjson "github.com/strata-etl/strata/pkg/json"
)

// systemColumns are engine-injected and never nullable.
var systemColumns = map[string]bool{
	LoadIDColumn:   true,
	RowIDColumn:    true,
	ParentIDColumn: true,
	ListIdxColumn:  true,
}

// InferDataType maps a decoded item value to a destination data type.
// Nil values carry no type information and report ok=false.
func InferDataType(v interface{}) (DataType, bool) {
	switch tv := v.(type) {
	case nil:
		return "", false
	case bool:
		return TypeBool, true
	case string:
		return TypeText, true
	case json.Number:
		if _, err := tv.Int64(); err == nil {
			return TypeBigInt, true
		}
		return TypeDouble, true
	case int, int32, int64:
		return TypeBigInt, true
	case float32, float64:
		return TypeDouble, true
	case strjson.Date:
		return TypeDate, true
	case time.Time:
		return TypeTimestamp, true
	case uuid.UUID:
		return TypeText, true
	case []byte:
		return TypeBinary, true
	case map[string]interface{}, []interface{}:
		return TypeJSON, true
	default:
		return TypeText, true
	}
}

// canonicalize converts a decoded value to the canonical Go representation
// for its data type, so writers only ever see one shape per type.
func canonicalize(dt DataType, v interface{}) interface{} {
	switch dt {
	case TypeBigInt:
		switch tv := v.(type) {
		case json.Number:
			n, _ := tv.Int64()
			return n
		case int:
			return int64(tv)
		case int32:
			return int64(tv)
		}
	case TypeDouble:
		switch tv := v.(type) {
		case json.Number:
			f, _ := tv.Float64()
			return f
		case float32:
			return float64(tv)
		}
	case TypeText:
		if id, ok := v.(uuid.UUID); ok {
			return id.String()
		}
	case TypeDate:
		if d, ok := v.(strjson.Date); ok {
			return d.Time
		}
	}
	return v
}

// coerceValue attempts to convert v (of inferred type) into the declared
// column type. ok=false means the types are incompatible and a variant
// column is needed.
func coerceValue(target, inferred DataType, v interface{}) (interface{}, bool) {
	if target == inferred {
		return canonicalize(target, v), true
	}
	switch target {
	case TypeText:
		switch tv := v.(type) {
		case json.Number:
			return tv.String(), true
		case bool:
			return strconv.FormatBool(tv), true
		case int64:
			return strconv.FormatInt(tv, 10), true
		case float64:
			return strconv.FormatFloat(tv, 'g', -1, 64), true
		case time.Time:
			return tv.Format(time.RFC3339Nano), true
		}
	case TypeDouble:
		if inferred == TypeBigInt {
			switch tv := v.(type) {
			case json.Number:
				f, _ := tv.Float64()
				return f, true
			case int64:
				return float64(tv), true
			case int:
				return float64(tv), true
			}
		}
	case TypeDecimal:
		switch inferred {
		case TypeBigInt, TypeDouble, TypeText:
			return canonicalize(inferred, v), true
		}
	case TypeTimestamp:
		if s, ok := v.(string); ok {
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return t, true
			}
		}
		if d, ok := v.(strjson.Date); ok {
			return d.Time, true
		}
	case TypeJSON:
		// anything serializes into a json column
		return v, true
	}
	return nil, false
}

// variantName derives the name of the variant column holding values whose
// type conflicts with the declared column type.
func variantName(name string, dt DataType) string {
	return fmt.Sprintf("%s%sv_%s", name, PathSeparator, dt)
}

// CoerceRow coerces a flat row against the current table schema, inferring
// column definitions for fields the table does not know yet. It returns
// the adjusted row and, when new or altered columns are required, a
// partial table update describing them. The schema itself is not modified;
// the caller decides whether to commit the partial via UpdateTable after
// contract evaluation.
func (s *Schema) CoerceRow(tableName, parentName string, row *Row) (*Row, *PartialTable, error) {
	table := s.tables[tableName]

	var newCols []Column
	out := NewRow()

	var coerceErr error
	row.Range(func(name string, v interface{}) bool {
		colName := s.naming.NormalizePath(name)

		var existing Column
		var known bool
		if table != nil {
			existing, known = table.Column(colName)
		}

		if v == nil {
			if known {
				if !existing.Nullable {
					coerceErr = errors.New(errors.ErrorTypeData, "null value for non-nullable column").
						WithDetail("table", tableName).
						WithDetail("column", colName)
					return false
				}
				out.Set(colName, nil)
			}
			// nil values never materialize new columns
			return true
		}

		inferred, _ := InferDataType(v)

		if !known {
			newCols = append(newCols, Column{
				Name:     colName,
				DataType: inferred,
				Nullable: !systemColumns[colName],
			})
			out.Set(colName, canonicalize(inferred, v))
			return true
		}

		if cv, ok := coerceValue(existing.DataType, inferred, v); ok {
			out.Set(colName, cv)
			return true
		}

		// incompatible value: route into a variant column
		vn := variantName(colName, inferred)
		if !table.HasColumn(vn) {
			newCols = append(newCols, Column{
				Name:     vn,
				DataType: inferred,
				Nullable: true,
				Variant:  true,
			})
		}
		out.Set(vn, canonicalize(inferred, v))
		return true
	})
	if coerceErr != nil {
		return nil, nil, coerceErr
	}

	var partial *PartialTable
	if table == nil || len(newCols) > 0 {
		partial = &PartialTable{Name: tableName, Parent: parentName, Columns: newCols}
	}
	return out, partial, nil
}
