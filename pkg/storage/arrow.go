package storage

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	strjson "github.com/strata-etl/strata/pkg/json"
	"github.com/strata-etl/strata/pkg/schema"
)

// ColumnsToArrowSchema converts destination column definitions into an
// Arrow schema. json and decimal columns stay in text form end to end;
// the loader casts them.
func ColumnsToArrowSchema(columns []schema.Column) (*arrow.Schema, error) {
	fields := make([]arrow.Field, 0, len(columns))
	for _, col := range columns {
		dt, err := arrowType(col)
		if err != nil {
			return nil, err
		}
		fields = append(fields, arrow.Field{Name: col.Name, Type: dt, Nullable: col.Nullable})
	}
	return arrow.NewSchema(fields, nil), nil
}

func arrowType(col schema.Column) (arrow.DataType, error) {
	switch col.DataType {
	case schema.TypeText, schema.TypeJSON, schema.TypeDecimal:
		return arrow.BinaryTypes.String, nil
	case schema.TypeBigInt:
		return arrow.PrimitiveTypes.Int64, nil
	case schema.TypeDouble:
		return arrow.PrimitiveTypes.Float64, nil
	case schema.TypeBool:
		return arrow.FixedWidthTypes.Boolean, nil
	case schema.TypeTimestamp:
		return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}, nil
	case schema.TypeDate:
		return arrow.FixedWidthTypes.Date32, nil
	case schema.TypeTime:
		return arrow.FixedWidthTypes.Time64us, nil
	case schema.TypeBinary:
		return arrow.BinaryTypes.Binary, nil
	default:
		return nil, fmt.Errorf("no arrow mapping for data type %q", col.DataType)
	}
}

// appendArrowValue appends one row value to a column builder, converting
// from the canonical Go representation of the column type.
func appendArrowValue(builder array.Builder, value interface{}) error {
	if value == nil {
		builder.AppendNull()
		return nil
	}

	switch b := builder.(type) {
	case *array.BooleanBuilder:
		if v, ok := value.(bool); ok {
			b.Append(v)
		} else {
			b.AppendNull()
		}

	case *array.Int64Builder:
		switch v := value.(type) {
		case int:
			b.Append(int64(v))
		case int32:
			b.Append(int64(v))
		case int64:
			b.Append(v)
		default:
			b.AppendNull()
		}

	case *array.Float64Builder:
		switch v := value.(type) {
		case float32:
			b.Append(float64(v))
		case float64:
			b.Append(v)
		default:
			b.AppendNull()
		}

	case *array.StringBuilder:
		switch v := value.(type) {
		case string:
			b.Append(v)
		case map[string]interface{}, []interface{}:
			data, err := strjson.Marshal(v)
			if err != nil {
				return err
			}
			b.Append(string(data))
		default:
			b.Append(fmt.Sprintf("%v", value))
		}

	case *array.TimestampBuilder:
		if v, ok := value.(time.Time); ok {
			b.Append(arrow.Timestamp(v.UnixMicro()))
		} else {
			b.AppendNull()
		}

	case *array.Date32Builder:
		if v, ok := value.(time.Time); ok {
			b.Append(arrow.Date32FromTime(v))
		} else {
			b.AppendNull()
		}

	case *array.Time64Builder:
		if v, ok := value.(time.Time); ok {
			midnight := time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, v.Location())
			b.Append(arrow.Time64(v.Sub(midnight) / time.Microsecond))
		} else {
			b.AppendNull()
		}

	case *array.BinaryBuilder:
		switch v := value.(type) {
		case []byte:
			b.Append(v)
		case string:
			b.Append([]byte(v))
		default:
			b.AppendNull()
		}

	default:
		return fmt.Errorf("unsupported builder type: %T", builder)
	}

	return nil
}

// ArrowColumnValue extracts a Go value from an Arrow column row.
func ArrowColumnValue(col arrow.Array, rowIdx int) interface{} {
	if col.IsNull(rowIdx) {
		return nil
	}

	switch c := col.(type) {
	case *array.Boolean:
		return c.Value(rowIdx)
	case *array.Int8:
		return int64(c.Value(rowIdx))
	case *array.Int16:
		return int64(c.Value(rowIdx))
	case *array.Int32:
		return int64(c.Value(rowIdx))
	case *array.Int64:
		return c.Value(rowIdx)
	case *array.Float32:
		return float64(c.Value(rowIdx))
	case *array.Float64:
		return c.Value(rowIdx)
	case *array.String:
		return c.Value(rowIdx)
	case *array.Binary:
		return c.Value(rowIdx)
	case *array.Timestamp:
		dt, ok := c.DataType().(*arrow.TimestampType)
		if !ok {
			return nil
		}
		return c.Value(rowIdx).ToTime(dt.Unit)
	case *array.Date32:
		return c.Value(rowIdx).ToTime()
	case *array.Dictionary:
		if dict, ok := c.Dictionary().(*array.String); ok {
			return dict.Value(c.GetValueIndex(rowIdx))
		}
		return nil
	default:
		return nil
	}
}
