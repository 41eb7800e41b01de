package schema

import (
	strjson "github.com/strata-etl/strata/pkg/json"
)

// Row is an ordered set of column name / value pairs produced by the
// decomposition of one nested item. Iteration order is insertion order,
// which keeps inferred column order stable across runs.
type Row struct {
	keys   []string
	values map[string]interface{}
}

// NewRow creates an empty row.
func NewRow() *Row {
	return &Row{values: make(map[string]interface{})}
}

// Set stores a value under name, appending the key on first use.
func (r *Row) Set(name string, value interface{}) {
	if _, ok := r.values[name]; !ok {
		r.keys = append(r.keys, name)
	}
	r.values[name] = value
}

// Get returns the value stored under name.
func (r *Row) Get(name string) (interface{}, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Has reports whether name is present.
func (r *Row) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// Delete removes name from the row.
func (r *Row) Delete(name string) {
	if _, ok := r.values[name]; !ok {
		return
	}
	delete(r.values, name)
	for i, k := range r.keys {
		if k == name {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of fields.
func (r *Row) Len() int {
	return len(r.keys)
}

// IsEmpty reports whether the row has no fields.
func (r *Row) IsEmpty() bool {
	return r == nil || len(r.keys) == 0
}

// Keys returns the field names in insertion order. The slice is shared;
// callers must not modify it.
func (r *Row) Keys() []string {
	return r.keys
}

// Range calls fn for each field in insertion order until fn returns false.
func (r *Row) Range(fn func(name string, value interface{}) bool) {
	for _, k := range r.keys {
		if !fn(k, r.values[k]) {
			return
		}
	}
}

// Clone returns a shallow copy of the row.
func (r *Row) Clone() *Row {
	c := &Row{
		keys:   make([]string, len(r.keys)),
		values: make(map[string]interface{}, len(r.values)),
	}
	copy(c.keys, r.keys)
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}

// Map returns the row as a plain map, losing order. Used by writers that
// serialize whole objects.
func (r *Row) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// MarshalJSON serializes the row as a JSON object with fields in
// insertion order.
func (r *Row) MarshalJSON() ([]byte, error) {
	buf := strjson.GetBuffer()
	defer strjson.PutBuffer(buf)
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := strjson.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := strjson.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	// the buffer goes back to the pool, so the bytes must be copied out
	return append([]byte(nil), buf.Bytes()...), nil
}
