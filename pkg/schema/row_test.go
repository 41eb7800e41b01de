package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	strjson "github.com/strata-etl/strata/pkg/json"
)

func TestRowPreservesInsertionOrder(t *testing.T) {
	r := NewRow()
	r.Set("z", 1)
	r.Set("a", 2)
	r.Set("m", 3)

	assert.Equal(t, []string{"z", "a", "m"}, r.Keys())

	// overwriting keeps the original position
	r.Set("a", 99)
	assert.Equal(t, []string{"z", "a", "m"}, r.Keys())
	v, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, 99, v)
}

func TestRowDelete(t *testing.T) {
	r := NewRow()
	r.Set("a", 1)
	r.Set("b", 2)
	r.Delete("a")

	assert.False(t, r.Has("a"))
	assert.Equal(t, []string{"b"}, r.Keys())
	assert.Equal(t, 1, r.Len())

	r.Delete("b")
	assert.True(t, r.IsEmpty())
}

func TestRowClone(t *testing.T) {
	r := NewRow()
	r.Set("a", 1)
	c := r.Clone()
	c.Set("b", 2)

	assert.False(t, r.Has("b"))
	assert.True(t, c.Has("a"))
}

func TestRowMarshalJSONOrdered(t *testing.T) {
	r := NewRow()
	r.Set("z", 1)
	r.Set("a", "two")
	r.Set("nested", map[string]interface{}{"k": true})

	data, err := strjson.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":"two","nested":{"k":true}}`, string(data))
}

func TestRowRangeStopsEarly(t *testing.T) {
	r := NewRow()
	r.Set("a", 1)
	r.Set("b", 2)
	r.Set("c", 3)

	var visited []string
	r.Range(func(name string, _ interface{}) bool {
		visited = append(visited, name)
		return name != "b"
	})
	assert.Equal(t, []string{"a", "b"}, visited)
}

func TestRowMarshalJSONDoesNotAliasBuffers(t *testing.T) {
	first := NewRow()
	first.Set("a", 1)
	data, err := strjson.Marshal(first)
	require.NoError(t, err)

	second := NewRow()
	second.Set("b", "xxxxxxxxxxxxxxxxxxxxxxxx")
	_, err = strjson.Marshal(second)
	require.NoError(t, err)

	// the second marshal reuses the pooled buffer; the first result must
	// not change underneath the caller
	assert.Equal(t, `{"a":1}`, string(data))
}
