package ids

import (
	"encoding/base64"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoadID(t *testing.T) {
	id := NewLoadID()

	// load ids are unix timestamps with microsecond text precision
	parts := strings.Split(id, ".")
	require.Len(t, parts, 2)
	assert.Len(t, parts[1], 6)

	f, err := strconv.ParseFloat(id, 64)
	require.NoError(t, err)
	assert.Greater(t, f, 1.7e9)
}

func TestNewRowID(t *testing.T) {
	id := NewRowID()
	assert.Len(t, id, 22)

	raw, err := base64.RawURLEncoding.DecodeString(id)
	require.NoError(t, err)
	assert.Len(t, raw, 16)
}

func TestNewRowIDsDistinct(t *testing.T) {
	ids := NewRowIDs(1000)
	require.Len(t, ids, 1000)

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		_, dup := seen[id]
		require.False(t, dup, "duplicate row id %s", id)
		seen[id] = struct{}{}
	}
}
