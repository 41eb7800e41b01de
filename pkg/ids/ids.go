// Package ids generates load ids and row ids for the normalization engine.
package ids

import (
	"encoding/base64"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// NewLoadID returns a new load id: the current Unix time with microsecond
// fraction, formatted as a sortable decimal string.
func NewLoadID() string {
	now := time.Now()
	return strconv.FormatFloat(float64(now.UnixMicro())/1e6, 'f', 6, 64)
}

// NewRowID returns a 22 character, URL-safe unique row id.
func NewRowID() string {
	id := uuid.New()
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// NewRowIDs returns n fresh row ids.
func NewRowIDs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = NewRowID()
	}
	return out
}
