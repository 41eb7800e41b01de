// Package json provides high-performance JSON serialization for Strata
// built on goccy/go-json, plus decoding of the private-use-area sentinel
// encoding used by extracted item files to round-trip non-JSON types.
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
)

// Number is the exact-precision number representation produced by the
// decoders in this package.
type Number = gojson.Number

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// GetBuffer gets a pooled bytes.Buffer
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 1024*1024 { // Don't pool very large buffers
		return
	}
	bufferPool.Put(buf)
}

// Marshal is a high-performance drop-in replacement for json.Marshal
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is a high-performance drop-in replacement for json.Unmarshal
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// NewEncoder creates an encoder writing to w with HTML escaping disabled
func NewEncoder(w io.Writer) *gojson.Encoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc
}

// NewDecoder creates a decoder reading from r with number preservation.
// UseNumber keeps integers exact instead of forcing float64.
func NewDecoder(r io.Reader) *gojson.Decoder {
	dec := gojson.NewDecoder(r)
	dec.UseNumber()
	return dec
}

// UnmarshalItems decodes one line of an extracted items file. A line is
// either a JSON array of items or a single item object.
func UnmarshalItems(line []byte) ([]interface{}, error) {
	trimmed := bytes.TrimLeft(line, " \t")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []interface{}
		if err := unmarshalUseNumber(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var item interface{}
	if err := unmarshalUseNumber(trimmed, &item); err != nil {
		return nil, err
	}
	return []interface{}{item}, nil
}

func unmarshalUseNumber(data []byte, v interface{}) error {
	dec := NewDecoder(bytes.NewReader(data))
	return dec.Decode(v)
}
