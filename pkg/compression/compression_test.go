package compression

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtension(t *testing.T) {
	assert.Equal(t, "", None.Extension())
	assert.Equal(t, ".gz", Gzip.Extension())
	assert.Equal(t, ".zst", Zstd.Extension())
}

func TestRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte(`{"a": 1, "b": "hello"}`+"\n"), 200)

	for _, alg := range []Algorithm{None, Gzip, Zstd} {
		t.Run(string(alg), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(&buf, alg)
			require.NoError(t, err)
			_, err = w.Write(payload)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			r, err := NewReader(bytes.NewReader(buf.Bytes()), alg)
			require.NoError(t, err)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			require.NoError(t, r.Close())

			assert.Equal(t, payload, got)
		})
	}
}

func TestCompressedSmaller(t *testing.T) {
	payload := bytes.Repeat([]byte("repetitive line of text\n"), 500)

	var buf bytes.Buffer
	w, err := NewWriter(&buf, Gzip)
	require.NoError(t, err)
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Less(t, buf.Len(), len(payload))
}

func TestUnknownAlgorithm(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewWriter(&buf, Algorithm("lz4"))
	assert.Error(t, err)
	_, err = NewReader(&buf, Algorithm("lz4"))
	assert.Error(t, err)
}
