package json

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalItemsSingleObject(t *testing.T) {
	items, err := UnmarshalItems([]byte(`{"a": 1}`))
	require.NoError(t, err)
	require.Len(t, items, 1)

	m, ok := items[0].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, m, "a")
}

func TestUnmarshalItemsArray(t *testing.T) {
	items, err := UnmarshalItems([]byte(`[{"a": 1}, {"b": 2}, 3]`))
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestUnmarshalItemsUsesNumbers(t *testing.T) {
	items, err := UnmarshalItems([]byte(`{"big": 9007199254740993}`))
	require.NoError(t, err)

	m := items[0].(map[string]interface{})
	n, ok := m["big"].(Number)
	require.True(t, ok, "integers must survive as json.Number, got %T", m["big"])
	i, err := n.Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740993), i)
}

func TestUnmarshalItemsMalformed(t *testing.T) {
	_, err := UnmarshalItems([]byte(`{"a":`))
	assert.Error(t, err)
}

func TestMayHavePUA(t *testing.T) {
	assert.False(t, MayHavePUA([]byte(`{"a": 1}`)))
	assert.True(t, MayHavePUA([]byte("{\"ts\": \"2024-01-15T10:00:00Z\"}")))
}

func TestDecodePUADateTime(t *testing.T) {
	v := DecodePUA("2024-01-15T10:30:00.123456Z")
	ts, ok := v.(time.Time)
	require.True(t, ok)
	assert.Equal(t, 2024, ts.Year())
	assert.Equal(t, 123456000, ts.Nanosecond())
}

func TestDecodePUADate(t *testing.T) {
	v := DecodePUA("2024-01-15")
	d, ok := v.(Date)
	require.True(t, ok)
	assert.Equal(t, time.January, d.Month())
}

func TestDecodePUAUUID(t *testing.T) {
	id := uuid.New()
	v := DecodePUA("" + id.String())
	got, ok := v.(uuid.UUID)
	require.True(t, ok)
	assert.Equal(t, id, got)
}

func TestDecodePUADecimalStaysText(t *testing.T) {
	assert.Equal(t, "128.67", DecodePUA("128.67"))
}

func TestDecodePUABytes(t *testing.T) {
	v := DecodePUA("6465616462656566")
	assert.Equal(t, []byte("deadbeef"), v)

	v = DecodePUA("ZGVhZGJlZWY=")
	assert.Equal(t, []byte("deadbeef"), v)
}

func TestDecodePUAPassthrough(t *testing.T) {
	assert.Equal(t, "plain", DecodePUA("plain"))
	assert.Equal(t, 42, DecodePUA(42))
	assert.Nil(t, DecodePUA(nil))
}

func TestDecodePUAUnparseablePayload(t *testing.T) {
	// a datetime sentinel with garbage degrades to the text form
	assert.Equal(t, "not-a-time", DecodePUA("not-a-time"))
}

func TestGetBufferReturnsResetBuffer(t *testing.T) {
	buf := GetBuffer()
	buf.WriteString("leftover")
	PutBuffer(buf)

	got := GetBuffer()
	assert.Zero(t, got.Len())
	PutBuffer(got)
}

func TestNewEncoderAppendsNewline(t *testing.T) {
	buf := GetBuffer()
	defer PutBuffer(buf)

	require.NoError(t, NewEncoder(buf).Encode(map[string]interface{}{"a": 1}))
	assert.Equal(t, "{\"a\":1}\n", buf.String())
}
