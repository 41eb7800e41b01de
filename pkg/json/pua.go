package json

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Extracted item files encode non-JSON types (timestamps, decimals, byte
// strings) as text values prefixed with a Unicode private-use-area rune.
// The prefix selects the original type; the remainder is its text form.
const puaStart = 0xF026

const (
	puaDecimal = iota
	puaDateTime
	puaDate
	puaUUID
	puaHexBytes
	puaB64Bytes
	puaWei
	puaCount
)

// Date distinguishes a calendar date from a full timestamp after sentinel
// decoding, so schema inference can keep the date type.
type Date struct {
	time.Time
}

// puaMarker is the first two UTF-8 bytes shared by all runes in
// U+F000..U+F03F. Checking for it is a cheap pre-scan over a raw line.
var puaMarker = []byte{0xEF, 0x80}

// MayHavePUA reports whether a raw input line can contain sentinel-encoded
// values. False negatives are impossible; false positives only cost a
// per-value decode attempt.
func MayHavePUA(line []byte) bool {
	return bytes.Contains(line, puaMarker)
}

// DecodePUA decodes a single sentinel-encoded value. Values without a
// sentinel prefix, and non-string values, are returned unchanged.
func DecodePUA(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok || s == "" {
		return v
	}
	r, size := utf8.DecodeRuneInString(s)
	tag := int(r) - puaStart
	if tag < 0 || tag >= puaCount {
		return v
	}
	rest := s[size:]

	switch tag {
	case puaDecimal, puaWei:
		// arbitrary precision values stay in text form
		return rest
	case puaDateTime:
		if t, err := time.Parse(time.RFC3339Nano, rest); err == nil {
			return t
		}
	case puaDate:
		if t, err := time.Parse("2006-01-02", rest); err == nil {
			return Date{t}
		}
	case puaUUID:
		if id, err := uuid.Parse(rest); err == nil {
			return id
		}
	case puaHexBytes:
		if b, err := hex.DecodeString(rest); err == nil {
			return b
		}
	case puaB64Bytes:
		if b, err := base64.StdEncoding.DecodeString(rest); err == nil {
			return b
		}
	}
	// unparseable payloads degrade to their text form
	return rest
}
