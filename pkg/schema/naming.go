package schema

import (
	"strings"
	"unicode"
)

// PathSeparator joins nested field paths and child table names.
const PathSeparator = "__"

// Naming is the snake_case naming convention applied to every identifier
// entering the schema. It is deterministic: the same source identifier
// always maps to the same normalized name.
type Naming struct{}

// NormalizeIdentifier converts an identifier to snake_case, replacing
// characters a destination cannot accept with underscores.
func (Naming) NormalizeIdentifier(name string) string {
	if name == "" {
		return name
	}
	var b strings.Builder
	b.Grow(len(name) + 4)
	var prev rune
	for i, r := range name {
		switch {
		case unicode.IsUpper(r):
			if i > 0 && prev != '_' && !unicode.IsUpper(prev) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '.':
			if prev != '_' && b.Len() > 0 {
				b.WriteByte('_')
				r = '_'
			}
		default:
			// drop anything else
			continue
		}
		prev = r
	}
	// leading underscores are significant (system columns); trailing ones
	// are separators left over from dropped characters
	return strings.TrimRight(b.String(), "_")
}

// NormalizePath normalizes each segment of a composed path, keeping the
// separator intact.
func (n Naming) NormalizePath(path string) string {
	parts := strings.Split(path, PathSeparator)
	for i, p := range parts {
		parts[i] = n.NormalizeIdentifier(p)
	}
	return strings.Join(parts, PathSeparator)
}

// Compose joins identifier parts into a nested path.
func (Naming) Compose(parts ...string) string {
	return strings.Join(parts, PathSeparator)
}
