package normalize

import (
	"strings"
	"unicode"
)

// Email returns a normalized form of an email address suitable for
// storage and comparisons. Normalization currently trims surrounding
// whitespace and lower-cases the address.
func Email(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// Query collapses runs of whitespace in a search query and trims it.
func Query(q string) string {
	return strings.Join(strings.Fields(q), " ")
}

// Slug turns a title into a lower-case, dash separated identifier. Anything
// that is not a letter or digit becomes a separator.
func Slug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
