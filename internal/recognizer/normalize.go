package recognizer

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalization forms accepted for recognized text.
const (
	NormalizeNone = "none"
	NormalizeNFC  = "nfc"
	NormalizeNFKC = "nfkc"
)

// ParseNormalization validates a normalization form name. The empty string
// selects NFC.
func ParseNormalization(form string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(form)); f {
	case "":
		return NormalizeNFC, nil
	case NormalizeNone, NormalizeNFC, NormalizeNFKC:
		return f, nil
	default:
		return "", fmt.Errorf("unknown normalization form %q", form)
	}
}

// Normalize applies a Unicode normalization form to recognized text and drops
// zero-width and control characters that engines sometimes emit. Line
// structure is kept.
func Normalize(s, form string) string {
	if s == "" {
		return s
	}
	switch strings.ToLower(form) {
	case NormalizeNone:
		return s
	case NormalizeNFKC:
		s = norm.NFKC.String(s)
	default:
		s = norm.NFC.String(s)
	}
	return stripInvisible(s)
}

func stripInvisible(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case r == '\u200b', r == '\u200c', r == '\u200d', r == '\ufeff':
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
