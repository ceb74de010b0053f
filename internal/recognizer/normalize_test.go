package recognizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeForms(t *testing.T) {
	decomposed := "Cafe\u0301"
	assert.Equal(t, "Caf\u00e9", Normalize(decomposed, NormalizeNFC))
	assert.Equal(t, decomposed, Normalize(decomposed, NormalizeNone))

	// NFKC folds compatibility ligatures, NFC does not.
	assert.Equal(t, "office", Normalize("o\ufb03ce", NormalizeNFKC))
	assert.Equal(t, "o\ufb03ce", Normalize("o\ufb03ce", NormalizeNFC))
}

func TestNormalizeStripsInvisibleCharacters(t *testing.T) {
	in := "he\u200bllo\r\nwor\x00ld\n\tend\ufeff"
	assert.Equal(t, "hello\nworld\n\tend", Normalize(in, NormalizeNFC))
	assert.Empty(t, Normalize("", NormalizeNFKC))
}

func TestParseNormalization(t *testing.T) {
	tests := map[string]string{"": NormalizeNFC, "NFC": NormalizeNFC, " nfkc ": NormalizeNFKC, "none": NormalizeNone}
	for in, want := range tests {
		got, err := ParseNormalization(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseNormalization("nfd")
	assert.Error(t, err)
}
