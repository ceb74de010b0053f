package recognizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t640\t480\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t36\t92\t120\t30\t96.52\tHello\n" +
	"5\t1\t1\t1\t1\t2\t170\t92\t140\t30\t91\tworld \n" +
	"5\t1\t1\t1\t2\t1\t36\t140\t10\t30\t12.5\t \n"

func TestParseTSV(t *testing.T) {
	tokens, err := ParseTSV(strings.NewReader(sampleTSV))
	require.NoError(t, err)
	require.Len(t, tokens, 2)

	assert.Equal(t, Token{
		Level: 5, Page: 1, Block: 1, Paragraph: 1, Line: 1, Word: 1,
		Left: 36, Top: 92, Width: 120, Height: 30, Confidence: 96.52, Text: "Hello",
	}, tokens[0])
	assert.Equal(t, "world", tokens[1].Text)
	assert.Equal(t, 2, tokens[1].Word)
}

func TestParseTSVRejectsGarbage(t *testing.T) {
	_, err := ParseTSV(strings.NewReader("5\t1\tx\t1\t1\t1\t1\t1\t1\t1\t90\tword\n"))
	assert.Error(t, err)

	_, err = ParseTSV(strings.NewReader("5\t1\t1\t1\t1\t1\t1\t1\t1\t1\thigh\tword\n"))
	assert.Error(t, err)
}

func TestParseBoxes(t *testing.T) {
	in := "H 10 20 30 40 0\r\n\né 31 20 45 40 0\nab 1 2 3 4 1\n"
	boxes, err := ParseBoxes(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, boxes, 3)
	assert.Equal(t, CharBox{Char: "H", X1: 10, Y1: 20, X2: 30, Y2: 40}, boxes[0])
	assert.Equal(t, "é", boxes[1].Char)
	assert.Equal(t, "ab", boxes[2].Char)
	assert.Equal(t, 1, boxes[2].Page)

	_, err = ParseBoxes(strings.NewReader("H 10 20 30\n"))
	assert.Error(t, err)
	_, err = ParseBoxes(strings.NewReader("H 10 20 30 forty 0\n"))
	assert.Error(t, err)
}

func TestParseLanguages(t *testing.T) {
	in := "List of available languages in \"/usr/share/tessdata/\" (3):\neng\ndeu\n\nosd\n"
	assert.Equal(t, []string{"eng", "deu", "osd"}, ParseLanguages(strings.NewReader(in)))
	assert.Empty(t, ParseLanguages(strings.NewReader("")))
}

func TestParseEngineFlags(t *testing.T) {
	flags, err := ParseEngineFlags("--psm 6 --oem 1 -c preserve_interword_spaces=1 -c tessedit_char_whitelist=")
	require.NoError(t, err)
	assert.True(t, flags.HasPSM)
	assert.Equal(t, 6, flags.PSM)
	assert.True(t, flags.HasOEM)
	assert.Equal(t, 1, flags.OEM)
	assert.Equal(t, map[string]string{"preserve_interword_spaces": "1", "tessedit_char_whitelist": ""}, flags.Variables)

	empty, err := ParseEngineFlags("")
	require.NoError(t, err)
	assert.False(t, empty.HasPSM)
	assert.Empty(t, empty.Variables)

	for _, bad := range []string{"--psm", "--psm six", "-c novalue", "-c =1", "--dpi 300"} {
		_, err := ParseEngineFlags(bad)
		assert.Error(t, err, bad)
	}
}
