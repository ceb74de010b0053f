package batch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/scanprep/internal/pipeline"
)

func TestFormatJSONMarksFailures(t *testing.T) {
	results := []*pipeline.ImageResult{{Width: 10, Height: 5, Text: "hello\n"}, nil}
	out, err := formatBatchResults(results, []string{"a.png", "b.png"}, "json")
	require.NoError(t, err)

	var decoded struct {
		Images []struct {
			File   string         `json:"file"`
			OCR    map[string]any `json:"ocr"`
			Failed bool           `json:"failed"`
		} `json:"images"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded.Images, 2)
	assert.Equal(t, "a.png", decoded.Images[0].File)
	assert.Equal(t, "hello\n", decoded.Images[0].OCR["text"])
	assert.False(t, decoded.Images[0].Failed)
	assert.Nil(t, decoded.Images[1].OCR)
	assert.True(t, decoded.Images[1].Failed)
}

func TestFormatTextSkipsFailedBodies(t *testing.T) {
	results := []*pipeline.ImageResult{nil, {Text: "no newline"}}
	out, err := formatBatchResults(results, []string{"a.png", "b.png"}, "")
	require.NoError(t, err)
	assert.Equal(t, "# a.png\n\n# b.png\nno newline\n", out)
}

func TestFormatUnknown(t *testing.T) {
	_, err := formatBatchResults(nil, nil, "xml")
	assert.Error(t, err)
}
