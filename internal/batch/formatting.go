package batch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/scanprep/internal/export"
	"github.com/MeKo-Tech/scanprep/internal/pipeline"
)

// formatBatchResults formats the batch results in the specified format.
func formatBatchResults(results []*pipeline.ImageResult, imagePaths []string, format string) (string, error) {
	switch format {
	case "json":
		return formatJSON(results, imagePaths)
	case "csv":
		return formatCSV(results, imagePaths)
	case "", "text":
		return formatText(results, imagePaths), nil
	default:
		return "", fmt.Errorf("unsupported batch format %q", format)
	}
}

type imageEntry struct {
	File   string                `json:"file"`
	OCR    *pipeline.ImageResult `json:"ocr"`
	Failed bool                  `json:"failed,omitempty"`
}

func formatJSON(results []*pipeline.ImageResult, imagePaths []string) (string, error) {
	batchResult := struct {
		Images []imageEntry `json:"images"`
	}{Images: make([]imageEntry, len(results))}

	for i, res := range results {
		batchResult.Images[i] = imageEntry{File: imagePaths[i], OCR: res, Failed: res == nil}
	}

	bts, err := json.MarshalIndent(batchResult, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bts) + "\n", nil
}

// formatCSV writes one row per non-empty text line, prefixed by the file.
func formatCSV(results []*pipeline.ImageResult, imagePaths []string) (string, error) {
	t := export.Table{
		Columns: []string{"file", "line", "text"},
		Numeric: []bool{false, true, false},
	}
	for i, res := range results {
		if res == nil {
			continue
		}
		for _, row := range export.TextTable(res.Text).Rows {
			t.Rows = append(t.Rows, append([]string{imagePaths[i]}, row...))
		}
	}

	var output strings.Builder
	if err := export.WriteCSV(&output, t, ','); err != nil {
		return "", err
	}
	return output.String(), nil
}

func formatText(results []*pipeline.ImageResult, imagePaths []string) string {
	var output strings.Builder
	for i, res := range results {
		if i > 0 {
			output.WriteString("\n")
		}
		fmt.Fprintf(&output, "# %s\n", imagePaths[i])
		if res == nil {
			continue
		}
		output.WriteString(res.Text)
		if res.Text != "" && !strings.HasSuffix(res.Text, "\n") {
			output.WriteString("\n")
		}
	}
	return output.String()
}
