package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// XLSXSheet is the name of the single worksheet WriteXLSX produces.
const XLSXSheet = "Sheet1"

// XLSXContentType is the media type of an xlsx workbook.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteXLSX writes t as a workbook with one sheet: a header row followed by
// the rows. Numeric columns are stored as numbers when the cell parses.
func WriteXLSX(w io.Writer, t Table) error {
	if err := t.Validate(); err != nil {
		return err
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(XLSXSheet, "A1", &header); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}
	for r, row := range t.Rows {
		cells := make([]any, len(row))
		for c, cell := range row {
			cells[c] = cell
			if t.numeric(c) {
				if v, err := strconv.ParseFloat(cell, 64); err == nil {
					cells[c] = v
				}
			}
		}
		addr, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(XLSXSheet, addr, &cells); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", r, err)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
