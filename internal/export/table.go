// Package export writes recognition results as text, CSV, JSON, XML, an xlsx
// spreadsheet or a fixed-layout PDF of page images.
package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/scanprep/internal/recognizer"
)

// Table is a rectangular result. Numeric marks columns whose cells are
// emitted as numbers where the format distinguishes types.
type Table struct {
	Columns []string
	Numeric []bool
	Rows    [][]string
}

// Validate checks that every row matches the column count.
func (t Table) Validate() error {
	if len(t.Numeric) != 0 && len(t.Numeric) != len(t.Columns) {
		return fmt.Errorf("table has %d columns but %d numeric flags", len(t.Columns), len(t.Numeric))
	}
	for i, r := range t.Rows {
		if len(r) != len(t.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(r), len(t.Columns))
		}
	}
	return nil
}

func (t Table) numeric(col int) bool {
	return col < len(t.Numeric) && t.Numeric[col]
}

// TokenColumns are the column names of TokenTable.
var TokenColumns = []string{
	"level", "page_num", "block_num", "par_num", "line_num", "word_num",
	"left", "top", "width", "height", "conf", "text",
}

// TokenTable converts recognized tokens to a table.
func TokenTable(tokens []recognizer.Token) Table {
	t := Table{Columns: TokenColumns, Numeric: numericExceptLast(len(TokenColumns))}
	for _, tok := range tokens {
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(tok.Level), strconv.Itoa(tok.Page), strconv.Itoa(tok.Block),
			strconv.Itoa(tok.Paragraph), strconv.Itoa(tok.Line), strconv.Itoa(tok.Word),
			strconv.Itoa(tok.Left), strconv.Itoa(tok.Top), strconv.Itoa(tok.Width), strconv.Itoa(tok.Height),
			strconv.FormatFloat(tok.Confidence, 'f', -1, 64),
			tok.Text,
		})
	}
	return t
}

// BoxColumns are the column names of BoxTable.
var BoxColumns = []string{"char", "x1", "y1", "x2", "y2", "page"}

// BoxTable converts character boxes to a table.
func BoxTable(boxes []recognizer.CharBox) Table {
	t := Table{Columns: BoxColumns, Numeric: []bool{false, true, true, true, true, true}}
	for _, b := range boxes {
		t.Rows = append(t.Rows, []string{
			b.Char, strconv.Itoa(b.X1), strconv.Itoa(b.Y1), strconv.Itoa(b.X2), strconv.Itoa(b.Y2), strconv.Itoa(b.Page),
		})
	}
	return t
}

// TextTable splits text into one "line" row per non-empty line, numbered
// from 1.
func TextTable(text string) Table {
	t := Table{Columns: []string{"line", "text"}, Numeric: []bool{true, false}}
	n := 0
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n++
		t.Rows = append(t.Rows, []string{strconv.Itoa(n), l})
	}
	return t
}

func numericExceptLast(n int) []bool {
	flags := make([]bool, n)
	for i := range n - 1 {
		flags[i] = true
	}
	return flags
}

// WithLeadingColumn returns a copy of t with a text column named name in
// front, filled with value on every row.
func (t Table) WithLeadingColumn(name, value string) Table {
	out := Table{Columns: append([]string{name}, t.Columns...)}
	if len(t.Numeric) > 0 {
		out.Numeric = append([]bool{false}, t.Numeric...)
	}
	out.Rows = make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = append([]string{value}, r...)
	}
	return out
}

// Append adds the rows of other, which must have the same columns.
func (t Table) Append(other Table) (Table, error) {
	if len(t.Columns) == 0 {
		return other, nil
	}
	if strings.Join(t.Columns, "\x00") != strings.Join(other.Columns, "\x00") {
		return t, fmt.Errorf("cannot append table with columns %v to %v", other.Columns, t.Columns)
	}
	t.Rows = append(t.Rows, other.Rows...)
	return t, nil
}
