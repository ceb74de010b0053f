package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Output formats.
const (
	FormatText = "text"
	FormatCSV  = "csv"
	FormatTSV  = "tsv"
	FormatJSON = "json"
	FormatXML  = "xml"
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

// Formats lists the table and text formats accepted by Write.
var Formats = []string{FormatText, FormatCSV, FormatTSV, FormatJSON, FormatXML, FormatXLSX}

// Binary reports whether format produces binary output that should not be
// written to a terminal.
func Binary(format string) bool {
	return format == FormatXLSX || format == FormatPDF
}

// ParseFormat validates a format name.
func ParseFormat(s string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(s))
	switch f {
	case "", "txt":
		return FormatText, nil
	case "excel", "spreadsheet":
		return FormatXLSX, nil
	}
	for _, known := range append(Formats, FormatPDF) {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// Options tune the writers.
type Options struct {
	Delimiter rune // CSV delimiter; zero means ','
}

// Write emits text or t in format. FormatText writes text verbatim; the
// other formats write t.
func Write(w io.Writer, format, text string, t Table, opts Options) error {
	switch format {
	case FormatText, "":
		return WriteText(w, text)
	case FormatCSV:
		return WriteCSV(w, t, opts.Delimiter)
	case FormatTSV:
		return WriteCSV(w, t, '\t')
	case FormatJSON:
		return WriteJSON(w, t)
	case FormatXML:
		return WriteXML(w, t)
	case FormatXLSX:
		return WriteXLSX(w, t)
	default:
		return fmt.Errorf("format %q cannot be written as a table", format)
	}
}

// WriteText writes text, ending with a newline.
func WriteText(w io.Writer, text string) error {
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	_, err := io.WriteString(w, text)
	return err
}

// WriteCSV writes a header row and all rows.
func WriteCSV(w io.Writer, t Table, delimiter rune) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if delimiter == 0 {
		delimiter = ','
	}
	cw := csv.NewWriter(w)
	cw.Comma = delimiter
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteJSON writes an array of records. Keys follow column order and
// numeric columns become JSON numbers when the cell parses as one.
func WriteJSON(w io.Writer, t Table) error {
	if err := t.Validate(); err != nil {
		return err
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range t.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for c, cell := range row {
			if c > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(t.Columns[c])
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if t.numeric(c) {
				if _, err := strconv.ParseFloat(cell, 64); err == nil && json.Valid([]byte(cell)) {
					buf.WriteString(cell)
					continue
				}
			}
			val, err := json.Marshal(cell)
			if err != nil {
				return err
			}
			buf.Write(val)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	out.WriteByte('\n')
	_, err := w.Write(out.Bytes())
	return err
}

// WriteXML writes <document> with one <item> per row and one element per
// non-empty cell.
func WriteXML(w io.Writer, t Table) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	names := make([]xml.Name, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = xml.Name{Local: xmlName(c)}
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	doc := xml.StartElement{Name: xml.Name{Local: "document"}}
	item := xml.StartElement{Name: xml.Name{Local: "item"}}
	if err := enc.EncodeToken(doc); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := enc.EncodeToken(item); err != nil {
			return err
		}
		for c, cell := range row {
			if cell == "" {
				continue
			}
			if err := enc.EncodeElement(cell, xml.StartElement{Name: names[c]}); err != nil {
				return err
			}
		}
		if err := enc.EncodeToken(item.End()); err != nil {
			return err
		}
	}
	if err := enc.EncodeToken(doc.End()); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return fmt.Errorf("write xml: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// xmlName maps a column header to a valid element name.
func xmlName(s string) string {
	var b strings.Builder
	for i, r := range s {
		valid := r == '_' || unicode.IsLetter(r) || (i > 0 && (unicode.IsDigit(r) || r == '-' || r == '.'))
		if !valid {
			r = '_'
		}
		b.WriteRune(r)
	}
	name := b.String()
	if name == "" || !utf8.ValidString(name) {
		return "field"
	}
	return name
}
