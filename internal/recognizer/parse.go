package recognizer

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const tsvColumns = 12

// ParseTSV reads Tesseract TSV output. The header row and rows without text
// are skipped.
func ParseTSV(r io.Reader) ([]Token, error) {
	var tokens []Token
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		row := strings.TrimRight(sc.Text(), "\r")
		if row == "" || strings.HasPrefix(row, "level\t") {
			continue
		}
		fields := strings.SplitN(row, "\t", tsvColumns)
		if len(fields) < tsvColumns {
			continue
		}
		text := strings.TrimSpace(fields[11])
		if text == "" {
			continue
		}
		var ints [10]int
		for i := range ints {
			v, err := strconv.Atoi(strings.TrimSpace(fields[i]))
			if err != nil {
				return nil, fmt.Errorf("tsv line %d column %d: %w", line, i+1, err)
			}
			ints[i] = v
		}
		conf, err := strconv.ParseFloat(strings.TrimSpace(fields[10]), 64)
		if err != nil {
			return nil, fmt.Errorf("tsv line %d confidence: %w", line, err)
		}
		tokens = append(tokens, Token{
			Level: ints[0], Page: ints[1], Block: ints[2], Paragraph: ints[3],
			Line: ints[4], Word: ints[5],
			Left: ints[6], Top: ints[7], Width: ints[8], Height: ints[9],
			Confidence: conf,
			Text:       text,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read tsv: %w", err)
	}
	return tokens, nil
}

// ParseBoxes reads Tesseract box output ("<char> x1 y1 x2 y2 page"). The
// character is everything before the last five fields so that multi-byte or
// space-containing glyphs survive.
func ParseBoxes(r io.Reader) ([]CharBox, error) {
	var boxes []CharBox
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		row := strings.TrimRight(sc.Text(), "\r\n")
		if strings.TrimSpace(row) == "" {
			continue
		}
		fields := strings.Fields(row)
		if len(fields) < 6 {
			return nil, fmt.Errorf("box line %d: want 6 fields, got %d", line, len(fields))
		}
		nums := fields[len(fields)-5:]
		var v [5]int
		for i, f := range nums {
			n, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("box line %d: %w", line, err)
			}
			v[i] = n
		}
		// Cut the character from the raw row so inner spacing is kept.
		end := len(row)
		for range 5 {
			end = strings.LastIndexAny(strings.TrimRight(row[:end], " \t"), " \t")
		}
		char := strings.TrimRight(row[:max(end, 0)], " \t")
		if char == "" {
			char = fields[0]
		}
		boxes = append(boxes, CharBox{Char: char, X1: v[0], Y1: v[1], X2: v[2], Y2: v[3], Page: v[4]})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read boxes: %w", err)
	}
	return boxes, nil
}

// ParseLanguages reads the output of "tesseract --list-langs".
func ParseLanguages(r io.Reader) []string {
	var langs []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		l := strings.TrimSpace(sc.Text())
		if l == "" || strings.HasPrefix(l, "List of available languages") {
			continue
		}
		langs = append(langs, l)
	}
	return langs
}

// EngineFlags is the structured form of a Tesseract-style configuration
// string such as "--psm 6 -c preserve_interword_spaces=1".
type EngineFlags struct {
	PSM       int
	HasPSM    bool
	OEM       int
	HasOEM    bool
	Variables map[string]string
}

// ParseEngineFlags parses the flags understood by in-process engines.
func ParseEngineFlags(config string) (EngineFlags, error) {
	flags := EngineFlags{Variables: map[string]string{}}
	fields := strings.Fields(config)
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		next := func() (string, error) {
			if i+1 >= len(fields) {
				return "", fmt.Errorf("flag %s needs a value", f)
			}
			i++
			return fields[i], nil
		}
		switch f {
		case "--psm", "-psm":
			v, err := next()
			if err != nil {
				return flags, err
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				return flags, fmt.Errorf("--psm: %w", err)
			}
			flags.PSM, flags.HasPSM = n, true
		case "--oem":
			v, err := next()
			if err != nil {
				return flags, err
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				return flags, fmt.Errorf("--oem: %w", err)
			}
			flags.OEM, flags.HasOEM = n, true
		case "-c":
			v, err := next()
			if err != nil {
				return flags, err
			}
			key, val, ok := strings.Cut(v, "=")
			if !ok || key == "" {
				return flags, fmt.Errorf("-c %q: want key=value", v)
			}
			flags.Variables[key] = val
		default:
			return flags, fmt.Errorf("unsupported engine flag %q", f)
		}
	}
	return flags, nil
}
