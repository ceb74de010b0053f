package pdf

import (
	"fmt"
	"strconv"
	"strings"
)

// ParsePageRange parses a page selection like "1-5" or "1,3,5-7". The empty
// string selects all pages and yields nil. Pages are 1-based and keep the
// order given; duplicates are dropped.
func ParsePageRange(pageRange string) ([]int, error) {
	if strings.TrimSpace(pageRange) == "" {
		return nil, nil
	}

	var pages []int
	seen := map[int]bool{}
	for _, part := range strings.Split(pageRange, ",") {
		tokenPages, err := parseRangeToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		for _, p := range tokenPages {
			if !seen[p] {
				seen[p] = true
				pages = append(pages, p)
			}
		}
	}
	return pages, nil
}

// parseRangeToken parses either a single page token (e.g., "3") or a range token (e.g., "1-5").
func parseRangeToken(part string) ([]int, error) {
	if part == "" {
		return nil, fmt.Errorf("empty page token")
	}
	if strings.Contains(part, "-") {
		rangeParts := strings.Split(part, "-")
		if len(rangeParts) != 2 {
			return nil, fmt.Errorf("invalid range format: %s", part)
		}
		start, err := parsePage(rangeParts[0])
		if err != nil {
			return nil, err
		}
		end, err := parsePage(rangeParts[1])
		if err != nil {
			return nil, err
		}
		if start > end {
			return nil, fmt.Errorf("start page %d greater than end page %d", start, end)
		}
		out := make([]int, 0, end-start+1)
		for i := start; i <= end; i++ {
			out = append(out, i)
		}
		return out, nil
	}
	page, err := parsePage(part)
	if err != nil {
		return nil, err
	}
	return []int{page}, nil
}

func parsePage(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid page number: %s", strings.TrimSpace(s))
	}
	if n < 1 {
		return 0, fmt.Errorf("page numbers start at 1, got %d", n)
	}
	return n, nil
}

// SelectPages resolves pages against a document of count pages. A nil
// selection means every page.
func SelectPages(pages []int, count int) ([]int, error) {
	if len(pages) == 0 {
		all := make([]int, count)
		for i := range all {
			all[i] = i + 1
		}
		return all, nil
	}
	for _, p := range pages {
		if p < 1 || p > count {
			return nil, fmt.Errorf("page %d out of range (document has %d pages)", p, count)
		}
	}
	return pages, nil
}

// PageFileName is the output name of a rendered page.
func PageFileName(page int, format string) string {
	return fmt.Sprintf("page_%d.%s", page, format)
}
