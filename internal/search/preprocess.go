package search

import (
	"strings"
)

// Excerpt trims a section body down to a customer-facing snippet of roughly
// maxChars characters, cutting only at line boundaries.
//
// Notes:
//   - Blank lines are dropped so the snippet reads as one block.
//   - Markdown table separator rows ("|---|---|") are skipped; data rows
//     survive because they carry the actual facts.
//   - The snippet may exceed maxChars by at most one line.
func Excerpt(body string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}
	var out []string
	count := 0
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if isTableSeparator(line) {
			continue
		}
		out = append(out, line)
		count += len(line)
		if count > maxChars {
			break
		}
	}
	return strings.Join(out, "\n")
}

// isTableSeparator reports whether line is a Markdown header separator row,
// i.e. pipes around only dashes, colons and spaces.
func isTableSeparator(line string) bool {
	if !strings.HasPrefix(line, "|") {
		return false
	}
	inner := strings.Trim(line, "|")
	inner = strings.ReplaceAll(inner, "-", "")
	inner = strings.ReplaceAll(inner, ":", "")
	inner = strings.ReplaceAll(inner, "|", "")
	return strings.TrimSpace(inner) == ""
}
