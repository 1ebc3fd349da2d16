package ui

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/five82/termstack/internal/config"
)

const ellipsis = "…"

// truncate shortens s to at most limit display cells, adding an ellipsis if
// needed. Wide runes count as two cells.
func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= limit {
		return s
	}
	if limit == 1 {
		return ellipsis
	}
	return runewidth.Truncate(s, limit, ellipsis)
}

// fitCell truncates or pads s to exactly width display cells.
func fitCell(s string, width int, align config.Align) string {
	s = truncate(singleLine(s), width)
	gap := width - runewidth.StringWidth(s)
	if gap <= 0 {
		return s
	}
	switch align {
	case config.AlignRight:
		return strings.Repeat(" ", gap) + s
	case config.AlignCenter:
		left := gap / 2
		return strings.Repeat(" ", left) + s + strings.Repeat(" ", gap-left)
	default:
		return s + strings.Repeat(" ", gap)
	}
}

// singleLine replaces line breaks and tabs so a value fits a table cell.
func singleLine(s string) string {
	if !strings.ContainsAny(s, "\n\r\t") {
		return s
	}
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ").Replace(s)
}

// displayWidth is the number of terminal cells s occupies.
func displayWidth(s string) int {
	return runewidth.StringWidth(s)
}

// titleCase turns a field path like "metadata.creation_timestamp" into a
// column heading ("Creation Timestamp").
func titleCase(path string) string {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "$")
	if i := strings.LastIndex(path, "."); i >= 0 {
		path = path[i+1:]
	}
	path = strings.Trim(path, "[]*'\"")
	words := strings.FieldsFunc(path, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, w := range words {
		lower := strings.ToLower(w)
		words[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(words, " ")
}

// ternary returns a if cond is true, otherwise b.
func ternary(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}
