package ui

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/five82/termstack/internal/value"
)

var (
	jsonKeyPattern = regexp.MustCompile(`^(\s*)("(?:[^"\\]|\\.)*")(\s*:)(.*)$`)
	yamlKeyPattern = regexp.MustCompile(`^(\s*(?:- )?)([^\s:#"'][^:#]*?)(:)(\s.*|)$`)
)

// textDocument formats the rows of a text page. A single string row is shown
// verbatim; structured data is printed as YAML or indented JSON.
func textDocument(rows value.Dataset, syntax string) (string, string) {
	if len(rows) == 1 && rows[0].Kind() == value.KindString {
		return rows[0].AsString(), ""
	}
	var doc value.Value
	if len(rows) == 1 {
		doc = rows[0]
	} else {
		doc = value.Array(rows...)
	}
	if strings.EqualFold(syntax, "yaml") {
		out, err := yaml.Marshal(doc.ToAny())
		if err == nil {
			return strings.TrimRight(string(out), "\n"), "yaml"
		}
	}
	return doc.Pretty(), "json"
}

// textContent renders a text page for the viewport.
func (m Model) textContent(pv *pageView, width int) string {
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
	indices, _ := pv.visible()
	all := pv.proj.Rows()
	rows := make(value.Dataset, 0, len(indices))
	for _, i := range indices {
		rows = append(rows, all[i])
	}
	if len(rows) == 0 {
		return styles.MutedText.Render("No content")
	}

	doc, syntax := textDocument(rows, pv.page.View.Syntax)
	lines := strings.Split(doc, "\n")

	numWidth := 0
	if pv.page.View.LineNumbers {
		numWidth = len(fmt.Sprint(len(lines)))
	}
	textWidth := max(width-numWidth-1, 1)
	wrapStyle := lipgloss.NewStyle().Width(textWidth)

	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteString("\n")
		}
		line = strings.ReplaceAll(line, "\t", "    ")
		var segs []string
		if pv.wrap {
			segs = strings.Split(wrapStyle.Render(line), "\n")
		} else {
			segs = []string{truncate(line, textWidth)}
		}
		for j, seg := range segs {
			if j > 0 {
				b.WriteString("\n")
			}
			if numWidth > 0 {
				num := ""
				if j == 0 {
					num = fmt.Sprint(i + 1)
				}
				b.WriteString(styles.FaintText.Render(fmt.Sprintf("%*s ", numWidth, num)))
			}
			seg = strings.TrimRight(seg, " ")
			if j == 0 {
				b.WriteString(m.highlight(styles, seg, syntax))
			} else {
				b.WriteString(styles.Text.Render(seg))
			}
		}
	}
	return b.String()
}

// highlight colors the key of a JSON or YAML line.
func (m Model) highlight(styles Styles, line, syntax string) string {
	var pattern *regexp.Regexp
	switch syntax {
	case "json":
		pattern = jsonKeyPattern
	case "yaml":
		pattern = yamlKeyPattern
	default:
		return styles.Text.Render(line)
	}
	parts := pattern.FindStringSubmatch(line)
	if parts == nil {
		return styles.Text.Render(line)
	}
	return styles.Text.Render(parts[1]) +
		styles.AccentText.Render(parts[2]) +
		styles.FaintText.Render(parts[3]) +
		styles.Text.Render(parts[4])
}
