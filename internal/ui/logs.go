package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/termstack/internal/config"
	"github.com/five82/termstack/internal/logtail"
	"github.com/five82/termstack/internal/value"
)

// lineRows turns text lines into string rows.
func lineRows(lines []string) value.Dataset {
	rows := make(value.Dataset, len(lines))
	for i, l := range lines {
		rows[i] = value.String(l)
	}
	return rows
}

// datasetLines flattens a fetched dataset into log lines. String rows are
// split on newlines; other rows are shown as compact JSON.
func datasetLines(rows value.Dataset) []string {
	var out []string
	for _, r := range rows {
		if r.Kind() == value.KindString {
			out = append(out, strings.Split(strings.TrimRight(r.AsString(), "\n"), "\n")...)
			continue
		}
		out = append(out, r.String())
	}
	return out
}

// updateViewport resizes the viewport of a logs or text page and rebuilds its
// content when the rows changed since the last render.
func (m *Model) updateViewport(pv *pageView) {
	width := max(m.width-2, 1)
	height := max(m.height-chromeHeight-2, 1)
	vp := &pv.viewport
	resized := vp.Width != width || vp.Height != height
	vp.Width = width
	vp.Height = height

	if !resized && pv.rendered == pv.version && pv.rendered != 0 {
		return
	}

	var content string
	if pv.page.View.Kind == config.ViewText {
		content = m.textContent(pv, width)
	} else {
		content = m.logContent(pv, width)
	}
	vp.SetContent(content)
	pv.rendered = pv.version

	if pv.follow {
		vp.GotoBottom()
	}
}

// logContent renders the projected lines of a logs page.
func (m Model) logContent(pv *pageView, width int) string {
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
	indices, _ := pv.visible()
	rows := pv.proj.Rows()
	if len(indices) == 0 {
		switch {
		case len(rows) > 0:
			return styles.MutedText.Render("No lines match the search")
		case pv.stream != nil && !pv.stream.done:
			return styles.MutedText.Render("Waiting for output...")
		default:
			return styles.MutedText.Render("No output")
		}
	}

	numWidth := 0
	if pv.page.View.LineNumbers {
		numWidth = len(fmt.Sprint(len(rows)))
	}
	textWidth := max(width-numWidth-1, 1)
	wrapStyle := lipgloss.NewStyle().Width(textWidth)

	var b strings.Builder
	for i, idx := range indices {
		if i > 0 {
			b.WriteString("\n")
		}
		line := strings.ReplaceAll(rows[idx].String(), "\t", "    ")
		style := m.levelStyle(styles, logtail.DetectLevel(line))

		var body []string
		if pv.wrap {
			body = strings.Split(wrapStyle.Render(line), "\n")
		} else {
			body = []string{truncate(line, textWidth)}
		}
		for j, seg := range body {
			if j > 0 {
				b.WriteString("\n")
			}
			if numWidth > 0 {
				num := ""
				if j == 0 {
					num = fmt.Sprint(idx + 1)
				}
				b.WriteString(styles.FaintText.Render(fmt.Sprintf("%*s ", numWidth, num)))
			}
			b.WriteString(style.Render(strings.TrimRight(seg, " ")))
		}
	}
	return b.String()
}

// levelStyle colors a line by its detected severity.
func (m Model) levelStyle(styles Styles, level logtail.Level) lipgloss.Style {
	switch level {
	case logtail.LevelError:
		return styles.DangerText
	case logtail.LevelWarn:
		return styles.WarningText
	case logtail.LevelDebug:
		return styles.FaintText
	default:
		return styles.Text
	}
}
