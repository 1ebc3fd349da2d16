package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/termstack/internal/config"
	"github.com/five82/termstack/internal/value"
)

const (
	// columnGap separates table columns.
	columnGap = 2
	// widthSample is how many leading rows are measured for column widths,
	// in addition to the rows on screen.
	widthSample = 50
	// maxNaturalWidth caps the measured width of a column.
	maxNaturalWidth = 60
)

// tableHeight is the number of data rows that fit in the page box: the box
// borders and the header row are not available.
func (m Model) tableHeight() int {
	return max(m.height-chromeHeight-3, 1)
}

// renderTable renders the projected rows of a table page.
func (m Model) renderTable(pv *pageView, width, height int) string {
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
	bg := NewBgStyle(m.theme.FocusBg)

	if len(pv.columns) == 0 {
		return m.renderPlaceholder("No data", width, height)
	}

	indices, _ := pv.visible()
	rows := pv.proj.Rows()
	bodyHeight := max(height-1, 1)
	pv.clamp(bodyHeight)

	start := min(pv.offset, len(indices))
	end := min(start+bodyHeight, len(indices))

	// Cell text for the window, measured alongside a sample of leading rows.
	window := make([][]string, 0, end-start)
	for _, idx := range indices[start:end] {
		window = append(window, m.rowTexts(pv, rows[idx]))
	}
	sample := window
	for i := 0; i < min(widthSample, len(indices)); i++ {
		if i >= start && i < end {
			continue
		}
		sample = append(sample, m.rowTexts(pv, rows[indices[i]]))
	}
	widths := columnWidths(pv.columns, sample, width)

	lines := make([]string, 0, bodyHeight+1)
	lines = append(lines, m.renderTableHeader(pv, widths, width))

	switch {
	case len(rows) == 0:
		lines = append(lines, bg.FillLine(styles.MutedText.Render(" No rows"), width))
	case len(indices) == 0:
		lines = append(lines, bg.FillLine(styles.MutedText.Render(" No rows match the search"), width))
	}

	view := m.resolver.Freeze()
	for i, idx := range indices[start:end] {
		row := rows[idx]
		selected := start+i == pv.selected

		rowStyle := styles.Text
		rowBg := m.theme.FocusBg
		if rule, ok := m.cells.style(pv.page.View.RowStyle, view.With(row)); ok {
			rowStyle = m.applyStyle(rowStyle, rule)
		}
		if selected {
			rowBg = m.theme.SelectionBg
			rowStyle = rowStyle.Foreground(lipgloss.Color(m.theme.SelectionText))
		}
		rowStyle = rowStyle.Background(lipgloss.Color(rowBg))
		cellBg := NewBgStyle(rowBg)

		var b strings.Builder
		b.WriteString(cellBg.Space())
		for c := range pv.columns {
			if widths[c] == 0 {
				continue
			}
			if c > 0 {
				b.WriteString(cellBg.Spaces(columnGap))
			}
			col := &pv.columns[c]
			style := rowStyle
			if len(col.spec.Style) > 0 && !selected {
				cell := m.cells.value(col, row)
				if rule, ok := m.cells.style(col.spec.Style, view.WithCell(row, cell)); ok {
					style = m.applyStyle(style, rule)
				}
			}
			b.WriteString(style.Render(fitCell(window[i][c], widths[c], col.spec.Align)))
		}
		lines = append(lines, cellBg.FillLine(b.String(), width))
	}

	return strings.Join(lines, "\n")
}

// rowTexts renders every cell of row.
func (m Model) rowTexts(pv *pageView, row value.Value) []string {
	out := make([]string, len(pv.columns))
	for c := range pv.columns {
		out[c] = singleLine(m.cells.text(&pv.columns[c], row))
	}
	return out
}

// renderTableHeader renders column titles with the sort indicator.
func (m Model) renderTableHeader(pv *pageView, widths []int, width int) string {
	bg := NewBgStyle(m.theme.FocusBg)
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
	header := styles.MutedText.Bold(true)

	var b strings.Builder
	b.WriteString(bg.Space())
	for c, col := range pv.columns {
		if widths[c] == 0 {
			continue
		}
		if c > 0 {
			b.WriteString(bg.Spaces(columnGap))
		}
		title := col.title
		style := header
		if c == pv.sortCol {
			title += ternary(pv.sortDesc, " ↓", " ↑")
			style = styles.AccentText.Bold(true)
		}
		b.WriteString(style.Render(fitCell(title, widths[c], col.spec.Align)))
	}
	return bg.FillLine(b.String(), width)
}

// applyStyle layers a style rule onto base.
func (m Model) applyStyle(base lipgloss.Style, rule config.Style) lipgloss.Style {
	if c := m.theme.Color(rule.Color); c != "" {
		base = base.Foreground(lipgloss.Color(c))
	}
	if rule.Bold {
		base = base.Bold(true)
	}
	if rule.Dim {
		base = base.Faint(true)
	}
	return base
}

// columnWidths lays out columns across width. Configured widths are fixed;
// the others take their measured width. When the total does not fit, the
// widest flexible columns shrink first, down to MinColumnWidth, and columns
// that still do not fit are hidden from the right. Spare room goes to the
// last column.
func columnWidths(cols []column, rows [][]string, width int) []int {
	n := len(cols)
	widths := make([]int, n)
	if n == 0 {
		return widths
	}
	fixed := make([]bool, n)
	for c, col := range cols {
		if col.spec.Width > 0 {
			widths[c] = col.spec.Width
			fixed[c] = true
			continue
		}
		w := displayWidth(col.title) + 2 // room for the sort arrow
		for _, r := range rows {
			if c < len(r) {
				w = max(w, displayWidth(r[c]))
			}
		}
		widths[c] = max(min(w, maxNaturalWidth), MinColumnWidth)
	}

	avail := width - 1 - columnGap*(n-1)
	total := 0
	for _, w := range widths {
		total += w
	}

	for total > avail {
		widest := -1
		for c := range widths {
			if fixed[c] || widths[c] <= MinColumnWidth {
				continue
			}
			if widest < 0 || widths[c] > widths[widest] {
				widest = c
			}
		}
		if widest < 0 {
			break
		}
		widths[widest]--
		total--
	}

	// Hide trailing columns that still overflow.
	for c := n - 1; c > 0 && total > avail; c-- {
		total -= widths[c] + columnGap
		widths[c] = 0
	}

	if total < avail {
		last := n - 1
		for last > 0 && widths[last] == 0 {
			last--
		}
		if !fixed[last] {
			widths[last] += avail - total
		}
	}
	return widths
}
