package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/five82/termstack/internal/config"
	"github.com/five82/termstack/internal/provider"
	"github.com/five82/termstack/internal/scope"
	"github.com/five82/termstack/internal/state"
)

const breadcrumbSep = " › "

// renderMain renders the full UI: header, command bar, page box and status
// line.
func (m Model) renderMain() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	b.WriteString(m.renderContent())
	b.WriteString("\n")
	b.WriteString(m.renderStatusLine())
	return b.String()
}

// pageTitle renders the page title against the given context.
func (m Model) pageTitle(page *config.Page, view *scope.View) string {
	if page == nil {
		return ""
	}
	if page.Title == "" {
		return page.ID
	}
	if view == nil {
		view = m.resolver.Freeze()
	}
	title, err := m.engine.Render(page.Title, view)
	if err != nil {
		return page.Title + " " + errorMarker
	}
	return strings.TrimSpace(title)
}

// breadcrumb lists the titles of the navigation trail, oldest first.
func (m Model) breadcrumb() []string {
	frames := m.nav.Stack().Frames()
	out := make([]string, 0, len(frames)+1)
	for _, f := range frames {
		p, _ := m.cfg.Page(f.PageID)
		out = append(out, m.pageTitle(p, f.Scope))
	}
	return append(out, m.pageTitle(m.nav.Page(), nil))
}

// renderHeader renders the app name, the breadcrumb and the data status.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	name := m.cfg.App.Name
	if name == "" {
		name = "termstack"
	}
	left := bg.Render(name, styles.Title)

	crumbs := m.breadcrumb()
	if m.width < LayoutCompactWidth && len(crumbs) > 1 {
		crumbs = crumbs[len(crumbs)-1:]
	}
	parts := make([]string, len(crumbs))
	for i, c := range crumbs {
		style := styles.MutedText
		if i == len(crumbs)-1 {
			style = styles.Text.Bold(true)
		}
		parts[i] = bg.Render(c, style)
	}
	left += bg.Bullet(styles.FaintText) + strings.Join(parts, bg.Render(breadcrumbSep, styles.FaintText))

	right := m.renderDataStatus(styles, bg)

	gap := m.width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
	content := left
	if gap > 0 {
		content += bg.Spaces(gap) + right
	}
	return styles.Header.Width(m.width).MaxWidth(m.width).Render(content)
}

// renderDataStatus describes the freshness of the active page's data.
func (m Model) renderDataStatus(styles Styles, bg BgStyle) string {
	pv := m.current()
	if pv == nil {
		return ""
	}
	snap := m.store.Snapshot(pv.page.ID)

	if st := pv.stream; st != nil {
		switch {
		case !st.done:
			return bg.Render(m.spinner.View()+" streaming", styles.AccentText)
		case st.err != nil:
			return bg.Render("stream failed", styles.DangerText)
		default:
			return bg.Render("stream ended", styles.MutedText)
		}
	}

	var parts []string
	if snap.Loading {
		parts = append(parts, bg.Render(m.spinner.View()+" loading", styles.AccentText))
	}
	switch {
	case snap.IsOffline():
		parts = append(parts, bg.Render(fmt.Sprintf("offline (%d failures)", snap.ConsecutiveFailures), styles.DangerText))
	case snap.LastError != nil:
		parts = append(parts, bg.Render("refresh failed", styles.WarningText))
	}
	if !snap.FetchedAt.IsZero() {
		updated := "updated " + humanize.Time(snap.FetchedAt)
		if snap.Cached {
			updated += " (cached)"
		}
		parts = append(parts, bg.Render(updated, styles.FaintText))
	}
	return strings.Join(parts, bg.Bullet(styles.FaintText))
}

// renderCommandBar renders key hints for the active page.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	type cmd struct{ key, desc string }
	var commands []cmd

	pv := m.current()
	if pv != nil {
		switch pv.page.View.Kind {
		case config.ViewLogs:
			commands = append(commands, cmd{"f", ternary(pv.follow, "Pause", "Follow")}, cmd{"/", "Search"}, cmd{"w", "Wrap"})
		case config.ViewText:
			commands = append(commands, cmd{"j/k", "Scroll"}, cmd{"w", "Wrap"})
		default:
			commands = append(commands, cmd{"j/k", "Navigate"}, cmd{"/", "Search"}, cmd{"s/S", "Sort"})
			if pv.page.Next != nil {
				commands = append(commands, cmd{"enter", "Open"})
			}
		}
		for _, a := range pv.page.Actions {
			commands = append(commands, cmd{a.Key, a.Name})
		}
	}
	if m.nav.CanGoBack() {
		commands = append(commands, cmd{"esc", "Back"})
	}
	commands = append(commands, cmd{"r", "Refresh"}, cmd{"?", "More"})

	colon := bg.Sep(":")
	sep := bg.Spaces(2)

	segments := make([]string, 0, len(commands)+1)
	for _, c := range commands {
		segments = append(segments,
			bg.Render(c.key, styles.AccentText)+colon+bg.Render(c.desc, styles.MutedText))
	}
	segments = append(segments,
		bg.Render("T", styles.AccentText)+colon+bg.Render(m.theme.Name, styles.FaintText))

	return styles.Header.Width(m.width).MaxWidth(m.width).Render(strings.Join(segments, sep))
}

// renderContent renders the page box.
func (m Model) renderContent() string {
	pv := m.current()
	height := m.height - chromeHeight
	if pv == nil {
		return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center, "")
	}
	title := m.pageTitle(pv.page, nil)
	if pv.page.View.Kind == config.ViewTable || pv.page.View.Kind == "" {
		title = fmt.Sprintf("%s (%d)", title, pv.proj.Len())
	}

	inner := m.width - 2
	innerHeight := height - 2
	snap := m.store.Snapshot(pv.page.ID)

	var content string
	switch {
	case showsError(pv, snap):
		content = m.renderError(snap, inner, innerHeight)
	case !snap.HasData && snap.Loading && pv.stream == nil:
		content = m.renderPlaceholder(m.spinner.View()+" Loading...", inner, innerHeight)
	default:
		switch pv.page.View.Kind {
		case config.ViewLogs, config.ViewText:
			content = pv.viewport.View()
		default:
			content = m.renderTable(pv, inner, innerHeight)
		}
	}
	return m.renderTitledBox(title, content, m.width, height)
}

// showsError reports whether the error panel replaces the page data: the
// page has no data to show, or has been failing long enough to be offline.
func showsError(pv *pageView, snap state.Snapshot) bool {
	return snap.LastError != nil && !pv.errDismissed && (!snap.HasData || snap.IsOffline())
}

// renderPlaceholder centers a muted message in the box.
func (m Model) renderPlaceholder(msg string, width, height int) string {
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
		styles.MutedText.Render(msg),
		lipgloss.WithWhitespaceBackground(lipgloss.Color(m.theme.FocusBg)))
}

// renderError replaces the data area with the fetch error and the retry
// hint.
func (m Model) renderError(snap state.Snapshot, width, height int) string {
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)

	heading := "Failed to load data"
	if fe := provider.AsFetchError(snap.LastError); fe != nil {
		heading = "Failed to load data: " + fe.Kind.String()
	}
	detail := lipgloss.NewStyle().
		Width(min(width-4, 100)).
		Background(lipgloss.Color(m.theme.FocusBg)).
		Foreground(lipgloss.Color(m.theme.Text)).
		Render(snap.LastError.Error())

	hint := styles.AccentText.Render("r") + styles.MutedText.Render(" retry   ") +
		styles.AccentText.Render("esc") + styles.MutedText.Render(" dismiss")
	if snap.ConsecutiveFailures > 1 {
		hint += styles.FaintText.Render(fmt.Sprintf("   %d consecutive failures", snap.ConsecutiveFailures))
	}

	body := lipgloss.JoinVertical(lipgloss.Center,
		styles.DangerText.Render(heading),
		"",
		detail,
		"",
		hint,
	)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, body,
		lipgloss.WithWhitespaceBackground(lipgloss.Color(m.theme.FocusBg)))
}

// renderStatusLine renders the search prompt, or the row count, search and
// sort state followed by the latest notification.
func (m Model) renderStatusLine() string {
	bg := NewBgStyle(m.theme.Background)
	styles := m.theme.Styles().WithBackground(m.theme.Background)
	pv := m.current()
	if pv == nil {
		return bg.FillLine("", m.width)
	}

	if pv.searching {
		prompt := pv.input.View() + bg.Space() + bg.Render(ternary(pv.caseSensitive, "[Aa]", "[aa]"), styles.FaintText)
		return bg.FillLine(prompt, m.width)
	}

	var parts []string
	switch pv.page.View.Kind {
	case config.ViewLogs:
		status := fmt.Sprintf("%d lines", pv.proj.Len())
		if st := pv.stream; st != nil && st.buf.Dropped() > 0 {
			status += fmt.Sprintf(" (%d dropped)", st.buf.Dropped())
		}
		parts = append(parts, bg.Render(status, styles.FaintText))
		parts = append(parts, bg.Render("follow "+ternary(pv.follow, "on", "off"), styles.FaintText))
	case config.ViewText:
		parts = append(parts, bg.Render(fmt.Sprintf("%d%%", int(pv.viewport.ScrollPercent()*100)), styles.FaintText))
	default:
		total := len(pv.proj.Rows())
		parts = append(parts, bg.Render(fmt.Sprintf("%d/%d rows", pv.proj.Len(), total), styles.FaintText))
		if t := pv.sortTitle(); t != "" {
			parts = append(parts, bg.Render("sort: "+t+" "+ternary(pv.sortDesc, "↓", "↑"), styles.MutedText))
		}
	}

	if q := pv.proj.Query(); !q.Empty() {
		parts = append(parts, bg.Render("/"+truncate(q.Text, 24), styles.AccentText))
		if pv.caseSensitive {
			parts = append(parts, bg.Render("case", styles.FaintText))
		}
		if _, err := pv.visible(); err != nil {
			parts = append(parts, bg.Render("invalid pattern", styles.DangerText))
		}
	}

	if m.notice.text != "" {
		style := styles.Text
		switch m.notice.level {
		case noticeSuccess:
			style = styles.SuccessText
		case noticeWarning:
			style = styles.WarningText
		case noticeError:
			style = styles.DangerText
		}
		parts = append(parts, bg.Render(truncate(singleLine(m.notice.text), max(m.width/2, 20)), style))
	}

	return bg.FillLine(bg.Space()+strings.Join(parts, bg.Bullet(styles.FaintText)), m.width)
}

// renderTitledBox renders content in a box with the title embedded in the
// top border: ┌─── Title ───┐
func (m Model) renderTitledBox(title, content string, width, height int) string {
	borderColorStr := m.theme.BorderFocus
	bgColorStr := m.theme.FocusBg
	bg := NewBgStyle(bgColorStr)
	borderStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(borderColorStr))
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(m.theme.Text))

	innerWidth := width - 2
	title = truncate(title, max(innerWidth-4, 1))
	titleLen := displayWidth(title)
	leftPad := max((innerWidth-titleLen-2)/2, 0)
	rightPad := max(innerWidth-titleLen-2-leftPad, 0)

	topBorder := bg.Render("┌", borderStyle) +
		bg.Render(strings.Repeat("─", leftPad), borderStyle) +
		bg.Render(" "+title+" ", titleStyle) +
		bg.Render(strings.Repeat("─", rightPad), borderStyle) +
		bg.Render("┐", borderStyle)

	bottomBorder := bg.Render("└", borderStyle) +
		bg.Render(strings.Repeat("─", max(innerWidth, 0)), borderStyle) +
		bg.Render("┘", borderStyle)

	contentStyle := lipgloss.NewStyle().Width(innerWidth).MaxWidth(innerWidth).Background(lipgloss.Color(bgColorStr))
	contentLines := strings.Split(content, "\n")
	boxHeight := height - 2

	lines := make([]string, 0, boxHeight)
	for i := range boxHeight {
		var line string
		if i < len(contentLines) {
			line = contentLines[i]
		}
		lines = append(lines,
			bg.Render("│", borderStyle)+
				contentStyle.Render(line)+
				bg.Render("│", borderStyle))
	}

	return topBorder + "\n" + strings.Join(lines, "\n") + "\n" + bottomBorder
}
