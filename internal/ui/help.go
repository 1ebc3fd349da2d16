package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var helpSectionTitles = []string{"Navigation", "Table", "Logs", "General"}

// renderHelp renders the help overlay.
func (m Model) renderHelp() string {
	styles := m.theme.Styles()

	var sections []helpSection
	for i, group := range m.keys.FullHelp() {
		s := helpSection{title: helpSectionTitles[i]}
		for _, b := range group {
			h := b.Help()
			s.items = append(s.items, helpItem{h.Key, h.Desc})
		}
		sections = append(sections, s)
	}
	if pv := m.current(); pv != nil && len(pv.page.Actions) > 0 {
		s := helpSection{title: "Actions"}
		for _, a := range pv.page.Actions {
			desc := a.Name
			if a.Description != "" {
				desc = a.Description
			}
			s.items = append(s.items, helpItem{a.Key, desc})
		}
		sections = append(sections, s)
	}
	sections = append(sections, helpSection{
		title: "Search",
		items: []helpItem{
			{"!pattern", "Regular expression"},
			{"%Col% term", "Search one column"},
			{m.keys.SearchCase.Help().Key, "Toggle case while typing"},
		},
	})

	// Build help content
	var b strings.Builder

	title := styles.Text.Bold(true).Render("Keyboard Shortcuts")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 30)))
	b.WriteString("\n\n")

	for i, section := range sections {
		b.WriteString(styles.AccentText.Bold(true).Render(section.title))
		b.WriteString("\n")

		for _, item := range section.items {
			keyStyle := lipgloss.NewStyle().
				Foreground(lipgloss.Color(m.theme.Warning)).
				Width(14)
			b.WriteString(keyStyle.Render(item.key))
			b.WriteString(styles.Text.Render(item.desc))
			b.WriteString("\n")
		}

		if i < len(sections)-1 {
			b.WriteString("\n")
		}
	}

	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Accent)).
		Padding(1, 2).
		Width(min(48, max(m.width-4, 20)))

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		modal.Render(strings.TrimRight(b.String(), "\n")),
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(m.theme.Background)),
	)
}

type helpSection struct {
	title string
	items []helpItem
}

type helpItem struct {
	key  string
	desc string
}
