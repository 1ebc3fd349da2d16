package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/termstack/internal/config"
	"github.com/five82/termstack/internal/logtail"
	"github.com/five82/termstack/internal/value"
)

// Modal is the interface for modal dialogs.
// The Update method returns the updated modal, a command, and a bool indicating if the modal should close.
type Modal interface {
	Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool)
	View(theme Theme, width, height int) string
}

// confirmModal asks before running an action.
type confirmModal struct {
	action config.Action
	row    value.Value
	prompt string
}

func newConfirmModal(a config.Action, row value.Value, prompt string) *confirmModal {
	return &confirmModal{action: a, row: row, prompt: prompt}
}

func (c *confirmModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return c, nil, false
	}
	switch {
	case key.Matches(km, keys.Yes):
		a, row := c.action, c.row
		return nil, func() tea.Msg { return confirmedMsg{action: a, row: row} }, true
	case key.Matches(km, keys.No):
		return nil, nil, true
	}
	return c, nil, false
}

func (c *confirmModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	boxWidth := min(60, max(width-4, 20))

	title := c.action.Name
	if title == "" {
		title = c.action.Key
	}
	body := lipgloss.NewStyle().Width(boxWidth - 6).Foreground(lipgloss.Color(theme.Text)).Render(c.prompt)
	hint := styles.AccentText.Render("y") + styles.MutedText.Render(" confirm   ") +
		styles.AccentText.Render("n") + styles.MutedText.Render(" cancel")

	content := lipgloss.JoinVertical(lipgloss.Left,
		styles.WarningText.Bold(true).Render(title),
		"",
		body,
		"",
		hint,
	)

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(theme.Warning)).
		Padding(1, 2).
		Width(boxWidth)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box.Render(content),
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(theme.Background)),
	)
}

// logModal shows the tail of the application's own log file.
type logModal struct {
	path  string
	lines []string
	err   error
	vp    viewport.Model
	// styled remembers which theme the viewport content was rendered for.
	styled string
}

func newLogModal(path string, lines []string, err error, width, height int) *logModal {
	vp := viewport.New(max(width-6, 10), max(height-6, 3))
	return &logModal{path: path, lines: lines, err: err, vp: vp}
}

func (l *logModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return l, nil, false
	}
	switch {
	case key.Matches(km, keys.Back), key.Matches(km, keys.Diagnostics), key.Matches(km, keys.Quit):
		return nil, nil, true
	case key.Matches(km, keys.Down):
		l.vp.ScrollDown(1)
	case key.Matches(km, keys.Up):
		l.vp.ScrollUp(1)
	case key.Matches(km, keys.Top):
		l.vp.GotoTop()
	case key.Matches(km, keys.Bottom):
		l.vp.GotoBottom()
	case key.Matches(km, keys.PageDown), key.Matches(km, keys.HalfPageDown):
		l.vp.HalfPageDown()
	case key.Matches(km, keys.PageUp), key.Matches(km, keys.HalfPageUp):
		l.vp.HalfPageUp()
	}
	return l, nil, false
}

func (l *logModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	l.vp.Width = max(width-6, 10)
	l.vp.Height = max(height-6, 3)

	if l.styled != theme.Name {
		l.vp.SetContent(l.content(theme))
		l.vp.GotoBottom()
		l.styled = theme.Name
	}

	title := styles.AccentText.Bold(true).Render("Diagnostics") +
		styles.FaintText.Render(fmt.Sprintf("  %s  (%d lines)", l.path, len(l.lines)))
	footer := styles.FaintText.Render("j/k scroll • esc close")

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(theme.Accent)).
		Width(width - 2).
		Height(height - 2)

	return box.Render(lipgloss.JoinVertical(lipgloss.Left, title, l.vp.View(), footer))
}

func (l *logModal) content(theme Theme) string {
	styles := theme.Styles()
	if l.err != nil {
		return styles.DangerText.Render("Cannot read log file: " + l.err.Error())
	}
	if len(l.lines) == 0 {
		return styles.MutedText.Render("Log file is empty")
	}
	out := make([]string, len(l.lines))
	for i, line := range l.lines {
		line = truncate(line, l.vp.Width)
		switch logtail.DetectLevel(line) {
		case logtail.LevelError:
			out[i] = styles.DangerText.Render(line)
		case logtail.LevelWarn:
			out[i] = styles.WarningText.Render(line)
		case logtail.LevelDebug:
			out[i] = styles.FaintText.Render(line)
		default:
			out[i] = styles.Text.Render(line)
		}
	}
	return strings.Join(out, "\n")
}
