package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/termstack/internal/config"
)

// maxBackoff caps the delay between refreshes of a failing page. Intervals
// configured above it are never shortened.
const maxBackoff = 30 * time.Second

// calculateBackoff doubles base for every consecutive failure.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures < 0 {
		failures = 0
	}
	limit := max(maxBackoff, base)
	d := base
	for range failures {
		d *= 2
		if d >= limit {
			return limit
		}
	}
	return d
}

// refreshInterval is how often page re-fetches by itself; zero disables
// scheduled refresh.
func refreshInterval(cfg *config.Config, page *config.Page) time.Duration {
	if page.Data.Source != nil && page.Data.Source.Kind() == config.KindStream {
		return 0
	}
	if page.Data.RefreshInterval > 0 {
		return page.Data.RefreshInterval
	}
	return cfg.App.RefreshInterval
}

// scheduleRefresh arms the next refresh tick of the active page. Ticks carry
// the page epoch, so a tick armed before the user left the page is ignored
// when it fires.
func (m *Model) scheduleRefresh(pv *pageView) tea.Cmd {
	base := refreshInterval(m.cfg, pv.page)
	if base <= 0 {
		return nil
	}
	snap := m.store.Snapshot(pv.page.ID)
	return refreshCmd(pv.page.ID, pv.epoch, calculateBackoff(snap.ConsecutiveFailures, base))
}

// handleRefresh runs a scheduled refresh.
func (m Model) handleRefresh(msg refreshMsg) (tea.Model, tea.Cmd) {
	pv := m.pages[msg.page]
	if pv == nil || msg.page != m.nav.Current() || msg.epoch != pv.epoch {
		return m, nil
	}
	if m.store.Snapshot(msg.page).Loading {
		// The previous request is still running; check again later.
		return m, m.scheduleRefresh(pv)
	}
	return m, m.fetch(pv, true)
}
