package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/termstack/internal/action"
	"github.com/five82/termstack/internal/config"
	"github.com/five82/termstack/internal/logtail"
	"github.com/five82/termstack/internal/provider"
	"github.com/five82/termstack/internal/state"
	"github.com/five82/termstack/internal/template"
	"github.com/five82/termstack/internal/value"
)

// maxStreamBatch bounds how many lines one streamMsg carries.
const maxStreamBatch = 512

// Messages

// fetchedMsg carries the result of one fetch request.
type fetchedMsg struct {
	ticket   state.Ticket
	result   state.Result
	duration time.Duration
}

// refreshMsg is a scheduled refresh of page, valid only for the epoch it
// was scheduled in.
type refreshMsg struct {
	page  string
	epoch int
}

// streamStartedMsg reports that a stream source is running.
type streamStartedMsg struct {
	ticket state.Ticket
	epoch  int
	lines  <-chan provider.Line
	err    error
}

// streamMsg is a batch of streamed lines.
type streamMsg struct {
	ticket state.Ticket
	epoch  int
	lines  []string
	done   bool
	err    error
	source <-chan provider.Line
}

// actionMsg carries the outcome of a page action.
type actionMsg struct {
	page    string
	row     value.Value
	outcome action.Outcome
}

// confirmedMsg is sent when the user accepts an action's confirmation.
type confirmedMsg struct {
	action config.Action
	row    value.Value
}

// noticeExpiredMsg clears the notification with the given id.
type noticeExpiredMsg struct{ id int }

// diagnosticsMsg carries the tail of the log file.
type diagnosticsMsg struct {
	lines []string
	err   error
}

// Commands

func fetchCmd(ctx context.Context, p *provider.Pipeline, t state.Ticket, page *config.Page, s template.Scope) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		res, err := p.Fetch(ctx, page.ID, page.Data, s)
		return fetchedMsg{
			ticket: t,
			result: state.Result{
				Rows:      res.Rows,
				Signature: res.Signature,
				FetchedAt: res.FetchedAt,
				Cached:    res.Cached,
				Err:       err,
			},
			duration: time.Since(start),
		}
	}
}

func refreshCmd(page string, epoch int, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return refreshMsg{page: page, epoch: epoch}
	})
}

func startStreamCmd(ctx context.Context, p *provider.Pipeline, t state.Ticket, epoch int, page *config.Page, s template.Scope) tea.Cmd {
	return func() tea.Msg {
		lines, err := p.Stream(ctx, page.Data, s)
		return streamStartedMsg{ticket: t, epoch: epoch, lines: lines, err: err}
	}
}

// readStreamCmd waits for the next line and then drains whatever else is
// already buffered, so a chatty source does not cost one message per line.
func readStreamCmd(t state.Ticket, epoch int, source <-chan provider.Line) tea.Cmd {
	return func() tea.Msg {
		msg := streamMsg{ticket: t, epoch: epoch, source: source}
		l, ok := <-source
		if !ok {
			msg.done = true
			return msg
		}
		if msg.take(l) {
			return msg
		}
		for len(msg.lines) < maxStreamBatch {
			select {
			case l, ok := <-source:
				if !ok {
					msg.done = true
					return msg
				}
				if msg.take(l) {
					return msg
				}
			default:
				return msg
			}
		}
		return msg
	}
}

// take adds l to the batch and reports whether the stream ended.
func (m *streamMsg) take(l provider.Line) bool {
	if l.Done {
		m.done = true
		m.err = l.Err
		return true
	}
	m.lines = append(m.lines, l.Text)
	return false
}

func runActionCmd(ctx context.Context, exec *action.Executor, page string, a config.Action, row value.Value) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{page: page, row: row, outcome: exec.Run(ctx, a, row)}
	}
}

func noticeExpiryCmd(id int) tea.Cmd {
	return tea.Tick(NoticeDuration, func(time.Time) tea.Msg {
		return noticeExpiredMsg{id: id}
	})
}

func diagnosticsCmd(path string) tea.Cmd {
	return func() tea.Msg {
		lines, err := logtail.Read(path, DiagnosticsLines)
		return diagnosticsMsg{lines: lines, err: err}
	}
}
