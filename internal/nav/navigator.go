package nav

import (
	"fmt"
	"log/slog"

	"github.com/five82/termstack/internal/config"
	"github.com/five82/termstack/internal/scope"
	"github.com/five82/termstack/internal/template"
	"github.com/five82/termstack/internal/value"
)

// Transition describes a completed forward navigation.
type Transition struct {
	From     string
	To       string
	Bindings scope.Bindings
	// Evicted is set when the oldest history frame was dropped.
	Evicted bool
}

// Navigator tracks the active page. It is owned by the UI goroutine.
type Navigator struct {
	cfg      *config.Config
	resolver *scope.Resolver
	router   *Router
	stack    *Stack
	logger   *slog.Logger
	current  string
}

// NewNavigator starts at the configured start page.
func NewNavigator(cfg *config.Config, resolver *scope.Resolver, engine *template.Engine, logger *slog.Logger) *Navigator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Navigator{
		cfg:      cfg,
		resolver: resolver,
		router:   NewRouter(engine, logger),
		stack:    NewStack(cfg.App.HistorySize),
		logger:   logger,
		current:  cfg.Start,
	}
}

// Current returns the active page id.
func (n *Navigator) Current() string { return n.current }

// Page returns the active page.
func (n *Navigator) Page() *config.Page {
	p, _ := n.cfg.Page(n.current)
	return p
}

func (n *Navigator) Stack() *Stack { return n.stack }

// CanGoBack reports whether there is history to return to.
func (n *Navigator) CanGoBack() bool { return n.stack.Len() > 0 }

// Breadcrumb returns the page ids of the history followed by the active
// page.
func (n *Navigator) Breadcrumb() []string {
	frames := n.stack.Frames()
	out := make([]string, 0, len(frames)+1)
	for _, f := range frames {
		out = append(out, f.PageID)
	}
	return append(out, n.current)
}

// Route resolves the active page's navigation rule for row without moving.
func (n *Navigator) Route(row value.Value) (config.Target, error) {
	page := n.Page()
	if page == nil {
		return config.Target{}, fmt.Errorf("%w: %s", ErrUnknownPage, n.current)
	}
	return n.router.Resolve(page.Next, n.resolver.With(row))
}

// Next follows the active page's navigation rule for the selected row. On
// ErrNoRoute nothing changes.
func (n *Navigator) Next(row value.Value, view ViewState) (Transition, error) {
	target, err := n.Route(row)
	if err != nil {
		n.logger.Warn("navigation skipped", "page", n.current, "error", err)
		return Transition{}, err
	}
	return n.Go(target, row, view)
}

// Go navigates to target with row as the selected row of the active page.
func (n *Navigator) Go(target config.Target, row value.Value, view ViewState) (Transition, error) {
	if _, ok := n.cfg.Page(target.Page); !ok {
		return Transition{}, fmt.Errorf("%w: %s", ErrUnknownPage, target.Page)
	}
	bindings := n.resolver.Extract(target.Context, row)
	evicted := n.stack.Push(Frame{
		PageID:  n.current,
		Context: bindings,
		Scope:   n.resolver.Freeze(),
		View:    view,
	})
	if evicted {
		n.logger.Debug("navigation history full, dropped oldest frame", "depth", n.stack.Depth())
	}
	n.resolver.Bind(n.current, row)
	n.resolver.Merge(bindings)

	t := Transition{From: n.current, To: target.Page, Bindings: bindings, Evicted: evicted}
	n.current = target.Page
	n.logger.Debug("navigated", "from", t.From, "to", t.To, "bindings", len(bindings))
	return t, nil
}

// Back returns to the previous page, restoring its resolver snapshot. The
// returned frame carries the view state to reapply.
func (n *Navigator) Back() (Frame, bool) {
	f, ok := n.stack.Pop()
	if !ok {
		return Frame{}, false
	}
	n.resolver.Restore(f.Scope)
	n.logger.Debug("navigated back", "from", n.current, "to", f.PageID)
	n.current = f.PageID
	return f, true
}
