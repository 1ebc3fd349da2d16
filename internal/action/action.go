// Package action runs the keyboard actions a page declares for its selected
// row: shell commands, HTTP requests, or navigation to another page.
package action

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/five82/termstack/internal/config"
	"github.com/five82/termstack/internal/provider"
	"github.com/five82/termstack/internal/scope"
	"github.com/five82/termstack/internal/template"
	"github.com/five82/termstack/internal/value"
)

const (
	defaultTimeout = 30 * time.Second
	maxOutput      = 200
)

// Kind is what an action does.
type Kind int

const (
	KindCommand Kind = iota + 1
	KindHTTP
	KindPage
)

// KindOf classifies a.
func KindOf(a config.Action) Kind {
	switch {
	case a.Page != "":
		return KindPage
	case a.HTTP != nil:
		return KindHTTP
	default:
		return KindCommand
	}
}

// Outcome is the result of running an action.
type Outcome struct {
	Action config.Action
	// Message is the notification to show, success or failure.
	Message string
	Output  string
	Err     error
	// Refresh asks the caller to re-fetch the current page.
	Refresh bool
	// Navigate is set for page actions.
	Navigate *config.Target
	Duration time.Duration
}

// Executor runs actions against the context of the selected row.
type Executor struct {
	engine   *template.Engine
	resolver *scope.Resolver
	pipeline *provider.Pipeline
	logger   *slog.Logger
}

func New(engine *template.Engine, resolver *scope.Resolver, pipeline *provider.Pipeline, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{engine: engine, resolver: resolver, pipeline: pipeline, logger: logger}
}

// Scope returns the scope an action is rendered in: the action's context
// bindings over the resolver with row bound.
func (e *Executor) Scope(a config.Action, row value.Value) template.Scope {
	return overlay{
		bindings: e.resolver.Extract(a.Context, row),
		base:     e.resolver.With(row),
	}
}

// Confirmation renders the confirmation prompt of a. The second result is
// false when the action runs without asking.
func (e *Executor) Confirmation(a config.Action, row value.Value) (string, bool) {
	if strings.TrimSpace(a.Confirm) == "" {
		return "", false
	}
	msg, err := e.engine.Render(a.Confirm, e.Scope(a, row))
	if err != nil {
		e.logger.Warn("confirm message did not render", "action", a.Name, "error", err)
		msg = a.Confirm
	}
	return msg, true
}

// Run executes a. Page actions are not executed here; the outcome carries
// the target for the caller to navigate to.
func (e *Executor) Run(ctx context.Context, a config.Action, row value.Value) Outcome {
	out := Outcome{Action: a, Refresh: a.Refresh}
	s := e.Scope(a, row)

	if KindOf(a) == KindPage {
		out.Navigate = &config.Target{Page: a.Page, Context: a.Context}
		return out
	}

	ds := config.DataSource{Timeout: a.Timeout, Format: config.FormatText}
	if ds.Timeout <= 0 {
		ds.Timeout = defaultTimeout
	}
	if a.HTTP != nil {
		ds.Source = *a.HTTP
	} else {
		ds.Source = config.ProcessSource{Command: a.Command, Args: a.Args, Shell: a.Shell}
	}

	start := time.Now()
	raw, err := e.pipeline.Exec(ctx, ds, s)
	out.Duration = time.Since(start)
	out.Output = strings.TrimSpace(string(raw))
	if err != nil {
		out.Err = err
		out.Refresh = false
		out.Message = e.message(a.ErrorMessage, s, fmt.Sprintf("%s failed: %v", a.Name, err))
		e.logger.Warn("action failed", "action", a.Name, "duration", out.Duration, "error", err)
		return out
	}
	fallback := fmt.Sprintf("%s completed", a.Name)
	if out.Output != "" {
		fallback += ": " + firstLine(out.Output)
	}
	out.Message = e.message(a.SuccessMessage, s, fallback)
	e.logger.Debug("action finished", "action", a.Name, "duration", out.Duration)
	return out
}

func (e *Executor) message(tmpl string, s template.Scope, fallback string) string {
	if strings.TrimSpace(tmpl) == "" {
		return fallback
	}
	msg, err := e.engine.Render(tmpl, s)
	if err != nil {
		e.logger.Warn("action message did not render", "template", tmpl, "error", err)
		return fallback
	}
	return msg
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	if len(line) > maxOutput {
		line = line[:maxOutput] + "…"
	}
	return line
}

type overlay struct {
	bindings scope.Bindings
	base     template.Scope
}

func (o overlay) Lookup(name string) (value.Value, bool) {
	if name == "value" || name == "row" {
		return o.base.Lookup(name)
	}
	if v, ok := o.bindings[name]; ok {
		return v, true
	}
	return o.base.Lookup(name)
}
