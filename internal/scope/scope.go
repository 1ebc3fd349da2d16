package scope

import (
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"

	"go.uber.org/atomic"

	"github.com/five82/termstack/internal/extract"
	"github.com/five82/termstack/internal/template"
	"github.com/five82/termstack/internal/value"
)

// EnvNamespace is the reserved name under which environment variables are
// exposed.
const EnvNamespace = "env"

// Bindings maps names to values extracted from a selected row.
type Bindings map[string]value.Value

// View is an immutable snapshot of every layer except the ephemeral one.
type View struct {
	env      value.Value
	globals  map[string]value.Value
	pages    map[string]value.Value
	bindings map[string]value.Value
}

// Lookup implements template.Scope.
func (v *View) Lookup(name string) (value.Value, bool) {
	if b, ok := v.bindings[name]; ok {
		return b, true
	}
	if p, ok := v.pages[name]; ok {
		return p, true
	}
	if g, ok := v.globals[name]; ok {
		return g, true
	}
	if name == EnvNamespace {
		return v.env, true
	}
	return value.Value{}, false
}

// Page returns the row bound under a page id.
func (v *View) Page(id string) (value.Value, bool) {
	p, ok := v.pages[id]
	return p, ok
}

// Bindings returns a copy of the explicit bindings layer.
func (v *View) Bindings() Bindings {
	return maps.Clone(Bindings(v.bindings))
}

// With adds row as the ephemeral "value" and "row" bindings.
func (v *View) With(row value.Value) Scope {
	return Scope{view: v, row: row}
}

// WithCell binds "value" to cell and "row" to the row it came from.
func (v *View) WithCell(row, cell value.Value) Scope {
	return Scope{view: v, row: row, cell: cell, hasCell: true}
}

// Scope is a View plus an ephemeral row binding.
type Scope struct {
	view    *View
	row     value.Value
	cell    value.Value
	hasCell bool
}

// Lookup implements template.Scope.
func (s Scope) Lookup(name string) (value.Value, bool) {
	switch name {
	case "value":
		if s.hasCell {
			return s.cell, true
		}
		return s.row, true
	case "row":
		return s.row, true
	}
	if s.view != nil {
		if v, ok := s.view.Lookup(name); ok {
			return v, true
		}
	}
	return s.row.Get(name)
}

// Resolver owns the layered context. Reads are lock free; writes come from the
// UI goroutine and replace the current View wholesale.
type Resolver struct {
	engine *template.Engine
	logger *slog.Logger

	mu  sync.Mutex
	cur atomic.Pointer[View]
}

// Option configures a Resolver.
type Option func(*options)

type options struct {
	env    []string
	logger *slog.Logger
}

// WithEnviron replaces os.Environ() as the environment source. Entries use
// the KEY=VALUE form.
func WithEnviron(env []string) Option {
	return func(o *options) { o.env = env }
}

// WithLogger sets the logger used to report extraction failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New builds a Resolver. String globals containing template markup are
// rendered once, in name order, against the environment and the globals
// already rendered.
func New(engine *template.Engine, globals map[string]value.Value, opts ...Option) *Resolver {
	o := options{env: os.Environ(), logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Resolver{engine: engine, logger: o.logger}
	view := &View{
		env:      envObject(o.env),
		globals:  make(map[string]value.Value, len(globals)),
		pages:    map[string]value.Value{},
		bindings: map[string]value.Value{},
	}
	for _, name := range slices.Sorted(maps.Keys(globals)) {
		g := globals[name]
		if g.Kind() == value.KindString && template.IsTemplate(g.AsString()) {
			rendered, err := engine.Value(g.AsString(), view)
			if err != nil {
				r.logger.Warn("global did not render", "name", name, "error", err)
			} else {
				g = rendered
			}
		}
		view.globals[name] = g
	}
	r.cur.Store(view)
	return r
}

func envObject(env []string) value.Value {
	vars := make(map[string]value.Value, len(env))
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vars[k] = value.String(v)
	}
	return value.ObjectFromMap(vars)
}

// Freeze returns the current immutable View.
func (r *Resolver) Freeze() *View {
	return r.cur.Load()
}

// Lookup resolves name without any ephemeral binding.
func (r *Resolver) Lookup(name string) (value.Value, bool) {
	return r.cur.Load().Lookup(name)
}

// With returns a Scope over the current View with row bound.
func (r *Resolver) With(row value.Value) Scope {
	return r.cur.Load().With(row)
}

// Restore reinstates a View captured by Freeze.
func (r *Resolver) Restore(v *View) {
	if v == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cur.Store(v)
}

// Bind stores row under pageID so descendant pages can read {{ pageID.field }}.
func (r *Resolver) Bind(pageID string, row value.Value) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.cur.Load()
	next := *prev
	next.pages = maps.Clone(prev.pages)
	next.pages[pageID] = row
	r.cur.Store(&next)
}

// Extract evaluates a context map against row without storing anything.
// Entries are JSONPath expressions, or templates rendered with row bound.
// Failures are logged and leave the name unbound.
func (r *Resolver) Extract(ctxMap map[string]string, row value.Value) Bindings {
	out := make(Bindings, len(ctxMap))
	view := r.cur.Load()
	for _, name := range slices.Sorted(maps.Keys(ctxMap)) {
		src := ctxMap[name]
		if template.IsTemplate(src) {
			v, err := r.engine.Value(src, view.With(row))
			if err != nil {
				r.logger.Warn("context binding failed", "name", name, "template", src, "error", err)
				continue
			}
			out[name] = v
			continue
		}
		p, err := extract.Compile(src)
		if err != nil {
			r.logger.Warn("context binding failed", "name", name, "path", src, "error", err)
			continue
		}
		v, ok := p.First(row)
		if !ok {
			r.logger.Debug("context path matched nothing", "name", name, "path", src)
			continue
		}
		out[name] = v
	}
	return out
}

// BindContext extracts ctxMap from row and merges the result into the
// bindings layer.
func (r *Resolver) BindContext(ctxMap map[string]string, row value.Value) Bindings {
	b := r.Extract(ctxMap, row)
	r.Merge(b)
	return b
}

// Merge adds b to the bindings layer.
func (r *Resolver) Merge(b Bindings) {
	if len(b) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.cur.Load()
	next := *prev
	next.bindings = maps.Clone(prev.bindings)
	maps.Copy(next.bindings, b)
	r.cur.Store(&next)
}
