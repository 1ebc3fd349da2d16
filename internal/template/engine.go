package template

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/five82/termstack/internal/value"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"

	defaultCacheSize = 1024
)

// Scope supplies variables to expressions.
type Scope interface {
	Lookup(name string) (value.Value, bool)
}

// MapScope is a Scope backed by a plain map.
type MapScope map[string]value.Value

func (m MapScope) Lookup(name string) (value.Value, bool) {
	v, ok := m[name]
	return v, ok
}

// Error is returned when a template cannot be parsed or evaluated.
type Error struct {
	Template string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("template %q: %v", e.Template, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used by time-relative functions.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithCacheSize bounds the number of compiled templates kept in memory.
func WithCacheSize(n int) Option {
	return func(e *Engine) { e.cacheSize = n }
}

// Engine compiles and evaluates templates. Compiled forms are cached, so an
// Engine should be shared. It is safe for concurrent use.
type Engine struct {
	now       func() time.Time
	cacheSize int
	cache     *lru.Cache[string, *compiled]
	funcs     map[string]function.Function
}

// New returns an Engine with the built-in function set.
func New(opts ...Option) *Engine {
	e := &Engine{now: time.Now, cacheSize: defaultCacheSize}
	for _, opt := range opts {
		opt(e)
	}
	e.cache, _ = lru.New[string, *compiled](max(e.cacheSize, 1))
	e.funcs = builtins(e.now)
	return e
}

// IsTemplate reports whether s contains template markup.
func IsTemplate(s string) bool {
	return strings.Contains(s, openDelim)
}

type segment struct {
	literal string
	expr    *expression
}

type compiled struct {
	segments []segment
}

type expression struct {
	src  string
	ast  hclsyntax.Expression
	refs []hcl.Traversal
}

// Render expands every "{{ expr }}" in tmpl.
func (e *Engine) Render(tmpl string, scope Scope) (string, error) {
	if !IsTemplate(tmpl) {
		return tmpl, nil
	}
	c, err := e.compileTemplate(tmpl)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, seg := range c.segments {
		if seg.expr == nil {
			b.WriteString(seg.literal)
			continue
		}
		v, err := seg.expr.eval(scope, e.funcs)
		if err != nil {
			return "", &Error{Template: tmpl, Err: err}
		}
		b.WriteString(display(v))
	}
	return b.String(), nil
}

// Value renders tmpl and keeps the result typed when tmpl consists of a
// single expression. Plain strings are returned as string values.
func (e *Engine) Value(tmpl string, scope Scope) (value.Value, error) {
	if !IsTemplate(tmpl) {
		return value.String(tmpl), nil
	}
	c, err := e.compileTemplate(tmpl)
	if err != nil {
		return value.Value{}, err
	}
	if len(c.segments) == 1 && c.segments[0].expr != nil {
		v, err := c.segments[0].expr.eval(scope, e.funcs)
		if err != nil {
			return value.Value{}, &Error{Template: tmpl, Err: err}
		}
		return fromCty(v), nil
	}
	s, err := e.Render(tmpl, scope)
	if err != nil {
		return value.Value{}, err
	}
	return value.String(s), nil
}

// Eval evaluates a bare expression (no delimiters).
func (e *Engine) Eval(expr string, scope Scope) (value.Value, error) {
	x, err := e.compileExpr(expr)
	if err != nil {
		return value.Value{}, err
	}
	v, err := x.eval(scope, e.funcs)
	if err != nil {
		return value.Value{}, &Error{Template: expr, Err: err}
	}
	return fromCty(v), nil
}

// Evaluate decides a condition. A condition may be written either as a bare
// expression or as a template; templates are true when they render to
// "true". Null results are false.
func (e *Engine) Evaluate(cond string, scope Scope) (bool, error) {
	src := strings.TrimSpace(cond)
	if src == "" {
		return false, &Error{Template: cond, Err: fmt.Errorf("empty condition")}
	}
	if IsTemplate(src) {
		out, err := e.Render(src, scope)
		if err != nil {
			return false, err
		}
		return strings.TrimSpace(out) == "true", nil
	}
	v, err := e.Eval(src, scope)
	if err != nil {
		return false, err
	}
	switch v.Kind() {
	case value.KindBool:
		return v.AsBool(), nil
	case value.KindString:
		return strings.TrimSpace(v.AsString()) == "true", nil
	case value.KindNull:
		return false, nil
	default:
		return false, &Error{Template: cond, Err: fmt.Errorf("condition produced %s, want bool", v.Kind())}
	}
}

func (e *Engine) compileTemplate(tmpl string) (*compiled, error) {
	if c, ok := e.cache.Get(tmpl); ok {
		return c, nil
	}
	c := &compiled{}
	rest := tmpl
	for rest != "" {
		start := strings.Index(rest, openDelim)
		if start < 0 {
			c.segments = append(c.segments, segment{literal: rest})
			break
		}
		if start > 0 {
			c.segments = append(c.segments, segment{literal: rest[:start]})
		}
		body := rest[start+len(openDelim):]
		end := strings.Index(body, closeDelim)
		if end < 0 {
			return nil, &Error{Template: tmpl, Err: fmt.Errorf("unclosed %q", openDelim)}
		}
		x, err := parseExpression(body[:end])
		if err != nil {
			return nil, &Error{Template: tmpl, Err: err}
		}
		c.segments = append(c.segments, segment{expr: x})
		rest = body[end+len(closeDelim):]
	}
	e.cache.Add(tmpl, c)
	return c, nil
}

func (e *Engine) compileExpr(src string) (*expression, error) {
	key := "\x00" + src
	if c, ok := e.cache.Get(key); ok {
		return c.segments[0].expr, nil
	}
	x, err := parseExpression(src)
	if err != nil {
		return nil, &Error{Template: src, Err: err}
	}
	e.cache.Add(key, &compiled{segments: []segment{{expr: x}}})
	return x, nil
}

func parseExpression(src string) (*expression, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("empty expression")
	}
	rewritten, err := rewrite(src)
	if err != nil {
		return nil, err
	}
	ast, diags := hclsyntax.ParseExpression([]byte(rewritten), "expr", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, diags
	}

	// Names bound by for-expressions are local and must stay untouched.
	locals := map[string]bool{}
	hclsyntax.VisitAll(ast, func(n hclsyntax.Node) hcl.Diagnostics {
		if f, ok := n.(*hclsyntax.ForExpr); ok {
			if f.KeyVar != "" {
				locals[f.KeyVar] = true
			}
			locals[f.ValVar] = true
		}
		return nil
	})

	x := &expression{src: src, ast: ast}
	hclsyntax.VisitAll(ast, func(n hclsyntax.Node) hcl.Diagnostics {
		st, ok := n.(*hclsyntax.ScopeTraversalExpr)
		if !ok || locals[st.Traversal.RootName()] {
			return nil
		}
		name := fmt.Sprintf("_ref%d", len(x.refs))
		x.refs = append(x.refs, st.Traversal)
		st.Traversal = hcl.Traversal{hcl.TraverseRoot{Name: name, SrcRange: st.Traversal.SourceRange()}}
		return nil
	})
	return x, nil
}

func (x *expression) eval(scope Scope, funcs map[string]function.Function) (cty.Value, error) {
	vars := make(map[string]cty.Value, len(x.refs))
	for i, tr := range x.refs {
		vars[fmt.Sprintf("_ref%d", i)] = toCty(resolve(scope, tr))
	}
	v, diags := x.ast.Value(&hcl.EvalContext{Variables: vars, Functions: funcs})
	if diags.HasErrors() {
		return cty.NilVal, diags
	}
	return v, nil
}

// resolve walks a traversal over the scope. Anything unresolved is null.
func resolve(scope Scope, tr hcl.Traversal) value.Value {
	var cur value.Value
	for _, step := range tr {
		var ok bool
		switch s := step.(type) {
		case hcl.TraverseRoot:
			if scope == nil {
				return value.Null()
			}
			cur, ok = scope.Lookup(s.Name)
		case hcl.TraverseAttr:
			cur, ok = cur.Get(s.Name)
		case hcl.TraverseIndex:
			cur, ok = index(cur, s.Key)
		}
		if !ok {
			return value.Null()
		}
	}
	return cur
}

func index(v value.Value, key cty.Value) (value.Value, bool) {
	if key.IsNull() || !key.IsKnown() {
		return value.Value{}, false
	}
	switch key.Type() {
	case cty.Number:
		i, _ := key.AsBigFloat().Int64()
		return v.Index(int(i))
	case cty.String:
		return v.Get(key.AsString())
	}
	return value.Value{}, false
}
