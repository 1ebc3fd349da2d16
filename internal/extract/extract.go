// Package extract evaluates JSONPath queries against value trees.
//
// Paths are parsed with ojg's jp package. The common fragments (root, child,
// index, wildcard) are evaluated directly on value.Value; anything richer
// such as filters, slices or recursive descent is handed to ojg.
package extract

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ohler55/ojg/jp"

	"github.com/five82/termstack/internal/value"
)

// This is the path that selects the whole value.
const This = "@this"

const compiledCacheSize = 512

var compiled, _ = lru.New[string, *Path](compiledCacheSize)

// Error reports a syntactically invalid path.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid path %q: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Path is a compiled query. It is safe for concurrent use.
type Path struct {
	src  string
	expr jp.Expr
	this bool
	fast bool
}

// Compile parses src. Paths without a leading "$" or "@" are treated as
// relative to the root, so "items[*]" and "$.items[*]" are equivalent.
func Compile(src string) (*Path, error) {
	if p, ok := compiled.Get(src); ok {
		return p, nil
	}
	p, err := compile(src)
	if err != nil {
		return nil, err
	}
	compiled.Add(src, p)
	return p, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(src string) *Path {
	p, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return p
}

func compile(src string) (*Path, error) {
	trimmed := strings.TrimSpace(src)
	switch trimmed {
	case "", This, "$", "@":
		return &Path{src: src, this: true}, nil
	}

	norm := trimmed
	switch {
	case strings.HasPrefix(norm, "$"), strings.HasPrefix(norm, "@"):
	case strings.HasPrefix(norm, "["):
		norm = "$" + norm
	default:
		norm = "$." + norm
	}

	expr, err := jp.ParseString(norm)
	if err != nil {
		return nil, &Error{Path: src, Err: err}
	}
	return &Path{src: src, expr: expr, fast: simple(expr)}, nil
}

func simple(expr jp.Expr) bool {
	for _, frag := range expr {
		switch frag.(type) {
		case jp.Root, jp.At, jp.Child, jp.Nth, jp.Wildcard, jp.Bracket:
		default:
			return false
		}
	}
	return true
}

func (p *Path) String() string { return p.src }

// All returns every match in document order. No match is an empty result.
func (p *Path) All(v value.Value) []value.Value {
	if p.this {
		return []value.Value{v}
	}
	if p.fast {
		return p.walk(v)
	}
	results := p.expr.Get(v.ToAny())
	out := make([]value.Value, len(results))
	for i, r := range results {
		out[i] = value.FromAny(r)
	}
	return out
}

// First returns the first match.
func (p *Path) First(v value.Value) (value.Value, bool) {
	if p.this {
		return v, true
	}
	all := p.All(v)
	if len(all) == 0 {
		return value.Value{}, false
	}
	return all[0], true
}

// Rows returns the matches as rows. "@this" applied to an array yields its
// elements.
func (p *Path) Rows(v value.Value) value.Dataset {
	if p.this {
		if v.Kind() == value.KindArray {
			return value.Dataset(v.Items())
		}
		return value.Dataset{v}
	}
	return value.Dataset(p.All(v))
}

func (p *Path) walk(v value.Value) []value.Value {
	cur := []value.Value{v}
	for _, frag := range p.expr {
		var next []value.Value
		switch f := frag.(type) {
		case jp.Root, jp.At, jp.Bracket:
			continue
		case jp.Child:
			for _, c := range cur {
				if field, ok := c.Get(string(f)); ok {
					next = append(next, field)
				}
			}
		case jp.Nth:
			for _, c := range cur {
				if item, ok := c.Index(int(f)); ok {
					next = append(next, item)
				}
			}
		case jp.Wildcard:
			for _, c := range cur {
				switch c.Kind() {
				case value.KindArray:
					next = append(next, c.Items()...)
				case value.KindObject:
					for _, k := range c.Keys() {
						field, _ := c.Get(k)
						next = append(next, field)
					}
				}
			}
		}
		cur = next
		if len(cur) == 0 {
			return nil
		}
	}
	return cur
}

// First compiles src and returns its first match against v.
func First(src string, v value.Value) (value.Value, bool, error) {
	p, err := Compile(src)
	if err != nil {
		return value.Value{}, false, err
	}
	got, ok := p.First(v)
	return got, ok, nil
}
