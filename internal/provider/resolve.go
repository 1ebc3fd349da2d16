package provider

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"maps"
	"slices"
	"strconv"

	"github.com/five82/termstack/internal/config"
	"github.com/five82/termstack/internal/template"
)

// Resolve renders every templated field of ds against scope. The result has
// the same shape with literal values only.
func (p *Pipeline) Resolve(ds config.DataSource, scope template.Scope) (config.DataSource, error) {
	r := renderer{engine: p.engine, scope: scope}
	out := r.dataSource(ds)
	if r.err != nil {
		return config.DataSource{}, &FetchError{Kind: KindInvalid, Detail: "render data source", Err: r.err}
	}
	return out, nil
}

type renderer struct {
	engine *template.Engine
	scope  template.Scope
	err    error
}

func (r *renderer) str(s string) string {
	if r.err != nil || !template.IsTemplate(s) {
		return s
	}
	out, err := r.engine.Render(s, r.scope)
	if err != nil {
		r.err = err
		return s
	}
	return out
}

func (r *renderer) list(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = r.str(s)
	}
	return out
}

func (r *renderer) dict(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = r.str(v)
	}
	return out
}

func (r *renderer) dataSource(ds config.DataSource) config.DataSource {
	out := ds
	switch s := ds.Source.(type) {
	case config.ProcessSource:
		s.Command = r.str(s.Command)
		s.Args = r.list(s.Args)
		s.Env = r.dict(s.Env)
		s.WorkingDir = r.str(s.WorkingDir)
		out.Source = s
	case config.NetworkSource:
		s.URL = r.str(s.URL)
		s.Headers = r.dict(s.Headers)
		s.Params = r.dict(s.Params)
		s.Body = r.str(s.Body)
		out.Source = s
	case config.StreamSource:
		s.Command = r.str(s.Command)
		s.Args = r.list(s.Args)
		s.Env = r.dict(s.Env)
		s.WorkingDir = r.str(s.WorkingDir)
		s.Websocket = r.str(s.Websocket)
		s.Headers = r.dict(s.Headers)
		out.Source = s
	case config.CompositeSource:
		members := make([]config.NamedSource, len(s.Sources))
		for i, m := range s.Sources {
			m.Data = r.dataSource(m.Data)
			members[i] = m
		}
		s.Sources = members
		out.Source = s
	}
	return out
}

// Signature hashes a resolved descriptor. Two descriptors that would issue
// the same request and post-process it the same way share a signature.
func Signature(ds config.DataSource) string {
	w := sigWriter{h: sha256.New()}
	w.dataSource(ds)
	return hex.EncodeToString(w.h.Sum(nil))[:32]
}

type sigWriter struct {
	h hash.Hash
}

func (w sigWriter) str(s string) {
	// Length prefixes keep ("ab","c") distinct from ("a","bc").
	fmt.Fprintf(w.h, "%d:%s;", len(s), s)
}

func (w sigWriter) list(in []string) {
	w.str(strconv.Itoa(len(in)))
	for _, s := range in {
		w.str(s)
	}
}

func (w sigWriter) dict(in map[string]string) {
	w.str(strconv.Itoa(len(in)))
	for _, k := range slices.Sorted(maps.Keys(in)) {
		w.str(k)
		w.str(in[k])
	}
}

func (w sigWriter) dataSource(ds config.DataSource) {
	w.str(ds.Items)
	w.str(string(ds.Format))
	if ds.Source == nil {
		w.str("")
		return
	}
	w.str(string(ds.Source.Kind()))
	switch s := ds.Source.(type) {
	case config.ProcessSource:
		w.str(s.Command)
		w.list(s.Args)
		w.dict(s.Env)
		w.str(s.WorkingDir)
		w.str(strconv.FormatBool(s.Shell))
	case config.NetworkSource:
		w.str(s.Method)
		w.str(s.URL)
		w.dict(s.Headers)
		w.dict(s.Params)
		w.str(s.Body)
	case config.StreamSource:
		w.str(s.Command)
		w.list(s.Args)
		w.dict(s.Env)
		w.str(s.WorkingDir)
		w.str(strconv.FormatBool(s.Shell))
		w.str(s.Websocket)
		w.dict(s.Headers)
	case config.CompositeSource:
		w.str(strconv.FormatBool(s.Merge))
		w.str(strconv.Itoa(len(s.Sources)))
		for _, m := range s.Sources {
			w.str(m.ID)
			w.str(strconv.FormatBool(m.Optional))
			w.dataSource(m.Data)
		}
	}
}
