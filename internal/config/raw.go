package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/five82/termstack/internal/value"
)

type rawConfig struct {
	Version string             `yaml:"version" toml:"version"`
	App     rawApp             `yaml:"app" toml:"app"`
	Globals map[string]any     `yaml:"globals" toml:"globals"`
	Start   string             `yaml:"start" toml:"start"`
	Pages   map[string]rawPage `yaml:"pages" toml:"pages"`
}

type rawApp struct {
	Name            string `yaml:"name" toml:"name"`
	Description     string `yaml:"description" toml:"description"`
	Theme           string `yaml:"theme" toml:"theme"`
	RefreshInterval any    `yaml:"refresh_interval" toml:"refresh_interval"`
	CacheTTL        any    `yaml:"cache_ttl" toml:"cache_ttl"`
	HistorySize     int    `yaml:"history_size" toml:"history_size"`
}

type rawPage struct {
	Title       string      `yaml:"title" toml:"title"`
	Description string      `yaml:"description" toml:"description"`
	Data        rawSource   `yaml:"data" toml:"data"`
	View        rawView     `yaml:"view" toml:"view"`
	Next        any         `yaml:"next" toml:"next"`
	Actions     []rawAction `yaml:"actions" toml:"actions"`
}

type rawSource struct {
	Adapter string `yaml:"adapter" toml:"adapter"`
	Type    string `yaml:"type" toml:"type"`

	ID       string `yaml:"id" toml:"id"`
	Optional bool   `yaml:"optional" toml:"optional"`

	Command    string            `yaml:"command" toml:"command"`
	Script     string            `yaml:"script" toml:"script"`
	Args       []string          `yaml:"args" toml:"args"`
	Env        map[string]string `yaml:"env" toml:"env"`
	WorkingDir string            `yaml:"working_dir" toml:"working_dir"`
	Shell      bool              `yaml:"shell" toml:"shell"`

	URL     string            `yaml:"url" toml:"url"`
	Method  string            `yaml:"method" toml:"method"`
	Headers map[string]string `yaml:"headers" toml:"headers"`
	Params  map[string]string `yaml:"params" toml:"params"`
	Body    string            `yaml:"body" toml:"body"`

	Websocket  string `yaml:"websocket" toml:"websocket"`
	BufferSize int    `yaml:"buffer_size" toml:"buffer_size"`
	Follow     *bool  `yaml:"follow" toml:"follow"`

	Sources []rawSource `yaml:"sources" toml:"sources"`
	Merge   bool        `yaml:"merge" toml:"merge"`

	Items           string `yaml:"items" toml:"items"`
	Timeout         any    `yaml:"timeout" toml:"timeout"`
	CacheTTL        any    `yaml:"cache_ttl" toml:"cache_ttl"`
	RefreshInterval any    `yaml:"refresh_interval" toml:"refresh_interval"`
	Format          string `yaml:"format" toml:"format"`
}

type rawView struct {
	Type        string      `yaml:"type" toml:"type"`
	Columns     []rawColumn `yaml:"columns" toml:"columns"`
	Sort        *rawSort    `yaml:"sort" toml:"sort"`
	Filter      string      `yaml:"filter" toml:"filter"`
	RowStyle    []rawStyle  `yaml:"row_style" toml:"row_style"`
	Follow      *bool       `yaml:"follow" toml:"follow"`
	Wrap        *bool       `yaml:"wrap" toml:"wrap"`
	LineNumbers bool        `yaml:"line_numbers" toml:"line_numbers"`
	Syntax      string      `yaml:"syntax" toml:"syntax"`
}

type rawColumn struct {
	Path      string     `yaml:"path" toml:"path"`
	Display   string     `yaml:"display" toml:"display"`
	Width     int        `yaml:"width" toml:"width"`
	Align     string     `yaml:"align" toml:"align"`
	Transform string     `yaml:"transform" toml:"transform"`
	Style     []rawStyle `yaml:"style" toml:"style"`
}

type rawStyle struct {
	Condition string `yaml:"condition" toml:"condition"`
	Color     string `yaml:"color" toml:"color"`
	Bold      bool   `yaml:"bold" toml:"bold"`
	Dim       bool   `yaml:"dim" toml:"dim"`
	Default   bool   `yaml:"default" toml:"default"`
}

type rawSort struct {
	Column string `yaml:"column" toml:"column"`
	Order  string `yaml:"order" toml:"order"`
}

type rawHTTPAction struct {
	Method  string            `yaml:"method" toml:"method"`
	URL     string            `yaml:"url" toml:"url"`
	Headers map[string]string `yaml:"headers" toml:"headers"`
	Body    string            `yaml:"body" toml:"body"`
}

type rawAction struct {
	Key            string            `yaml:"key" toml:"key"`
	Name           string            `yaml:"name" toml:"name"`
	Description    string            `yaml:"description" toml:"description"`
	Confirm        string            `yaml:"confirm" toml:"confirm"`
	Command        string            `yaml:"command" toml:"command"`
	Script         string            `yaml:"script" toml:"script"`
	Args           []string          `yaml:"args" toml:"args"`
	Shell          bool              `yaml:"shell" toml:"shell"`
	HTTP           *rawHTTPAction    `yaml:"http" toml:"http"`
	Page           string            `yaml:"page" toml:"page"`
	Context        map[string]string `yaml:"context" toml:"context"`
	SuccessMessage string            `yaml:"success_message" toml:"success_message"`
	ErrorMessage   string            `yaml:"error_message" toml:"error_message"`
	Refresh        bool              `yaml:"refresh" toml:"refresh"`
	Timeout        any               `yaml:"timeout" toml:"timeout"`
}

// convert builds the typed configuration. Shape errors that make a field
// unusable (bad durations, unknown adapters) are collected here; graph checks
// happen in validate.
func (r rawConfig) convert() (*Config, error) {
	var errs errorList

	cfg := &Config{
		Version: strings.TrimSpace(r.Version),
		Start:   strings.TrimSpace(r.Start),
		Globals: make(map[string]value.Value, len(r.Globals)),
		Pages:   make(map[string]*Page, len(r.Pages)),
	}
	for k, v := range r.Globals {
		cfg.Globals[k] = value.FromAny(v)
	}

	cfg.App = App{
		Name:        strings.TrimSpace(r.App.Name),
		Description: r.App.Description,
		Theme:       strings.TrimSpace(r.App.Theme),
		HistorySize: r.App.HistorySize,
	}
	if cfg.App.Theme == "" {
		cfg.App.Theme = defaultTheme
	}
	if cfg.App.HistorySize <= 0 {
		cfg.App.HistorySize = defaultHistorySize
	}
	cfg.App.RefreshInterval = errs.duration("", "app.refresh_interval", r.App.RefreshInterval)
	cfg.App.CacheTTL = errs.duration("", "app.cache_ttl", r.App.CacheTTL)

	for id, rp := range r.Pages {
		p := &Page{
			ID:          id,
			Title:       rp.Title,
			Description: rp.Description,
			Data:        errs.dataSource(id, "data", rp.Data),
			View:        errs.view(id, rp.View),
			Next:        errs.navigation(id, rp.Next),
		}
		for i, ra := range rp.Actions {
			p.Actions = append(p.Actions, errs.action(id, i, ra))
		}
		cfg.Pages[id] = p
	}

	if err := errs.join(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *errorList) dataSource(page, field string, r rawSource) DataSource {
	ds := DataSource{
		Items:           strings.TrimSpace(r.Items),
		Timeout:         l.duration(page, field+".timeout", r.Timeout),
		CacheTTL:        l.duration(page, field+".cache_ttl", r.CacheTTL),
		RefreshInterval: l.duration(page, field+".refresh_interval", r.RefreshInterval),
		Format:          Format(strings.ToLower(strings.TrimSpace(r.Format))),
	}
	switch ds.Format {
	case "":
		ds.Format = FormatAuto
	case FormatAuto, FormatJSON, FormatYAML, FormatText, FormatLines:
	default:
		l.add(page, field+".format", fmt.Sprintf("unknown format %q", r.Format))
	}

	if len(r.Sources) > 0 {
		comp := CompositeSource{Merge: r.Merge}
		for i, sub := range r.Sources {
			comp.Sources = append(comp.Sources, NamedSource{
				ID:       strings.TrimSpace(sub.ID),
				Optional: sub.Optional,
				Data:     l.dataSource(page, fmt.Sprintf("%s.sources[%d]", field, i), sub),
			})
		}
		ds.Source = comp
		return ds
	}

	kind := strings.ToLower(strings.TrimSpace(r.Adapter))
	if kind == "" {
		kind = strings.ToLower(strings.TrimSpace(r.Type))
	}
	switch kind {
	case "cli", "process", "script":
		cmd := r.Command
		if kind == "script" {
			cmd = r.Script
		}
		ds.Source = ProcessSource{Command: cmd, Args: r.Args, Env: r.Env, WorkingDir: r.WorkingDir, Shell: r.Shell}
	case "http", "network":
		method := strings.ToUpper(strings.TrimSpace(r.Method))
		if method == "" {
			method = defaultMethod
		}
		ds.Source = NetworkSource{URL: r.URL, Method: method, Headers: r.Headers, Params: r.Params, Body: r.Body}
	case "stream":
		size := r.BufferSize
		if size <= 0 {
			size = defaultBufferSize
		}
		follow := r.Follow == nil || *r.Follow
		ds.Source = StreamSource{
			Command: r.Command, Args: r.Args, Env: r.Env, WorkingDir: r.WorkingDir, Shell: r.Shell,
			Websocket: r.Websocket, Headers: r.Headers, BufferSize: size, Follow: follow,
		}
	case "":
		l.add(page, field, "data source must set adapter, type or sources")
	default:
		l.add(page, field+".adapter", fmt.Sprintf("unknown adapter %q", kind))
	}
	return ds
}

func (l *errorList) view(page string, r rawView) View {
	v := View{
		Kind:        ViewKind(strings.ToLower(strings.TrimSpace(r.Type))),
		Filter:      r.Filter,
		Follow:      r.Follow == nil || *r.Follow,
		Wrap:        r.Wrap == nil || *r.Wrap,
		LineNumbers: r.LineNumbers,
		Syntax:      r.Syntax,
		RowStyle:    styles(r.RowStyle),
	}
	switch v.Kind {
	case "":
		v.Kind = ViewTable
	case ViewTable, ViewLogs, ViewText:
	default:
		l.add(page, "view.type", fmt.Sprintf("unknown view type %q", r.Type))
	}
	for _, c := range r.Columns {
		col := Column{
			Path:      c.Path,
			Display:   c.Display,
			Width:     c.Width,
			Align:     Align(strings.ToLower(c.Align)),
			Transform: c.Transform,
			Style:     styles(c.Style),
		}
		if col.Align == "" {
			col.Align = AlignLeft
		}
		if col.Display == "" {
			col.Display = col.Path
		}
		v.Columns = append(v.Columns, col)
	}
	if r.Sort != nil && r.Sort.Column != "" {
		v.Sort = &Sort{Column: r.Sort.Column, Desc: strings.EqualFold(r.Sort.Order, "desc")}
	}
	return v
}

func styles(raw []rawStyle) []Style {
	if len(raw) == 0 {
		return nil
	}
	out := make([]Style, len(raw))
	for i, s := range raw {
		out[i] = Style(s)
	}
	return out
}

// navigation accepts either a single {page, context} mapping or a list of
// {condition, page, context, default} entries.
func (l *errorList) navigation(page string, raw any) *Navigation {
	switch t := raw.(type) {
	case nil:
		return nil
	case map[string]any:
		target, _, _ := l.target(page, "next", t)
		return &Navigation{Default: &target}
	case []any:
		nav := &Navigation{}
		for i, item := range t {
			field := fmt.Sprintf("next[%d]", i)
			m, ok := item.(map[string]any)
			if !ok {
				l.add(page, field, "navigation entry must be a mapping")
				continue
			}
			target, cond, isDefault := l.target(page, field, m)
			if isDefault {
				if nav.Default != nil {
					l.add(page, field, "multiple default routes")
					continue
				}
				nav.Default = &target
				continue
			}
			nav.Rules = append(nav.Rules, Rule{Condition: cond, Target: target})
		}
		return nav
	default:
		l.add(page, "next", "navigation must be a mapping or a list")
		return nil
	}
}

func (l *errorList) target(page, field string, m map[string]any) (Target, string, bool) {
	t := Target{Page: stringField(m, "page")}
	if ctx, ok := m["context"]; ok {
		cm, ok := ctx.(map[string]any)
		if !ok {
			l.add(page, field+".context", "context must be a mapping")
		}
		t.Context = make(map[string]string, len(cm))
		for k, v := range cm {
			t.Context[k] = fmt.Sprint(v)
		}
	}
	isDefault, _ := m["default"].(bool)
	return t, stringField(m, "condition"), isDefault
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func (l *errorList) action(page string, i int, r rawAction) Action {
	a := Action{
		Key:            r.Key,
		Name:           r.Name,
		Description:    r.Description,
		Confirm:        r.Confirm,
		Command:        r.Command,
		Args:           r.Args,
		Shell:          r.Shell,
		Page:           strings.TrimSpace(r.Page),
		Context:        r.Context,
		SuccessMessage: r.SuccessMessage,
		ErrorMessage:   r.ErrorMessage,
		Refresh:        r.Refresh,
		Timeout:        l.duration(page, fmt.Sprintf("actions[%d].timeout", i), r.Timeout),
	}
	if a.Command == "" && r.Script != "" {
		a.Command = r.Script
	}
	if r.HTTP != nil {
		method := strings.ToUpper(strings.TrimSpace(r.HTTP.Method))
		if method == "" {
			method = defaultMethod
		}
		a.HTTP = &NetworkSource{URL: r.HTTP.URL, Method: method, Headers: r.HTTP.Headers, Body: r.HTTP.Body}
	}
	return a
}

// duration accepts Go duration strings ("500ms", "5m") and bare numbers of
// seconds.
func (l *errorList) duration(page, field string, raw any) time.Duration {
	d, err := ParseDuration(raw)
	if err != nil {
		l.add(page, field, err.Error())
	}
	return d
}

// ParseDuration converts a document duration value.
func ParseDuration(raw any) (time.Duration, error) {
	switch t := raw.(type) {
	case nil:
		return 0, nil
	case int:
		return time.Duration(t) * time.Second, nil
	case int64:
		return time.Duration(t) * time.Second, nil
	case uint64:
		return time.Duration(t) * time.Second, nil
	case float64:
		return time.Duration(t * float64(time.Second)), nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, nil
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return time.Duration(n * float64(time.Second)), nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("invalid duration %v", raw)
	}
}
