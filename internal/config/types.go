package config

import (
	"time"

	"github.com/five82/termstack/internal/value"
)

// Config is the immutable, validated form of a configuration document.
type Config struct {
	Version string
	App     App
	Globals map[string]value.Value
	Start   string
	Pages   map[string]*Page

	// Path is the absolute location the document was loaded from.
	Path string
	// Warnings lists non-fatal problems found during validation.
	Warnings []string
}

// Page returns the page with the given id.
func (c *Config) Page(id string) (*Page, bool) {
	p, ok := c.Pages[id]
	return p, ok
}

// App holds application-wide settings.
type App struct {
	Name            string
	Description     string
	Theme           string
	RefreshInterval time.Duration
	CacheTTL        time.Duration
	HistorySize     int
}

// Page is one node of the navigation graph.
type Page struct {
	ID          string
	Title       string
	Description string
	Data        DataSource
	View        View
	Next        *Navigation
	Actions     []Action
}

// Action returns the action bound to key.
func (p *Page) Action(key string) (Action, bool) {
	for _, a := range p.Actions {
		if a.Key == key {
			return a, true
		}
	}
	return Action{}, false
}

// Format selects how raw provider output is parsed.
type Format string

const (
	FormatAuto  Format = "auto"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatText  Format = "text"
	FormatLines Format = "lines"
)

// DataSource describes how a page obtains its rows. Templated fields are kept
// verbatim and rendered at fetch time.
type DataSource struct {
	Source          Source
	Items           string
	Timeout         time.Duration
	CacheTTL        time.Duration
	RefreshInterval time.Duration
	Format          Format
}

// SourceKind names a Source variant.
type SourceKind string

const (
	KindProcess   SourceKind = "process"
	KindNetwork   SourceKind = "network"
	KindComposite SourceKind = "composite"
	KindStream    SourceKind = "stream"
)

// Source is the closed set of provider descriptors: ProcessSource,
// NetworkSource, CompositeSource and StreamSource.
type Source interface {
	Kind() SourceKind
	isSource()
}

// ProcessSource runs a command and parses its standard output.
type ProcessSource struct {
	Command    string
	Args       []string
	Env        map[string]string
	WorkingDir string
	Shell      bool
}

// NetworkSource issues an HTTP request.
type NetworkSource struct {
	URL     string
	Method  string
	Headers map[string]string
	Params  map[string]string
	Body    string
}

// CompositeSource fetches several named sources. With Merge the rows are
// concatenated; otherwise the result is a single object keyed by source id.
type CompositeSource struct {
	Sources []NamedSource
	Merge   bool
}

// NamedSource is one member of a CompositeSource.
type NamedSource struct {
	ID       string
	Optional bool
	Data     DataSource
}

// StreamSource delivers lines incrementally from a long-running command or
// a websocket.
type StreamSource struct {
	Command    string
	Args       []string
	Env        map[string]string
	WorkingDir string
	Shell      bool
	Websocket  string
	Headers    map[string]string
	BufferSize int
	Follow     bool
}

func (ProcessSource) Kind() SourceKind   { return KindProcess }
func (NetworkSource) Kind() SourceKind   { return KindNetwork }
func (CompositeSource) Kind() SourceKind { return KindComposite }
func (StreamSource) Kind() SourceKind    { return KindStream }

func (ProcessSource) isSource()   {}
func (NetworkSource) isSource()   {}
func (CompositeSource) isSource() {}
func (StreamSource) isSource()    {}

// ViewKind selects the renderer for a page.
type ViewKind string

const (
	ViewTable ViewKind = "table"
	ViewLogs  ViewKind = "logs"
	ViewText  ViewKind = "text"
)

// Align is a column alignment.
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// View describes how rows are rendered.
type View struct {
	Kind        ViewKind
	Columns     []Column
	Sort        *Sort
	Filter      string
	RowStyle    []Style
	Follow      bool
	Wrap        bool
	LineNumbers bool
	Syntax      string
}

// Column is a table column.
type Column struct {
	Path      string
	Display   string
	Width     int
	Align     Align
	Transform string
	Style     []Style
}

// Style is a conditional color rule for a row or cell.
type Style struct {
	Condition string
	Color     string
	Bold      bool
	Dim       bool
	Default   bool
}

// Sort is the initial sort of a table.
type Sort struct {
	Column string
	Desc   bool
}

// Navigation is the routing rule of a page. A single unconditional target is
// represented as a Default with no Rules.
type Navigation struct {
	Rules   []Rule
	Default *Target
}

// Target is a destination page plus the context extracted from the selected
// row on the way there.
type Target struct {
	Page    string
	Context map[string]string
}

// Rule routes to Target when Condition evaluates true. An empty condition
// always matches.
type Rule struct {
	Condition string
	Target    Target
}

// Action is a keyboard-triggered operation on the selected row.
type Action struct {
	Key            string
	Name           string
	Description    string
	Confirm        string
	Command        string
	Args           []string
	Shell          bool
	HTTP           *NetworkSource
	Page           string
	Context        map[string]string
	SuccessMessage string
	ErrorMessage   string
	Refresh        bool
	Timeout        time.Duration
}
