package ui

import (
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"

	"github.com/five82/termstack/internal/config"
	"github.com/five82/termstack/internal/extract"
	"github.com/five82/termstack/internal/logtail"
	"github.com/five82/termstack/internal/nav"
	"github.com/five82/termstack/internal/projection"
	"github.com/five82/termstack/internal/scope"
	"github.com/five82/termstack/internal/state"
	"github.com/five82/termstack/internal/template"
	"github.com/five82/termstack/internal/value"
)

const thisPath = "@this"

// column is a table column with its path compiled once.
type column struct {
	spec  config.Column
	title string
	path  *extract.Path
	err   error
}

// cells renders cell text and resolves style rules against the resolver's
// current context.
type cells struct {
	engine   *template.Engine
	resolver *scope.Resolver
	logger   *slog.Logger
}

// value extracts the raw cell of col from row.
func (c cells) value(col *column, row value.Value) value.Value {
	if col.path == nil {
		return value.Null()
	}
	v, _ := col.path.First(row)
	return v
}

// text is the displayed text of a cell: the extracted value, run through
// the column transform when there is one. Failures render as a marker.
func (c cells) text(col *column, row value.Value) string {
	if col.err != nil {
		return errorMarker
	}
	cell := c.value(col, row)
	if col.spec.Transform == "" {
		return cell.String()
	}
	out, err := c.engine.Render(col.spec.Transform, c.resolver.Freeze().WithCell(row, cell))
	if err != nil {
		c.logger.Debug("column transform failed", "column", col.title, "error", err)
		return errorMarker
	}
	return out
}

// style returns the first rule whose condition holds, falling back to the
// rule marked default.
func (c cells) style(rules []config.Style, s template.Scope) (config.Style, bool) {
	var fallback *config.Style
	for i := range rules {
		r := rules[i]
		if r.Default || strings.TrimSpace(r.Condition) == "" {
			if fallback == nil {
				fallback = &rules[i]
			}
			continue
		}
		ok, err := c.engine.Evaluate(r.Condition, s)
		if err != nil {
			c.logger.Debug("style condition failed", "condition", r.Condition, "error", err)
			continue
		}
		if ok {
			return r, true
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return config.Style{}, false
}

const errorMarker = "⚠"

// pageView is the UI state of one page. It is held by pointer so the copies
// of Model that bubbletea passes around share it.
type pageView struct {
	page    *config.Page
	columns []column
	proj    *projection.Projection
	filter  projection.Predicate

	selected int
	offset   int
	// pending holds a restored cursor until the page has rows to place it on.
	pending *nav.ViewState

	sortCol  int // index into columns, -1 when unsorted
	sortDesc bool
	// wantSort names the initial sort column until the columns are known.
	wantSort string
	wantDesc bool

	searching     bool
	input         textinput.Model
	caseSensitive bool

	// epoch invalidates refresh ticks and stream reads scheduled before the
	// page was last activated.
	epoch        int
	errDismissed bool

	viewport viewport.Model
	follow   bool
	wrap     bool

	stream *streamState

	// content caching for viewport pages
	version  uint64
	rendered uint64
}

// streamState is the live output of a stream page.
type streamState struct {
	ticket state.Ticket
	buf    *logtail.Buffer
	done   bool
	err    error
}

func newPageView(page *config.Page, c cells, caseSensitive bool) *pageView {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "search (!regex, %Column% term)"
	ti.CharLimit = 200

	pv := &pageView{
		page:          page,
		sortCol:       -1,
		input:         ti,
		caseSensitive: caseSensitive,
		follow:        page.View.Follow || isFollowStream(page),
		wrap:          page.View.Wrap,
		viewport:      viewport.New(0, 0),
	}
	pv.columns = compileColumns(page.View.Columns)

	var searchCols []projection.Column
	if page.View.Kind == config.ViewTable || page.View.Kind == "" {
		for i := range pv.columns {
			col := &pv.columns[i]
			searchCols = append(searchCols, projection.Column{
				Name: col.title,
				Text: func(row value.Value) string { return c.text(col, row) },
			})
		}
	}
	pv.proj = projection.New(projection.NewSearcher(searchCols...))
	return pv
}

func isFollowStream(page *config.Page) bool {
	s, ok := page.Data.Source.(config.StreamSource)
	return ok && s.Follow
}

func compileColumns(specs []config.Column) []column {
	cols := make([]column, 0, len(specs))
	for _, spec := range specs {
		col := column{spec: spec, title: spec.Display}
		if col.title == "" {
			col.title = titleCase(spec.Path)
		}
		path := spec.Path
		if strings.TrimSpace(path) == "" {
			path = thisPath
		}
		col.path, col.err = extract.Compile(path)
		cols = append(cols, col)
	}
	return cols
}

// inferColumns derives columns from the first row when the page declares
// none: one per scalar field of an object row, or a single value column.
func (pv *pageView) inferColumns(c cells, rows value.Dataset) {
	if len(pv.page.View.Columns) > 0 || len(pv.columns) > 0 || len(rows) == 0 {
		return
	}
	var specs []config.Column
	if first := rows[0]; first.Kind() == value.KindObject {
		for _, k := range first.Keys() {
			if v, _ := first.Get(k); v.IsScalar() {
				specs = append(specs, config.Column{Path: k, Display: titleCase(k)})
			}
		}
	}
	if len(specs) == 0 {
		specs = []config.Column{{Path: thisPath, Display: "Value"}}
	}
	pv.columns = compileColumns(specs)
	searchCols := make([]projection.Column, 0, len(pv.columns))
	for i := range pv.columns {
		col := &pv.columns[i]
		searchCols = append(searchCols, projection.Column{
			Name: col.title,
			Text: func(row value.Value) string { return c.text(col, row) },
		})
	}
	rowsBefore := pv.proj.Rows()
	query := pv.proj.Query()
	pv.proj = projection.New(projection.NewSearcher(searchCols...))
	pv.proj.SetFilter(pv.filter)
	pv.proj.SetRows(rowsBefore)
	pv.proj.SetQuery(query)
	pv.resolveSort()
}

// resolveSort applies the initial sort once its column exists.
func (pv *pageView) resolveSort() {
	if pv.sortCol >= 0 || pv.wantSort == "" {
		return
	}
	if i := pv.columnIndex(pv.wantSort); i >= 0 {
		pv.sortCol = i
		pv.sortDesc = pv.wantDesc
		pv.wantSort = ""
		pv.applySort()
	}
}

// setFilter installs the page's filter condition.
func (pv *pageView) setFilter(pred projection.Predicate) {
	pv.filter = pred
	pv.proj.SetFilter(pred)
}

// columnIndex finds a column by title or path, ignoring case.
func (pv *pageView) columnIndex(name string) int {
	name = strings.TrimSpace(name)
	if name == "" {
		return -1
	}
	for i, col := range pv.columns {
		if strings.EqualFold(col.title, name) || strings.EqualFold(col.spec.Path, name) {
			return i
		}
	}
	return -1
}

// applySort pushes the current sort column into the projection.
func (pv *pageView) applySort() {
	if pv.sortCol < 0 || pv.sortCol >= len(pv.columns) || pv.columns[pv.sortCol].path == nil {
		pv.proj.SetSort(nil, false)
		return
	}
	pv.proj.SetSort(projection.PathKey(pv.columns[pv.sortCol].path), pv.sortDesc)
}

// sortTitle is the title of the sort column, or "".
func (pv *pageView) sortTitle() string {
	if pv.sortCol < 0 || pv.sortCol >= len(pv.columns) {
		return ""
	}
	return pv.columns[pv.sortCol].title
}

// cycleSort moves to the next sort column; after the last column the table
// is unsorted again.
func (pv *pageView) cycleSort() {
	if len(pv.columns) == 0 {
		return
	}
	pv.sortCol++
	if pv.sortCol >= len(pv.columns) {
		pv.sortCol = -1
		pv.sortDesc = false
	}
	pv.applySort()
}

// flipSort reverses the sort order, sorting by the first column when the
// table is unsorted.
func (pv *pageView) flipSort() {
	if len(pv.columns) == 0 {
		return
	}
	if pv.sortCol < 0 {
		pv.sortCol = 0
	} else {
		pv.sortDesc = !pv.sortDesc
	}
	pv.applySort()
}

// setQuery applies text as the search query.
func (pv *pageView) setQuery(text string) {
	pv.proj.SetQuery(projection.Query{Text: text, CaseSensitive: pv.caseSensitive})
	pv.selected = 0
	pv.offset = 0
	pv.version++
}

// viewState captures what is restored when navigating back to this page.
func (pv *pageView) viewState() nav.ViewState {
	return nav.ViewState{
		Selected:      pv.selected,
		Scroll:        pv.offset,
		Filter:        pv.page.View.Filter,
		Search:        pv.proj.Query().Text,
		CaseSensitive: pv.caseSensitive,
		SortColumn:    pv.sortTitle(),
		SortDesc:      pv.sortDesc,
	}
}

// restore reapplies a captured view state.
func (pv *pageView) restore(vs nav.ViewState) {
	pv.caseSensitive = vs.CaseSensitive
	pv.sortCol = -1
	pv.sortDesc = false
	pv.wantSort, pv.wantDesc = vs.SortColumn, vs.SortDesc
	pv.resolveSort()
	pv.applySort()
	pv.input.SetValue(vs.Search)
	pv.setQuery(vs.Search)
	pv.selected = vs.Selected
	pv.offset = vs.Scroll
}

// placeCursor moves the cursor to the restored position once rows exist.
func (pv *pageView) placeCursor(height int) {
	if pv.pending == nil || pv.proj.Len() == 0 {
		return
	}
	pv.selected, pv.offset = pv.pending.Selected, pv.pending.Scroll
	pv.pending = nil
	pv.clamp(height)
}

// visible returns the projected row indices. A search error leaves every
// filtered row visible and is returned alongside.
func (pv *pageView) visible() ([]int, error) {
	return pv.proj.Indices()
}

// selectedRow returns the row under the cursor.
func (pv *pageView) selectedRow() (value.Value, bool) {
	return pv.proj.Row(pv.selected)
}

// clamp keeps the cursor inside the projection and scrolls it into a window
// of height rows.
func (pv *pageView) clamp(height int) {
	n := pv.proj.Len()
	if pv.selected >= n {
		pv.selected = n - 1
	}
	if pv.selected < 0 {
		pv.selected = 0
	}
	if height <= 0 {
		return
	}
	if pv.selected < pv.offset {
		pv.offset = pv.selected
	}
	if pv.selected >= pv.offset+height {
		pv.offset = pv.selected - height + 1
	}
	if maxOffset := max(n-height, 0); pv.offset > maxOffset {
		pv.offset = maxOffset
	}
	if pv.offset < 0 {
		pv.offset = 0
	}
}

// move shifts the cursor by delta rows.
func (pv *pageView) move(delta int) {
	pv.selected += delta
	if pv.selected < 0 {
		pv.selected = 0
	}
	if n := pv.proj.Len(); pv.selected >= n {
		pv.selected = n - 1
	}
}
