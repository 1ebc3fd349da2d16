package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/termstack/internal/cache"
	"github.com/five82/termstack/internal/config"
	"github.com/five82/termstack/internal/nav"
	"github.com/five82/termstack/internal/provider"
	"github.com/five82/termstack/internal/scope"
	"github.com/five82/termstack/internal/state"
	"github.com/five82/termstack/internal/template"
	"github.com/five82/termstack/internal/value"
)

const servicesJSON = `[{"name":"web","status":"Running","port":80},{"name":"db","status":"Failed","port":5432},{"name":"cache","status":"Running","port":6379}]`

func testConfig() *config.Config {
	return &config.Config{
		App:   config.App{Name: "test"},
		Start: "services",
		Pages: map[string]*config.Page{
			"services": {
				ID:    "services",
				Title: "Services",
				Data: config.DataSource{Source: config.ProcessSource{
					Command: "printf '%s' '" + servicesJSON + "'",
					Shell:   true,
				}},
				View: config.View{
					Kind: config.ViewTable,
					Columns: []config.Column{
						{Path: "name", Display: "Name"},
						{Path: "status", Display: "Status", Style: []config.Style{
							{Condition: `value == "Failed"`, Color: "red"},
						}},
						{Path: "port", Display: "Port", Align: config.AlignRight},
					},
				},
				Next: &config.Navigation{Default: &config.Target{
					Page:    "service",
					Context: map[string]string{"service": "name"},
				}},
			},
			"service": {
				ID:    "service",
				Title: "Service {{ service }}",
				Data: config.DataSource{Source: config.ProcessSource{
					Command: "printf '%s' '{\"name\":\"{{ service }}\"}'",
					Shell:   true,
				}},
				View: config.View{Kind: config.ViewText},
			},
		},
	}
}

func newTestModel(t *testing.T) Model {
	t.Helper()
	cfg := testConfig()
	engine := template.New()
	m := New(Options{
		Config:   cfg,
		Engine:   engine,
		Resolver: scope.New(engine, nil, scope.WithEnviron(nil)),
		Pipeline: provider.New(engine, cache.New(nil)),
		Store:    &state.Store{},
	})
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 30})
	return m
}

// update feeds msg to the model.
func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

// run executes cmd and feeds its message back to the model.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	return update(t, m, cmd())
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loaded(t *testing.T) Model {
	t.Helper()
	m := newTestModel(t)
	cmd := m.activate(arriveStart, nil, trailEntry{})
	m = run(t, m, cmd)
	snap := m.store.Snapshot("services")
	if snap.LastError != nil {
		t.Fatalf("fetch failed: %v", snap.LastError)
	}
	if got := m.current().proj.Len(); got != 3 {
		t.Fatalf("rows = %d, want 3", got)
	}
	return m
}

func TestModelLoadsStartPage(t *testing.T) {
	m := loaded(t)

	view := m.View()
	for _, want := range []string{"Services (3)", "web", "5432", "3/3 rows"} {
		if !strings.Contains(view, want) {
			t.Errorf("view does not contain %q", want)
		}
	}
}

func TestModelSearchAndSort(t *testing.T) {
	m := loaded(t)
	pv := m.current()

	m = update(t, m, keyPress("/"))
	if !pv.searching {
		t.Fatal("search prompt did not open")
	}
	for _, r := range "run" {
		m = update(t, m, keyPress(string(r)))
	}
	if got := pv.proj.Len(); got != 2 {
		t.Fatalf("rows matching run = %d, want 2", got)
	}
	m = update(t, m, keyPress("enter"))
	if pv.searching {
		t.Fatal("enter did not close the prompt")
	}

	m = update(t, m, keyPress("s"))
	if pv.sortTitle() != "Name" {
		t.Fatalf("sort column = %q, want Name", pv.sortTitle())
	}
	row, _ := pv.selectedRow()
	if name, _ := row.Get("name"); name.AsString() != "cache" {
		t.Fatalf("first row = %q, want cache", name.AsString())
	}
	m = update(t, m, keyPress("S"))
	row, _ = pv.selectedRow()
	if name, _ := row.Get("name"); name.AsString() != "web" {
		t.Fatalf("first row after flip = %q, want web", name.AsString())
	}

	// esc clears the search before it navigates.
	m = update(t, m, keyPress("esc"))
	if !pv.proj.Query().Empty() || pv.proj.Len() != 3 {
		t.Fatalf("esc did not clear the search, %d rows", pv.proj.Len())
	}
	if m.nav.Current() != "services" {
		t.Fatalf("current = %q, want services", m.nav.Current())
	}
}

func TestModelNavigatesAndRestores(t *testing.T) {
	m := loaded(t)
	m = update(t, m, keyPress("j"))
	if m.current().selected != 1 {
		t.Fatalf("selected = %d, want 1", m.current().selected)
	}

	next, cmd := m.Update(keyPress("enter"))
	m = next.(Model)
	if m.nav.Current() != "service" {
		t.Fatalf("current = %q, want service", m.nav.Current())
	}
	if got := m.breadcrumb(); len(got) != 2 || got[1] != "Service db" {
		t.Fatalf("breadcrumb = %v", got)
	}
	m = run(t, m, cmd)
	if rows := m.current().proj.Rows(); len(rows) != 1 {
		t.Fatalf("detail rows = %d, want 1", len(rows))
	}
	if !strings.Contains(m.View(), `"db"`) {
		t.Error("detail view does not show the selected service")
	}

	m = update(t, m, keyPress("esc"))
	if m.nav.Current() != "services" {
		t.Fatalf("current after back = %q, want services", m.nav.Current())
	}
	pv := m.current()
	// The previous rows are shown before the refresh completes.
	if got := pv.proj.Len(); got != 3 {
		t.Fatalf("rows after back = %d, want 3", got)
	}
	if pv.selected != 1 {
		t.Fatalf("selected after back = %d, want 1", pv.selected)
	}
	if !m.store.Snapshot("services").Loading {
		t.Fatal("back did not start a background refresh")
	}
}

func TestModelRestoresSelectionWithoutCachedRows(t *testing.T) {
	m := newTestModel(t)
	cmd := m.activate(arriveBack, &nav.ViewState{Selected: 2}, trailEntry{})
	if got := m.current().proj.Len(); got != 0 {
		t.Fatalf("rows before fetch = %d, want 0", got)
	}
	m = run(t, m, cmd)

	pv := m.current()
	if pv.selected != 2 {
		t.Fatalf("selected after fetch = %d, want 2", pv.selected)
	}
	row, _ := pv.selectedRow()
	if name, _ := row.Get("name"); name.AsString() != "cache" {
		t.Fatalf("selected row = %q, want cache", name.AsString())
	}
}

func TestModelInfersColumns(t *testing.T) {
	m := newTestModel(t)
	m.cfg.Pages["services"].View.Columns = nil
	cmd := m.activate(arriveStart, nil, trailEntry{})
	m = run(t, m, cmd)

	pv := m.current()
	if len(pv.columns) != 3 {
		t.Fatalf("columns = %d, want 3", len(pv.columns))
	}
	view := m.View()
	for _, want := range []string{"Name", "Status", "Port", "web", "6379"} {
		if !strings.Contains(view, want) {
			t.Errorf("view does not contain %q", want)
		}
	}
}

func TestModelDiscardsStaleResults(t *testing.T) {
	m := loaded(t)
	pv := m.current()

	first := m.fetch(pv, true)
	second := m.fetch(pv, true)

	m = run(t, m, first)
	if snap := m.store.Snapshot("services"); snap.LastError != nil || !snap.Loading {
		t.Fatalf("stale result was applied: %+v", snap)
	}
	m = run(t, m, second)
	if snap := m.store.Snapshot("services"); snap.Loading || snap.LastError != nil {
		t.Fatalf("latest result was not applied: %+v", snap)
	}
}

func TestModelFetchErrorPanel(t *testing.T) {
	m := newTestModel(t)
	m.cfg.Pages["services"].Data.Source = config.ProcessSource{Command: "echo boom >&2; exit 3", Shell: true}
	cmd := m.activate(arriveStart, nil, trailEntry{})
	m = run(t, m, cmd)

	if m.store.Snapshot("services").LastError == nil {
		t.Fatal("expected a fetch error")
	}
	if view := m.View(); !strings.Contains(view, "Failed to load data") || !strings.Contains(view, "retry") {
		t.Fatal("error panel not shown")
	}
	m = update(t, m, keyPress("esc"))
	if !m.current().errDismissed {
		t.Fatal("esc did not dismiss the error")
	}
}

func TestColumnWidths(t *testing.T) {
	cols := compileColumns([]config.Column{
		{Path: "name", Display: "Name"},
		{Path: "status", Display: "Status", Width: 8},
		{Path: "note", Display: "Note"},
	})
	rows := [][]string{{"web", "Running", strings.Repeat("x", 40)}}

	widths := columnWidths(cols, rows, 80)
	if widths[1] != 8 {
		t.Fatalf("fixed width = %d, want 8", widths[1])
	}
	total := widths[0] + widths[1] + widths[2] + 1 + 2*columnGap
	if total != 80 {
		t.Fatalf("total width = %d, want 80 (%v)", total, widths)
	}

	narrow := columnWidths(cols, rows, 30)
	used := 1
	for i, w := range narrow {
		if w > 0 {
			used += w
			if i > 0 {
				used += columnGap
			}
		}
	}
	if used > 30 {
		t.Fatalf("narrow layout uses %d cells (%v)", used, narrow)
	}
}

func TestDatasetLines(t *testing.T) {
	rows := value.Dataset{
		value.String("first\nsecond\n"),
		value.Object(value.Field{Key: "a", Value: value.Int(1)}),
	}
	got := datasetLines(rows)
	want := []string{"first", "second", `{"a":1}`}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("datasetLines = %q, want %q", got, want)
	}
}

func TestTextDocument(t *testing.T) {
	doc, syntax := textDocument(value.Dataset{value.String("plain")}, "")
	if doc != "plain" || syntax != "" {
		t.Fatalf("string row = %q/%q", doc, syntax)
	}

	row := value.Object(value.Field{Key: "name", Value: value.String("web")})
	doc, syntax = textDocument(value.Dataset{row}, "yaml")
	if doc != "name: web" || syntax != "yaml" {
		t.Fatalf("yaml = %q/%q", doc, syntax)
	}

	doc, syntax = textDocument(value.Dataset{row}, "")
	if syntax != "json" || !strings.Contains(doc, `"name": "web"`) {
		t.Fatalf("json = %q/%q", doc, syntax)
	}
}
