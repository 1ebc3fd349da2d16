package projection

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/termstack/internal/extract"
	"github.com/five82/termstack/internal/scope"
	"github.com/five82/termstack/internal/template"
	"github.com/five82/termstack/internal/value"
)

func dataset(t *testing.T, raw string) value.Dataset {
	t.Helper()
	v, err := value.Parse([]byte(raw))
	require.NoError(t, err)
	return value.Dataset(v.Items())
}

func condition(expr string) Predicate {
	engine := template.New()
	view := scope.New(engine, nil, scope.WithEnviron(nil)).Freeze()
	return Condition(engine, view, expr)
}

func field(name string) Column {
	p := extract.MustCompile(name)
	return Column{Name: name, Text: func(row value.Value) string {
		v, _ := p.First(row)
		return v.String()
	}}
}

const people = `[
	{"status":"active","name":"beta"},
	{"status":"inactive","name":"alpha"},
	{"status":"active","name":"alpha"}
]`

func TestFilterThenSort(t *testing.T) {
	rows := dataset(t, people)

	idx, err := Filter(rows, condition(`status == "active"`))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, idx)

	idx = Sort(rows, idx, PathKey(extract.MustCompile("name")), false)
	assert.Equal(t, []int{2, 0}, idx)
}

func TestFilterComplementPartitions(t *testing.T) {
	rows := dataset(t, people)
	pred := condition(`{{ status == "active" }}`)

	set, err := FilterSet(rows, pred)
	require.NoError(t, err)
	rest := Complement(len(rows), set)

	assert.Equal(t, []int{0, 2}, Indices(set))
	assert.Equal(t, []int{1}, Indices(rest))
	assert.False(t, set.Intersects(rest))
	assert.EqualValues(t, len(rows), set.GetCardinality()+rest.GetCardinality())

	again, err := FilterSet(rows, pred)
	require.NoError(t, err)
	assert.True(t, set.Equals(again))
}

func TestFilterEmptyDataset(t *testing.T) {
	idx, err := Filter(nil, condition("true"))
	require.NoError(t, err)
	assert.NotNil(t, idx)
	assert.Empty(t, idx)

	set, err := FilterSet(nil, condition("true"))
	require.NoError(t, err)
	assert.Empty(t, Indices(Complement(0, set)))
}

func TestFilterErrorExcludesRow(t *testing.T) {
	rows := dataset(t, `[{"n":1},{"n":2},{"n":3}]`)
	idx, err := Filter(rows, func(row value.Value) (bool, error) {
		n, _ := row.Get("n")
		if n.AsNumber() == 2 {
			return false, fmt.Errorf("bad row")
		}
		return true, nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1")
	assert.Equal(t, []int{0, 2}, idx)
}

func TestSortStable(t *testing.T) {
	rows := dataset(t, `[
		{"g":"b","id":0},{"g":"a","id":1},{"g":"b","id":2},
		{"g":"a","id":3},{"g":"b","id":4},{"g":"a","id":5}
	]`)
	key := PathKey(extract.MustCompile("g"))

	asc := Sort(rows, All(len(rows)), key, false)
	assert.Equal(t, []int{1, 3, 5, 0, 2, 4}, asc)

	desc := Sort(rows, append([]int(nil), asc...), key, true)
	assert.Equal(t, []int{0, 2, 4, 1, 3, 5}, desc)

	for range 3 {
		asc = Sort(rows, asc, key, false)
	}
	assert.Equal(t, []int{1, 3, 5, 0, 2, 4}, asc)
}

func TestSortMixedAndMissing(t *testing.T) {
	rows := dataset(t, `[{"v":10},{"v":9},{},{"v":100}]`)
	idx := Sort(rows, All(len(rows)), PathKey(extract.MustCompile("v")), false)
	assert.Equal(t, []int{2, 1, 0, 3}, idx, "numbers compare numerically, missing first")
}

func TestSearch(t *testing.T) {
	rows := dataset(t, `[
		{"name":"web-1","status":"Running","ns":"prod"},
		{"name":"db-1","status":"Pending","ns":"prod"},
		{"name":"web-2","status":"CrashLoop","ns":"dev"}
	]`)
	s := NewSearcher(
		Column{Name: "Name", Text: field("name").Text},
		Column{Name: "Status", Text: field("status").Text},
	)
	all := All(len(rows))

	tests := []struct {
		name  string
		query Query
		want  []int
	}{
		{"empty", Query{}, []int{0, 1, 2}},
		{"substring", Query{Text: "web"}, []int{0, 2}},
		{"case insensitive", Query{Text: "RUNNING"}, []int{0}},
		{"case sensitive", Query{Text: "running", CaseSensitive: true}, []int{}},
		{"hidden field is not searched", Query{Text: "prod"}, []int{}},
		{"column", Query{Text: "%status% pend"}, []int{1}},
		{"column name case", Query{Text: "%NAME% 2"}, []int{2}},
		{"column restricts", Query{Text: "%Status% web"}, []int{}},
		{"unknown column falls back", Query{Text: "%Nope% web"}, []int{}},
		{"regex", Query{Text: "!^web-\\d "}, []int{0, 2}},
		{"regex anchors span the row", Query{Text: "!^db-1 Pending$"}, []int{1}},
		{"regex end anchor", Query{Text: "!-\\d Running$"}, []int{0}},
		{"regex single column anchors miss", Query{Text: "!^web-\\d$"}, []int{}},
		{"regex case", Query{Text: "!^WEB", CaseSensitive: true}, []int{}},
		{"column regex", Query{Text: "%Status% !^(Running|Pending)$"}, []int{0, 1}},
		{"bare marker", Query{Text: "!"}, []int{0, 1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Search(rows, all, tt.query)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Search(%q) mismatch (-want +got):\n%s", tt.query.Text, diff)
			}
		})
	}
}

func TestSearchInvalidRegex(t *testing.T) {
	rows := dataset(t, `[{"a":"x"},{"a":"y"}]`)
	s := NewSearcher()
	got, err := s.Search(rows, []int{1, 0}, Query{Text: "!("})
	require.Error(t, err)
	assert.Equal(t, []int{1, 0}, got)
}

func TestSearchWithoutColumnsUsesLeaves(t *testing.T) {
	rows := dataset(t, `[{"meta":{"labels":["blue","green"]}},{"meta":{"labels":["red"]}},{"n":42}]`)
	s := NewSearcher()
	got, err := s.Search(rows, All(len(rows)), Query{Text: "green"})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, got)

	got, err = s.Search(rows, All(len(rows)), Query{Text: "42"})
	require.NoError(t, err)
	assert.Equal(t, []int{2}, got)
}

func TestProjectionStages(t *testing.T) {
	rows := dataset(t, people)
	filterCalls := 0
	pred := condition(`status == "active"`)

	p := New(NewSearcher(Column{Name: "Name", Text: field("name").Text}))
	p.SetRows(rows)
	p.SetFilter(func(row value.Value) (bool, error) {
		filterCalls++
		return pred(row)
	})
	p.SetSort(PathKey(extract.MustCompile("name")), false)

	idx, err := p.Indices()
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0}, idx)
	assert.Equal(t, 3, filterCalls)

	p.SetQuery(Query{Text: "bet"})
	idx, err = p.Indices()
	require.NoError(t, err)
	assert.Equal(t, []int{0}, idx)
	assert.Equal(t, 3, filterCalls, "search does not re-run the filter")

	row, ok := p.Row(0)
	require.True(t, ok)
	name, _ := row.Get("name")
	assert.Equal(t, "beta", name.String())
	_, ok = p.Row(1)
	assert.False(t, ok)

	p.SetQuery(Query{})
	p.SetSort(PathKey(extract.MustCompile("name")), true)
	assert.Equal(t, 2, p.Len())
	idx, _ = p.Indices()
	assert.Equal(t, []int{0, 2}, idx)

	p.SetRows(dataset(t, `[{"status":"inactive","name":"z"}]`))
	assert.Equal(t, 0, p.Len())
	assert.Equal(t, 4, filterCalls)
}

func TestProjectionDoesNotMutateFilterStage(t *testing.T) {
	rows := dataset(t, `[{"n":3},{"n":1},{"n":2}]`)
	p := New(nil)
	p.SetRows(rows)
	p.SetSort(PathKey(extract.MustCompile("n")), false)
	idx, _ := p.Indices()
	assert.Equal(t, []int{1, 2, 0}, idx)

	p.SetSort(nil, false)
	idx, _ = p.Indices()
	assert.Equal(t, []int{0, 1, 2}, idx)
}
