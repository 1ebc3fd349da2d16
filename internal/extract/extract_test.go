package extract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/termstack/internal/value"
)

func doc(t *testing.T, raw string) value.Value {
	t.Helper()
	v, err := value.Parse([]byte(raw))
	require.NoError(t, err)
	return v
}

func TestAllSimplePaths(t *testing.T) {
	v := doc(t, `{"data":[{"name":"a","tags":["x","y"]},{"name":"b","tags":[]}],"meta":{"total":2}}`)

	tests := []struct {
		path string
		want []string
	}{
		{"$.data[*].name", []string{"a", "b"}},
		{"data[*].name", []string{"a", "b"}},
		{"$.data[1].name", []string{"b"}},
		{"$.data[-1].name", []string{"b"}},
		{"$.meta.total", []string{"2"}},
		{"$.data[0].tags[*]", []string{"x", "y"}},
		{"$['meta']['total']", []string{"2"}},
		{"$.missing[*]", nil},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			p, err := Compile(tt.path)
			require.NoError(t, err)
			var got []string
			for _, m := range p.All(v) {
				got = append(got, m.String())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllFallsBackForFilters(t *testing.T) {
	v := doc(t, `{"pods":[{"name":"a","ready":true},{"name":"b","ready":false}]}`)

	p, err := Compile(`$.pods[?(@.ready == true)].name`)
	require.NoError(t, err)
	got := p.All(v)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].String())

	p, err = Compile(`$..name`)
	require.NoError(t, err)
	assert.Len(t, p.All(v), 2)
}

func TestEmptyArrayYieldsEmptyRows(t *testing.T) {
	v := doc(t, `{"data":[]}`)
	p, err := Compile("$.data[*]")
	require.NoError(t, err)
	assert.Empty(t, p.Rows(v))
}

func TestThis(t *testing.T) {
	v := doc(t, `[{"a":1},{"a":2}]`)
	p, err := Compile(This)
	require.NoError(t, err)

	got, ok := p.First(v)
	require.True(t, ok)
	assert.True(t, got.Equal(v))
	assert.Len(t, p.Rows(v), 2)

	scalar := value.String("x")
	assert.Len(t, p.Rows(scalar), 1)
}

func TestCompileRejectsBadSyntax(t *testing.T) {
	_, err := Compile("$.items[")
	require.Error(t, err)

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "$.items[", perr.Path)
}

func TestFirst(t *testing.T) {
	v := doc(t, `{"id":"pod-1","spec":{"node":"n1"}}`)

	got, ok, err := First("$.spec.node", v)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "n1", got.String())

	_, ok, err = First("$.status.phase", v)
	require.NoError(t, err)
	assert.False(t, ok)
}
