package template

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/termstack/internal/value"
)

func scope(t *testing.T, raw string) MapScope {
	t.Helper()
	row, err := value.Parse([]byte(raw))
	require.NoError(t, err)
	return MapScope{
		"row":   row,
		"value": row,
		"env":   value.Object(value.Field{Key: "HOME", Value: value.String("/home/me")}),
		"pods":  value.Object(value.Field{Key: "name", Value: value.String("web-1")}),
	}
}

func TestRender(t *testing.T) {
	s := scope(t, `{"name":"api","count":3,"ratio":0.25,"labels":{"app":"web"},"ports":[80,443],"gone":null}`)
	e := New()

	tests := []struct {
		tmpl string
		want string
	}{
		{"plain text", "plain text"},
		{"{{ row.name }}", "api"},
		{"Pod {{ pods.name }} in {{ env.HOME }}", "Pod web-1 in /home/me"},
		{"{{ row.count }}", "3"},
		{"{{ row.ratio }}", "0.25"},
		{"{{ row.labels.app }}", "web"},
		{"{{ row.ports[1] }}", "443"},
		{"{{ row.ports }}", "[80,443]"},
		{"{{ row.missing }}", ""},
		{"{{ row.missing.deeper }}", ""},
		{"{{ row.gone }}", ""},
		{"{{ nothing }}", ""},
		{"{{ row.count + 1 }}", "4"},
		{"{{ row.name | upper }}", "API"},
		{"{{ row.missing | default(value='n/a') }}", "n/a"},
		{"{{ row.ports | join(sep='/') }}", "80/443"},
		{"{{ row.ports | length }}", "2"},
		{"{{ 'x' == \"x\" }}", "true"},
		{"{{ row.name == 'api' and not (row.count > 5) }}", "true"},
		{"{{ row.count > 5 or row.name == 'api' }}", "true"},
		{"{{ row.name | upper | lower }}", "api"},
	}
	for _, tt := range tests {
		t.Run(tt.tmpl, func(t *testing.T) {
			got, err := e.Render(tt.tmpl, s)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderErrors(t *testing.T) {
	e := New()
	s := scope(t, `{"count":1}`)

	for _, tmpl := range []string{"{{ row.count", "{{ row.count + }}", "{{ nosuchfunc(row) }}", "{{ 'open }}"} {
		_, err := e.Render(tmpl, s)
		require.Error(t, err, tmpl)
		var terr *Error
		assert.True(t, errors.As(err, &terr), tmpl)
	}
}

func TestEvaluate(t *testing.T) {
	e := New()
	s := scope(t, `{"status":"active","type":"directory","size":10}`)

	tests := []struct {
		cond string
		want bool
	}{
		{`row.status == "active"`, true},
		{`row.status == 'inactive'`, false},
		{`{{ value.type == 'directory' }}`, true},
		{`{{ value.size > 100 }}`, false},
		{`row.missing`, false},
		{`"true"`, true},
		{`contains(["a", "b"], "b")`, true},
	}
	for _, tt := range tests {
		t.Run(tt.cond, func(t *testing.T) {
			got, err := e.Evaluate(tt.cond, s)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := e.Evaluate("row.size", s)
	assert.Error(t, err, "numbers are not conditions")
	_, err = e.Evaluate("  ", s)
	assert.Error(t, err)
}

func TestValueKeepsTypes(t *testing.T) {
	e := New()
	s := scope(t, `{"count":3,"labels":{"a":"b"}}`)

	v, err := e.Value("{{ row.count }}", s)
	require.NoError(t, err)
	assert.Equal(t, value.KindNumber, v.Kind())

	v, err = e.Value("{{ row.labels }}", s)
	require.NoError(t, err)
	assert.Equal(t, value.KindObject, v.Kind())

	v, err = e.Value("n={{ row.count }}", s)
	require.NoError(t, err)
	assert.Equal(t, "n=3", v.AsString())

	v, err = e.Value("literal", s)
	require.NoError(t, err)
	assert.Equal(t, "literal", v.AsString())
}

func TestFunctions(t *testing.T) {
	now := time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC)
	e := New(WithClock(func() time.Time { return now }))
	s := MapScope{
		"value": value.Object(
			value.Field{Key: "size", Value: value.Int(1536)},
			value.Field{Key: "created", Value: value.String("2025-01-02T09:00:00Z")},
			value.Field{Key: "status", Value: value.String("Running")},
			value.Field{Key: "name", Value: value.String("a-long-name")},
		),
	}

	tests := []struct {
		tmpl string
		want string
	}{
		{"{{ value.size | filesizeformat }}", "1.5 KiB"},
		{"{{ value.created | timeago }}", "3h"},
		{"{{ value.created | timesince }}", "3 hours ago"},
		{"{{ value.status | status_color }}", "green"},
		{"{{ value.name | truncate(length=6) }}", "a-long…"},
		{"{{ value.name | split('-') | last }}", "name"},
		{"{{ value.name | replace('-', '_') }}", "a_long_name"},
		{"{{ 1234567 | comma }}", "1,234,567"},
		{"{{ value | json }}", `{"created":"2025-01-02T09:00:00Z","name":"a-long-name","size":1536,"status":"Running"}`},
	}
	for _, tt := range tests {
		t.Run(tt.tmpl, func(t *testing.T) {
			got, err := e.Render(tt.tmpl, s)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRewrite(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a | upper", "upper(a)"},
		{"a | default(value='x')", `default(a, "x")`},
		{"a or b", "a || b"},
		{"a and not b", "a && ! b"},
		{`"a|b" | upper`, `upper("a|b")`},
		{"'${x}'", `"$${x}"`},
		{"row.not", "row.not"},
	}
	for _, tt := range tests {
		got, err := rewrite(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
