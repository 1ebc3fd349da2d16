package action

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/termstack/internal/cache"
	"github.com/five82/termstack/internal/config"
	"github.com/five82/termstack/internal/provider"
	"github.com/five82/termstack/internal/scope"
	"github.com/five82/termstack/internal/template"
	"github.com/five82/termstack/internal/value"
)

func newExecutor(t *testing.T) *Executor {
	t.Helper()
	engine := template.New()
	logger := slog.New(slog.DiscardHandler)
	resolver := scope.New(engine, map[string]value.Value{"ctx": value.String("prod")}, scope.WithEnviron(nil), scope.WithLogger(logger))
	pipeline := provider.New(engine, cache.New(time.Now), provider.WithLogger(logger))
	return New(engine, resolver, pipeline, logger)
}

func pod(t *testing.T) value.Value {
	t.Helper()
	v, err := value.Parse([]byte(`{"name":"web-1","namespace":"default"}`))
	require.NoError(t, err)
	return v
}

func TestRunCommand(t *testing.T) {
	e := newExecutor(t)
	a := config.Action{
		Key:            "d",
		Name:           "Describe",
		Command:        "echo",
		Args:           []string{"{{ target }}", "{{ ctx }}"},
		Context:        map[string]string{"target": "$.name"},
		SuccessMessage: "described {{ name }}",
		Refresh:        true,
	}
	out := e.Run(context.Background(), a, pod(t))
	require.NoError(t, out.Err)
	assert.Equal(t, "web-1 prod", out.Output)
	assert.Equal(t, "described web-1", out.Message)
	assert.True(t, out.Refresh)
	assert.Nil(t, out.Navigate)
}

func TestRunCommandFailure(t *testing.T) {
	e := newExecutor(t)
	a := config.Action{
		Name:         "Delete",
		Command:      "echo denied >&2; exit 1",
		Shell:        true,
		ErrorMessage: "could not delete {{ row.name }}",
		Refresh:      true,
	}
	out := e.Run(context.Background(), a, pod(t))
	require.Error(t, out.Err)
	assert.ErrorIs(t, out.Err, provider.ErrSourceFailed)
	assert.Equal(t, "could not delete web-1", out.Message)
	assert.False(t, out.Refresh, "failed actions do not refresh")
}

func TestRunCommandDefaultMessages(t *testing.T) {
	e := newExecutor(t)
	out := e.Run(context.Background(), config.Action{Name: "Ping", Command: "printf 'pong\\nmore'", Shell: true}, pod(t))
	require.NoError(t, out.Err)
	assert.Equal(t, "Ping completed: pong", out.Message)

	out = e.Run(context.Background(), config.Action{Name: "Slow", Command: "sleep 5", Shell: true, Timeout: 100 * time.Millisecond}, pod(t))
	assert.ErrorIs(t, out.Err, provider.ErrTimeout)
	assert.Contains(t, out.Message, "Slow failed")
}

func TestRunHTTP(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	e := newExecutor(t)
	a := config.Action{
		Name: "Restart",
		HTTP: &config.NetworkSource{
			URL:    srv.URL + "/restart/{{ name }}",
			Method: http.MethodPost,
			Body:   `{"ns":"{{ namespace }}"}`,
		},
	}
	assert.Equal(t, KindHTTP, KindOf(a))
	out := e.Run(context.Background(), a, pod(t))
	require.NoError(t, out.Err)
	assert.Equal(t, "/restart/web-1", gotPath)
	assert.Equal(t, `{"ns":"default"}`, gotBody)
	assert.Equal(t, `{"ok":true}`, out.Output)
}

func TestRunPage(t *testing.T) {
	e := newExecutor(t)
	a := config.Action{Name: "Logs", Page: "logs", Context: map[string]string{"pod": "$.name"}}
	assert.Equal(t, KindPage, KindOf(a))

	out := e.Run(context.Background(), a, pod(t))
	require.NotNil(t, out.Navigate)
	assert.Equal(t, "logs", out.Navigate.Page)
	assert.Equal(t, map[string]string{"pod": "$.name"}, out.Navigate.Context)
	assert.NoError(t, out.Err)
}

func TestConfirmation(t *testing.T) {
	e := newExecutor(t)
	msg, ok := e.Confirmation(config.Action{Confirm: "Delete {{ name }} in {{ namespace }}?"}, pod(t))
	require.True(t, ok)
	assert.Equal(t, "Delete web-1 in default?", msg)

	_, ok = e.Confirmation(config.Action{Command: "true"}, pod(t))
	assert.False(t, ok)
}

func TestScopePrecedence(t *testing.T) {
	e := newExecutor(t)
	s := e.Scope(config.Action{Context: map[string]string{"name": "$.namespace", "row": "$.name"}}, pod(t))

	v, ok := s.Lookup("name")
	require.True(t, ok)
	assert.Equal(t, "default", v.String(), "context bindings shadow row fields")

	v, ok = s.Lookup("row")
	require.True(t, ok)
	assert.Equal(t, value.KindObject, v.Kind(), "row stays the ephemeral binding")
}
