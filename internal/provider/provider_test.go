package provider

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/termstack/internal/cache"
	"github.com/five82/termstack/internal/config"
	"github.com/five82/termstack/internal/template"
	"github.com/five82/termstack/internal/value"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newPipeline(t *testing.T, opts ...Option) (*Pipeline, *cache.Cache, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := cache.New(clk.Now)
	return New(template.New(), c, opts...), c, clk
}

func shell(line string) config.DataSource {
	return config.DataSource{Source: config.ProcessSource{Command: line, Shell: true}}
}

func names(rows value.Dataset, key string) []string {
	var out []string
	for _, r := range rows {
		v, _ := r.Get(key)
		out = append(out, v.String())
	}
	return out
}

func TestFetchProcessJSON(t *testing.T) {
	p, _, _ := newPipeline(t)
	ds := shell(`echo '{"data":[{"name":"a"},{"name":"b"}]}'`)
	ds.Items = "$.data[*]"

	res, err := p.Fetch(context.Background(), "pods", ds, template.MapScope{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names(res.Rows, "name"))
	assert.False(t, res.Cached)
}

func TestFetchEmptyItems(t *testing.T) {
	p, _, _ := newPipeline(t)
	ds := shell(`echo '{"data":[]}'`)
	ds.Items = "$.data[*]"

	res, err := p.Fetch(context.Background(), "pods", ds, template.MapScope{})
	require.NoError(t, err)
	assert.NotNil(t, res.Rows)
	assert.Empty(t, res.Rows)
}

func TestFetchSingleFlight(t *testing.T) {
	p, _, _ := newPipeline(t)
	ds := shell(`sleep 0.3; echo '[1,2,3]'`)
	ds.CacheTTL = time.Minute

	const callers = 8
	var wg sync.WaitGroup
	results := make([]Result, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = p.Fetch(context.Background(), "nums", ds, template.MapScope{})
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, p.Executions())
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Len(t, results[i].Rows, 3)
	}
}

func TestFetchCacheTTL(t *testing.T) {
	p, c, clk := newPipeline(t)
	ds := shell(`echo '[1]'`)
	ds.CacheTTL = 10 * time.Second
	ctx := context.Background()

	_, err := p.Fetch(ctx, "n", ds, template.MapScope{})
	require.NoError(t, err)
	res, err := p.Fetch(ctx, "n", ds, template.MapScope{})
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.EqualValues(t, 1, p.Executions())
	assert.Equal(t, 1, c.Len())

	clk.Advance(11 * time.Second)
	res, err = p.Fetch(ctx, "n", ds, template.MapScope{})
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.EqualValues(t, 2, p.Executions())
}

func TestFetchWithoutTTLIsNotCached(t *testing.T) {
	p, c, _ := newPipeline(t)
	ds := shell(`echo '[1]'`)

	for range 2 {
		_, err := p.Fetch(context.Background(), "n", ds, template.MapScope{})
		require.NoError(t, err)
	}
	assert.EqualValues(t, 2, p.Executions())
	assert.Equal(t, 0, c.Len())
}

func TestFetchTimeout(t *testing.T) {
	p, c, _ := newPipeline(t, WithDefaultTTL(time.Minute))
	ds := shell(`sleep 5`)
	ds.Timeout = 200 * time.Millisecond

	start := time.Now()
	_, err := p.Fetch(context.Background(), "slow", ds, template.MapScope{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 4*time.Second)
	assert.Equal(t, 0, c.Len())

	fe := AsFetchError(err)
	assert.Equal(t, KindTimeout, fe.Kind)
	assert.True(t, fe.Retryable())
}

func TestFetchCallerCancel(t *testing.T) {
	p, _, _ := newPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := p.Fetch(ctx, "slow", shell(`sleep 5`), template.MapScope{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchProcessFailure(t *testing.T) {
	p, _, _ := newPipeline(t)
	_, err := p.Fetch(context.Background(), "bad", shell(`echo boom >&2; exit 3`), template.MapScope{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceFailed)
	assert.Contains(t, err.Error(), "boom")
}

func TestFetchTemplatedSignature(t *testing.T) {
	p, _, _ := newPipeline(t)
	ds := shell(`echo '[{"ns":"{{ namespace }}"}]'`)
	ds.CacheTTL = time.Minute

	a, err := p.Fetch(context.Background(), "pods", ds, template.MapScope{"namespace": value.String("default")})
	require.NoError(t, err)
	b, err := p.Fetch(context.Background(), "pods", ds, template.MapScope{"namespace": value.String("kube-system")})
	require.NoError(t, err)

	assert.NotEqual(t, a.Signature, b.Signature)
	assert.Equal(t, []string{"kube-system"}, names(b.Rows, "ns"))
	assert.EqualValues(t, 2, p.Executions())
}

func TestCachedPeeksExpired(t *testing.T) {
	p, _, clk := newPipeline(t)
	ds := shell(`echo '[1]'`)
	ds.CacheTTL = time.Second

	_, ok := p.Cached("n", ds, template.MapScope{})
	assert.False(t, ok)

	_, err := p.Fetch(context.Background(), "n", ds, template.MapScope{})
	require.NoError(t, err)
	clk.Advance(time.Hour)

	res, ok := p.Cached("n", ds, template.MapScope{})
	require.True(t, ok)
	assert.True(t, res.Cached)

	p.Invalidate("n")
	_, ok = p.Cached("n", ds, template.MapScope{})
	assert.False(t, ok)
}

func TestSignatureDistinguishesFields(t *testing.T) {
	a := config.DataSource{Source: config.ProcessSource{Command: "ab", Args: []string{"c"}}}
	b := config.DataSource{Source: config.ProcessSource{Command: "a", Args: []string{"bc"}}}
	assert.NotEqual(t, Signature(a), Signature(b))

	c := a
	c.Items = "$.x"
	assert.NotEqual(t, Signature(a), Signature(c))
	assert.Equal(t, Signature(a), Signature(a))
	assert.Len(t, Signature(a), 32)
}

func TestFetchNetwork(t *testing.T) {
	var gotQuery, gotHeader, gotMethod, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("limit")
		gotHeader = r.Header.Get("Authorization")
		gotMethod = r.Method
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"id":1},{"id":2}]}`))
	}))
	defer srv.Close()

	p, _, _ := newPipeline(t)
	ds := config.DataSource{
		Source: config.NetworkSource{
			URL:     srv.URL + "/things",
			Method:  http.MethodPost,
			Headers: map[string]string{"Authorization": "Bearer {{ token }}"},
			Params:  map[string]string{"limit": "10"},
			Body:    `{"q":"x"}`,
		},
		Items: "items[*]",
	}
	res, err := p.Fetch(context.Background(), "things", ds, template.MapScope{"token": value.String("t0k")})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, names(res.Rows, "id"))
	assert.Equal(t, "10", gotQuery)
	assert.Equal(t, "Bearer t0k", gotHeader)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, `{"q":"x"}`, gotBody)
}

func TestFetchNetworkStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	p, _, _ := newPipeline(t)
	_, err := p.Fetch(context.Background(), "x", config.DataSource{Source: config.NetworkSource{URL: srv.URL}}, template.MapScope{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceFailed)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream exploded")
}

func TestFetchNetworkOversizedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1},{"id":2},{"id":3}]`))
	}))
	defer srv.Close()

	p, _, _ := newPipeline(t)
	ds := config.DataSource{Source: config.NetworkSource{URL: srv.URL}}

	p.maxResponse = 16
	_, err := p.Fetch(context.Background(), "big", ds, template.MapScope{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceFailed)
	assert.Contains(t, err.Error(), "response exceeds 16 B")

	p.maxResponse = 28
	res, err := p.Fetch(context.Background(), "exact", ds, template.MapScope{})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 3)
}

func TestFetchNetworkInvalidURL(t *testing.T) {
	p, _, _ := newPipeline(t)
	_, err := p.Fetch(context.Background(), "x", config.DataSource{Source: config.NetworkSource{URL: "not a url"}}, template.MapScope{})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestFetchComposite(t *testing.T) {
	p, _, _ := newPipeline(t)
	ds := config.DataSource{Source: config.CompositeSource{
		Sources: []config.NamedSource{
			{ID: "a", Data: shell(`echo '[{"n":1}]'`)},
			{ID: "b", Data: shell(`echo '[{"n":2},{"n":3}]'`)},
		},
		Merge: true,
	}}
	res, err := p.Fetch(context.Background(), "all", ds, template.MapScope{})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, names(res.Rows, "n"))
}

func TestFetchCompositeOptional(t *testing.T) {
	var logs strings.Builder
	p, _, _ := newPipeline(t)
	p.logger = newTestLogger(&logs)

	ds := config.DataSource{Source: config.CompositeSource{
		Sources: []config.NamedSource{
			{ID: "nodes", Data: shell(`echo '[{"n":1}]'`)},
			{ID: "metrics", Optional: true, Data: shell(`exit 1`)},
		},
	}}
	res, err := p.Fetch(context.Background(), "cluster", ds, template.MapScope{})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)

	nodes, _ := res.Rows[0].Get("nodes")
	assert.Equal(t, 1, nodes.Len())
	metrics, ok := res.Rows[0].Get("metrics")
	assert.True(t, ok)
	assert.True(t, metrics.IsNull())
	assert.Contains(t, logs.String(), "optional source failed")
}

func TestFetchCompositeRequiredFailure(t *testing.T) {
	p, _, _ := newPipeline(t)
	ds := config.DataSource{Source: config.CompositeSource{
		Sources: []config.NamedSource{
			{ID: "ok", Data: shell(`echo '[]'`)},
			{ID: "broken", Data: shell(`echo nope >&2; exit 2`)},
		},
	}}
	_, err := p.Fetch(context.Background(), "cluster", ds, template.MapScope{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceFailed)
	assert.Contains(t, err.Error(), "broken")
}

func TestParseFormats(t *testing.T) {
	v, err := Parse([]byte("a\n\nb\r\n"), config.FormatLines)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Len())

	v, err = Parse([]byte("hello\n"), config.FormatText)
	require.NoError(t, err)
	assert.Equal(t, "hello", v.AsString())

	v, err = Parse([]byte("- name: a\n- name: b\n"), config.FormatAuto)
	require.NoError(t, err)
	assert.Equal(t, value.KindArray, v.Kind())

	v, err = Parse([]byte("  \n"), config.FormatAuto)
	require.NoError(t, err)
	assert.Equal(t, 0, v.Len())

	_, err = Parse([]byte("just some text"), config.FormatAuto)
	assert.ErrorIs(t, err, ErrParseFailed)

	_, err = Parse([]byte("{"), config.FormatJSON)
	assert.ErrorIs(t, err, ErrParseFailed)
}

func TestItems(t *testing.T) {
	doc, err := value.Parse([]byte(`[{"a":1},{"a":2}]`))
	require.NoError(t, err)

	rows, err := Items(doc, "")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = Items(value.Null(), "")
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = Items(value.String("x"), "")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = Items(doc, "$.missing")
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)

	_, err = Items(doc, "$[")
	assert.ErrorIs(t, err, ErrExtraction)
}

func collect(t *testing.T, ch <-chan Line) ([]string, error) {
	t.Helper()
	var lines []string
	timeout := time.After(5 * time.Second)
	for {
		select {
		case l, ok := <-ch:
			if !ok {
				t.Fatal("stream closed without a final line")
			}
			if l.Done {
				return lines, l.Err
			}
			lines = append(lines, l.Text)
		case <-timeout:
			t.Fatal("stream did not finish")
		}
	}
}

func TestStreamProcess(t *testing.T) {
	p, _, _ := newPipeline(t)
	ds := config.DataSource{Source: config.StreamSource{Command: `printf 'one\ntwo\n'`, Shell: true}}

	ch, err := p.Stream(context.Background(), ds, template.MapScope{})
	require.NoError(t, err)
	lines, err := collect(t, ch)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, lines)
}

func TestStreamCancel(t *testing.T) {
	p, _, _ := newPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	ds := config.DataSource{Source: config.StreamSource{Command: `echo start; sleep 10`, Shell: true}}

	ch, err := p.Stream(ctx, ds, template.MapScope{})
	require.NoError(t, err)
	first := <-ch
	assert.Equal(t, "start", first.Text)
	cancel()

	_, err = collect(t, ch)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStreamWebsocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("alpha\nbeta"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("gamma"))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer srv.Close()

	p, _, _ := newPipeline(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ch, err := p.Stream(context.Background(), config.DataSource{Source: config.StreamSource{Websocket: url}}, template.MapScope{})
	require.NoError(t, err)
	lines, err := collect(t, ch)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, lines)
}

func TestStreamRejectsBatchSource(t *testing.T) {
	p, _, _ := newPipeline(t)
	_, err := p.Stream(context.Background(), shell("echo"), template.MapScope{})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = p.Fetch(context.Background(), "s", config.DataSource{Source: config.StreamSource{Command: "x"}}, template.MapScope{})
	assert.True(t, errors.Is(err, ErrInvalid))
}

func newTestLogger(w *strings.Builder) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
