package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/singleflight"

	"github.com/five82/termstack/internal/cache"
	"github.com/five82/termstack/internal/config"
	"github.com/five82/termstack/internal/template"
	"github.com/five82/termstack/internal/value"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "termstack/0.1"
)

// Result is a successfully fetched dataset.
type Result struct {
	Page      string
	Signature string
	Rows      value.Dataset
	FetchedAt time.Time
	// Cached is set when the rows came from the cache without execution.
	Cached bool
	// Shared is set when the rows came from an execution started by another
	// caller.
	Shared bool
}

// Pipeline fetches datasets. It is safe for concurrent use.
type Pipeline struct {
	engine    *template.Engine
	cache     *cache.Cache
	logger    *slog.Logger
	http      *http.Client
	userAgent string
	ttl       time.Duration
	timeout   time.Duration

	// maxResponse caps the bytes read from a network response.
	maxResponse int64

	group      singleflight.Group
	executions atomic.Int64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithLogger(l *slog.Logger) Option { return func(p *Pipeline) { p.logger = l } }

// WithHTTPClient replaces the client used by network sources. Request
// timeouts come from the descriptor, not the client.
func WithHTTPClient(c *http.Client) Option { return func(p *Pipeline) { p.http = c } }

// WithDefaultTTL sets the cache TTL for descriptors that do not set one.
// Zero disables caching for them.
func WithDefaultTTL(d time.Duration) Option { return func(p *Pipeline) { p.ttl = d } }

// WithDefaultTimeout sets the execution timeout for descriptors that do not
// set one.
func WithDefaultTimeout(d time.Duration) Option { return func(p *Pipeline) { p.timeout = d } }

// New builds a Pipeline around a shared cache.
func New(engine *template.Engine, c *cache.Cache, opts ...Option) *Pipeline {
	p := &Pipeline{
		engine:    engine,
		cache:     c,
		logger:    slog.Default(),
		http:      &http.Client{},
		userAgent: defaultUserAgent,
		timeout:   defaultTimeout,

		maxResponse: maxResponseBytes,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Executions reports how many provider executions have started.
func (p *Pipeline) Executions() int64 { return p.executions.Load() }

// Invalidate drops every cached dataset of page.
func (p *Pipeline) Invalidate(page string) {
	if n := p.cache.InvalidatePage(page); n > 0 {
		p.logger.Debug("cache invalidated", "page", page, "entries", n)
	}
}

// Cached returns the last dataset stored for the descriptor, even if it has
// expired, without executing anything.
func (p *Pipeline) Cached(page string, ds config.DataSource, scope template.Scope) (Result, bool) {
	resolved, err := p.Resolve(ds, scope)
	if err != nil {
		return Result{}, false
	}
	key := cache.Key{Page: page, Signature: Signature(resolved)}
	e, ok := p.cache.Peek(key)
	if !ok {
		return Result{}, false
	}
	return Result{Page: page, Signature: key.Signature, Rows: e.Rows, FetchedAt: e.FetchedAt, Cached: true}, true
}

// Fetch resolves ds against scope and returns its rows.
func (p *Pipeline) Fetch(ctx context.Context, page string, ds config.DataSource, scope template.Scope) (Result, error) {
	resolved, err := p.Resolve(ds, scope)
	if err != nil {
		return Result{}, err
	}
	key := cache.Key{Page: page, Signature: Signature(resolved)}
	if e, ok := p.cache.Get(key); ok {
		p.logger.Debug("cache hit", "page", page, "signature", key.Signature, "rows", len(e.Rows))
		return Result{Page: page, Signature: key.Signature, Rows: e.Rows, FetchedAt: e.FetchedAt, Cached: true}, nil
	}

	flight := key.Page + "\x00" + key.Signature
	for attempt := 0; ; attempt++ {
		ch := p.group.DoChan(flight, func() (any, error) {
			return p.execute(ctx, key, resolved)
		})
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				// The leader's caller went away; this caller is still waiting.
				if errors.Is(res.Err, context.Canceled) && ctx.Err() == nil && attempt == 0 {
					continue
				}
				return Result{}, res.Err
			}
			e := res.Val.(cache.Entry)
			return Result{Page: page, Signature: key.Signature, Rows: e.Rows, FetchedAt: e.FetchedAt, Shared: res.Shared}, nil
		}
	}
}

func (p *Pipeline) execute(ctx context.Context, key cache.Key, ds config.DataSource) (cache.Entry, error) {
	p.executions.Inc()
	start := time.Now()
	p.logger.Debug("fetch started", "page", key.Page, "signature", key.Signature, "kind", ds.Source.Kind())

	rows, err := p.rows(ctx, ds)
	if err != nil {
		p.logger.Debug("fetch failed", "page", key.Page, "signature", key.Signature, "duration", time.Since(start), "error", err)
		return cache.Entry{}, err
	}
	p.logger.Debug("fetch finished", "page", key.Page, "signature", key.Signature, "duration", time.Since(start), "rows", len(rows))

	ttl := ds.CacheTTL
	if ttl == 0 {
		ttl = p.ttl
	}
	if ttl <= 0 {
		return cache.Entry{Rows: rows, FetchedAt: p.cache.Now()}, nil
	}
	return p.cache.Put(key, rows, ttl), nil
}

func (p *Pipeline) rows(ctx context.Context, ds config.DataSource) (value.Dataset, error) {
	switch s := ds.Source.(type) {
	case config.CompositeSource:
		return p.composite(ctx, ds, s)
	case config.StreamSource:
		return nil, &FetchError{Kind: KindInvalid, Detail: "stream sources are read with Stream"}
	case config.ProcessSource, config.NetworkSource:
		raw, err := p.raw(ctx, ds)
		if err != nil {
			return nil, err
		}
		doc, err := Parse(raw, ds.Format)
		if err != nil {
			return nil, err
		}
		return Items(doc, ds.Items)
	default:
		return nil, &FetchError{Kind: KindInvalid, Detail: fmt.Sprintf("unsupported source %T", ds.Source)}
	}
}

// raw executes a single source under its timeout.
func (p *Pipeline) raw(ctx context.Context, ds config.DataSource) ([]byte, error) {
	timeout := ds.Timeout
	if timeout <= 0 {
		timeout = p.timeout
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		out  []byte
		err  error
		name string
	)
	switch s := ds.Source.(type) {
	case config.ProcessSource:
		name = s.Command
		out, err = runProcess(tctx, s)
	case config.NetworkSource:
		name = s.URL
		out, err = p.request(tctx, s)
	}
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("fetch %s: %w", name, ctx.Err())
	}
	if errors.Is(tctx.Err(), context.DeadlineExceeded) {
		return nil, &FetchError{
			Kind:   KindTimeout,
			Source: name,
			Detail: fmt.Sprintf("no result within %s", timeout),
			Err:    context.DeadlineExceeded,
		}
	}
	return nil, err
}

// Exec resolves a process or network descriptor and returns its raw output
// without parsing or caching. Actions use it to run one-off commands.
func (p *Pipeline) Exec(ctx context.Context, ds config.DataSource, scope template.Scope) ([]byte, error) {
	resolved, err := p.Resolve(ds, scope)
	if err != nil {
		return nil, err
	}
	switch resolved.Source.(type) {
	case config.ProcessSource, config.NetworkSource:
	default:
		return nil, &FetchError{Kind: KindInvalid, Detail: fmt.Sprintf("cannot execute %T", resolved.Source)}
	}
	p.executions.Inc()
	return p.raw(ctx, resolved)
}
