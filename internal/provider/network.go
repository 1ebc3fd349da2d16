package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/five82/termstack/internal/config"
)

const (
	maxResponseBytes = 32 << 20
	maxBodyDetail    = 512
)

func (p *Pipeline) request(ctx context.Context, s config.NetworkSource) ([]byte, error) {
	u, err := url.Parse(strings.TrimSpace(s.URL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &FetchError{Kind: KindInvalid, Source: s.URL, Detail: "url must be absolute", Err: err}
	}
	if len(s.Params) > 0 {
		q := u.Query()
		for k, v := range s.Params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	method := s.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if s.Body != "" {
		body = strings.NewReader(s.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, &FetchError{Kind: KindInvalid, Source: s.URL, Detail: "create request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", p.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range s.Headers {
		req.Header.Set(k, v)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &FetchError{Kind: KindSourceFailed, Source: u.Redacted(), Detail: "execute request", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxResponse+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &FetchError{Kind: KindSourceFailed, Source: u.Redacted(), Detail: "read response", Err: err}
	}
	if int64(len(data)) > p.maxResponse {
		return nil, &FetchError{
			Kind:   KindSourceFailed,
			Source: u.Redacted(),
			Detail: "response exceeds " + humanize.IBytes(uint64(p.maxResponse)),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{
			Kind:   KindSourceFailed,
			Source: u.Redacted(),
			Detail: fmt.Sprintf("%s returned status %d: %s", method, resp.StatusCode, excerpt(data, maxBodyDetail)),
		}
	}
	return data, nil
}

func excerpt(data []byte, limit int) string {
	s := strings.TrimSpace(string(data))
	if len(s) > limit {
		return s[:limit] + "…"
	}
	return s
}
