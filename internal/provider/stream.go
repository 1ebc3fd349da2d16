package provider

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/five82/termstack/internal/config"
	"github.com/five82/termstack/internal/template"
)

const defaultStreamBuffer = 1000

// Line is one unit of streamed output. The final Line has Done set and
// carries the terminal error, if any.
type Line struct {
	Text string
	Err  error
	Done bool
}

// Stream starts a stream source and delivers its lines until the source ends
// or ctx is cancelled. The channel is closed after the Done line.
func (p *Pipeline) Stream(ctx context.Context, ds config.DataSource, scope template.Scope) (<-chan Line, error) {
	resolved, err := p.Resolve(ds, scope)
	if err != nil {
		return nil, err
	}
	s, ok := resolved.Source.(config.StreamSource)
	if !ok {
		return nil, &FetchError{Kind: KindInvalid, Detail: "not a stream source"}
	}
	size := s.BufferSize
	if size <= 0 {
		size = defaultStreamBuffer
	}
	out := make(chan Line, size)

	if s.Websocket != "" {
		conn, err := p.dial(ctx, s)
		if err != nil {
			return nil, err
		}
		go p.readSocket(ctx, conn, out)
		return out, nil
	}

	cmd := command(ctx, s.Command, s.Args, s.Env, s.WorkingDir, s.Shell)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &FetchError{Kind: KindSourceFailed, Source: s.Command, Detail: "stdout pipe", Err: err}
	}
	var stderr strings.Builder
	cmd.Stderr = &limitedWriter{w: &stderr, n: maxStderrDetail}
	if err := cmd.Start(); err != nil {
		return nil, &FetchError{Kind: KindSourceFailed, Source: s.Command, Detail: "start: " + err.Error(), Err: err}
	}
	p.logger.Debug("stream started", "command", s.Command, "pid", cmd.Process.Pid)

	go func() {
		defer close(out)
		scanErr := scanLines(ctx, stdout, out)
		if scanErr != nil {
			_ = cmd.Process.Kill()
		}
		waitErr := cmd.Wait()

		final := Line{Done: true}
		switch {
		case ctx.Err() != nil:
			final.Err = ctx.Err()
		case scanErr != nil:
			final.Err = &FetchError{Kind: KindSourceFailed, Source: s.Command, Detail: "read output", Err: scanErr}
		case waitErr != nil:
			detail := strings.TrimSpace(stderr.String())
			if detail == "" {
				detail = waitErr.Error()
			}
			final.Err = &FetchError{Kind: KindSourceFailed, Source: s.Command, Detail: detail, Err: waitErr}
		}
		p.logger.Debug("stream ended", "command", s.Command, "error", final.Err)
		finish(ctx, out, final)
	}()
	return out, nil
}

func scanLines(ctx context.Context, r io.Reader, out chan<- Line) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		select {
		case out <- Line{Text: strings.TrimRight(sc.Text(), "\r")}:
		case <-ctx.Done():
			return nil
		}
	}
	err := sc.Err()
	if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (p *Pipeline) dial(ctx context.Context, s config.StreamSource) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("User-Agent", p.userAgent)
	for k, v := range s.Headers {
		header.Set(k, v)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, s.Websocket, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fe := &FetchError{Kind: KindSourceFailed, Source: s.Websocket, Detail: "dial", Err: err}
		if resp != nil {
			fe.Detail = "dial: " + resp.Status
		}
		return nil, fe
	}
	p.logger.Debug("stream connected", "url", s.Websocket)
	return conn, nil
}

func (p *Pipeline) readSocket(ctx context.Context, conn *websocket.Conn, out chan<- Line) {
	defer close(out)
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer func() { _ = conn.Close() }()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			final := Line{Done: true}
			switch {
			case ctx.Err() != nil:
				final.Err = ctx.Err()
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
			default:
				final.Err = &FetchError{Kind: KindSourceFailed, Source: conn.RemoteAddr().String(), Detail: "read", Err: err}
			}
			finish(ctx, out, final)
			return
		}
		for _, line := range strings.Split(strings.TrimRight(string(msg), "\r\n"), "\n") {
			select {
			case out <- Line{Text: strings.TrimRight(line, "\r")}:
			case <-ctx.Done():
				finish(ctx, out, Line{Done: true, Err: ctx.Err()})
				return
			}
		}
	}
}

// finish delivers the terminal line. Once ctx is done the reader may be gone,
// so the line is dropped when the buffer is full.
func finish(ctx context.Context, out chan<- Line, l Line) {
	if ctx.Err() == nil {
		out <- l
		return
	}
	select {
	case out <- l:
	default:
	}
}

// limitedWriter keeps the first n bytes written to it and discards the rest.
type limitedWriter struct {
	w io.Writer
	n int
}

func (l *limitedWriter) Write(b []byte) (int, error) {
	if l.n > 0 {
		keep := b
		if len(keep) > l.n {
			keep = keep[:l.n]
		}
		k, err := l.w.Write(keep)
		l.n -= k
		if err != nil {
			return k, err
		}
	}
	return len(b), nil
}
