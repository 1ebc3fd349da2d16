package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultSize is the buffer size used when a stream does not set one.
const DefaultSize = 1000

// Buffer keeps the most recent lines of a stream. Appending to a full buffer
// drops the oldest line. The zero value is unusable; use New.
type Buffer struct {
	ring    []string
	idx     int
	count   int
	dropped int
}

// New returns a Buffer holding at most size lines. A non-positive size keeps
// a single line.
func New(size int) *Buffer {
	if size <= 0 {
		size = 1
	}
	return &Buffer{ring: make([]string, size)}
}

// Append adds a line and reports whether an old line was dropped.
func (b *Buffer) Append(line string) bool {
	b.ring[b.idx] = line
	b.idx = (b.idx + 1) % len(b.ring)
	if b.count < len(b.ring) {
		b.count++
		return false
	}
	b.dropped++
	return true
}

// Len returns the number of lines held.
func (b *Buffer) Len() int { return b.count }

// Cap returns the maximum number of lines held.
func (b *Buffer) Cap() int { return len(b.ring) }

// Dropped returns how many lines have been evicted since the last Reset.
func (b *Buffer) Dropped() int { return b.dropped }

// Lines returns the held lines oldest first.
func (b *Buffer) Lines() []string {
	lines := make([]string, b.count)
	if b.count == len(b.ring) {
		for i := range lines {
			lines[i] = b.ring[(b.idx+i)%len(b.ring)]
		}
	} else {
		copy(lines, b.ring[:b.count])
	}
	return lines
}

// Tail returns at most n of the newest lines.
func (b *Buffer) Tail(n int) []string {
	lines := b.Lines()
	if n >= 0 && n < len(lines) {
		return lines[len(lines)-n:]
	}
	return lines
}

// Reset empties the buffer.
func (b *Buffer) Reset() {
	clear(b.ring)
	b.idx, b.count, b.dropped = 0, 0, 0
}

// ReadFrom fills the buffer from r, keeping the last lines.
func (b *Buffer) ReadFrom(r io.Reader) (int64, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var n int64
	for scanner.Scan() {
		line := scanner.Text()
		n += int64(len(line)) + 1
		b.Append(line)
	}
	return n, scanner.Err()
}

// Read returns at most maxLines from the end of the file at path. A missing
// file yields no lines and no error.
func Read(path string, maxLines int) ([]string, error) {
	if maxLines <= 0 {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	b := New(maxLines)
	if _, err := b.ReadFrom(file); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	return b.Lines(), nil
}

// Level is the severity found in a log line.
type Level int

const (
	LevelNone Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

var levelWords = []struct {
	word  string
	level Level
}{
	{"ERROR", LevelError},
	{"FATAL", LevelError},
	{"PANIC", LevelError},
	{"WARN", LevelWarn},
	{"WARNING", LevelWarn},
	{"INFO", LevelInfo},
	{"DEBUG", LevelDebug},
	{"TRACE", LevelDebug},
}

// DetectLevel finds the first severity word in line. It understands plain
// "LEVEL" tokens, bracketed "[LEVEL]" and slog's "level=LEVEL".
func DetectLevel(line string) Level {
	for _, field := range strings.Fields(line) {
		field = strings.TrimPrefix(field, "level=")
		field = strings.Trim(field, "[]:")
		up := strings.ToUpper(field)
		for _, w := range levelWords {
			if up == w.word {
				return w.level
			}
		}
	}
	return LevelNone
}
