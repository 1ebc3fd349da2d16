package nav

import (
	"github.com/five82/termstack/internal/scope"
)

// DefaultDepth is the history size when none is configured.
const DefaultDepth = 50

// ViewState is what a page looked like when the user left it.
type ViewState struct {
	Selected      int
	Scroll        int
	Filter        string
	Search        string
	CaseSensitive bool
	// SortColumn is the display name of the sort column, empty for the
	// configured default.
	SortColumn string
	SortDesc   bool
}

// Frame is one entry of the navigation history.
type Frame struct {
	PageID string
	// Context holds the bindings extracted for the page that was entered
	// from this frame.
	Context scope.Bindings
	// Scope is the resolver state to reinstate when returning to PageID.
	Scope *scope.View
	View  ViewState
}

// Stack is a bounded LIFO of frames backed by a ring buffer. Pushing onto a
// full stack drops the oldest frame.
type Stack struct {
	buf   []Frame
	start int
	n     int
}

// NewStack returns a Stack holding at most depth frames.
func NewStack(depth int) *Stack {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Stack{buf: make([]Frame, depth)}
}

// Push adds f and reports whether the oldest frame was evicted to make room.
func (s *Stack) Push(f Frame) bool {
	size := len(s.buf)
	if s.n == size {
		s.buf[s.start] = f
		s.start = (s.start + 1) % size
		return true
	}
	s.buf[(s.start+s.n)%size] = f
	s.n++
	return false
}

// Pop removes and returns the newest frame.
func (s *Stack) Pop() (Frame, bool) {
	if s.n == 0 {
		return Frame{}, false
	}
	s.n--
	i := (s.start + s.n) % len(s.buf)
	f := s.buf[i]
	s.buf[i] = Frame{}
	return f, true
}

// Current returns the newest frame without removing it.
func (s *Stack) Current() (Frame, bool) {
	if s.n == 0 {
		return Frame{}, false
	}
	return s.buf[(s.start+s.n-1)%len(s.buf)], true
}

func (s *Stack) Len() int   { return s.n }
func (s *Stack) Depth() int { return len(s.buf) }

// Frames returns the frames oldest first.
func (s *Stack) Frames() []Frame {
	out := make([]Frame, s.n)
	for i := range out {
		out[i] = s.buf[(s.start+i)%len(s.buf)]
	}
	return out
}

// Clear drops every frame.
func (s *Stack) Clear() {
	clear(s.buf)
	s.start, s.n = 0, 0
}
