package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/five82/termstack/internal/value"
)

// Snapshot is what the UI knows about one page's data.
type Snapshot struct {
	Page                string
	Rows                value.Dataset
	HasData             bool
	Signature           string
	FetchedAt           time.Time
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int
	Loading             bool
	// Cached is set when Rows came from the cache rather than a fresh
	// execution.
	Cached bool
}

// IsOffline returns true when the page's source has failed several refreshes
// in a row.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Ticket identifies one fetch request. Only the newest ticket of the active
// page may apply its result.
type Ticket struct {
	Page string
	Seq  int64
}

// Result is the outcome of the fetch a Ticket was issued for.
type Result struct {
	Rows      value.Dataset
	Signature string
	FetchedAt time.Time
	Cached    bool
	Err       error
}

type pageState struct {
	snap   Snapshot
	latest int64
	cancel context.CancelFunc
}

// Store holds per-page runtime state and enforces "last request wins". It
// is safe for concurrent use; the zero value is ready.
type Store struct {
	mu     sync.RWMutex
	pages  map[string]*pageState
	active string
	seq    atomic.Int64
	now    func() time.Time
}

func (s *Store) page(id string) *pageState {
	if s.pages == nil {
		s.pages = make(map[string]*pageState)
	}
	ps, ok := s.pages[id]
	if !ok {
		ps = &pageState{snap: Snapshot{Page: id}}
		s.pages[id] = ps
	}
	return ps
}

func (s *Store) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// SetActive makes page the active page and cancels in-flight fetches of
// every other page.
func (s *Store) SetActive(page string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = page
	for id, ps := range s.pages {
		if id != page {
			ps.stop()
		}
	}
}

// Active returns the active page.
func (s *Store) Active() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Begin issues a ticket for a new fetch of page. Any older fetch of the same
// page is cancelled; its result will be discarded.
func (s *Store) Begin(page string, cancel context.CancelFunc) Ticket {
	t := Ticket{Page: page, Seq: s.seq.Inc()}
	s.mu.Lock()
	defer s.mu.Unlock()
	ps := s.page(page)
	ps.stop()
	ps.latest = t.Seq
	ps.cancel = cancel
	ps.snap.Loading = true
	return t
}

// Current reports whether t is still the newest request of the active page.
func (s *Store) Current(t Ticket) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current(t)
}

func (s *Store) current(t Ticket) bool {
	if t.Page != s.active {
		return false
	}
	ps, ok := s.pages[t.Page]
	return ok && ps.latest == t.Seq
}

// Apply records the result of t and retires it. Results of superseded or
// already applied tickets, or of pages that are no longer active, are
// dropped and Apply returns false. On error
// the previous rows are kept and the error recorded.
func (s *Store) Apply(t Ticket, r Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(t) {
		return false
	}
	ps := s.pages[t.Page]
	if ps.cancel != nil {
		ps.cancel()
		ps.cancel = nil
	}
	// A ticket settles once.
	ps.latest = 0
	snap := &ps.snap
	snap.Loading = false
	snap.LastUpdated = s.clock()
	if r.Err != nil {
		snap.LastError = r.Err
		snap.ConsecutiveFailures++
		return true
	}
	snap.Rows = r.Rows
	snap.HasData = true
	snap.Signature = r.Signature
	snap.FetchedAt = r.FetchedAt
	snap.Cached = r.Cached
	snap.LastError = nil
	snap.ConsecutiveFailures = 0
	return true
}

// Seed shows rows for page without a fetch, as when returning to a page
// whose last dataset is still cached. Pages that already have data keep it.
func (s *Store) Seed(page string, rows value.Dataset, fetchedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps := s.page(page)
	if ps.snap.HasData {
		return
	}
	ps.snap.Rows = rows
	ps.snap.HasData = true
	ps.snap.FetchedAt = fetchedAt
	ps.snap.Cached = true
}

// Cancel stops the in-flight fetch of page, if any.
func (s *Store) Cancel(page string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ps, ok := s.pages[page]; ok {
		ps.stop()
	}
}

// CancelAll stops every in-flight fetch.
func (s *Store) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ps := range s.pages {
		ps.stop()
	}
}

// Forget drops everything known about page.
func (s *Store) Forget(page string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ps, ok := s.pages[page]; ok {
		ps.stop()
		delete(s.pages, page)
	}
}

// Snapshot returns a copy of page's state.
func (s *Store) Snapshot(page string) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ps, ok := s.pages[page]
	if !ok {
		return Snapshot{Page: page}
	}
	snap := ps.snap
	if ps.snap.LastError != nil {
		snap.LastError = fmt.Errorf("%w", ps.snap.LastError)
	}
	return snap
}

func (ps *pageState) stop() {
	if ps.cancel != nil {
		ps.cancel()
		ps.cancel = nil
	}
	ps.latest = 0
	ps.snap.Loading = false
}
