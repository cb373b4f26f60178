// Package dispatch implements the concurrency strategies used by the engine:
// switch-to-latest, exhaust and merge.
package dispatch

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Ticket identifies one call started through a Switcher.
type Ticket struct {
	seq uint64
	// ID correlates log lines of one call.
	ID string
}

// Switcher keeps only the latest call alive. Begin cancels the context of the
// previous call; its result must then be dropped.
type Switcher struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

func (s *Switcher) Begin(parent context.Context) (context.Context, Ticket) {
	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	s.cancel = cancel
	return ctx, Ticket{seq: s.seq, ID: uuid.NewString()}
}

// Current reports whether t is still the latest call.
func (s *Switcher) Current(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return t.seq == s.seq
}

// Done releases the context of t when it is still the latest call.
func (s *Switcher) Done(t Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.seq == s.seq && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Cancel aborts the latest call; every outstanding ticket becomes stale.
func (s *Switcher) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Exhauster ignores a trigger while a call with the same key is in flight.
type Exhauster struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// TryAcquire claims key. ok is false when key is already claimed; otherwise
// release must be called once the call finishes.
func (e *Exhauster) TryAcquire(key string) (release func(), ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight == nil {
		e.inFlight = make(map[string]struct{})
	}
	if _, busy := e.inFlight[key]; busy {
		return nil, false
	}
	e.inFlight[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.inFlight, key)
			e.mu.Unlock()
		})
	}, true
}

// Busy reports whether key is claimed.
func (e *Exhauster) Busy(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.inFlight[key]
	return ok
}

// Merger runs independent calls concurrently; none cancels another.
type Merger struct {
	wg sync.WaitGroup
}

// Go runs fn in its own goroutine.
func (m *Merger) Go(fn func()) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		fn()
	}()
}

// Wait blocks until every call started with Go has returned.
func (m *Merger) Wait() {
	m.wg.Wait()
}
