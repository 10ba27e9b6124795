package record

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Session is one recording: created when the controller starts, owned by the
// capture goroutine until its artifact is handed to the dispatcher.
type Session struct {
	ID        string
	StartedAt time.Time

	stopped  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	prev     <-chan struct{}
}

// NewSession creates a session that will not open its stream before prev has
// released the device. prev may be nil.
func NewSession(now time.Time, prev *Session) *Session {
	s := &Session{
		ID:        strings.ReplaceAll(uuid.New().String(), "-", "")[:16],
		StartedAt: now,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	if prev != nil {
		s.prev = prev.done
	}
	return s
}

// Stop requests a cooperative stop; the capture loop observes it between
// chunk reads.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		close(s.stopCh)
	})
}

// Stopped reports whether Stop has been called.
func (s *Session) Stopped() bool { return s.stopped.Load() }

// Done is closed once the capture goroutine has released the stream and
// handed off (or discarded) the audio.
func (s *Session) Done() <-chan struct{} { return s.done }

// StopRequested is closed by Stop.
func (s *Session) StopRequested() <-chan struct{} { return s.stopCh }
