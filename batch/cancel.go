package batch

import (
	"context"
	"sync"
)

// CancelSignal is shared between the control surface and the worker. Once
// cancelled it stays cancelled; a new batch gets a new signal.
type CancelSignal struct {
	mu        sync.Mutex
	cancelled bool
	kill      context.CancelFunc
	seq       uint64
}

func NewCancelSignal() *CancelSignal {
	return &CancelSignal{}
}

// Cancel sets the flag and kills the in-flight process, if any.
func (s *CancelSignal) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
	if s.kill != nil {
		s.kill()
		s.kill = nil
	}
}

func (s *CancelSignal) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// attach registers the kill function of the process about to be spawned.
// It fails once the signal is cancelled, so no process can start after
// Cancel has returned.
func (s *CancelSignal) attach(kill context.CancelFunc) (detach func(), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return nil, ErrCancelled
	}
	s.seq++
	id := s.seq
	s.kill = kill
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.seq == id {
			s.kill = nil
		}
	}, nil
}
