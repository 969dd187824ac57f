package x

import (
	"sync"

	"github.com/recera/fiberloop/pkg/fiberloop"
)

// Semaphore bounds concurrent access to n permits. Like Lock, it is built
// from a single Signal and is not fair: a release wakes every waiter, and
// whichever ones lose the race to grab a permit simply wait again.
type Semaphore struct {
	loop     *fiberloop.Loop
	mu       sync.Mutex
	permits  int
	released *fiberloop.Signal
}

// NewSemaphore creates a semaphore with n permits available immediately.
func NewSemaphore(loop *fiberloop.Loop, n int) *Semaphore {
	return &Semaphore{loop: loop, permits: n, released: fiberloop.NewSignal(loop)}
}

// Acquire returns a fiber that resumes once a permit has been claimed.
// Release must be called exactly once per successful Acquire.
func (s *Semaphore) Acquire() *fiberloop.Fiber {
	return fiberloop.New(func(c *fiberloop.Cell) (any, error) {
		for {
			s.mu.Lock()
			if s.permits > 0 {
				s.permits--
				s.mu.Unlock()
				return nil, nil
			}
			s.mu.Unlock()

			if _, err := c.Yield(s.released.Wait()); err != nil {
				return nil, err
			}
		}
	})
}

// Release returns one permit and wakes everyone currently waiting.
func (s *Semaphore) Release() {
	s.mu.Lock()
	s.permits++
	s.mu.Unlock()

	s.released.Set()
	s.released.Clear()
}
