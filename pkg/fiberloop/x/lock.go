package x

import (
	"sync"

	"github.com/recera/fiberloop/pkg/fiberloop"
)

// Lock is a mutual-exclusion primitive built from a single Signal. It is
// not fair: when Release pulses the signal, every fiber currently waiting
// wakes and races to claim the held flag; the loser(s) simply re-register
// and wait again. tinyio's own Lock (_sync.py) makes the same trade-off in
// exchange for staying a "trivial composition of signals" per §1.
type Lock struct {
	loop     *fiberloop.Loop
	mu       sync.Mutex
	held     bool
	released *fiberloop.Signal
}

// NewLock creates an unheld lock bound to loop.
func NewLock(loop *fiberloop.Loop) *Lock {
	return &Lock{loop: loop, released: fiberloop.NewSignal(loop)}
}

// Acquire returns a fiber that resumes once the lock is held by the
// caller. Release must be called exactly once per successful Acquire.
func (l *Lock) Acquire() *fiberloop.Fiber {
	return fiberloop.New(func(c *fiberloop.Cell) (any, error) {
		for {
			l.mu.Lock()
			if !l.held {
				l.held = true
				l.mu.Unlock()
				return nil, nil
			}
			l.mu.Unlock()

			if _, err := c.Yield(l.released.Wait()); err != nil {
				return nil, err
			}
		}
	})
}

// Release marks the lock free and wakes everyone currently waiting on it.
// Safe to call from any goroutine, including a ThreadBridge worker.
func (l *Lock) Release() {
	l.mu.Lock()
	l.held = false
	l.mu.Unlock()

	// Set then immediately Clear turns the level-triggered Signal into a
	// one-shot pulse: everyone registered right now wakes, and the signal
	// is rearmed for the next generation of waiters.
	l.released.Set()
	l.released.Clear()
}
