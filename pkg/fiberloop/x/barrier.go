package x

import (
	"sync"

	"github.com/recera/fiberloop/pkg/fiberloop"
)

// Barrier holds parties fibers at a rendezvous point until all of them
// have arrived, then releases all of them together. It is a single-use
// generation: once released, a fresh round of parties arrivals triggers
// the next release, reusing the same underlying Signal via the
// Set-then-Clear pulse pattern also used by Lock and Semaphore.
type Barrier struct {
	loop       *fiberloop.Loop
	mu         sync.Mutex
	parties    int
	arrived    int
	generation *fiberloop.Signal
}

// NewBarrier creates a barrier that releases once parties fibers have
// called Arrive.
func NewBarrier(loop *fiberloop.Loop, parties int) *Barrier {
	return &Barrier{loop: loop, parties: parties, generation: fiberloop.NewSignal(loop)}
}

// Arrive returns a fiber that resumes only once parties fibers (across
// all calls to Arrive on this Barrier) have reached this point.
func (b *Barrier) Arrive() *fiberloop.Fiber {
	return fiberloop.New(func(c *fiberloop.Cell) (any, error) {
		b.mu.Lock()
		b.arrived++
		release := b.arrived >= b.parties
		wait := b.generation.Wait()
		if release {
			b.arrived = 0
		}
		b.mu.Unlock()

		if release {
			b.generation.Set()
			b.generation.Clear()
			return nil, nil
		}

		_, err := c.Yield(wait)
		return nil, err
	})
}
