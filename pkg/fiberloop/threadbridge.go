package fiberloop

import "time"

// ThreadBridge lets blocking code participate in the loop. It is
// pool-free: each fiber returned by Run launches exactly one goroutine of
// its own, the first time the loop steps it, rather than dispatching into
// a shared worker pool, matching §4.4's "pool-free" phrasing.
type ThreadBridge struct {
	loop *Loop
	logf func(format string, args ...any)
}

// NewThreadBridge binds a bridge to loop; loop supplies the Signal each
// Run call waits on and the warning sink used when a worker ignores
// cancellation.
func NewThreadBridge(loop *Loop) *ThreadBridge {
	return &ThreadBridge{loop: loop, logf: loop.logf}
}

// Run produces a fiber that, when awaited, runs fn on a worker goroutine
// and resumes with its return value or error.
//
// Cooperative cancellation: if the bridge fiber is cancelled while fn is
// still running, the cancel channel handed to fn is closed. The fiber
// itself propagates the cancellation immediately -- it does not wait
// around for fn to notice, since a fiber that yields again (rather than
// returning) during its own cancellation is, by this runtime's contract,
// already an improper response (§4.5). Instead a short-lived monitor
// goroutine watches for fn to actually finish within the configured
// drain window; if it doesn't, the bridge logs the "did not respond
// properly to cancellation" warning on fn's behalf, since by then the
// fiber that would have reported it has already gone.
//
// Cross-goroutine delivery of cancellation is advisory only: Go has no
// facility to inject an exception into another goroutine's stack the way
// CPython's thread-interrupt mechanism allows, so fn must cooperate by
// selecting on cancel at its own safe points.
func (b *ThreadBridge) Run(fn func(cancel <-chan struct{}) (any, error)) *Fiber {
	sig := NewSignal(b.loop)
	cancel := make(chan struct{})
	done := make(chan struct{})

	var (
		result    any
		resultErr error
	)

	return New(func(y *Cell) (any, error) {
		go func() {
			result, resultErr = fn(cancel)
			close(done)
			sig.Set()
		}()

		_, err := y.Yield(sig.Wait())
		if err != nil {
			close(cancel)
			go b.watchForStraggler(done)
			return nil, err
		}
		return result, resultErr
	})
}

// watchForStraggler warns if a cancelled worker does not finish within
// the configured drain window. It never blocks the loop: it runs on its
// own goroutine, entirely decoupled from the fiber that has already
// propagated the cancellation.
func (b *ThreadBridge) watchForStraggler(done <-chan struct{}) {
	timeout := b.loop.cfg.ThreadBridgeDrainTimeout
	if timeout <= 0 {
		return
	}
	select {
	case <-done:
	case <-time.After(timeout):
		if b.loop.cfg.WarnOnImproperCancellation {
			b.logf("fiberloop: a thread-bridge worker did not respond properly to cancellation within %s; it may not have checked its cancel channel (possible resource leak)", timeout)
		}
	}
}
