package fiberloop

import "sync"

// Signal is a reusable, thread-safe notifier bound to a Loop. Set() may be
// called from any goroutine (in particular, from inside a ThreadBridge
// worker); Wait() mints a single-use SignalWait token that a fiber yields
// to suspend until the signal fires.
//
// Converting a Signal to a boolean is not meaningful in Go the way the
// Python original disallows `bool(event)` -- there is no implicit
// conversion to guard against. IsSet is the only observational accessor;
// do not be tempted to infer "set-ness" from anything else on this type.
type Signal struct {
	mu      sync.Mutex
	isSet   bool
	waiting map[*Fiber]*waiter

	loop *Loop
}

// NewSignal creates a signal bound to loop. The signal records loop but
// does not consult it: a waiter released by Set() pulses the wake channel
// of the Loop it was created for.
func NewSignal(loop *Loop) *Signal {
	return &Signal{
		waiting: make(map[*Fiber]*waiter),
		loop:    loop,
	}
}

// IsSet reports whether the signal has been set. Purely observational:
// it does not consume or affect pending waits.
func (s *Signal) IsSet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isSet
}

// Set is idempotent: if the signal transitions false->true, every
// currently-registered waiter is decremented and the registration table
// is emptied. Calling Set while already set is a no-op. Safe from any
// goroutine.
func (s *Signal) Set() {
	s.mu.Lock()
	if s.isSet {
		s.mu.Unlock()
		return
	}
	s.isSet = true
	released := s.waiting
	s.waiting = make(map[*Fiber]*waiter)
	s.mu.Unlock()

	for _, w := range released {
		w.decrement()
	}
}

// Clear resets the signal to unset. Fibers that already observed the set
// state are unaffected; new Wait()s registered after Clear block again.
func (s *Signal) Clear() {
	s.mu.Lock()
	s.isSet = false
	s.mu.Unlock()
}

// Wait mints a single-use wait token. Yielding the same token twice, in
// this fiber or any other, is a runtime error thrown back at the
// yielding fiber.
func (s *Signal) Wait() SignalWait {
	return SignalWait{sig: s, tok: &waitToken{}}
}

// register is called by the scheduler while building a waiter for a
// SignalWait dependency. If the signal is already set, w is decremented
// immediately (outside the signal's own lock, per the Signal -> Waiter
// lock-order discipline: a Waiter's lock is never held while acquiring a
// Signal's). Key-by-fiber means a given fiber can only have one waiter
// registered per signal at a time.
func (s *Signal) register(w *waiter, fiber *Fiber) {
	s.mu.Lock()
	already := s.isSet
	if !already {
		s.waiting[fiber] = w
	}
	s.mu.Unlock()

	if already {
		w.decrement()
	}
}
