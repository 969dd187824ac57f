package fiberloop

import "sync"

// DependencySpec is the closed set of values a Cell.Yield call accepts:
// nil, *Fiber, SignalWait, Seq, or Set. It exists for documentation and
// for godoc cross-linking; Go has no sealed-interface enforcement, so the
// scheduler still dispatches via a type switch on any rather than this
// interface, and nothing stops a caller from defining an unrelated type
// with an isDependencySpec method. Yielding such a value is still caught,
// just at Yield time rather than compile time: it falls through to
// InvalidYieldError like any other unrecognized type.
type DependencySpec interface {
	isDependencySpec()
}

// Seq is an ordered dependency specification: `y.Yield(Seq{a, b})` resumes
// with a positionally-matched []any once every element has completed.
// Elements must be *Fiber or SignalWait.
type Seq []any

func (Seq) isDependencySpec() {}

// Set is an unordered background dependency specification:
// `y.Yield(Set{a, b})` schedules a and b in the background and resumes
// the yielding fiber immediately with nil. Elements must be *Fiber;
// mixing in a SignalWait is a runtime error (waiting in the background on
// a signal is meaningless, since nothing is waiting for it to fire).
type Set []any

func (Set) isDependencySpec() {}

// waitToken guards a single SignalWait against being yielded twice.
type waitToken struct {
	mu   sync.Mutex
	used bool
}

// SignalWait is the token minted by Signal.Wait. Yielding the same token
// twice (in the same fiber or a different one) is a runtime error.
type SignalWait struct {
	sig *Signal
	tok *waitToken
}

func (SignalWait) isDependencySpec() {}

func (sw SignalWait) markUsed() error {
	sw.tok.mu.Lock()
	defer sw.tok.mu.Unlock()
	if sw.tok.used {
		return ErrSignalWaitReused
	}
	sw.tok.used = true
	return nil
}
