package fiberloop

import (
	"errors"
	"fmt"
)

// ErrCancelled is the sentinel delivered to every fiber still registered
// with a Loop when shutdown runs. A fiber "responds properly" to
// cancellation by propagating it (returning it, or a wrapped form of it,
// from its Body); errors.Is(err, ErrCancelled) recognizes both.
var ErrCancelled = errors.New("fiberloop: cancelled")

// ErrSignalWaitReused is thrown into a fiber that yields the same
// SignalWait token twice.
var ErrSignalWaitReused = errors.New("fiberloop: the same signal wait was yielded twice; call Wait() again instead")

// ErrSignalInBackgroundSet is thrown into a fiber that mixes a SignalWait
// into a background Set: waiting on a signal in the background is
// meaningless, since nothing would observe it firing.
var ErrSignalInBackgroundSet = errors.New("fiberloop: cannot put a signal wait in a background Set")

// InvalidYieldError is thrown into a fiber whose yielded value is not one
// of nil, *Fiber, SignalWait, Seq, or Set.
type InvalidYieldError struct {
	Value any
}

func (e *InvalidYieldError) Error() string {
	return fmt.Sprintf("fiberloop: Invalid yield %#v; must be nil, a *Fiber, a SignalWait, a Seq, or a Set", e.Value)
}

// CycleError is thrown into the root fiber when quiescence reveals an
// unbreakable dependency cycle.
type CycleError struct {
	Fibers []uint64
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("fiberloop: Cycle detected among fibers %v; cancelling all fibers", e.Fibers)
}
