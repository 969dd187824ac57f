package fiberloop

import (
	"fmt"
	"sync/atomic"
)

// Body is the function a Fiber runs. It is handed a Cell it uses to yield
// dependency specifications back to the Loop, resuming with either the
// assembled dependency value or an error delivered by the scheduler
// (cancellation, or a scheduler-detected fault).
//
// A Body runs on its own goroutine, but the Loop only ever has one Body
// executing at a time: Cell.Yield blocks the goroutine until the Loop
// steps it again, so Bodies behave like cooperative fibers even though
// Go has no native stackful-coroutine primitive.
type Body func(y *Cell) (any, error)

// fiberState is observable via Fiber.State.
type fiberState int32

const (
	// StatePending means the fiber is registered with a Loop: it may be
	// sitting in the ready queue or suspended on a dependency.
	StatePending fiberState = iota
	// StateFinished means the fiber returned normally; its value is cached.
	StateFinished
	// StateCancelled means the fiber was terminated by shutdown and
	// propagated ErrCancelled.
	StateCancelled
	// StateFailed means the fiber terminated with any other error.
	StateFailed
)

func (s fiberState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFinished:
		return "finished"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var fiberIDs atomic.Uint64

// Fiber is an independently stepping unit of computation. Identity-based:
// two Fibers are never equal just because their bodies happen to match: a
// *Fiber is compared (as a dependency, as a map key) by pointer.
type Fiber struct {
	id   uint64
	body Body

	resumeCh chan resumeMsg
	yieldCh  chan yieldMsg

	started atomic.Bool
	state   atomic.Int32
}

// New creates a fiber from a body. The fiber is not run until it is
// submitted to a Loop (as the root of Run/Runtime) or referenced as a
// dependency by another fiber's yield.
func New(body Body) *Fiber {
	return &Fiber{
		id:       fiberIDs.Add(1),
		body:     body,
		resumeCh: make(chan resumeMsg),
		yieldCh:  make(chan yieldMsg),
	}
}

// ID returns a process-unique identifier, useful for logging and for the
// cancellation annotation chain (fibers have no natural String() form).
func (f *Fiber) ID() uint64 { return f.id }

// State returns the fiber's last observed lifecycle state.
func (f *Fiber) State() fiberState { return fiberState(f.state.Load()) }

func (f *Fiber) isDependencySpec() {}

// Cell is handed to a running Body; Yield is the fiber's only suspension
// point.
type Cell struct {
	fiber *Fiber
}

// Yield suspends the calling fiber and hands spec to the scheduler as a
// dependency specification. Accepted values: nil (cooperative
// reschedule), a *Fiber, a SignalWait, a Seq, or a Set. Anything else
// resumes immediately with an *InvalidYieldError.
//
// Yield returns the assembled dependency value, or a non-nil error if the
// Loop delivered a throw (cancellation, or a scheduler fault such as
// InvalidYieldError / a reused SignalWait / CycleError).
func (c *Cell) Yield(spec any) (any, error) {
	c.fiber.yieldCh <- yieldMsg{spec: spec, hasSpec: true}
	msg := <-c.fiber.resumeCh
	return msg.value, msg.err
}

type resumeMsg struct {
	value any
	err   error // non-nil means "throw this at the yield point"
}

type yieldMsg struct {
	hasSpec bool // true: fiber suspended with spec; false: fiber terminated
	spec    any

	// terminal outcome, valid when hasSpec is false
	value any
	err   error
}

// ensureStarted lazily launches the body goroutine the first time the
// fiber is stepped or thrown into, matching the "fibers are admitted
// lazily" lifecycle note (data model, §3).
func (f *Fiber) ensureStarted() {
	if !f.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		prime := <-f.resumeCh
		if prime.err != nil {
			// A fiber that is cancelled before it has ever run never
			// executes its body at all -- mirrors a fresh Python
			// generator's `.throw()` raising before the first line runs.
			f.yieldCh <- yieldMsg{value: nil, err: prime.err}
			return
		}
		value, err := f.runBody()
		f.yieldCh <- yieldMsg{value: value, err: err}
	}()
}

func (f *Fiber) runBody() (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fiberloop: fiber %d panicked: %v", f.id, r)
		}
	}()
	cell := &Cell{fiber: f}
	return f.body(cell)
}

// step delivers a resume value and blocks until the fiber yields again or
// terminates.
func (f *Fiber) step(value any) yieldMsg {
	f.ensureStarted()
	f.resumeCh <- resumeMsg{value: value}
	return <-f.yieldCh
}

// throw delivers an error at the fiber's current suspension point (or,
// for a fiber that never ran, short-circuits it before its body starts).
func (f *Fiber) throw(err error) yieldMsg {
	f.ensureStarted()
	f.resumeCh <- resumeMsg{err: err}
	return <-f.yieldCh
}
