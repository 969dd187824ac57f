package fiberloop

import (
	"errors"
	"fmt"
)

func errIsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// handleFailure runs the shutdown algorithm of §4.5: cancel every
// remaining fiber, classify the outcomes, stitch a best-effort
// annotation chain onto the origin error, and package the result
// according to mode.
//
// originFiber's goroutine has already terminated by the time this is
// called (the step that produced origin is exactly what returned the
// error), so originFiber is never thrown into again; it is excluded from
// the cancellation sweep. originFiber is nil when the failure came from
// outside any fiber (ctx cancellation), and then every fiber is swept.
func (l *Loop) handleFailure(origin error, originFiber *Fiber, mode AggregationMode) error {
	cancelErrors := make(map[*Fiber]error)
	var otherErrors []error

	for f := range l.waitingOn {
		if f == originFiber {
			continue
		}
		msg := f.throw(ErrCancelled)
		switch {
		case msg.hasSpec:
			if l.cfg.WarnOnImproperCancellation {
				l.logf("fiberloop: fiber %d did not respond properly to cancellation: it yielded again instead of propagating ErrCancelled (possible resource leak)", f.ID())
			}
		case msg.err == nil:
			if l.cfg.WarnOnImproperCancellation {
				l.logf("fiberloop: fiber %d did not respond properly to cancellation: it returned %v instead of propagating ErrCancelled (possible resource leak)", f.ID(), msg.value)
			}
		case errIsCancelled(msg.err):
			f.state.Store(int32(StateCancelled))
			cancelErrors[f] = msg.err
		default:
			f.state.Store(int32(StateFailed))
			otherErrors = append(otherErrors, msg.err)
		}
	}

	stitched := l.stitchChain(origin, originFiber, cancelErrors)

	switch mode {
	case AggregationSingle:
		return stitched
	case AggregationGroup:
		return l.aggregate(stitched, otherErrors, cancelErrors)
	default: // AggregationAuto
		if len(otherErrors) == 0 {
			return stitched
		}
		return l.aggregate(stitched, otherErrors, cancelErrors)
	}
}

// stitchChain is the cosmetic, best-effort traceback-stitching of §4.5.4,
// replaced per the §9 design note with a textual annotation chain since
// Go does not expose mutable stack frames. Starting at originFiber, it
// walks up the reverse waitingOn edges for as long as each cancelled
// fiber has exactly one waiter.
func (l *Loop) stitchChain(origin error, originFiber *Fiber, cancelErrors map[*Fiber]error) error {
	waiters := l.waitingOn[originFiber]
	if len(waiters) != 1 {
		return origin
	}
	cur := waiters[0].fiber
	result := origin
	for {
		if _, ok := cancelErrors[cur]; !ok {
			break
		}
		result = fmt.Errorf("%w (cancelled fiber %d while it waited)", result, cur.ID())
		next := l.waitingOn[cur]
		if len(next) != 1 {
			break
		}
		cur = next[0].fiber
	}
	return result
}

// aggregate builds the AggregationGroup result: origin first, then
// secondary errors, then "interesting" cancellations, then the rest --
// via the standard library's errors.Join, which is the idiomatic Go
// stand-in for Python's BaseExceptionGroup (its Unwrap() []error
// preserves slice order, so callers can still errors.Is/As through the
// whole aggregate).
func (l *Loop) aggregate(origin error, otherErrors []error, cancelErrors map[*Fiber]error) error {
	var interesting, rest []error
	for _, e := range cancelErrors {
		if e != ErrCancelled {
			interesting = append(interesting, e)
		} else {
			rest = append(rest, e)
		}
	}

	all := make([]error, 0, 1+len(otherErrors)+len(interesting)+len(rest))
	all = append(all, origin)
	all = append(all, otherErrors...)
	all = append(all, interesting...)
	all = append(all, rest...)
	return errors.Join(all...)
}
