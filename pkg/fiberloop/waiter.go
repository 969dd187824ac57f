package fiberloop

import "sync"

// waiter joins N dependency completions into a single resumption. It is
// the Go shape of the data model's Waiter: `{counter, fiber, spec, lock}`.
//
// Lock discipline: the counter is touched only while mu is held; the
// resume-value assembly and the ready-queue push happen after release,
// so a Signal (which may call decrement from any goroutine) never holds
// a lock across into the Loop.
type waiter struct {
	mu      sync.Mutex
	counter int

	fiber *Fiber
	loop  *Loop

	// wrap is true when the original yield was a Seq (even a length-1
	// one): the assembled resume value is then always a slice. A bare
	// single *Fiber or SignalWait (wrap == false) resumes with the
	// unwrapped scalar value instead.
	wrap bool

	// items records, per position, what was yielded: a *Fiber
	// contributes its cached result; a SignalWait contributes nil.
	items []waiterItem
}

type waiterItem struct {
	fiber *Fiber // nil for a signal-wait position
}

func newWaiter(loop *Loop, fiber *Fiber, wrap bool, n int) *waiter {
	return &waiter{
		loop:    loop,
		fiber:   fiber,
		wrap:    wrap,
		counter: n,
		items:   make([]waiterItem, n),
	}
}

// decrement drops the join counter by one. At zero, the owning fiber's
// resume value is assembled and pushed onto the ready queue, and the
// loop's wake channel is pulsed (harmless, if redundant, when called from
// the loop's own goroutine).
func (w *waiter) decrement() {
	w.mu.Lock()
	if w.counter <= 0 {
		w.mu.Unlock()
		panic("fiberloop: waiter counter decremented below zero")
	}
	w.counter--
	done := w.counter == 0
	w.mu.Unlock()

	if !done {
		return
	}
	value := w.assemble()
	w.loop.pushReadyHead(w.fiber, value, nil)
	w.loop.pulseWake()
}

func (w *waiter) assemble() any {
	if !w.wrap {
		item := w.items[0]
		if item.fiber == nil {
			return nil
		}
		return w.loop.getResult(item.fiber)
	}
	out := make([]any, len(w.items))
	for i, item := range w.items {
		if item.fiber == nil {
			out[i] = nil
			continue
		}
		out[i] = w.loop.getResult(item.fiber)
	}
	return out
}
