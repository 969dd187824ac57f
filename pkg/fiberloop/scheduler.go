// Package fiberloop implements a small cooperative-concurrency runtime: a
// single-threaded event loop that drives user-defined fibers, coordinates
// their dependencies through a completion-based scheduler, offloads
// blocking work to worker goroutines via ThreadBridge, and propagates
// failure with structured cancellation.
//
// Derived primitives -- semaphores, locks, barriers, as_completed,
// timeout, sleep -- are deliberately not part of this package; they are
// thin compositions of Signal and ThreadBridge and live in
// pkg/fiberloop/x instead.
package fiberloop

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"github.com/recera/fiberloop/pkg/fiberloop/runtimeconfig"
)

// AggregationMode controls how shutdown packages the origin error
// together with cancellation outcomes. See Loop.Run.
type AggregationMode int

const (
	// AggregationAuto behaves like AggregationSingle when no secondary
	// error arose during shutdown, and like AggregationGroup otherwise.
	// This is the default.
	AggregationAuto AggregationMode = iota
	// AggregationSingle raises the origin error alone, discarding
	// cancellation outcomes (they completed their duty).
	AggregationSingle
	// AggregationGroup always raises an aggregated error: origin first,
	// then secondary errors, then "interesting" cancellations (wrapped
	// with extra context), then the rest.
	AggregationGroup
)

type readyItem struct {
	fiber *Fiber
	value any
	errIn error // non-nil: this resumption is a throw, not a step
}

// Loop is the scheduler: ready queue, dependency map, result cache,
// cycle detection. A Loop is not safe for concurrent Run/Runtime calls --
// exactly one goroutine may drive it at a time, matching the
// single-threaded cooperative model in the data model (§3/§5).
type Loop struct {
	// mu guards ready, results, and finished -- the only Loop state
	// that a non-owning goroutine (a ThreadBridge worker calling
	// Signal.Set, which synchronously calls waiter.decrement) ever
	// touches.
	mu       sync.Mutex
	ready    *list.List
	results  map[*Fiber]any
	finished map[*Fiber]bool

	// waitingOn is touched only by the goroutine driving the loop.
	waitingOn map[*Fiber][]*waiter

	// waitingCount mirrors len(waitingOn), kept as an atomic so Stats can
	// be read from a monitor goroutine without racing the driving
	// goroutine's unguarded access to waitingOn itself.
	waitingCount atomic.Int64

	wake chan struct{}

	cfg  *runtimeconfig.Config
	logf func(format string, args ...any)
}

// Stats is a point-in-time snapshot of a Loop's size. Safe to read from
// any goroutine -- in particular, a monitor polling a Loop that some other
// goroutine is concurrently driving.
type Stats struct {
	ReadyLen  int
	WaitingOn int64
	Finished  int
}

// Stats reports the current ready-queue depth, the number of fibers
// registered in waitingOn, and the number of fibers that have finished so
// far.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		ReadyLen:  l.ready.Len(),
		WaitingOn: l.waitingCount.Load(),
		Finished:  len(l.finished),
	}
}

// Option configures a Loop at construction time.
type Option func(*Loop)

// WithConfig overrides the runtime tuning knobs (warnings, cycle-check
// cadence, thread-bridge drain window). The Loop reads cfg while it runs,
// so later changes to *cfg take effect; cfg.DefaultAggregationMode is not
// read by the Loop. Defaults to runtimeconfig.DefaultConfig().
func WithConfig(cfg *runtimeconfig.Config) Option {
	return func(l *Loop) { l.cfg = cfg }
}

// WithLogger installs a debug/warning sink, mirroring the teacher's
// SetDebugLog hook. Defaults to a no-op.
func WithLogger(logf func(format string, args ...any)) Option {
	return func(l *Loop) { l.logf = logf }
}

// NewLoop creates an empty scheduler.
func NewLoop(opts ...Option) *Loop {
	l := &Loop{
		ready:     list.New(),
		results:   make(map[*Fiber]any),
		finished:  make(map[*Fiber]bool),
		waitingOn: make(map[*Fiber][]*waiter),
		wake:      make(chan struct{}, 1),
		cfg:       runtimeconfig.DefaultConfig(),
		logf:      func(string, ...any) {},
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Run drives the loop until root returns or any fiber fails, returning
// root's value or the (possibly aggregated) error.
func (l *Loop) Run(ctx context.Context, root *Fiber, mode AggregationMode) (any, error) {
	it := l.Runtime(ctx, root, mode)
	for it.Next() {
	}
	return it.Value(), it.Err()
}

// StepIterator exposes the same loop one external wait at a time, so
// adapter code can interleave a fiberloop run with another host's loop.
type StepIterator struct {
	loop *Loop
	root *Fiber
	mode AggregationMode
	ctx  context.Context

	done  bool
	value any
	err   error

	// quiescentHits counts consecutive polls that found the ready queue
	// empty with fibers still waiting. checkCycle only runs once every
	// cfg.CycleCheckEvery such hit.
	quiescentHits int
}

// Runtime admits root and returns a step iterator driving it.
func (l *Loop) Runtime(ctx context.Context, root *Fiber, mode AggregationMode) *StepIterator {
	if ctx == nil {
		ctx = context.Background()
	}
	l.admit(root)
	return &StepIterator{loop: l, root: root, mode: mode, ctx: ctx}
}

// Value returns root's return value once Next has returned false with no
// error.
func (it *StepIterator) Value() any { return it.value }

// Err returns the terminal error, if any, once Next has returned false.
func (it *StepIterator) Err() error { return it.err }

// Next advances the loop by either stepping one ready fiber, or -- if
// the ready queue is empty and fibers remain -- blocking once on an
// external completion (or ctx cancellation). It returns false once the
// root has finished or the run has failed.
func (it *StepIterator) Next() bool {
	if it.done {
		return false
	}
	l := it.loop

	for {
		item, ok := l.popReady()
		if !ok {
			if len(l.waitingOn) == 0 {
				it.value = l.getResult(it.root)
				it.done = true
				return false
			}
			it.quiescentHits++
			every := l.cfg.CycleCheckEvery
			if every < 1 {
				every = 1
			}
			if it.quiescentHits%every == 0 {
				if cyc := l.checkCycle(); cyc != nil {
					l.logf("fiberloop: cycle detected, cancelling root fiber %d", it.root.ID())
					l.pushReadyHead(it.root, nil, cyc)
					continue
				}
			}
			select {
			case <-l.wake:
				continue
			case <-it.ctx.Done():
				it.err = it.loop.handleFailure(it.ctx.Err(), nil, it.mode)
				it.done = true
				return false
			}
		}

		outcome := l.step(item)
		if outcome.failed {
			it.err = l.handleFailure(outcome.err, outcome.fiber, it.mode)
			it.done = true
			return false
		}
		return true
	}
}

// admit registers a fresh fiber with the loop (pushed onto the ready
// head, as §4.1 requires for newly-admitted fibers), unless it is
// already known (admitted or cached from a previous Run sharing this
// Loop).
func (l *Loop) admit(f *Fiber) {
	if _, ok := l.waitingOn[f]; ok {
		return
	}
	if l.isFinished(f) {
		return
	}
	l.waitingOn[f] = nil
	l.waitingCount.Add(1)
	l.pushReadyHead(f, nil, nil)
}

func (l *Loop) pushReadyHead(f *Fiber, value any, errIn error) {
	l.mu.Lock()
	l.ready.PushFront(&readyItem{fiber: f, value: value, errIn: errIn})
	l.mu.Unlock()
}

func (l *Loop) popReady() (*readyItem, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.ready.Back()
	if e == nil {
		return nil, false
	}
	l.ready.Remove(e)
	return e.Value.(*readyItem), true
}

func (l *Loop) pulseWake() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) getResult(f *Fiber) any {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.results[f]
}

func (l *Loop) isFinished(f *Fiber) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.finished[f]
}

// stepOutcome reports what happened to a fiber, a loop-goroutine-only
// analogue of the teacher's "processFiber" return.
type stepOutcome struct {
	failed bool
	fiber  *Fiber
	err    error
}

// step advances one fiber by exactly one yield. It is only ever called
// from the goroutine driving the loop.
func (l *Loop) step(item *readyItem) stepOutcome {
	f := item.fiber
	var msg yieldMsg
	if item.errIn != nil {
		msg = f.throw(item.errIn)
	} else {
		msg = f.step(item.value)
	}

	if !msg.hasSpec {
		if msg.err != nil {
			f.state.Store(int32(classifyFailure(msg.err)))
			return stepOutcome{failed: true, fiber: f, err: msg.err}
		}
		f.state.Store(int32(StateFinished))
		l.finish(f, msg.value)
		return stepOutcome{}
	}

	l.dispatch(f, msg.spec)
	return stepOutcome{}
}

func classifyFailure(err error) fiberState {
	if errIsCancelled(err) {
		return StateCancelled
	}
	return StateFailed
}

func (l *Loop) finish(f *Fiber, value any) {
	l.mu.Lock()
	l.results[f] = value
	l.finished[f] = true
	l.mu.Unlock()

	waiters := l.waitingOn[f]
	delete(l.waitingOn, f)
	l.waitingCount.Add(-1)
	for _, w := range waiters {
		w.decrement()
	}
}

// dispatch implements the yielded-spec handling of §4.1's step().
func (l *Loop) dispatch(f *Fiber, spec any) {
	switch s := spec.(type) {
	case nil:
		l.pushReadyHead(f, nil, nil)
	case *Fiber:
		l.dispatchSeq(f, []any{s}, false)
	case SignalWait:
		l.dispatchSeq(f, []any{s}, false)
	case Seq:
		items := make([]any, len(s))
		copy(items, s)
		l.dispatchSeq(f, items, true)
	case Set:
		l.dispatchSet(f, s)
	default:
		l.pushReadyHead(f, nil, &InvalidYieldError{Value: spec})
	}
}

// dispatchSeq handles both the single-dependency case (wrap == false)
// and a genuine ordered Seq (wrap == true); both allocate a waiter with
// counter == len(items).
func (l *Loop) dispatchSeq(f *Fiber, items []any, wrap bool) {
	w := newWaiter(l, f, wrap, len(items))
	// seenSignals dedupes by Signal identity, not by token: yielding two
	// distinct Wait() tokens for the *same* signal in one spec only
	// needs one registration (§4.1). Token reuse itself (the same
	// SignalWait yielded twice, anywhere) is a separate, harder error
	// caught by markUsed below.
	seenSignals := make(map[*Signal]bool)

	for i, it := range items {
		switch v := it.(type) {
		case *Fiber:
			w.items[i] = waiterItem{fiber: v}
			if l.isFinished(v) {
				w.decrement()
			} else if _, admitted := l.waitingOn[v]; admitted {
				l.waitingOn[v] = append(l.waitingOn[v], w)
			} else {
				l.waitingOn[v] = []*waiter{w}
				l.waitingCount.Add(1)
				l.pushReadyHead(v, nil, nil)
			}
		case SignalWait:
			if err := v.markUsed(); err != nil {
				l.pushReadyHead(f, nil, err)
				return
			}
			if seenSignals[v.sig] {
				w.decrement()
			} else {
				seenSignals[v.sig] = true
				v.sig.register(w, f)
			}
		default:
			l.pushReadyHead(f, nil, &InvalidYieldError{Value: it})
			return
		}
	}
}

// dispatchSet handles an unordered background set: fresh fibers are
// admitted and the yielding fiber resumes immediately with nil. A
// SignalWait inside a Set is rejected outright.
func (l *Loop) dispatchSet(f *Fiber, items Set) {
	for _, it := range items {
		switch v := it.(type) {
		case *Fiber:
			if v == nil {
				continue
			}
			if l.isFinished(v) {
				continue
			}
			if _, admitted := l.waitingOn[v]; admitted {
				continue
			}
			l.waitingOn[v] = nil
			l.waitingCount.Add(1)
			l.pushReadyHead(v, nil, nil)
		case SignalWait:
			l.pushReadyHead(f, nil, ErrSignalInBackgroundSet)
			return
		default:
			l.pushReadyHead(f, nil, &InvalidYieldError{Value: it})
			return
		}
	}
	l.pushReadyHead(f, nil, nil)
}

// checkCycle runs only when the ready queue is empty and fibers remain.
// It builds the "who-depends-on-whom" graph from waitingOn and looks for
// a cycle via a standard white/gray/black DFS.
func (l *Loop) checkCycle() *CycleError {
	deps := make(map[*Fiber]map[*Fiber]bool, len(l.waitingOn))
	for dep, waiters := range l.waitingOn {
		for _, w := range waiters {
			if deps[w.fiber] == nil {
				deps[w.fiber] = make(map[*Fiber]bool)
			}
			deps[w.fiber][dep] = true
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[*Fiber]int, len(l.waitingOn))
	var cyclic []*Fiber

	var visit func(f *Fiber) bool
	visit = func(f *Fiber) bool {
		color[f] = gray
		for dep := range deps[f] {
			switch color[dep] {
			case gray:
				cyclic = append(cyclic, dep)
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		color[f] = black
		return false
	}

	for f := range l.waitingOn {
		if color[f] == white {
			if visit(f) {
				ids := make([]uint64, 0, len(cyclic))
				for _, cf := range cyclic {
					ids = append(ids, cf.ID())
				}
				return &CycleError{Fibers: ids}
			}
		}
	}
	return nil
}
