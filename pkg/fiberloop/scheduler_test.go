package fiberloop

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// TestDiamond exercises the scenario where two fibers (d2 with different
// multipliers) both depend on the same upstream fiber (add1): the shared
// dependency must run exactly once and its cached result must feed both
// downstream computations.
func TestDiamond(t *testing.T) {
	add1 := func(x int) *Fiber {
		return New(func(c *Cell) (any, error) {
			if _, err := c.Yield(nil); err != nil {
				return nil, err
			}
			return x + 1, nil
		})
	}
	d2 := func(dep *Fiber, k int) *Fiber {
		return New(func(c *Cell) (any, error) {
			z, err := c.Yield(dep)
			if err != nil {
				return nil, err
			}
			return z.(int) * k, nil
		})
	}

	root := New(func(c *Cell) (any, error) {
		shared := add1(2)
		res, err := c.Yield(Seq{d2(shared, 1), d2(shared, 2)})
		if err != nil {
			return nil, err
		}
		pair := res.([]any)
		return pair[0].(int) + pair[1].(int), nil
	})

	loop := NewLoop()
	val, err := loop.Run(context.Background(), root, AggregationAuto)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := val.(int); got != 9 {
		t.Fatalf("got %d, want 9", got)
	}
}

// TestCycleDetected builds a mutual dependency between two fibers and
// confirms the loop detects it at quiescence rather than deadlocking.
func TestCycleDetected(t *testing.T) {
	var f, g *Fiber
	f = New(func(c *Cell) (any, error) {
		_, err := c.Yield(g)
		return nil, err
	})
	g = New(func(c *Cell) (any, error) {
		_, err := c.Yield(f)
		return nil, err
	})
	h := New(func(c *Cell) (any, error) {
		_, err := c.Yield(Seq{f, g})
		return nil, err
	})

	loop := NewLoop()
	_, err := loop.Run(context.Background(), h, AggregationAuto)
	if err == nil {
		t.Fatal("expected a cycle error, got nil")
	}
	if !strings.Contains(err.Error(), "Cycle detected") {
		t.Fatalf("error %q does not mention a detected cycle", err.Error())
	}
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected a *CycleError, got %T", err)
	}
	if len(cycleErr.Fibers) == 0 {
		t.Fatal("CycleError.Fibers is empty")
	}
}

// TestBackgroundSet admits a fiber via Set, lets an unrelated fiber fire
// the signal it is blocked on, then awaits the backgrounded fiber a second
// time expecting its already-cached result.
func TestBackgroundSet(t *testing.T) {
	loop := NewLoop()
	sig := NewSignal(loop)

	f := New(func(c *Cell) (any, error) {
		_, err := c.Yield(sig.Wait())
		if err != nil {
			return nil, err
		}
		return 3, nil
	})
	g := New(func(c *Cell) (any, error) {
		sig.Set()
		return nil, nil
	})
	root := New(func(c *Cell) (any, error) {
		if _, err := c.Yield(Set{f}); err != nil {
			return nil, err
		}
		if _, err := c.Yield(g); err != nil {
			return nil, err
		}
		val, err := c.Yield(f)
		if err != nil {
			return nil, err
		}
		return val, nil
	})

	val, err := loop.Run(context.Background(), root, AggregationAuto)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := val.(int); got != 3 {
		t.Fatalf("got %d, want 3", got)
	}
}

// TestInvalidYield yields a value outside the closed DependencySpec set
// and expects the scheduler to throw an *InvalidYieldError back at the
// yielding fiber rather than hang or panic.
func TestInvalidYield(t *testing.T) {
	type notASpec struct{ A, B int }

	root := New(func(c *Cell) (any, error) {
		_, err := c.Yield(notASpec{1, 2})
		return nil, err
	})

	loop := NewLoop()
	_, err := loop.Run(context.Background(), root, AggregationAuto)
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	if !strings.Contains(err.Error(), "Invalid yield") {
		t.Fatalf("error %q does not mention an invalid yield", err.Error())
	}
	var ive *InvalidYieldError
	if !errors.As(err, &ive) {
		t.Fatalf("expected an *InvalidYieldError, got %T", err)
	}
}

// TestStatsReflectsFinishedFibers confirms Stats.Finished counts fibers
// that completed during a run.
func TestStatsReflectsFinishedFibers(t *testing.T) {
	loop := NewLoop()
	a := New(func(c *Cell) (any, error) { return 1, nil })
	b := New(func(c *Cell) (any, error) { return 2, nil })
	root := New(func(c *Cell) (any, error) {
		_, err := c.Yield(Seq{a, b})
		return nil, err
	})

	if _, err := loop.Run(context.Background(), root, AggregationAuto); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stats := loop.Stats()
	if stats.Finished != 3 {
		t.Fatalf("Finished = %d, want 3", stats.Finished)
	}
	if stats.WaitingOn != 0 {
		t.Fatalf("WaitingOn = %d, want 0", stats.WaitingOn)
	}
}

// TestSignalWaitReused confirms that yielding the same SignalWait token
// twice is rejected rather than silently double-registered.
func TestSignalWaitReused(t *testing.T) {
	loop := NewLoop()
	sig := NewSignal(loop)

	root := New(func(c *Cell) (any, error) {
		tok := sig.Wait()
		sig.Set()
		if _, err := c.Yield(tok); err != nil {
			return nil, err
		}
		if _, err := c.Yield(tok); err != nil {
			return nil, err
		}
		return nil, nil
	})

	_, err := loop.Run(context.Background(), root, AggregationAuto)
	if !errors.Is(err, ErrSignalWaitReused) {
		t.Fatalf("got %v, want ErrSignalWaitReused", err)
	}
}

// TestDuplicateSignalInOneSpecRegistersOnce covers the "same signal twice
// in a single spec" rule (§4.1): two distinct tokens for the same signal,
// yielded together, must only require one registration.
func TestDuplicateSignalInOneSpecRegistersOnce(t *testing.T) {
	loop := NewLoop()
	sig := NewSignal(loop)
	sig.Set()

	root := New(func(c *Cell) (any, error) {
		res, err := c.Yield(Seq{sig.Wait(), sig.Wait()})
		if err != nil {
			return nil, err
		}
		return res, nil
	})

	val, err := loop.Run(context.Background(), root, AggregationAuto)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pair := val.([]any)
	if len(pair) != 2 {
		t.Fatalf("got %d results, want 2", len(pair))
	}
}

// TestSignalInBackgroundSetRejected confirms a SignalWait cannot appear
// inside a background Set.
func TestSignalInBackgroundSetRejected(t *testing.T) {
	loop := NewLoop()
	sig := NewSignal(loop)

	root := New(func(c *Cell) (any, error) {
		_, err := c.Yield(Set{sig.Wait()})
		return nil, err
	})

	_, err := loop.Run(context.Background(), root, AggregationAuto)
	if !errors.Is(err, ErrSignalInBackgroundSet) {
		t.Fatalf("got %v, want ErrSignalInBackgroundSet", err)
	}
}
