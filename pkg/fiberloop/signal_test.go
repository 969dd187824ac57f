package fiberloop

import (
	"context"
	"testing"
)

// TestSignalReleasesAllWaiters confirms that a single Set wakes every
// fiber registered against the signal at that moment.
func TestSignalReleasesAllWaiters(t *testing.T) {
	loop := NewLoop()
	sig := NewSignal(loop)

	waiter := func() *Fiber {
		return New(func(c *Cell) (any, error) {
			_, err := c.Yield(sig.Wait())
			return nil, err
		})
	}
	a, b, cc := waiter(), waiter(), waiter()

	setter := New(func(c *Cell) (any, error) {
		sig.Set()
		return nil, nil
	})

	root := New(func(c *Cell) (any, error) {
		if _, err := c.Yield(Set{a, b, cc}); err != nil {
			return nil, err
		}
		_, err := c.Yield(setter)
		return nil, err
	})

	if _, err := loop.Run(context.Background(), root, AggregationAuto); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, f := range []*Fiber{a, b, cc} {
		if f.State() != StateFinished {
			t.Fatalf("fiber %d ended in state %s, want finished", f.ID(), f.State())
		}
	}
}

// TestSignalMintedBeforeSetStillResolves covers the subtle case in §4.2:
// a wait token minted before Set is called, but only yielded afterward,
// must still resolve immediately rather than block forever -- minting
// carries no snapshot of the signal's state.
func TestSignalMintedBeforeSetStillResolves(t *testing.T) {
	loop := NewLoop()
	sig := NewSignal(loop)
	tok := sig.Wait()
	sig.Set()

	root := New(func(c *Cell) (any, error) {
		_, err := c.Yield(tok)
		return nil, err
	})

	if _, err := loop.Run(context.Background(), root, AggregationAuto); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestSignalSetIsIdempotent confirms a second Set call on an
// already-set signal is a harmless no-op.
func TestSignalSetIsIdempotent(t *testing.T) {
	loop := NewLoop()
	sig := NewSignal(loop)
	sig.Set()
	sig.Set()
	if !sig.IsSet() {
		t.Fatal("signal should be set")
	}
}

// TestSignalClearRearmsForFutureWaits confirms a cleared signal blocks a
// freshly minted wait token again: the blocked fiber registers its wait
// before opener runs, and must not have resumed by the time opener sets
// the signal.
func TestSignalClearRearmsForFutureWaits(t *testing.T) {
	loop := NewLoop()
	sig := NewSignal(loop)
	sig.Set()
	sig.Clear()

	resumed := false
	blocked := New(func(c *Cell) (any, error) {
		_, err := c.Yield(sig.Wait())
		resumed = true
		return nil, err
	})
	resumedBeforeSet := false
	opener := New(func(c *Cell) (any, error) {
		resumedBeforeSet = resumed
		sig.Set()
		return nil, nil
	})
	root := New(func(c *Cell) (any, error) {
		if _, err := c.Yield(Set{blocked}); err != nil {
			return nil, err
		}
		_, err := c.Yield(opener)
		return nil, err
	})

	if _, err := loop.Run(context.Background(), root, AggregationAuto); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resumedBeforeSet {
		t.Fatal("a wait minted after Clear resolved before the signal was set again")
	}
}
