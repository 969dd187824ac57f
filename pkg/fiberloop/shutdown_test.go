package fiberloop

import (
	"context"
	"errors"
	"testing"
)

// buildErrorPropagationGraph returns a fresh f/g/h/i graph each time it is
// called, since a Fiber is single-use: i fails outright, g depends on i,
// h loops forever re-yielding until cancelled, and f (the root) awaits
// both g and h together.
func buildErrorPropagationGraph(boom error) *Fiber {
	i := New(func(c *Cell) (any, error) {
		return nil, boom
	})
	g := New(func(c *Cell) (any, error) {
		_, err := c.Yield(i)
		return nil, err
	})
	h := New(func(c *Cell) (any, error) {
		for {
			_, err := c.Yield(nil)
			if err != nil {
				return nil, err
			}
		}
	})
	return New(func(c *Cell) (any, error) {
		_, err := c.Yield(Seq{g, h})
		return nil, err
	})
}

func TestErrorPropagationGroupMode(t *testing.T) {
	boom := errors.New("boom")
	root := buildErrorPropagationGraph(boom)

	loop := NewLoop()
	_, err := loop.Run(context.Background(), root, AggregationGroup)
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("error does not wrap the origin: %v", err)
	}

	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		t.Fatalf("expected a joined error, got %T", err)
	}
	var sawCancellation bool
	for _, e := range joined.Unwrap() {
		if errors.Is(e, ErrCancelled) {
			sawCancellation = true
		}
	}
	if !sawCancellation {
		t.Fatal("expected at least one cancellation outcome in the aggregate")
	}
}

func TestErrorPropagationSingleMode(t *testing.T) {
	boom := errors.New("boom")
	root := buildErrorPropagationGraph(boom)

	loop := NewLoop()
	_, err := loop.Run(context.Background(), root, AggregationSingle)
	if !errors.Is(err, boom) {
		t.Fatalf("error does not wrap the origin: %v", err)
	}
	if errors.Is(err, ErrCancelled) {
		t.Fatal("single mode should not surface cancellation outcomes")
	}
}

// TestImproperCancellationResponseIsWarnedNotFailed covers a fiber that
// swallows its cancellation and returns normally instead of propagating
// ErrCancelled: shutdown must log a warning, not treat it as a second
// failure.
func TestImproperCancellationResponseIsWarnedNotFailed(t *testing.T) {
	boom := errors.New("boom")
	i := New(func(c *Cell) (any, error) {
		return nil, boom
	})
	var warnings []string
	loop := NewLoop(WithLogger(func(format string, args ...any) {
		warnings = append(warnings, format)
	}))

	// stuck never fires, so sloppy can only ever be unblocked by the
	// shutdown sweep's throw(ErrCancelled); it then improperly swallows
	// that error and returns normally instead of propagating it.
	stuck := NewSignal(loop)
	sloppy := New(func(c *Cell) (any, error) {
		_, _ = c.Yield(stuck.Wait())
		return "i ignored my cancellation", nil
	})

	root := New(func(c *Cell) (any, error) {
		if _, err := c.Yield(Set{sloppy}); err != nil {
			return nil, err
		}
		_, err := c.Yield(i)
		return nil, err
	})

	_, err := loop.Run(context.Background(), root, AggregationAuto)
	if !errors.Is(err, boom) {
		t.Fatalf("error does not wrap the origin: %v", err)
	}
	if len(warnings) == 0 {
		t.Fatal("expected an improper-cancellation-response warning to be logged")
	}
}
