package x

import (
	"fmt"
	"time"

	"github.com/recera/fiberloop/pkg/fiberloop"
)

// ErrTimeout is returned, wrapping fiberloop.ErrCancelled, when Timeout's
// deadline elapses before f does. errors.Is(err, fiberloop.ErrCancelled)
// recognizes a timeout the same way it recognizes any other cancellation.
var ErrTimeout = fmt.Errorf("fiberloop/x: timed out: %w", fiberloop.ErrCancelled)

// Timeout returns a fiber that awaits f and returns f's result, or fails
// with ErrTimeout if d elapses first. Like any fiber error, that failure
// ends the run: Loop shutdown then delivers ErrCancelled to f along with
// every other pending fiber. Timeout itself never stops f directly. When
// f wins the race, the timer's Sleep is left running and the run does not
// return until it has finished.
func Timeout(loop *fiberloop.Loop, d time.Duration, f *fiberloop.Fiber) *fiberloop.Fiber {
	return fiberloop.New(func(c *fiberloop.Cell) (any, error) {
		race := fiberloop.NewSignal(loop)

		var (
			result    any
			resultErr error
			timedOut  bool
		)

		watcher := fiberloop.New(func(wc *fiberloop.Cell) (any, error) {
			v, err := wc.Yield(f)
			result, resultErr = v, err
			race.Set()
			return nil, nil
		})
		timer := fiberloop.New(func(tc *fiberloop.Cell) (any, error) {
			_, err := tc.Yield(Sleep(loop, d))
			if err == nil {
				timedOut = true
			}
			race.Set()
			return nil, err
		})

		if _, err := c.Yield(fiberloop.Set{watcher, timer}); err != nil {
			return nil, err
		}
		if _, err := c.Yield(race.Wait()); err != nil {
			return nil, err
		}
		if timedOut {
			return nil, ErrTimeout
		}
		return result, resultErr
	})
}
