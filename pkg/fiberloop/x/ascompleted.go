package x

import (
	"sync"

	"github.com/recera/fiberloop/pkg/fiberloop"
)

// AsCompleted returns a fiber that awaits every fiber in fibers and
// resumes with a channel delivering each one as it finishes, in
// completion order rather than input order. The channel is closed after
// the last fiber reports in.
//
// It is built purely from Signal and a background Set-yield, exactly as
// tinyio's as_completed is built purely from Event and a background
// `{...}`-yield: no new scheduler mechanism is required.
func AsCompleted(loop *fiberloop.Loop, fibers []*fiberloop.Fiber) *fiberloop.Fiber {
	return fiberloop.New(func(c *fiberloop.Cell) (any, error) {
		out := make(chan *fiberloop.Fiber, len(fibers))
		if len(fibers) == 0 {
			close(out)
			return out, nil
		}

		done := fiberloop.NewSignal(loop)
		var (
			mu        sync.Mutex
			remaining = len(fibers)
		)

		watch := make(fiberloop.Set, len(fibers))
		for i, f := range fibers {
			f := f
			watch[i] = fiberloop.New(func(wc *fiberloop.Cell) (any, error) {
				if _, err := wc.Yield(f); err != nil {
					return nil, err
				}
				out <- f
				mu.Lock()
				remaining--
				last := remaining == 0
				mu.Unlock()
				if last {
					close(out)
					done.Set()
				}
				return nil, nil
			})
		}

		if _, err := c.Yield(watch); err != nil {
			return nil, err
		}
		if _, err := c.Yield(done.Wait()); err != nil {
			return nil, err
		}
		return out, nil
	})
}
