package x

import (
	"time"

	"github.com/recera/fiberloop/pkg/fiberloop"
)

// Sleep returns a fiber that, when awaited, suspends the caller for d
// before resuming with nil. It is built on ThreadBridge rather than on any
// new scheduler mechanism: a worker goroutine blocks in time.Sleep and
// signals completion, exactly mirroring tinyio's own "timeouts are thread
// offloads" note.
func Sleep(loop *fiberloop.Loop, d time.Duration) *fiberloop.Fiber {
	bridge := fiberloop.NewThreadBridge(loop)
	return bridge.Run(func(cancel <-chan struct{}) (any, error) {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return nil, nil
		case <-cancel:
			return nil, fiberloop.ErrCancelled
		}
	})
}
