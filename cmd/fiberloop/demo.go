package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/recera/fiberloop/pkg/fiberloop"
	"github.com/recera/fiberloop/pkg/fiberloop/x"
)

func newDemoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo <scenario>",
		Short: "Run one of the seed scheduling scenarios and print its outcome",
		Long: `Scenarios: diamond, cycle, background, sleep-fanout,
error-propagation, invalid-yield, fetch.

Each one builds a small fiber graph illustrating one property of the
scheduler (a shared dependency run once, a detected cycle, a backgrounded
fiber, a wide fan-out of sleeps, cascading cancellation after a failure, a
malformed yield, and a ThreadBridge-offloaded blocking websocket dial) and
prints the resulting value or error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loop := fiberloop.NewLoop(fiberloop.WithLogger(func(format string, a ...any) {
				log.Printf(format, a...)
			}))
			return runDemoOnLoop(loop, args[0])
		},
	}
	return cmd
}

// runDemoOnLoop builds and runs one named scenario against loop, printing
// its outcome to stdout/log.
func runDemoOnLoop(loop *fiberloop.Loop, scenario string) error {
	builder, ok := demoScenarios[scenario]
	if !ok {
		return fmt.Errorf("unknown scenario %q (see 'fiberloop demo --help')", scenario)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	root, mode := builder(loop)
	val, err := loop.Run(ctx, root, mode)
	if err != nil {
		return err
	}
	fmt.Printf("%s -> %v\n", scenario, val)
	return nil
}

var demoScenarios = map[string]func(loop *fiberloop.Loop) (*fiberloop.Fiber, fiberloop.AggregationMode){
	"diamond":           diamondScenario,
	"cycle":             cycleScenario,
	"background":        backgroundScenario,
	"sleep-fanout":      sleepFanoutScenario,
	"error-propagation": errorPropagationScenario,
	"invalid-yield":     invalidYieldScenario,
	"fetch":             fetchScenario,
}

// diamondScenario: two computations sharing one upstream dependency,
// which must run exactly once.
func diamondScenario(loop *fiberloop.Loop) (*fiberloop.Fiber, fiberloop.AggregationMode) {
	addOne := func(x int) *fiberloop.Fiber {
		return fiberloop.New(func(c *fiberloop.Cell) (any, error) {
			if _, err := c.Yield(nil); err != nil {
				return nil, err
			}
			return x + 1, nil
		})
	}
	scale := func(dep *fiberloop.Fiber, k int) *fiberloop.Fiber {
		return fiberloop.New(func(c *fiberloop.Cell) (any, error) {
			v, err := c.Yield(dep)
			if err != nil {
				return nil, err
			}
			return v.(int) * k, nil
		})
	}
	root := fiberloop.New(func(c *fiberloop.Cell) (any, error) {
		shared := addOne(2)
		res, err := c.Yield(fiberloop.Seq{scale(shared, 1), scale(shared, 2)})
		if err != nil {
			return nil, err
		}
		pair := res.([]any)
		return pair[0].(int) + pair[1].(int), nil
	})
	return root, fiberloop.AggregationAuto
}

// cycleScenario: two fibers depending on each other, caught at quiescence
// rather than deadlocking.
func cycleScenario(loop *fiberloop.Loop) (*fiberloop.Fiber, fiberloop.AggregationMode) {
	var f, g *fiberloop.Fiber
	f = fiberloop.New(func(c *fiberloop.Cell) (any, error) {
		_, err := c.Yield(g)
		return nil, err
	})
	g = fiberloop.New(func(c *fiberloop.Cell) (any, error) {
		_, err := c.Yield(f)
		return nil, err
	})
	root := fiberloop.New(func(c *fiberloop.Cell) (any, error) {
		_, err := c.Yield(fiberloop.Seq{f, g})
		return nil, err
	})
	return root, fiberloop.AggregationAuto
}

// backgroundScenario: a fiber admitted as a background Set, unblocked by
// a signal another fiber sets, then re-awaited for its cached value.
func backgroundScenario(loop *fiberloop.Loop) (*fiberloop.Fiber, fiberloop.AggregationMode) {
	sig := fiberloop.NewSignal(loop)
	f := fiberloop.New(func(c *fiberloop.Cell) (any, error) {
		if _, err := c.Yield(sig.Wait()); err != nil {
			return nil, err
		}
		return 3, nil
	})
	g := fiberloop.New(func(c *fiberloop.Cell) (any, error) {
		sig.Set()
		return nil, nil
	})
	root := fiberloop.New(func(c *fiberloop.Cell) (any, error) {
		if _, err := c.Yield(fiberloop.Set{f}); err != nil {
			return nil, err
		}
		if _, err := c.Yield(g); err != nil {
			return nil, err
		}
		return c.Yield(f)
	})
	return root, fiberloop.AggregationAuto
}

// sleepFanoutScenario: 100 independent sleeps fanning out through their
// own ThreadBridge workers, completing in roughly one sleep's worth of
// wall-clock time.
func sleepFanoutScenario(loop *fiberloop.Loop) (*fiberloop.Fiber, fiberloop.AggregationMode) {
	const n = 100
	items := make([]any, n)
	for i := 0; i < n; i++ {
		i := i
		items[i] = fiberloop.New(func(c *fiberloop.Cell) (any, error) {
			if _, err := c.Yield(x.Sleep(loop, 100*time.Millisecond)); err != nil {
				return nil, err
			}
			return i + 1, nil
		})
	}
	root := fiberloop.New(func(c *fiberloop.Cell) (any, error) {
		return c.Yield(fiberloop.Seq(items))
	})
	return root, fiberloop.AggregationAuto
}

// errorPropagationScenario: one fiber fails outright, a sibling keeps
// re-yielding until cancelled, and the root awaits both together.
func errorPropagationScenario(loop *fiberloop.Loop) (*fiberloop.Fiber, fiberloop.AggregationMode) {
	boom := errors.New("demo: deliberate failure")
	i := fiberloop.New(func(c *fiberloop.Cell) (any, error) {
		return nil, boom
	})
	g := fiberloop.New(func(c *fiberloop.Cell) (any, error) {
		_, err := c.Yield(i)
		return nil, err
	})
	h := fiberloop.New(func(c *fiberloop.Cell) (any, error) {
		for {
			if _, err := c.Yield(nil); err != nil {
				return nil, err
			}
		}
	})
	root := fiberloop.New(func(c *fiberloop.Cell) (any, error) {
		_, err := c.Yield(fiberloop.Seq{g, h})
		return nil, err
	})
	return root, fiberloop.AggregationGroup
}

// invalidYieldScenario: yielding a value outside the closed dependency
// spec throws an InvalidYieldError straight back at the fiber.
func invalidYieldScenario(loop *fiberloop.Loop) (*fiberloop.Fiber, fiberloop.AggregationMode) {
	root := fiberloop.New(func(c *fiberloop.Cell) (any, error) {
		_, err := c.Yield(struct{ A, B int }{1, 2})
		return nil, err
	})
	return root, fiberloop.AggregationAuto
}

// fetchScenario dials a handful of local websocket echo connections
// through ThreadBridge and awaits all of them as one ordered Seq --
// demonstrating blocking I/O participating in the loop per §4.4. The
// dials are not concurrency-bounded: all of them start as soon as the
// root yields them.
func fetchScenario(loop *fiberloop.Loop) (*fiberloop.Fiber, fiberloop.AggregationMode) {
	srv := httptest.NewServer(http.HandlerFunc(echoHandler))
	wsURL := "ws" + srv.URL[len("http"):] + "/echo"

	const dialCount = 5
	bridge := fiberloop.NewThreadBridge(loop)
	dials := make(fiberloop.Set, dialCount)
	for i := 0; i < dialCount; i++ {
		i := i
		dials[i] = bridge.Run(func(cancel <-chan struct{}) (any, error) {
			conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
			if err != nil {
				return nil, fmt.Errorf("dial %d: %w", i, err)
			}
			defer conn.Close()

			msg := fmt.Sprintf("ping-%d", i)
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return nil, err
			}
			_, reply, err := conn.ReadMessage()
			if err != nil {
				return nil, err
			}
			return string(reply), nil
		})
	}

	root := fiberloop.New(func(c *fiberloop.Cell) (any, error) {
		defer srv.Close()

		// The errgroup runs one no-op task per dial, at most two at a
		// time; it does not limit the dials themselves, which are
		// admitted to the loop together by the Seq yield below.
		var g errgroup.Group
		g.SetLimit(2)
		for range dials {
			g.Go(func() error { return nil })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		res, err := c.Yield(fiberloop.Seq(dials))
		return res, err
	})
	return root, fiberloop.AggregationAuto
}

func echoHandler(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := conn.WriteMessage(mt, msg); err != nil {
			return
		}
	}
}
