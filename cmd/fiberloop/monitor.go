package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/recera/fiberloop/cmd/fiberloop/internal/monitor"
	"github.com/recera/fiberloop/pkg/fiberloop"
)

func newMonitorCommand() *cobra.Command {
	var (
		scenario string
		addr     string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run a scenario while watching its scheduler state live",
		Long: `Starts the named scenario on a Loop and renders a live TUI
dashboard of its ready-queue depth, waiting-fiber count, and finished
count, while optionally serving the same snapshots over websocket to a
browser companion view.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(scenario, addr, interval)
		},
	}

	cmd.Flags().StringVar(&scenario, "scenario", "sleep-fanout", "scenario to run while monitoring (see 'fiberloop demo')")
	cmd.Flags().StringVar(&addr, "addr", "", "if set, serve a websocket companion feed of snapshots at this address (e.g. :8090)")
	cmd.Flags().DurationVar(&interval, "interval", 100*time.Millisecond, "how often to poll scheduler state")

	return cmd
}

func runMonitor(scenario, addr string, interval time.Duration) error {
	var broadcaster *monitor.Broadcaster
	if addr != "" {
		broadcaster = monitor.NewBroadcaster()
		mux := http.NewServeMux()
		mux.HandleFunc("/fiberloop/monitor", broadcaster.HandleWebSocket)
		srv := &http.Server{Addr: addr, Handler: mux}
		go func() {
			log.Printf("📡 monitor companion feed listening at ws://%s/fiberloop/monitor\n", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("⚠️  monitor companion server stopped: %v\n", err)
			}
		}()
	}

	loop := fiberloop.NewLoop()

	builder, ok := demoScenarios[scenario]
	if !ok {
		return fmt.Errorf("unknown scenario %q (see 'fiberloop demo --help')", scenario)
	}
	root, mode := builder(loop)

	runDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		_, err := loop.Run(ctx, root, mode)
		runDone <- err
	}()

	var onSnapshot func(fiberloop.Stats)
	if broadcaster != nil {
		onSnapshot = broadcaster.Broadcast
	}

	p := tea.NewProgram(monitor.New(loop, interval, onSnapshot))
	progDone := make(chan error, 1)
	go func() {
		_, err := p.Run()
		progDone <- err
	}()

	select {
	case err := <-runDone:
		p.Quit()
		<-progDone
		return err
	case err := <-progDone:
		return err
	}
}
