package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/recera/fiberloop/pkg/fiberloop"
	"github.com/recera/fiberloop/pkg/fiberloop/runtimeconfig"
)

func newRunCommand() *cobra.Command {
	var (
		configPath string
		scenario   string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a demo scenario against a hot-reloadable tuning file",
		Long: `Loads runtimeconfig from --config, runs the chosen scenario once
against it, then watches the file for changes and logs the effective
config on every edit until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithHotReload(configPath, scenario)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "fiberloop.yaml", "path to the runtimeconfig tuning file")
	cmd.Flags().StringVar(&scenario, "scenario", "diamond", "scenario to run once at startup (see 'fiberloop demo')")

	return cmd
}

func runWithHotReload(configPath, scenario string) error {
	cfg, err := runtimeconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Printf("⚙️  loaded config from %s: %+v\n", configPath, *cfg)

	loop := fiberloop.NewLoop(
		fiberloop.WithConfig(cfg),
		fiberloop.WithLogger(func(format string, args ...any) {
			log.Printf(format, args...)
		}),
	)

	if err := runDemoOnLoop(loop, scenario); err != nil {
		log.Printf("⚠️  scenario %q finished with an error: %v\n", scenario, err)
	} else {
		log.Printf("✅ scenario %q completed\n", scenario)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	watchDir := filepath.Dir(configPath)
	if watchDir == "" {
		watchDir = "."
	}
	if err := watcher.Add(watchDir); err != nil {
		return fmt.Errorf("watching %s: %w", watchDir, err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Printf("👀 watching %s for changes to %s; press Ctrl+C to stop\n", watchDir, filepath.Base(configPath))

	var lastReload time.Time
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(configPath) {
				continue
			}
			if time.Since(lastReload) < 100*time.Millisecond {
				continue // debounce editors that emit multiple events per save
			}
			lastReload = time.Now()

			newCfg, err := runtimeconfig.Load(configPath)
			if err != nil {
				log.Printf("⚠️  failed to reload %s: %v\n", configPath, err)
				continue
			}
			*cfg = *newCfg
			log.Printf("🔄 reloaded config from %s: %+v\n", configPath, *cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("⚠️  watcher error: %v\n", err)
		case <-sigChan:
			log.Println("🛑 stopping")
			return nil
		}
	}
}
