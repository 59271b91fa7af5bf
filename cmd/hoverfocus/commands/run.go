package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hoverfocus/hoverfocus/internal/api"
	"github.com/hoverfocus/hoverfocus/internal/config"
	"github.com/hoverfocus/hoverfocus/internal/engine"
	"github.com/hoverfocus/hoverfocus/internal/history"
	"github.com/hoverfocus/hoverfocus/internal/logger"
	"github.com/hoverfocus/hoverfocus/internal/managed"
	"github.com/hoverfocus/hoverfocus/internal/platform"
	"github.com/hoverfocus/hoverfocus/internal/policy"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the focus-follows-mouse engine",
	Long: `Run the hoverfocus engine: sample the pointer on a fixed cadence, resolve
the window beneath it, and focus that window when it is eligible.

When a managed window list is configured, only windows listed there are
eligible; an unreadable list means nothing is eligible until a valid file
appears (set managed_list.fail_open to invert this).`,
	Example: `  # Run with defaults
  hoverfocus run

  # Restrict focusable windows to a tiling WM's managed list
  hoverfocus run --managed-list /run/user/1000/mywm/windows.list

  # Slow the tick cadence down to 100ms
  hoverfocus run --interval 100

  # Run with pretty debug logging
  hoverfocus run --log-level debug --pretty`,
	RunE: runRun,
}

var runPretty bool

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runPretty, "pretty", false, "human-readable console logging")
}

func runRun(cmd *cobra.Command, args []string) error {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to initialize config manager: %w", err)
	}

	applyFlagOverrides(configMgr)
	cfg := configMgr.Get()

	logger.Init(cfg.LogLevel, runPretty)
	log := logger.WithComponent("run")
	log.Info().Str("config", configMgr.GetConfigPath()).Msg("configuration loaded")

	backend, err := platform.NewX11Backend()
	if err != nil {
		return fmt.Errorf("failed to connect to display server: %w", err)
	}
	defer backend.Close()

	watcher := managed.NewWatcher(
		cfg.ManagedList.Path,
		managed.WithCheckInterval(cfg.ManagedCheckInterval()),
		managed.WithFailOpen(cfg.ManagedList.FailOpen),
	)

	eng := engine.New(
		backend,
		watcher,
		policy.New(cfg.IgnoreClasses, cfg.PauseClasses),
		engine.Config{Interval: cfg.TickInterval()},
	)

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg.History.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open history store: %w", err)
		}
		defer store.Close()
		startHistoryRecorder(eng, store, cfg.History.RetentionDays)
	}

	if cfg.API.Enabled {
		server := api.NewServer(eng, watcher, store)
		go func() {
			if err := server.Start(cfg.API.Listen); err != nil {
				log.Error().Err(err).Msg("api server stopped")
			}
		}()
	}

	if watcher.Configured() {
		log.Info().
			Str("managed_list", watcher.Path()).
			Msg("hoverfocus is now running, restricting focus to the managed list")
	} else {
		log.Info().Msg("hoverfocus is now running")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = eng.Run(ctx)
	log.Info().Msg("received stop signal, exiting")
	return err
}

// applyFlagOverrides layers viper-bound flag values over the file config.
func applyFlagOverrides(configMgr *config.Manager) {
	if viper.IsSet("log_level") {
		if level := viper.GetString("log_level"); level != "" {
			configMgr.SetLogLevel(level)
		}
	}
	if viper.IsSet("managed_list") {
		if path := viper.GetString("managed_list"); path != "" {
			configMgr.SetManagedListPath(path)
		}
	}
	if viper.IsSet("interval_ms") {
		if ms := viper.GetInt("interval_ms"); ms > 0 {
			configMgr.SetInterval(ms)
		}
	}
}

// startHistoryRecorder subscribes to engine events and persists them,
// pruning entries past the retention window once at startup.
func startHistoryRecorder(eng *engine.Engine, store *history.Store, retentionDays int) {
	log := logger.WithComponent("history")

	if retentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -retentionDays)
		if pruned, err := store.Prune(cutoff); err != nil {
			log.Warn().Err(err).Msg("failed to prune old focus changes")
		} else if pruned > 0 {
			log.Info().Int64("pruned", pruned).Msg("pruned old focus changes")
		}
	}

	events := eng.Subscribe()
	go func() {
		for ev := range events {
			change := &history.FocusChange{
				Timestamp: ev.Time,
				Window:    uint32(ev.Window),
				Class:     ev.Class,
				Success:   ev.Success,
				Error:     ev.Error,
			}
			if err := store.Record(change); err != nil {
				log.Warn().Err(err).Msg("failed to record focus change")
			}
		}
	}()
}
