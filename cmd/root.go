package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Tiliavir/hamster-panel/internal/config"
	"github.com/Tiliavir/hamster-panel/internal/daemon"
	"github.com/Tiliavir/hamster-panel/internal/ledger"
	"github.com/Tiliavir/hamster-panel/internal/logging"
	"github.com/Tiliavir/hamster-panel/internal/panel"
	"github.com/Tiliavir/hamster-panel/internal/storage"
	"github.com/Tiliavir/hamster-panel/internal/timecalc"
)

var (
	configPath  string
	backendFlag string
)

var rootCmd = &cobra.Command{
	Use:   "hamster-panel",
	Short: "Hamster panel – today's activities at a glance",
	Long: `hamster-panel shows what you are working on right now and what you
did today. It talks to the Hamster time tracker on the session bus, or keeps
facts in JSON day files under ~/.hamster-panel/facts with --backend file.`,
	SilenceUsage: true,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.hamster-panel/config.json)")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "Tracker backend: dbus or file (overrides config)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(menuCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(outlookCmd)
}

// app is what every command needs once config and logging are set up.
type app struct {
	cfg     config.Config
	log     *zap.SugaredLogger
	loc     *time.Location
	tracker daemon.Tracker
	ledger  *ledger.Ledger
	panel   *panel.Panel
}

func (a *app) interval() time.Duration {
	return time.Duration(a.cfg.RefreshSeconds) * time.Second
}

func (a *app) Close() {
	if err := a.tracker.Close(); err != nil {
		a.log.Warnw("closing tracker", "error", err)
	}
	_ = a.log.Sync()
}

// loadConfig reads --config (or the default path) and applies --backend.
func loadConfig() (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return cfg, err
	}
	if backendFlag != "" {
		cfg.Backend = backendFlag
		if err := cfg.Validate(); err != nil {
			return cfg, fmt.Errorf("--backend: %w", err)
		}
	}
	return cfg, nil
}

// openApp loads config and connects to the tracker. Failures exit 2.
func openApp(ctx context.Context) *app {
	cfg, err := loadConfig()
	if err != nil {
		exitErr(1, err)
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		exitErr(1, err)
	}
	loc, err := timecalc.LoadLocation(cfg.Timezone)
	if err != nil {
		exitErr(1, err)
	}

	tr, err := openTracker(ctx, cfg, loc, log)
	if err != nil {
		exitErr(2, err)
	}
	l := ledger.New(tr, ledger.WithLocation(loc), ledger.WithLogger(log))
	return &app{
		cfg:     cfg,
		log:     log,
		loc:     loc,
		tracker: tr,
		ledger:  l,
		panel:   panel.New(tr, l, panel.WithLogger(log)),
	}
}

func openTracker(ctx context.Context, cfg config.Config, loc *time.Location, log *zap.SugaredLogger) (daemon.Tracker, error) {
	switch cfg.Backend {
	case "file":
		base := cfg.DataDir
		if base == "" {
			var err error
			if base, err = storage.DefaultBaseDir(); err != nil {
				return nil, err
			}
		}
		return daemon.OpenFile(base, loc, log)
	default:
		return daemon.DialSession(ctx, log)
	}
}

// mustRefresh fetches today's facts or exits 2.
func (a *app) mustRefresh(ctx context.Context) *ledger.Snapshot {
	snap, err := a.panel.Refresh(ctx)
	if err != nil {
		a.Close()
		exitErr(2, err)
	}
	return snap
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// exitCode maps a command error onto the process exit status: 1 for bad
// input, 2 for storage or daemon failures.
func exitCode(err error) int {
	if errors.Is(err, ledger.ErrEmptyActivity) {
		return 1
	}
	return 2
}

func exitErr(code int, err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(code)
}
