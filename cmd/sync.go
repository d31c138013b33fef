package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"calbridge/feature/feed"
	"calbridge/feature/gcal"
	"calbridge/feature/sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	syncOnceFlag   bool
	syncDryRunFlag bool
	syncForceFlag  bool
)

// syncCmd runs the synchronization, continuously by default.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize the ICS feed into Google Calendar",
	Long: `Synchronize the configured ICS feed into Google Calendar.

Without flags the command keeps running, syncing on the configured
interval until interrupted.

Examples:
  # Continuous sync (default)
  calbridge sync

  # Single run
  calbridge sync --once

  # Show what a run would do without touching anything
  calbridge sync --dry-run

  # Re-push every event, e.g. after restoring the calendar
  calbridge sync --once --force`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncOnceFlag, "once", false, "Run one sync cycle and exit")
	syncCmd.Flags().BoolVar(&syncDryRunFlag, "dry-run", false, "Plan only; no remote or state changes")
	syncCmd.Flags().BoolVar(&syncForceFlag, "force", false, "Re-push every event regardless of change detection")

	RootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, l, store, err := setup()
	if err != nil {
		return err
	}
	defer l.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, err := feed.NewSource(cfg.Source, cfg.Processing, l)
	if err != nil {
		return err
	}

	remote, err := gcal.NewClient(ctx, cfg.Google, l)
	if err != nil {
		return err
	}

	engine := sync.New(source, remote, store, cfg.Sync, l)
	opts := sync.Options{DryRun: syncDryRunFlag, Force: syncForceFlag}

	// A dry run never loops.
	if syncOnceFlag || syncDryRunFlag {
		res, err := engine.SyncOnce(ctx, opts)
		if err != nil {
			return err
		}
		if res.Preview != nil {
			printPreview(l, res)
		}
		return nil
	}

	if cfg.Sync.StatusPort != "" {
		app := sync.NewStatusApp(store, l)
		go func() {
			l.Info("Status server listening", zap.String("port", cfg.Sync.StatusPort))
			if err := app.Listen(":" + cfg.Sync.StatusPort); err != nil {
				l.Error("Status server failed", zap.Error(err))
			}
		}()
		defer func() { _ = app.Shutdown() }()
	}

	err = engine.StartContinuous(ctx, opts)
	if errors.Is(err, context.Canceled) {
		l.Info("Shutting down")
		return nil
	}
	return err
}

func printPreview(l *zap.Logger, res sync.Result) {
	l.Info("Dry run plan",
		zap.Int("creates", res.Created),
		zap.Int("updates", res.Updated),
		zap.Int("deletes", res.Deleted))
	for _, line := range res.Preview.Creates {
		l.Info("Would create", zap.String("event", line))
	}
	for _, line := range res.Preview.Updates {
		l.Info("Would update", zap.String("event", line))
	}
	for _, id := range res.Preview.Deletes {
		l.Info("Would delete", zap.String("unique_uid", id))
	}
}
