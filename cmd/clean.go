package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"calbridge/feature/gcal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cleanRemoteFlag bool
	cleanYesFlag    bool
)

// cleanCmd wipes the local sync state and, optionally, the synced
// events on the remote calendar.
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Reset the local sync state",
	Long: `Reset the local sync state so the next run starts from scratch.

Removes all event snapshots and calendar mappings and keeps only the
most recent sync sessions. A backup of the state database is written
next to it before anything is deleted.

With --remote, events previously created by this tool are also deleted
from the Google calendar. Events created by anyone else are never
touched.`,
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().BoolVar(&cleanRemoteFlag, "remote", false, "Also delete synced events from the Google calendar")
	cleanCmd.Flags().BoolVar(&cleanYesFlag, "yes", false, "Skip the confirmation prompt")

	RootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, l, store, err := setup()
	if err != nil {
		return err
	}
	defer l.Sync()

	ctx := context.Background()

	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}
	l.Info("About to reset sync state",
		zap.Int64("snapshots", stats.Snapshots),
		zap.Int64("mappings", stats.Mappings),
		zap.Int64("sessions", stats.Sessions),
		zap.Bool("remote", cleanRemoteFlag))

	if !confirmClean() {
		l.Warn("Operation cancelled by user. No changes were made.")
		return nil
	}

	if cleanRemoteFlag {
		client, err := gcal.NewClient(ctx, cfg.Google, l)
		if err != nil {
			return err
		}
		deleted, err := client.PurgeSynced(ctx)
		if err != nil {
			return fmt.Errorf("failed to purge remote calendar: %w", err)
		}
		l.Info("Removed synced events from calendar", zap.Int("count", deleted))
	}

	backup := fmt.Sprintf("%s.bak-%s", cfg.Database.Path, time.Now().Format("20060102-150405"))
	if err := store.Backup(ctx, backup); err != nil {
		l.Warn("Backup skipped", zap.Error(err))
	} else {
		l.Info("State database backed up", zap.String("path", backup))
	}

	res, err := store.Reset(ctx, 5)
	if err != nil {
		return fmt.Errorf("failed to reset state: %w", err)
	}

	l.Info("Sync state reset",
		zap.Int64("snapshots_removed", res.Snapshots),
		zap.Int64("mappings_removed", res.Mappings),
		zap.Int64("sessions_removed", res.Sessions))

	return nil
}

// confirmClean prompts the user for confirmation or uses --yes flag.
func confirmClean() bool {
	if cleanYesFlag {
		fmt.Println("\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Print("\n⚠️  Type 'yes' to confirm destructive actions: ")
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(response)
	return response == "yes"
}
