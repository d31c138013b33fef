package cmd

import (
	"context"
	"fmt"

	"calbridge/core/config"
	"calbridge/core/logger"
	"calbridge/feature/gcal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// calendarsCmd lists the calendars the configured account can write to.
// Useful for finding the calendar ID to put in the config.
var calendarsCmd = &cobra.Command{
	Use:   "calendars",
	Short: "List the Google calendars available to the configured account",
	RunE:  runCalendars,
}

func init() {
	RootCmd.AddCommand(calendarsCmd)
}

func runCalendars(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer l.Sync()

	ctx := context.Background()

	client, err := gcal.NewClient(ctx, cfg.Google, l)
	if err != nil {
		return err
	}

	calendars, err := client.ListCalendars(ctx)
	if err != nil {
		return err
	}

	for _, c := range calendars {
		l.Info("Calendar",
			zap.String("id", c.ID),
			zap.String("summary", c.Summary),
			zap.Bool("primary", c.Primary))
	}
	l.Info("Calendars listed", zap.Int("count", len(calendars)))

	return nil
}
