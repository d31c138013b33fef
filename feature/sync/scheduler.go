package sync

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sleeper waits out the gap between runs. It exists so tests can drive
// the continuous loop without real time passing.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// StartContinuous runs sync cycles until the context is cancelled. A
// successful run waits the configured interval; a failed run waits the
// shorter cool-down instead. While the loop runs, a daily cron job
// prunes old session rows. Returns the context's error on shutdown.
func (e *Engine) StartContinuous(ctx context.Context, opts Options) error {
	interval := time.Duration(e.cfg.IntervalMinutes) * time.Minute
	cooldown := time.Duration(e.cfg.CooldownSeconds) * time.Second

	c := cron.New()
	_, err := c.AddFunc("@daily", func() {
		pruned, err := e.store.PruneSessions(ctx, e.cfg.SessionRetentionDays)
		if err != nil {
			e.log.Error("Session prune failed", zap.Error(err))
			return
		}
		if pruned > 0 {
			e.log.Info("Pruned old sessions", zap.Int64("count", pruned))
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	defer c.Stop()

	e.log.Info("Continuous sync started",
		zap.Duration("interval", interval),
		zap.Duration("cooldown", cooldown))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		wait := interval
		if _, err := e.SyncOnce(ctx, opts); err != nil {
			e.log.Warn("Run failed, backing off", zap.Duration("cooldown", cooldown), zap.Error(err))
			wait = cooldown
		}

		if err := e.sleeper.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}
