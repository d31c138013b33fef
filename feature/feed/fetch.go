package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"calbridge/feature/sync"

	"go.uber.org/zap"
)

// Fetcher pulls the raw ICS payload over HTTP with a bounded number of
// retries. All attempts failing surfaces as a FeedUnavailableError so
// the engine fails the run without touching any state.
type Fetcher struct {
	cfg    Config
	client *http.Client
	log    *zap.Logger
}

// NewFetcher creates a fetcher for the configured feed.
func NewFetcher(cfg Config, log *zap.Logger) *Fetcher {
	return &Fetcher{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		log: log,
	}
}

// Fetch returns the feed body, retrying transient failures.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= f.cfg.RetryCount; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &sync.FeedUnavailableError{URL: f.cfg.URL, Err: err}
		}

		body, err := f.fetchOnce(ctx)
		if err == nil {
			f.log.Info("Feed fetched", zap.Int("bytes", len(body)), zap.Int("attempt", attempt))
			return body, nil
		}

		lastErr = err
		f.log.Warn("Feed fetch attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("retry_count", f.cfg.RetryCount),
			zap.Error(err))
	}

	return nil, &sync.FeedUnavailableError{URL: f.cfg.URL, Err: lastErr}
}

func (f *Fetcher) fetchOnce(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	return io.ReadAll(resp.Body)
}
