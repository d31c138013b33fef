package feed

import (
	"context"
	"time"

	"calbridge/core/event"

	"go.uber.org/zap"
)

// Source is the feed-side collaborator of the sync engine: it fetches
// the ICS payload, parses it and narrows the result to the sync window.
type Source struct {
	fetcher *Fetcher
	parser  *Parser
	log     *zap.Logger
}

// NewSource builds the feed source from its configuration.
func NewSource(cfg Config, proc ProcessingConfig, log *zap.Logger) (*Source, error) {
	parser, err := NewParser(proc, log)
	if err != nil {
		return nil, err
	}
	return &Source{
		fetcher: NewFetcher(cfg, log),
		parser:  parser,
		log:     log,
	}, nil
}

// FetchAndFilter pulls the feed and returns the regular events and the
// modified series instances overlapping the window.
func (s *Source) FetchAndFilter(ctx context.Context, start, end time.Time) ([]event.Record, []event.Record, error) {
	body, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return nil, nil, err
	}

	records, overrides, err := s.parser.Parse(body)
	if err != nil {
		return nil, nil, err
	}

	kept := filterRecords(records, start, end)
	keptOverrides := filterOverrides(overrides, start, end)

	s.log.Info("Feed filtered to window",
		zap.Int("events", len(kept)),
		zap.Int("modified_instances", len(keptOverrides)),
		zap.Int("dropped", len(records)+len(overrides)-len(kept)-len(keptOverrides)))
	return kept, keptOverrides, nil
}
