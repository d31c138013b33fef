package cmd

import (
	"fmt"

	"calbridge/core/config"
	"calbridge/core/database"
	"calbridge/core/logger"
	"calbridge/feature/sync/state"

	"go.uber.org/zap"
)

// setup wires the pieces every command needs: configuration, logger
// and the state store.
func setup() (*config.Config, *zap.Logger, *state.Store, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	zap.ReplaceGlobals(l)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to state database: %w", err)
	}

	store, err := state.New(db)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize state store: %w", err)
	}

	return cfg, l, store, nil
}
