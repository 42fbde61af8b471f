package commands

import (
	"fmt"
	"log/slog"

	"github.com/jholhewres/aughie/pkg/aughie/bot"
	"github.com/jholhewres/aughie/pkg/aughie/config"
	"github.com/jholhewres/aughie/pkg/aughie/storage"
)

// openStore builds the state store selected by the configuration.
func openStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Storage.Type {
	case "", "sqlite":
		return storage.OpenSQLiteStore(cfg.Storage.Path, logger)
	case "memory":
		return storage.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
}

// newAssistant wires the full runtime: store, configuration-gated tool
// executor, and the assistant itself. The caller owns the store and
// must Close it.
func newAssistant(cfg *config.Config, logger *slog.Logger) (*bot.Assistant, storage.Store, error) {
	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	// Real service clients plug in as the inner executor; until then
	// every tool call reports its configuration status.
	executor := bot.NewGatedExecutor(cfg.Tools, nil)
	assistant := bot.NewAssistant(cfg, store, executor, nil, logger)
	return assistant, store, nil
}
