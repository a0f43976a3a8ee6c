package app

import (
	"log/slog"

	"github.com/ctubio/tribeca/internal/domain"
	"github.com/ctubio/tribeca/internal/infra"
	"github.com/ctubio/tribeca/internal/infra/storage"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config     *infra.Config
	Store      *storage.Store
	InitTrades []domain.Trade
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, DB)
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("🚀 Bootstrapping tribeca...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg.Logging.Level)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Store = store
	slog.Info("✅ Database initialized", slog.String("path", cfg.Storage.Path))

	// 4. Replay persisted trades so pairing survives restarts
	trades, err := store.LoadTrades()
	if err != nil {
		return err
	}
	b.InitTrades = trades
	slog.Info("✅ Trade history loaded", slog.Int("trades", len(trades)))

	return nil
}

// Close releases storage resources.
func (b *Bootstrap) Close() {
	if b.Store != nil {
		if err := b.Store.Close(); err != nil {
			slog.Error("Failed to close storage", slog.Any("error", err))
		}
	}
}
