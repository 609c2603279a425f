package builders

import (
	"context"
	"fmt"

	"github.com/aatumaykin/ledgercron/internal/config"
	"github.com/aatumaykin/ledgercron/internal/logger"
	"github.com/aatumaykin/ledgercron/internal/metrics"
	"github.com/aatumaykin/ledgercron/internal/storage"
)

type StorageBuilder struct {
	config  *config.Config
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewStorageBuilder(cfg *config.Config, log *logger.Logger, m *metrics.Metrics) *StorageBuilder {
	return &StorageBuilder{
		config:  cfg,
		logger:  log,
		metrics: m,
	}
}

// Build opens the persistent store, wiping it first when storage.clean is set.
func (b *StorageBuilder) Build(ctx context.Context) (*storage.Ledger, error) {
	path := b.config.Storage.Path

	if b.config.Storage.Clean {
		if err := storage.Clean(path); err != nil {
			return nil, fmt.Errorf("failed to clean persistent store: %w", err)
		}
		b.logger.Info("Persistent store cleaned", logger.Field{Key: "path", Value: path})
	}

	engine, err := storage.OpenSQLite(ctx, storage.SQLiteConfig{
		Path:        path,
		BusyTimeout: b.config.Storage.LockTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open persistent store: %w", err)
	}

	b.logger.Info("Persistent store opened",
		logger.Field{Key: "path", Value: path},
		logger.Field{Key: "keep_history", Value: b.config.Storage.KeepHistory})

	return storage.NewLedger(engine, storage.Config{
		KeepHistory: b.config.Storage.KeepHistory,
		LockTimeout: b.config.Storage.LockTimeout(),
	}, b.logger, b.metrics), nil
}
