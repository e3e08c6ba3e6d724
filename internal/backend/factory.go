package backend

import (
	"context"
	"fmt"

	"fintrack/internal/log"
	"fintrack/internal/session"
	"fintrack/internal/storage"
)

// Factory opens session stores.
type Factory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &Factory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend opens the store c describes. The sqlite file and its schema
// are created when missing.
func (f *Factory) CreateBackend(ctx context.Context, c Config) (*BackendResult, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if c.Type == MemoryBackend {
		store := session.NewMemoryStore()
		f.logger.InfoContext(ctx, "Session store ready", "backend", c.Type.String())
		return &BackendResult{Store: store, Cleanup: store.Close}, nil
	}

	repo, err := storage.NewSessionRepository(c.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite session store: %w", err)
	}
	f.logger.InfoContext(ctx, "Session store ready", "backend", c.Type.String(), "db_path", c.SQLiteDBPath)
	return &BackendResult{Store: repo, Cleanup: repo.Close}, nil
}
