package store

import (
	"context"
	"fmt"

	"github.com/georgemblack/feed-sync/pkg/config"
)

// Open returns the backend named by cfg.StoreBackend.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.StoreBackend {
	case config.BackendFile:
		return NewFile(cfg.StorePath)
	case config.BackendValkey:
		return NewValkey(cfg)
	case config.BackendPostgres:
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
