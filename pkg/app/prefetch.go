package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/georgemblack/feed-sync/pkg/util"
)

// Prefetch runs a single refresh so the store is warm before the server starts.
// With PREFETCH_RESET=true the store is cleared first, forcing a cold fetch.
func Prefetch() error {
	slog.Info("starting prefetch")
	ctx := context.Background()

	app, err := NewApp(ctx)
	if err != nil {
		return util.WrapErr("failed to create app", err)
	}
	defer app.Close()

	return prefetch(ctx, app)
}

func prefetch(ctx context.Context, app App) error {
	if app.Config.PrefetchReset {
		if err := app.Store.Clear(ctx); err != nil {
			return util.WrapErr("failed to clear store", err)
		}
		slog.Info("cleared store")
	}

	result, err := app.Feed.Refresh(ctx)
	if err != nil {
		return util.WrapErr("failed to refresh", err)
	}
	if result.Message != "" {
		return errors.New(result.Message)
	}

	slog.Info("prefetch complete", "posts", len(result.Posts), "fetched", result.Fetched)
	return nil
}
