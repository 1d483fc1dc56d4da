package app

import (
	"context"

	"github.com/georgemblack/feed-sync/pkg/config"
	"github.com/georgemblack/feed-sync/pkg/feed"
	"github.com/georgemblack/feed-sync/pkg/images"
	"github.com/georgemblack/feed-sync/pkg/metrics"
	"github.com/georgemblack/feed-sync/pkg/remote"
	"github.com/georgemblack/feed-sync/pkg/secrets"
	"github.com/georgemblack/feed-sync/pkg/store"
)

// App holds the explicitly constructed components shared by the entry points.
type App struct {
	Config  config.Config
	Store   store.Store
	Feed    Feed
	Images  Images
	Metrics *metrics.Metrics
}

func NewApp(ctx context.Context) (App, error) {
	config, err := config.New()
	if err != nil {
		return App{}, err
	}

	token, err := secrets.RemoteAPIToken(ctx, config)
	if err != nil {
		return App{}, err
	}

	m := metrics.New()
	imageCache, err := images.New(config, m)
	if err != nil {
		return App{}, err
	}

	local, err := store.Open(ctx, config)
	if err != nil {
		return App{}, err
	}

	engine := feed.New(remote.New(config, token), local, feed.WithMetrics(m))

	return App{
		Config:  config,
		Store:   local,
		Feed:    engine,
		Images:  imageCache,
		Metrics: m,
	}, nil
}

func (a App) Close() {
	a.Store.Close()
}
