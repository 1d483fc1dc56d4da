package app

import (
	"context"

	"github.com/georgemblack/feed-sync/pkg/feed"
	"github.com/georgemblack/feed-sync/pkg/images"
	"github.com/georgemblack/feed-sync/pkg/store"
)

type Feed interface {
	Refresh(ctx context.Context) (feed.Result, error)
	ToggleLike(ctx context.Context, id int64) ([]store.StoredPost, error)
	ToggleLikeAt(ctx context.Context, index int) ([]store.StoredPost, error)
	Posts() []store.StoredPost
	Subscribe(buffer int) *feed.Subscription
	Unsubscribe(sub *feed.Subscription)
}

type Images interface {
	Get(ctx context.Context, url string) (images.Image, error)
}
