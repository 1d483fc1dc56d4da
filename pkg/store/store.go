package store

import (
	"context"
	"errors"

	"github.com/georgemblack/feed-sync/pkg/remote"
)

// ErrNotFound is returned when a post id is not in the store.
var ErrNotFound = errors.New("post not found")

// Store is a durable set of posts keyed by id.
// Implementations return posts in no particular order.
type Store interface {
	// ReplaceAll discards every stored post and inserts the given posts with Liked=false.
	// Readers observe either the old set or the new one, never a mix.
	ReplaceAll(ctx context.Context, posts []remote.Post) error
	FetchAll(ctx context.Context) ([]StoredPost, error)
	// ToggleLiked flips the liked flag of a single post, or returns ErrNotFound.
	ToggleLiked(ctx context.Context, id int64) error
	Clear(ctx context.Context) error
	Close()
}

// StoredPost is a post as kept locally. Liked is the only field that changes after creation.
type StoredPost struct {
	ID     int64  `msgpack:"i" json:"id"`
	UserID int64  `msgpack:"u" json:"userId"`
	Title  string `msgpack:"t" json:"title"`
	Body   string `msgpack:"b" json:"body"`
	Liked  bool   `msgpack:"l" json:"liked"`
}

func FromPost(post remote.Post) StoredPost {
	return StoredPost{
		ID:     post.ID,
		UserID: post.UserID,
		Title:  post.Title,
		Body:   post.Body,
		Liked:  false,
	}
}
