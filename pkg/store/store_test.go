package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/georgemblack/feed-sync/pkg/config"
	"github.com/georgemblack/feed-sync/pkg/remote"
)

func samplePosts(ids ...int64) []remote.Post {
	posts := make([]remote.Post, 0, len(ids))
	for _, id := range ids {
		posts = append(posts, remote.Post{ID: id, UserID: id % 3, Title: "title", Body: "body"})
	}
	return posts
}

func ids(posts []StoredPost) mapset.Set[int64] {
	set := mapset.NewSet[int64]()
	for _, post := range posts {
		set.Add(post.ID)
	}
	return set
}

func find(posts []StoredPost, id int64) (StoredPost, bool) {
	for _, post := range posts {
		if post.ID == id {
			return post, true
		}
	}
	return StoredPost{}, false
}

// testStore runs the behaviour every backend must share.
func testStore(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("empty after clear", func(t *testing.T) {
		if err := s.Clear(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		posts, err := s.FetchAll(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(posts) != 0 {
			t.Errorf("expected empty store, got %d posts", len(posts))
		}
	})

	t.Run("replace all inserts unliked posts", func(t *testing.T) {
		if err := s.ReplaceAll(ctx, samplePosts(1, 2, 3)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		posts, err := s.FetchAll(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ids(posts).Equal(mapset.NewSet[int64](1, 2, 3)) {
			t.Errorf("expected ids {1, 2, 3}, got %v", ids(posts))
		}
		for _, post := range posts {
			if post.Liked {
				t.Errorf("expected post %d to be unliked", post.ID)
			}
			if post.Title != "title" || post.Body != "body" || post.UserID != post.ID%3 {
				t.Errorf("unexpected fields %+v", post)
			}
		}
	})

	t.Run("toggle twice restores the flag", func(t *testing.T) {
		if err := s.ToggleLiked(ctx, 2); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		posts, _ := s.FetchAll(ctx)
		if post, _ := find(posts, 2); !post.Liked {
			t.Errorf("expected post 2 to be liked")
		}
		for _, id := range []int64{1, 3} {
			if post, _ := find(posts, id); post.Liked {
				t.Errorf("expected post %d to stay unliked", id)
			}
		}

		if err := s.ToggleLiked(ctx, 2); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		posts, _ = s.FetchAll(ctx)
		if post, _ := find(posts, 2); post.Liked {
			t.Errorf("expected post 2 to be unliked again")
		}
	})

	t.Run("toggle absent id", func(t *testing.T) {
		if err := s.ToggleLiked(ctx, 1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		err := s.ToggleLiked(ctx, 404)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		posts, _ := s.FetchAll(ctx)
		if len(posts) != 3 {
			t.Errorf("expected 3 posts, got %d", len(posts))
		}
		if post, _ := find(posts, 1); !post.Liked {
			t.Errorf("expected post 1 to keep its liked flag")
		}
	})

	t.Run("replace all discards previous set and liked state", func(t *testing.T) {
		if err := s.ReplaceAll(ctx, samplePosts(1, 7)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		posts, _ := s.FetchAll(ctx)
		if !ids(posts).Equal(mapset.NewSet[int64](1, 7)) {
			t.Errorf("expected ids {1, 7}, got %v", ids(posts))
		}
		if post, _ := find(posts, 1); post.Liked {
			t.Errorf("expected liked state to be discarded")
		}
	})

	t.Run("replace all with nothing empties the store", func(t *testing.T) {
		if err := s.ReplaceAll(ctx, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		posts, _ := s.FetchAll(ctx)
		if len(posts) != 0 {
			t.Errorf("expected empty store, got %d posts", len(posts))
		}
	})
}

func TestFile(t *testing.T) {
	s, err := NewFile(filepath.Join(t.TempDir(), "nested", "posts.msgpack"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	testStore(t, s)
}

func TestFileSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "posts.msgpack")

	first, err := NewFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := first.ReplaceAll(ctx, samplePosts(5, 3, 9)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := first.ToggleLiked(ctx, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first.Close()

	second, err := NewFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	posts, err := second.FetchAll(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ids(posts).Equal(mapset.NewSet[int64](3, 5, 9)) {
		t.Errorf("expected ids {3, 5, 9}, got %v", ids(posts))
	}
	if post, _ := find(posts, 3); !post.Liked {
		t.Errorf("expected post 3 to still be liked")
	}

	// No temp files should be left behind next to the snapshot.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the snapshot file, got %d entries", len(entries))
	}
}

func TestFileCorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.msgpack")
	if err := os.WriteFile(path, []byte("not msgpack"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := NewFile(path); err == nil {
		t.Errorf("expected an error for a corrupt snapshot")
	}
}

func TestFileCancelledContext(t *testing.T) {
	s, err := NewFile(filepath.Join(t.TempDir(), "posts.msgpack"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.ReplaceAll(ctx, samplePosts(1)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	posts, _ := s.FetchAll(context.Background())
	if len(posts) != 0 {
		t.Errorf("expected no posts to be written, got %d", len(posts))
	}
}

func TestValkey(t *testing.T) {
	address := os.Getenv("TEST_VALKEY_ADDRESS")
	if address == "" {
		t.Skip("TEST_VALKEY_ADDRESS not set")
	}

	s, err := NewValkey(config.Config{ValkeyAddress: address, ValkeyKeyPrefix: "feed-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	testStore(t, s)
}

func TestPostgres(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	s, err := NewPostgres(context.Background(), url)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	testStore(t, s)
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), config.Config{
		StoreBackend: config.BackendFile,
		StorePath:    filepath.Join(t.TempDir(), "posts.msgpack"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.(*File); !ok {
		t.Errorf("expected *File, got %T", s)
	}

	if _, err := Open(context.Background(), config.Config{StoreBackend: "sqlite"}); err == nil {
		t.Errorf("expected an error for an unknown backend")
	}
}

func TestSyncDir(t *testing.T) {
	dir := t.TempDir()
	if err := syncDir(dir); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := syncDir(filepath.Join(dir, "missing")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}
