package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/georgemblack/feed-sync/pkg/remote"
	"github.com/georgemblack/feed-sync/pkg/util"
	"github.com/vmihailenco/msgpack/v5"
)

// File keeps the post set in memory and persists it as a msgpack snapshot.
// Every write produces a complete new snapshot which is renamed over the old one,
// so a crash mid-write leaves the previous snapshot intact.
type File struct {
	path  string
	mu    sync.RWMutex
	posts map[int64]StoredPost
}

var _ Store = (*File)(nil)

// snapshot is the on-disk layout.
type snapshot struct {
	Posts []StoredPost `msgpack:"posts"`
}

func NewFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, util.WrapErr("failed to create store directory", err)
	}

	f := &File{
		path:  path,
		posts: make(map[int64]StoredPost),
	}
	if err := f.load(); err != nil {
		return nil, err
	}

	slog.Debug("opened file store", "path", path, "posts", len(f.posts))
	return f, nil
}

func (f *File) load() error {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return util.WrapErr("failed to read snapshot", err)
	}

	var snap snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return util.WrapErr("failed to unmarshal snapshot", err)
	}
	for _, post := range snap.Posts {
		f.posts[post.ID] = post
	}
	return nil
}

// persist writes posts to a temp file in the store directory and renames it into place.
// Must be called with the write lock held.
func (f *File) persist(posts map[int64]StoredPost) error {
	snap := snapshot{Posts: make([]StoredPost, 0, len(posts))}
	for _, post := range posts {
		snap.Posts = append(snap.Posts, post)
	}

	data, err := msgpack.Marshal(snap)
	if err != nil {
		return util.WrapErr("failed to marshal snapshot", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return util.WrapErr("failed to create temp snapshot", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return util.WrapErr("failed to write temp snapshot", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return util.WrapErr("failed to sync temp snapshot", err)
	}
	if err := tmp.Close(); err != nil {
		return util.WrapErr("failed to close temp snapshot", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return util.WrapErr("failed to swap snapshot", err)
	}
	if err := syncDir(filepath.Dir(f.path)); err != nil {
		return util.WrapErr("failed to sync store directory", err)
	}
	return nil
}

// syncDir flushes a directory entry so a completed rename survives a crash.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

func (f *File) ReplaceAll(ctx context.Context, posts []remote.Post) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	next := make(map[int64]StoredPost, len(posts))
	for _, post := range posts {
		next[post.ID] = FromPost(post)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.persist(next); err != nil {
		return util.WrapErr("failed to replace posts", err)
	}
	f.posts = next
	return nil
}

func (f *File) FetchAll(ctx context.Context) ([]StoredPost, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	result := make([]StoredPost, 0, len(f.posts))
	for _, post := range f.posts {
		result = append(result, post)
	}
	return result, nil
}

func (f *File) ToggleLiked(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.posts[id]
	if !ok {
		return util.WrapErr(fmt.Sprintf("failed to toggle post %d", id), ErrNotFound)
	}

	next := make(map[int64]StoredPost, len(f.posts))
	for k, v := range f.posts {
		next[k] = v
	}
	post.Liked = !post.Liked
	next[id] = post

	if err := f.persist(next); err != nil {
		return util.WrapErr(fmt.Sprintf("failed to toggle post %d", id), err)
	}
	f.posts = next
	return nil
}

func (f *File) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	next := make(map[int64]StoredPost)
	if err := f.persist(next); err != nil {
		return util.WrapErr("failed to clear posts", err)
	}
	f.posts = next
	return nil
}

func (f *File) Close() {}
