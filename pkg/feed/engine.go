package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/georgemblack/feed-sync/pkg/metrics"
	"github.com/georgemblack/feed-sync/pkg/remote"
	"github.com/georgemblack/feed-sync/pkg/store"
	"github.com/georgemblack/feed-sync/pkg/util"
)

// ErrorMessage is shown to the user whenever the remote source cannot be reached.
const ErrorMessage = "No internet connection or the server is not responding. Pull down to retry."

var (
	// ErrRefreshInProgress is returned by Refresh while another refresh is running.
	ErrRefreshInProgress = errors.New("refresh already in progress")
	// ErrStore marks failures of the local store. They are not recoverable by retrying the fetch.
	ErrStore = errors.New("local store failure")
)

// Source fetches the full post collection.
type Source interface {
	FetchPosts(ctx context.Context) ([]remote.Post, error)
}

// Result is what a refresh produced. Message is set when the remote fetch failed,
// in which case Posts holds whatever the store had.
type Result struct {
	Posts   []store.StoredPost
	Message string
	Fetched bool
}

// Engine reconciles a remote source with a local store and publishes a sorted view.
//
// A store that already holds posts is authoritative: Refresh serves it and never contacts the
// source again. The only path that populates the store is a cold fetch into an empty store,
// and that fetch replaces the whole set, liked flags included.
type Engine struct {
	source  Source
	store   store.Store
	metrics *metrics.Metrics

	refreshing atomic.Bool
	mu         sync.Mutex // held for every store operation sequence

	viewMu sync.RWMutex
	posts  []store.StoredPost

	notifier notifier
}

type Option func(*Engine)

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func New(source Source, s store.Store, opts ...Option) *Engine {
	e := &Engine{
		source: source,
		store:  s,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.New()
	}
	return e
}

// Refresh serves the store when it has posts, and otherwise performs a cold fetch.
// A failed fetch is not an error: the result carries ErrorMessage and subscribers are notified.
// Errors are returned for overlapping calls, store failures and a cancelled context.
func (e *Engine) Refresh(ctx context.Context) (Result, error) {
	if !e.refreshing.CompareAndSwap(false, true) {
		e.metrics.ObserveRefresh(metrics.RefreshBusy)
		return Result{}, ErrRefreshInProgress
	}
	defer e.refreshing.Store(false)

	result, err := e.refresh(ctx)
	if errors.Is(err, ErrStore) {
		e.metrics.ObserveRefresh(metrics.RefreshStoreErr)
	}
	return result, err
}

func (e *Engine) refresh(ctx context.Context) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{}, util.WrapErr("refresh cancelled", err)
	}

	cached, err := e.store.FetchAll(ctx)
	if err != nil {
		return Result{}, e.storeFailure("failed to read posts", err)
	}

	if len(cached) > 0 {
		slog.Debug("serving cached posts", "count", len(cached))
		e.metrics.ObserveRefresh(metrics.RefreshCached)
		return Result{Posts: e.publish(cached)}, nil
	}

	return e.coldFetch(ctx)
}

func (e *Engine) coldFetch(ctx context.Context) (Result, error) {
	start := time.Now()
	fetched, err := e.source.FetchPosts(ctx)
	e.metrics.ObserveFetchDuration(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return Result{}, util.WrapErr("refresh cancelled", ctx.Err())
		}
		slog.Warn("cold fetch failed", "error", err)

		current, err := e.store.FetchAll(ctx)
		if err != nil {
			return Result{}, e.storeFailure("failed to read posts", err)
		}
		posts := e.publish(current)
		e.notifier.failed(ErrorMessage)
		e.metrics.ObserveRefresh(metrics.RefreshFailed)
		return Result{Posts: posts, Message: ErrorMessage}, nil
	}

	if err := e.store.ReplaceAll(ctx, fetched); err != nil {
		return Result{}, e.storeFailure("failed to replace posts", err)
	}
	current, err := e.store.FetchAll(ctx)
	if err != nil {
		return Result{}, e.storeFailure("failed to read posts", err)
	}

	slog.Info("stored fetched posts", "count", len(current))
	e.metrics.ObserveRefresh(metrics.RefreshFetched)
	return Result{Posts: e.publish(current), Fetched: true}, nil
}

// ToggleLike flips the liked flag of a post and publishes the re-sorted list.
// An unknown id returns store.ErrNotFound and changes nothing.
func (e *Engine) ToggleLike(ctx context.Context, id int64) ([]store.StoredPost, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.ToggleLiked(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Warn("ignoring like for unknown post", "id", id)
			return nil, err
		}
		return nil, e.storeFailure(fmt.Sprintf("failed to toggle post %d", id), err)
	}

	current, err := e.store.FetchAll(ctx)
	if err != nil {
		return nil, e.storeFailure("failed to read posts", err)
	}

	e.metrics.IncrementLikes()
	return e.publish(current), nil
}

// ToggleLikeAt toggles the post at index in the most recently published list.
func (e *Engine) ToggleLikeAt(ctx context.Context, index int) ([]store.StoredPost, error) {
	e.viewMu.RLock()
	if index < 0 || index >= len(e.posts) {
		e.viewMu.RUnlock()
		return nil, util.WrapErr(fmt.Sprintf("no post at index %d", index), store.ErrNotFound)
	}
	id := e.posts[index].ID
	e.viewMu.RUnlock()

	return e.ToggleLike(ctx, id)
}

// Posts returns the most recently published list.
func (e *Engine) Posts() []store.StoredPost {
	e.viewMu.RLock()
	defer e.viewMu.RUnlock()
	result := make([]store.StoredPost, len(e.posts))
	copy(result, e.posts)
	return result
}

// Subscribe registers for notifications. Each channel buffers up to buffer messages.
func (e *Engine) Subscribe(buffer int) *Subscription {
	return e.notifier.subscribe(buffer)
}

func (e *Engine) Unsubscribe(sub *Subscription) {
	e.notifier.unsubscribe(sub)
}

func (e *Engine) publish(posts []store.StoredPost) []store.StoredPost {
	sorted := Sort(posts)

	e.viewMu.Lock()
	e.posts = sorted
	e.viewMu.Unlock()

	e.notifier.postsUpdated(sorted)
	return sorted
}

func (e *Engine) storeFailure(message string, err error) error {
	slog.Error(message, "error", err)
	return util.WrapErr(message, errors.Join(ErrStore, err))
}
