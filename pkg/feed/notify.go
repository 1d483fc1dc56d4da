package feed

import (
	"log/slog"
	"sync"

	"github.com/georgemblack/feed-sync/pkg/store"
)

// Subscription receives engine notifications. Updates carries the sorted post list after every
// refresh or toggle; Errors carries the user-facing message after a failed fetch.
// Both channels are closed by Unsubscribe.
type Subscription struct {
	Updates <-chan []store.StoredPost
	Errors  <-chan string

	updates chan []store.StoredPost
	errors  chan string
}

type notifier struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func (n *notifier) subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	updates := make(chan []store.StoredPost, buffer)
	errs := make(chan string, buffer)
	sub := &Subscription{
		Updates: updates,
		Errors:  errs,
		updates: updates,
		errors:  errs,
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = make(map[*Subscription]struct{})
	}
	n.subs[sub] = struct{}{}
	return sub
}

func (n *notifier) unsubscribe(sub *Subscription) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.subs[sub]; !ok {
		return
	}
	delete(n.subs, sub)
	close(sub.updates)
	close(sub.errors)
}

// A subscriber that is not keeping up misses the notification instead of stalling the engine.
func (n *notifier) postsUpdated(posts []store.StoredPost) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for sub := range n.subs {
		snapshot := make([]store.StoredPost, len(posts))
		copy(snapshot, posts)
		select {
		case sub.updates <- snapshot:
		default:
			slog.Warn("dropping posts update for slow subscriber")
		}
	}
}

func (n *notifier) failed(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for sub := range n.subs {
		select {
		case sub.errors <- message:
		default:
			slog.Warn("dropping error notification for slow subscriber")
		}
	}
}
