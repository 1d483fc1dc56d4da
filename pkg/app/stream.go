package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/georgemblack/feed-sync/pkg/util"
	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// stream pushes engine notifications to a websocket client. The client first receives the
// current list, then every update and error as it happens. Messages from the client are ignored.
func (a App) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn(util.WrapErr("failed to upgrade connection", err).Error())
		return
	}
	defer conn.Close()

	sub := a.Feed.Subscribe(a.Config.NotificationBuffer)
	defer a.Feed.Unsubscribe(sub)

	// Detect the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(msg APIStreamMessage) bool {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			slog.Debug(util.WrapErr("failed to write stream message", err).Error())
			return false
		}
		return true
	}

	if !send(APIStreamMessage{Type: "posts", Posts: toAPIPosts(a.Feed.Posts())}) {
		return
	}

	for {
		select {
		case posts, ok := <-sub.Updates:
			if !ok {
				return
			}
			if !send(APIStreamMessage{Type: "posts", Posts: toAPIPosts(posts)}) {
				return
			}
		case message, ok := <-sub.Errors:
			if !ok {
				return
			}
			if !send(APIStreamMessage{Type: "error", Message: message}) {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
