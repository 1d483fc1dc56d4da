package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/georgemblack/feed-sync/pkg/avatar"
	"github.com/georgemblack/feed-sync/pkg/feed"
	"github.com/georgemblack/feed-sync/pkg/store"
	"github.com/georgemblack/feed-sync/pkg/util"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Server() error {
	slog.Info("starting server")

	app, err := NewApp(context.Background())
	if err != nil {
		return util.WrapErr("failed to create app", err)
	}
	defer app.Close()

	slog.Info("listening", "port", app.Config.ServerPort)
	return http.ListenAndServe(fmt.Sprintf(":%s", app.Config.ServerPort), app.Routes())
}

func (a App) Routes() http.Handler {
	server := http.NewServeMux()

	// Refresh and return the sorted feed. Only an empty store causes a remote fetch.
	server.HandleFunc("GET /posts", func(w http.ResponseWriter, r *http.Request) {
		result, err := a.Feed.Refresh(r.Context())
		if errors.Is(err, feed.ErrRefreshInProgress) {
			writeError(w, http.StatusConflict, "Refresh already in progress")
			return
		}
		if err != nil {
			slog.Error("failed to refresh posts", "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, APIPostsResponse{
			Posts: toAPIPosts(result.Posts),
			Error: result.Message,
		})
	})

	// Flip the liked flag of a post and return the re-sorted feed.
	server.HandleFunc("POST /posts/{id}/like", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid post id")
			return
		}

		posts, err := a.Feed.ToggleLike(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Post not found")
			return
		}
		if err != nil {
			slog.Error("failed to toggle like", "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		writeJSON(w, http.StatusOK, APIPostsResponse{Posts: toAPIPosts(posts)})
	})

	// Flip the liked flag of the post at a position in the last list the client was sent.
	server.HandleFunc("POST /feed/{index}/like", func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(r.PathValue("index"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid index")
			return
		}

		posts, err := a.Feed.ToggleLikeAt(r.Context(), index)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Post not found")
			return
		}
		if err != nil {
			slog.Error("failed to toggle like", "index", index, "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		writeJSON(w, http.StatusOK, APIPostsResponse{Posts: toAPIPosts(posts)})
	})

	// Serve the avatar for a post id through the image cache.
	server.HandleFunc("GET /avatars/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid post id")
			return
		}

		img, err := a.Images.Get(r.Context(), avatar.URL(a.Config.AvatarURLTemplate, id))
		if err != nil {
			slog.Debug("no avatar", "id", id, "error", err)
			writeError(w, http.StatusNotFound, "No image")
			return
		}

		w.Header().Set("Content-Type", "image/"+img.Format)
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Header().Set("ETag", fmt.Sprintf("%q", util.Hash(img.Data)))
		w.Write(img.Data)
	})

	server.HandleFunc("GET /stream", a.stream)
	server.Handle("GET /metrics", promhttp.HandlerFor(a.Metrics.Registry(), promhttp.HandlerOpts{}))

	return server
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, APIErrorResponse{Error: message})
}
