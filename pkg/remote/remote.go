package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/georgemblack/feed-sync/pkg/config"
	"github.com/georgemblack/feed-sync/pkg/util"
)

var (
	// ErrNetwork covers connectivity failures, timeouts and non-2xx responses.
	ErrNetwork = errors.New("network failure")
	// ErrDecode is returned when the payload is not a list of posts.
	ErrDecode = errors.New("decode failure")
)

// Post is the remote representation of a post. Immutable once fetched.
type Post struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// Client fetches the full post collection. It holds no state between calls and never retries.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(cfg config.Config, token string) Client {
	return Client{
		baseURL: strings.TrimRight(cfg.RemoteBaseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: cfg.RemoteTimeout},
	}
}

// FetchPosts performs a GET against the posts endpoint.
func (c Client) FetchPosts(ctx context.Context) ([]Post, error) {
	url := c.baseURL + "/posts"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, util.WrapErr("failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, util.WrapErr("failed to send request", errors.Join(ErrNetwork, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused
		io.Copy(io.Discard, resp.Body)
		return nil, util.WrapErr(fmt.Sprintf("unexpected status %s", resp.Status), ErrNetwork)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, util.WrapErr("failed to read response body", errors.Join(ErrNetwork, err))
	}

	posts, err := decodePosts(body)
	if err != nil {
		return nil, err
	}

	slog.Debug("fetched posts", "url", url, "count", len(posts))
	return posts, nil
}

// wirePost mirrors Post with pointer fields so absent keys can be told apart from zero values.
type wirePost struct {
	ID     *int64  `json:"id"`
	UserID *int64  `json:"userId"`
	Title  *string `json:"title"`
	Body   *string `json:"body"`
}

func decodePosts(body []byte) ([]Post, error) {
	var wire []*wirePost
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, util.WrapErr("failed to unmarshal posts", errors.Join(ErrDecode, err))
	}
	if wire == nil {
		return nil, util.WrapErr("expected an array of posts, got null", ErrDecode)
	}

	// Post ids are the identity in the local store, so the collection must not repeat one.
	seen := mapset.NewThreadUnsafeSetWithSize[int64](len(wire))
	posts := make([]Post, 0, len(wire))
	for i, w := range wire {
		if w == nil || w.ID == nil || w.UserID == nil || w.Title == nil || w.Body == nil {
			return nil, util.WrapErr(fmt.Sprintf("post at index %d is missing required fields", i), ErrDecode)
		}
		if !seen.Add(*w.ID) {
			return nil, util.WrapErr(fmt.Sprintf("duplicate post id %d", *w.ID), ErrDecode)
		}
		posts = append(posts, Post{ID: *w.ID, UserID: *w.UserID, Title: *w.Title, Body: *w.Body})
	}

	return posts, nil
}
