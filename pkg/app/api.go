package app

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/georgemblack/feed-sync/pkg/store"
)

type APIPostsResponse struct {
	Posts []APIPost `json:"posts"`
	Error string    `json:"error,omitempty"`
}

type APIPost struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	Liked  bool   `json:"liked"`
	// Served by this service through the image cache.
	AvatarURL string `json:"avatarUrl"`
}

type APIStreamMessage struct {
	Type    string    `json:"type"` // "posts" or "error"
	Posts   []APIPost `json:"posts,omitempty"`
	Message string    `json:"message,omitempty"`
}

type APIErrorResponse struct {
	Error string `json:"error"`
}

func toAPIPosts(posts []store.StoredPost) []APIPost {
	result := make([]APIPost, len(posts))
	for i, post := range posts {
		result[i] = APIPost{
			ID:        post.ID,
			UserID:    post.UserID,
			Title:     firstUppercased(post.Title),
			Body:      post.Body,
			Liked:     post.Liked,
			AvatarURL: fmt.Sprintf("/avatars/%d", post.ID),
		}
	}
	return result
}

func firstUppercased(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
