package feed

import (
	"sort"

	"github.com/georgemblack/feed-sync/pkg/store"
)

// Sort orders posts liked first, then by id descending. The input slice is not modified.
func Sort(posts []store.StoredPost) []store.StoredPost {
	sorted := make([]store.StoredPost, len(posts))
	copy(sorted, posts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Liked != sorted[j].Liked {
			return sorted[i].Liked
		}
		return sorted[i].ID > sorted[j].ID
	})
	return sorted
}
