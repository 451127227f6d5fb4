// Package feed implements the domain service for the post feed: cursor
// pagination, keyword search against the inverted index, and post, like,
// echo, and comment mutations. The durable store is the source of truth;
// the index is a derived side table owned by the Service.
package feed

import "time"

// AuthorSummary is the subset of a user shown next to posts and comments.
type AuthorSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Image    string `json:"image,omitempty"`
}

// Post is a fully assembled feed item: the stored row plus computed
// aggregates and the viewer-specific likedByMe flag.
type Post struct {
	ID           string        `json:"id"`
	AuthorID     string        `json:"-"`
	Content      string        `json:"content"`
	MediaURLs    []string      `json:"media_urls"`
	CreatedAt    time.Time     `json:"created_at"`
	Author       AuthorSummary `json:"author"`
	LikeCount    int           `json:"like_count"`
	CommentCount int           `json:"comment_count"`
	EchoCount    int           `json:"echo_count"`
	LikedByMe    bool          `json:"liked_by_me"`
	Comments     []Comment     `json:"comments"`
}

// Comment is a single comment with its author summary attached.
type Comment struct {
	ID        string        `json:"id"`
	PostID    string        `json:"post_id"`
	AuthorID  string        `json:"-"`
	Content   string        `json:"content"`
	MediaURLs []string      `json:"media_urls"`
	CreatedAt time.Time     `json:"created_at"`
	Author    AuthorSummary `json:"author"`
}

// Page is one page of assembled posts. NextCursor is set only when strictly
// more matching posts exist beyond this page.
type Page struct {
	Posts      []Post `json:"posts"`
	NextCursor string `json:"next_cursor,omitempty"`
}
