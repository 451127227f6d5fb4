package feed

import "context"

// PostQuery describes one page-sized read against the durable store. Rows
// are always returned in (created_at DESC, id DESC) order, strictly after
// After when it is set.
type PostQuery struct {
	// IDs restricts results to these post IDs (search and single-post
	// lookups). nil means unrestricted; the service never passes an empty
	// non-nil slice.
	IDs []string

	// AuthorUsername restricts results to one author's posts.
	AuthorUsername string

	// FollowedByID restricts results to posts whose author is followed by
	// this user.
	FollowedByID string

	// ViewerID drives the liked_by_me flag. Empty for anonymous viewers.
	ViewerID string

	After *Cursor
	Limit int
}

// Store defines the durable-store operations the feed service needs. The
// store owns transactional semantics; the service performs no retries.
type Store interface {
	// ListPosts returns up to Limit assembled rows (aggregates and author
	// summary included, comments excluded) matching the query.
	ListPosts(ctx context.Context, q PostQuery) ([]Post, error)

	// ListComments returns the comments for each given post, ordered by
	// (created_at ASC, id ASC), keyed by post ID.
	ListComments(ctx context.Context, postIDs []string) (map[string][]Comment, error)

	// CreatePost persists a new post, assigning its ID and CreatedAt.
	CreatePost(ctx context.Context, p *Post) error

	// DeletePost removes a post and its dependent rows.
	DeletePost(ctx context.Context, id string) error

	// PostAuthor returns the author ID of a post, or ErrPostNotFound.
	PostAuthor(ctx context.Context, id string) (string, error)

	// ToggleLike adds a like if absent, removes it if present. Reports
	// whether a like was added.
	ToggleLike(ctx context.Context, postID, userID string) (bool, error)

	// ToggleEcho adds or removes an echo (repost) the same way.
	ToggleEcho(ctx context.Context, postID, userID string) (bool, error)

	// CreateComment persists a new comment, assigning its ID and CreatedAt.
	CreateComment(ctx context.Context, c *Comment) error

	// CommentAuthor returns the author ID of a comment, or ErrCommentNotFound.
	CommentAuthor(ctx context.Context, id string) (string, error)

	// DeleteComment removes a comment.
	DeleteComment(ctx context.Context, id string) error

	// ReplayPosts streams (id, content) for every persisted post in batches,
	// for rebuilding the inverted index at startup.
	ReplayPosts(ctx context.Context, batchSize int, fn func(id, content string) error) error
}

// SearchCache caches assembled search pages. Implementations collapse
// concurrent misses for the same key. A nil cache disables caching.
type SearchCache interface {
	GetOrCompute(ctx context.Context, term, viewerID, cursor string, limit int, compute func() (*Page, error)) (*Page, bool, error)
	Invalidate(ctx context.Context) error
}

// EventTracker receives analytics events. Track must not block.
type EventTracker interface {
	Track(event any)
}
