// Package store implements the feed.Store port on PostgreSQL. All ordering
// and keyset pagination happens here: pages are served in
// (created_at DESC, id DESC) order, seeking strictly past the cursor with a
// row comparison, so deleted anchor rows never break a pagination walk.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/echo-social/echonet/internal/feed"
	apperrors "github.com/echo-social/echonet/pkg/errors"
	"github.com/echo-social/echonet/pkg/postgres"
)

// PostStore is the PostgreSQL-backed implementation of feed.Store.
type PostStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

var _ feed.Store = (*PostStore)(nil)

func New(db *postgres.Client) *PostStore {
	return &PostStore{
		db:     db,
		logger: slog.Default().With("component", "post-store"),
	}
}

// ListPosts returns assembled post rows matching the query: raw fields,
// author summary, like/comment/echo counts, and the viewer's like flag.
// Results are ordered (created_at DESC, id DESC) and limited to q.Limit.
func (s *PostStore) ListPosts(ctx context.Context, q feed.PostQuery) ([]feed.Post, error) {
	var sb strings.Builder
	args := make([]any, 0, 6)

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	viewerParam := arg(q.ViewerID)
	sb.WriteString(`
		SELECT p.id, p.author_id, p.content, p.media_urls, p.created_at,
		       u.username, u.name, COALESCE(u.image, ''),
		       (SELECT COUNT(*) FROM likes l WHERE l.post_id = p.id),
		       (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id),
		       (SELECT COUNT(*) FROM echoes e WHERE e.post_id = p.id),
		       CASE WHEN ` + viewerParam + ` = '' THEN FALSE
		            ELSE EXISTS (SELECT 1 FROM likes l WHERE l.post_id = p.id AND l.user_id = ` + viewerParam + `)
		       END
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE TRUE`)

	if q.IDs != nil {
		sb.WriteString(" AND p.id = ANY(" + arg(pq.Array(q.IDs)) + ")")
	}
	if q.AuthorUsername != "" {
		sb.WriteString(" AND u.username = " + arg(q.AuthorUsername))
	}
	if q.FollowedByID != "" {
		sb.WriteString(" AND EXISTS (SELECT 1 FROM follows f WHERE f.followee_id = p.author_id AND f.follower_id = " + arg(q.FollowedByID) + ")")
	}
	if q.After != nil {
		// Strictly after the cursor in the (created_at DESC, id DESC) scan.
		sb.WriteString(" AND (p.created_at, p.id) < (" + arg(q.After.CreatedAt) + ", " + arg(q.After.ID) + ")")
	}

	sb.WriteString(" ORDER BY p.created_at DESC, p.id DESC")
	sb.WriteString(" LIMIT " + arg(q.Limit))

	rows, err := s.db.DB.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying posts: %w", err)
	}
	defer rows.Close()

	posts := make([]feed.Post, 0, q.Limit)
	for rows.Next() {
		var p feed.Post
		var mediaURLs pq.StringArray
		if err := rows.Scan(
			&p.ID, &p.AuthorID, &p.Content, &mediaURLs, &p.CreatedAt,
			&p.Author.Username, &p.Author.Name, &p.Author.Image,
			&p.LikeCount, &p.CommentCount, &p.EchoCount,
			&p.LikedByMe,
		); err != nil {
			return nil, fmt.Errorf("scanning post row: %w", err)
		}
		p.Author.ID = p.AuthorID
		p.MediaURLs = mediaURLs
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating post rows: %w", err)
	}
	return posts, nil
}

// ListComments returns each post's comments ordered (created_at ASC, id ASC).
func (s *PostStore) ListComments(ctx context.Context, postIDs []string) (map[string][]feed.Comment, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT c.id, c.post_id, c.author_id, c.content, c.media_urls, c.created_at,
		        u.username, u.name, COALESCE(u.image, '')
		 FROM comments c
		 JOIN users u ON u.id = c.author_id
		 WHERE c.post_id = ANY($1)
		 ORDER BY c.created_at ASC, c.id ASC`,
		pq.Array(postIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("querying comments: %w", err)
	}
	defer rows.Close()

	byPost := make(map[string][]feed.Comment, len(postIDs))
	for rows.Next() {
		var c feed.Comment
		var mediaURLs pq.StringArray
		if err := rows.Scan(
			&c.ID, &c.PostID, &c.AuthorID, &c.Content, &mediaURLs, &c.CreatedAt,
			&c.Author.Username, &c.Author.Name, &c.Author.Image,
		); err != nil {
			return nil, fmt.Errorf("scanning comment row: %w", err)
		}
		c.Author.ID = c.AuthorID
		c.MediaURLs = mediaURLs
		byPost[c.PostID] = append(byPost[c.PostID], c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating comment rows: %w", err)
	}
	return byPost, nil
}

// CreatePost inserts a new post, assigning its ID and CreatedAt.
func (s *PostStore) CreatePost(ctx context.Context, p *feed.Post) error {
	p.ID = uuid.NewString()
	p.CreatedAt = time.Now().UTC()
	media := p.MediaURLs
	if media == nil {
		media = []string{}
	}
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO posts (id, author_id, content, media_urls, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.AuthorID, p.Content, pq.Array(media), p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting post: %w", err)
	}
	return nil
}

// DeletePost removes a post; likes, echoes, and comments go with it via
// ON DELETE CASCADE.
func (s *PostStore) DeletePost(ctx context.Context, id string) error {
	result, err := s.db.DB.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.ErrPostNotFound
	}
	return nil
}

// PostAuthor returns a post's author ID, or ErrPostNotFound.
func (s *PostStore) PostAuthor(ctx context.Context, id string) (string, error) {
	var authorID string
	err := s.db.DB.QueryRowContext(ctx, `SELECT author_id FROM posts WHERE id = $1`, id).Scan(&authorID)
	if err == sql.ErrNoRows {
		return "", apperrors.ErrPostNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying post author: %w", err)
	}
	return authorID, nil
}

// ToggleLike inserts or removes the (post, user) like row in a transaction.
func (s *PostStore) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	return s.toggle(ctx, "likes", postID, userID)
}

// ToggleEcho inserts or removes the (post, user) echo row in a transaction.
func (s *PostStore) ToggleEcho(ctx context.Context, postID, userID string) (bool, error) {
	return s.toggle(ctx, "echoes", postID, userID)
}

func (s *PostStore) toggle(ctx context.Context, table, postID, userID string) (bool, error) {
	var added bool
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1)`, postID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("checking post existence: %w", err)
		}
		if !exists {
			return apperrors.ErrPostNotFound
		}

		result, err := tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE post_id = $1 AND user_id = $2`,
			postID, userID,
		)
		if err != nil {
			return fmt.Errorf("removing %s row: %w", table, err)
		}
		if rows, _ := result.RowsAffected(); rows > 0 {
			added = false
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+table+` (post_id, user_id) VALUES ($1, $2)`,
			postID, userID,
		); err != nil {
			return fmt.Errorf("inserting %s row: %w", table, err)
		}
		added = true
		return nil
	})
	return added, err
}

// CreateComment inserts a new comment, assigning its ID and CreatedAt.
func (s *PostStore) CreateComment(ctx context.Context, c *feed.Comment) error {
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()
	media := c.MediaURLs
	if media == nil {
		media = []string{}
	}
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO comments (id, post_id, author_id, content, media_urls, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.PostID, c.AuthorID, c.Content, pq.Array(media), c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting comment: %w", err)
	}
	return nil
}

// CommentAuthor returns a comment's author ID, or ErrCommentNotFound.
func (s *PostStore) CommentAuthor(ctx context.Context, id string) (string, error) {
	var authorID string
	err := s.db.DB.QueryRowContext(ctx, `SELECT author_id FROM comments WHERE id = $1`, id).Scan(&authorID)
	if err == sql.ErrNoRows {
		return "", apperrors.ErrCommentNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying comment author: %w", err)
	}
	return authorID, nil
}

// DeleteComment removes a comment.
func (s *PostStore) DeleteComment(ctx context.Context, id string) error {
	result, err := s.db.DB.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting comment: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.ErrCommentNotFound
	}
	return nil
}

// ReplayPosts streams (id, content) for every post, batched by ascending ID,
// so the index rebuild never holds one long-running cursor open.
func (s *PostStore) ReplayPosts(ctx context.Context, batchSize int, fn func(id, content string) error) error {
	if batchSize <= 0 {
		batchSize = 500
	}
	lastID := ""
	for {
		rows, err := s.db.DB.QueryContext(ctx,
			`SELECT id, content FROM posts WHERE id > $1 ORDER BY id ASC LIMIT $2`,
			lastID, batchSize,
		)
		if err != nil {
			return fmt.Errorf("querying replay batch: %w", err)
		}

		count := 0
		for rows.Next() {
			var id, content string
			if err := rows.Scan(&id, &content); err != nil {
				rows.Close()
				return fmt.Errorf("scanning replay row: %w", err)
			}
			if err := fn(id, content); err != nil {
				rows.Close()
				return err
			}
			lastID = id
			count++
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("iterating replay rows: %w", err)
		}
		rows.Close()

		if count < batchSize {
			return nil
		}
	}
}
