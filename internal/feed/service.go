package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/echo-social/echonet/internal/analytics"
	"github.com/echo-social/echonet/internal/index"
	"github.com/echo-social/echonet/pkg/config"
	apperrors "github.com/echo-social/echonet/pkg/errors"
	"github.com/echo-social/echonet/pkg/metrics"
)

// Service owns the feed read paths and the post/comment/like/echo write
// paths. It holds the process's single inverted index instance: the index
// is populated at creation time and by the startup replay, never by reads.
type Service struct {
	store   Store
	idx     *index.Index
	cache   SearchCache
	tracker EventTracker
	m       *metrics.Metrics
	cfg     config.FeedConfig
	search  config.SearchConfig
	logger  *slog.Logger
}

// NewService wires the feed service. cache, tracker, and m may be nil, which
// disables search caching, analytics, and metrics respectively.
func NewService(store Store, idx *index.Index, cache SearchCache, tracker EventTracker, m *metrics.Metrics, cfg config.FeedConfig, searchCfg config.SearchConfig) *Service {
	return &Service{
		store:   store,
		idx:     idx,
		cache:   cache,
		tracker: tracker,
		m:       m,
		cfg:     cfg,
		search:  searchCfg,
		logger:  slog.Default().With("component", "feed-service"),
	}
}

// Index exposes the service's inverted index for health checks.
func (s *Service) Index() *index.Index {
	return s.idx
}

// RebuildIndex replays every persisted post into the inverted index. It must
// run to completion before the service takes traffic; the index lives only
// in process memory and starts empty after a restart.
func (s *Service) RebuildIndex(ctx context.Context) error {
	start := time.Now()
	count := 0
	err := s.store.ReplayPosts(ctx, s.cfg.ReplayBatchSize, func(id, content string) error {
		s.idx.Add(id, content)
		count++
		return nil
	})
	if err != nil {
		return fmt.Errorf("replaying posts into index: %w", err)
	}
	elapsed := time.Since(start)
	if s.m != nil {
		s.m.IndexReplayDuration.Observe(elapsed.Seconds())
		s.m.IndexTermCount.Set(float64(s.idx.TermCount()))
	}
	s.logger.Info("index rebuilt",
		"posts", count,
		"terms", s.idx.TermCount(),
		"elapsed", elapsed.Round(time.Millisecond),
	)
	return nil
}

// ---------- Read paths ----------

// Feed returns the public timeline, or the viewer's follow timeline when
// onlyFollowing is set. Anonymous viewers always get the public timeline.
func (s *Service) Feed(ctx context.Context, viewerID string, onlyFollowing bool, limit int, cursor string) (*Page, error) {
	q := PostQuery{ViewerID: viewerID}
	if onlyFollowing && viewerID != "" {
		q.FollowedByID = viewerID
	}
	return s.fetchPage(ctx, "feed", q, limit, cursor)
}

// ProfileFeed returns one author's posts by username.
func (s *Service) ProfileFeed(ctx context.Context, viewerID, username string, limit int, cursor string) (*Page, error) {
	if username == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "username is required")
	}
	q := PostQuery{ViewerID: viewerID, AuthorUsername: username}
	return s.fetchPage(ctx, "profile", q, limit, cursor)
}

// SinglePost returns one assembled post by ID.
func (s *Service) SinglePost(ctx context.Context, viewerID, postID string) (*Post, error) {
	q := PostQuery{ViewerID: viewerID, IDs: []string{postID}}
	page, err := s.fetchPage(ctx, "post", q, 1, "")
	if err != nil {
		return nil, err
	}
	if len(page.Posts) == 0 {
		return nil, apperrors.ErrPostNotFound
	}
	return &page.Posts[0], nil
}

// Search returns posts whose text contained term at indexing time. Candidate
// IDs come from the inverted index; the store query then orders, paginates,
// and implicitly drops IDs whose posts have since been deleted. The posting
// list is never trusted as ground truth.
func (s *Service) Search(ctx context.Context, viewerID, term string, limit int, cursor string) (*Page, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "search term is required")
	}
	if max := s.search.MaxTermLen; max > 0 && len(term) > max {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "search term is too long")
	}

	start := time.Now()
	compute := func() (*Page, error) {
		ids := s.idx.Lookup(term)
		if len(ids) == 0 {
			if s.m != nil {
				s.m.SearchQueriesTotal.WithLabelValues("zero_result").Inc()
			}
			return &Page{Posts: []Post{}}, nil
		}
		q := PostQuery{ViewerID: viewerID, IDs: ids}
		return s.fetchPage(ctx, "search", q, limit, cursor)
	}

	var (
		page     *Page
		cacheHit bool
		err      error
	)
	if s.cache != nil {
		page, cacheHit, err = s.cache.GetOrCompute(ctx, strings.ToLower(term), viewerID, cursor, limit, compute)
	} else {
		page, err = compute()
	}
	if err != nil {
		if s.m != nil {
			s.m.SearchQueriesTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	if s.m != nil {
		if len(page.Posts) > 0 {
			s.m.SearchQueriesTotal.WithLabelValues("hit").Inc()
		}
		if cacheHit {
			s.m.CacheHitsTotal.Inc()
		} else if s.cache != nil {
			s.m.CacheMissesTotal.Inc()
		}
	}
	if s.tracker != nil {
		s.tracker.Track(analytics.SearchEvent{
			Type:      analytics.EventSearch,
			Term:      strings.ToLower(term),
			Returned:  len(page.Posts),
			CacheHit:  cacheHit,
			LatencyMs: time.Since(start).Milliseconds(),
			Timestamp: time.Now().UTC(),
		})
	}
	return page, nil
}

// Comments returns a post's comments in creation order.
func (s *Service) Comments(ctx context.Context, postID string) ([]Comment, error) {
	if _, err := s.store.PostAuthor(ctx, postID); err != nil {
		return nil, err
	}
	byPost, err := s.store.ListComments(ctx, []string{postID})
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	comments := byPost[postID]
	if comments == nil {
		comments = []Comment{}
	}
	return comments, nil
}

// fetchPage is the shared pagination routine behind the feed, profile feed,
// search, and single-post reads. It over-fetches by one row to detect
// whether more pages exist without a separate count query.
func (s *Service) fetchPage(ctx context.Context, source string, q PostQuery, limit int, cursor string) (*Page, error) {
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}
	if cursor != "" {
		c, err := DecodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		q.After = &c
	}
	q.Limit = limit + 1

	rows, err := s.store.ListPosts(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}

	page := &Page{}
	if len(rows) > limit {
		// More rows exist. The cursor names the last row served; the store
		// seeks strictly past it, so the next page opens on the overflow row.
		rows = rows[:limit]
		last := rows[limit-1]
		page.NextCursor = Cursor{ID: last.ID, CreatedAt: last.CreatedAt}.Encode()
	}

	if len(rows) > 0 {
		ids := make([]string, len(rows))
		for i := range rows {
			ids[i] = rows[i].ID
		}
		comments, err := s.store.ListComments(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("listing comments: %w", err)
		}
		for i := range rows {
			if cs := comments[rows[i].ID]; cs != nil {
				rows[i].Comments = cs
			} else {
				rows[i].Comments = []Comment{}
			}
		}
	}
	page.Posts = rows
	if page.Posts == nil {
		page.Posts = []Post{}
	}

	if s.m != nil {
		s.m.PagesServedTotal.WithLabelValues(source).Inc()
		s.m.PageSize.WithLabelValues(source).Observe(float64(len(page.Posts)))
	}
	return page, nil
}

// ---------- Write paths ----------

// CreatePost persists a new post and indexes its content exactly once. The
// index update happens synchronously after the store insert succeeds; a
// post is never indexed again on read.
func (s *Service) CreatePost(ctx context.Context, viewerID, content string, mediaURLs []string) (*Post, error) {
	if viewerID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	if err := s.validateContent(content, mediaURLs); err != nil {
		return nil, err
	}

	post := &Post{
		AuthorID:  viewerID,
		Content:   content,
		MediaURLs: mediaURLs,
	}
	if err := s.store.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("creating post: %w", err)
	}

	s.idx.Add(post.ID, post.Content)
	if s.m != nil {
		s.m.PostsIndexedTotal.Inc()
		s.m.IndexTermCount.Set(float64(s.idx.TermCount()))
	}
	if s.tracker != nil {
		s.tracker.Track(analytics.PostIndexedEvent{
			Type:       analytics.EventIndexPost,
			PostID:     post.ID,
			TokenCount: len(index.Tokenize(post.Content)),
			Timestamp:  time.Now().UTC(),
		})
	}
	s.invalidateSearchCache(ctx)

	s.logger.Info("post created", "post_id", post.ID, "author_id", viewerID)
	return post, nil
}

// DeletePost removes a post the viewer owns. The post's index postings stay
// behind as tombstones; reads filter them out via the store.
func (s *Service) DeletePost(ctx context.Context, viewerID, postID string) error {
	if viewerID == "" {
		return apperrors.ErrUnauthorized
	}
	authorID, err := s.store.PostAuthor(ctx, postID)
	if err != nil {
		return err
	}
	if authorID != viewerID {
		return apperrors.New(apperrors.ErrUnauthorized, http.StatusUnauthorized, "only the author can delete a post")
	}
	if err := s.store.DeletePost(ctx, postID); err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}
	s.invalidateSearchCache(ctx)
	s.logger.Info("post deleted", "post_id", postID, "author_id", viewerID)
	return nil
}

// ToggleLike likes the post if the viewer has not liked it, and unlikes it
// otherwise. Reports whether a like was added.
func (s *Service) ToggleLike(ctx context.Context, viewerID, postID string) (bool, error) {
	if viewerID == "" {
		return false, apperrors.ErrUnauthorized
	}
	added, err := s.store.ToggleLike(ctx, postID, viewerID)
	if err != nil {
		return false, err
	}
	// Cached search pages carry like counts and liked_by_me, so they go stale
	// the moment a like flips.
	s.invalidateSearchCache(ctx)
	return added, nil
}

// ToggleEcho reposts the post, or removes the viewer's existing echo.
func (s *Service) ToggleEcho(ctx context.Context, viewerID, postID string) (bool, error) {
	if viewerID == "" {
		return false, apperrors.ErrUnauthorized
	}
	added, err := s.store.ToggleEcho(ctx, postID, viewerID)
	if err != nil {
		return false, err
	}
	s.invalidateSearchCache(ctx)
	return added, nil
}

// CreateComment adds a comment to a post.
func (s *Service) CreateComment(ctx context.Context, viewerID, postID, content string, mediaURLs []string) (*Comment, error) {
	if viewerID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	if err := s.validateContent(content, mediaURLs); err != nil {
		return nil, err
	}
	if _, err := s.store.PostAuthor(ctx, postID); err != nil {
		return nil, err
	}

	comment := &Comment{
		PostID:    postID,
		AuthorID:  viewerID,
		Content:   content,
		MediaURLs: mediaURLs,
	}
	if err := s.store.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("creating comment: %w", err)
	}
	return comment, nil
}

// DeleteComment removes a comment the viewer owns.
func (s *Service) DeleteComment(ctx context.Context, viewerID, commentID string) error {
	if viewerID == "" {
		return apperrors.ErrUnauthorized
	}
	authorID, err := s.store.CommentAuthor(ctx, commentID)
	if err != nil {
		return err
	}
	if authorID != viewerID {
		return apperrors.New(apperrors.ErrUnauthorized, http.StatusUnauthorized, "only the author can delete a comment")
	}
	if err := s.store.DeleteComment(ctx, commentID); err != nil {
		return fmt.Errorf("deleting comment: %w", err)
	}
	return nil
}

func (s *Service) validateContent(content string, mediaURLs []string) error {
	if strings.TrimSpace(content) == "" {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "content must not be empty")
	}
	if max := s.cfg.MaxContentLength; max > 0 && len(content) > max {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "content must be at most %d characters", max)
	}
	if max := s.cfg.MaxMediaURLs; max > 0 && len(mediaURLs) > max {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "at most %d media urls allowed", max)
	}
	return nil
}

func (s *Service) invalidateSearchCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("search cache invalidation failed", "error", err)
	}
}
