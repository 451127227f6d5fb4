package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/echo-social/echonet/internal/auth"
	"github.com/echo-social/echonet/internal/auth/ratelimit"
	"github.com/echo-social/echonet/internal/feed"
	"github.com/echo-social/echonet/internal/index"
	"github.com/echo-social/echonet/pkg/config"
	apperrors "github.com/echo-social/echonet/pkg/errors"
)

// memStore is a minimal in-memory feed.Store for handler tests.
type memStore struct {
	posts    []feed.Post
	comments []feed.Comment
	seq      int
}

func (s *memStore) ListPosts(ctx context.Context, q feed.PostQuery) ([]feed.Post, error) {
	var idSet map[string]bool
	if q.IDs != nil {
		idSet = make(map[string]bool, len(q.IDs))
		for _, id := range q.IDs {
			idSet[id] = true
		}
	}
	var rows []feed.Post
	for _, p := range s.posts {
		if idSet != nil && !idSet[p.ID] {
			continue
		}
		if q.AuthorUsername != "" && p.Author.Username != q.AuthorUsername {
			continue
		}
		if q.After != nil {
			if p.CreatedAt.After(q.After.CreatedAt) {
				continue
			}
			if p.CreatedAt.Equal(q.After.CreatedAt) && p.ID >= q.After.ID {
				continue
			}
		}
		rows = append(rows, p)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].ID > rows[j].ID
	})
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	return rows, nil
}

func (s *memStore) ListComments(ctx context.Context, postIDs []string) (map[string][]feed.Comment, error) {
	want := make(map[string]bool, len(postIDs))
	for _, id := range postIDs {
		want[id] = true
	}
	out := make(map[string][]feed.Comment)
	for _, c := range s.comments {
		if want[c.PostID] {
			out[c.PostID] = append(out[c.PostID], c)
		}
	}
	return out, nil
}

func (s *memStore) CreatePost(ctx context.Context, p *feed.Post) error {
	s.seq++
	p.ID = fmt.Sprintf("post-%04d", s.seq)
	p.CreatedAt = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(s.seq) * time.Second)
	if p.MediaURLs == nil {
		p.MediaURLs = []string{}
	}
	s.posts = append(s.posts, *p)
	return nil
}

func (s *memStore) DeletePost(ctx context.Context, id string) error {
	for i, p := range s.posts {
		if p.ID == id {
			s.posts = append(s.posts[:i], s.posts[i+1:]...)
			return nil
		}
	}
	return apperrors.ErrPostNotFound
}

func (s *memStore) PostAuthor(ctx context.Context, id string) (string, error) {
	for _, p := range s.posts {
		if p.ID == id {
			return p.AuthorID, nil
		}
	}
	return "", apperrors.ErrPostNotFound
}

func (s *memStore) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	if _, err := s.PostAuthor(ctx, postID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *memStore) ToggleEcho(ctx context.Context, postID, userID string) (bool, error) {
	if _, err := s.PostAuthor(ctx, postID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *memStore) CreateComment(ctx context.Context, c *feed.Comment) error {
	s.seq++
	c.ID = fmt.Sprintf("comment-%04d", s.seq)
	c.CreatedAt = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(s.seq) * time.Second)
	if c.MediaURLs == nil {
		c.MediaURLs = []string{}
	}
	s.comments = append(s.comments, *c)
	return nil
}

func (s *memStore) CommentAuthor(ctx context.Context, id string) (string, error) {
	for _, c := range s.comments {
		if c.ID == id {
			return c.AuthorID, nil
		}
	}
	return "", apperrors.ErrCommentNotFound
}

func (s *memStore) DeleteComment(ctx context.Context, id string) error {
	for i, c := range s.comments {
		if c.ID == id {
			s.comments = append(s.comments[:i], s.comments[i+1:]...)
			return nil
		}
	}
	return apperrors.ErrCommentNotFound
}

func (s *memStore) ReplayPosts(ctx context.Context, batchSize int, fn func(id, content string) error) error {
	for _, p := range s.posts {
		if err := fn(p.ID, p.Content); err != nil {
			return err
		}
	}
	return nil
}

var _ feed.Store = (*memStore)(nil)

func newTestMux(store *memStore) *http.ServeMux {
	svc := feed.NewService(store, index.New(), nil, nil, nil,
		config.FeedConfig{DefaultLimit: 10, MaxLimit: 100, MaxContentLength: 1000, MaxMediaURLs: 4, ReplayBatchSize: 500},
		config.SearchConfig{MaxTermLen: 128},
	)
	h := NewHandler(svc)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/feed", h.Feed)
	mux.HandleFunc("GET /api/v1/users/{username}/posts", h.ProfileFeed)
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/posts/{id}", h.SinglePost)
	mux.HandleFunc("GET /api/v1/posts/{id}/comments", h.Comments)
	mux.HandleFunc("POST /api/v1/posts", h.CreatePost)
	mux.HandleFunc("DELETE /api/v1/posts/{id}", h.DeletePost)
	mux.HandleFunc("POST /api/v1/posts/{id}/like", h.ToggleLike)
	mux.HandleFunc("POST /api/v1/posts/{id}/echo", h.ToggleEcho)
	mux.HandleFunc("POST /api/v1/posts/{id}/comments", h.CreateComment)
	mux.HandleFunc("DELETE /api/v1/comments/{id}", h.DeleteComment)
	return mux
}

// asViewer injects an authenticated viewer the way the auth middleware does.
func asViewer(r *http.Request, id, username string) *http.Request {
	viewer := &auth.Viewer{ID: id, Username: username, Name: username}
	return r.WithContext(context.WithValue(r.Context(), viewerKey, viewer))
}

func seedPosts(store *memStore, author, username string, n int) {
	for i := 0; i < n; i++ {
		p := &feed.Post{
			AuthorID: author,
			Content:  fmt.Sprintf("seeded post %d", i),
			Author:   feed.AuthorSummary{ID: author, Username: username, Name: username},
		}
		store.CreatePost(context.Background(), p)
	}
}

func TestFeedEndpoint(t *testing.T) {
	store := &memStore{}
	seedPosts(store, "u1", "alice", 3)
	mux := newTestMux(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/feed", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	var page feed.Page
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("response is not a page: %v", err)
	}
	if len(page.Posts) != 3 {
		t.Errorf("got %d posts, want 3", len(page.Posts))
	}
	if page.NextCursor != "" {
		t.Errorf("NextCursor = %q, want empty", page.NextCursor)
	}
}

func TestFeedEndpointInvalidCursor(t *testing.T) {
	mux := newTestMux(&memStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/feed?cursor=!!bad!!", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] == "" {
		t.Errorf("want a JSON error body, got %s", rec.Body.String())
	}
}

func TestFeedEndpointPaginates(t *testing.T) {
	store := &memStore{}
	seedPosts(store, "u1", "alice", 12)
	mux := newTestMux(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/feed?limit=10", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	var first feed.Page
	if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatalf("decoding first page: %v", err)
	}
	if len(first.Posts) != 10 || first.NextCursor == "" {
		t.Fatalf("first page = %d posts, cursor %q; want 10 posts and a cursor", len(first.Posts), first.NextCursor)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/feed?limit=10&cursor="+first.NextCursor, nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	var second feed.Page
	if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
		t.Fatalf("decoding second page: %v", err)
	}
	if len(second.Posts) != 2 || second.NextCursor != "" {
		t.Errorf("second page = %d posts, cursor %q; want 2 posts and no cursor", len(second.Posts), second.NextCursor)
	}
}

func TestProfileFeedEndpoint(t *testing.T) {
	store := &memStore{}
	seedPosts(store, "u1", "alice", 2)
	seedPosts(store, "u2", "bob", 1)
	mux := newTestMux(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/alice/posts", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	var page feed.Page
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("response is not a page: %v", err)
	}
	if len(page.Posts) != 2 {
		t.Errorf("got %d posts, want alice's 2", len(page.Posts))
	}
}

func TestSearchEndpoint(t *testing.T) {
	store := &memStore{}
	mux := newTestMux(store)

	// Create through the handler so the post gets indexed.
	body := strings.NewReader(`{"content":"a post about lighthouses"}`)
	req := asViewer(httptest.NewRequest(http.MethodPost, "/api/v1/posts", body), "u1", "alice")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201; body: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/search?q=lighthouses", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	var page feed.Page
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("response is not a page: %v", err)
	}
	if len(page.Posts) != 1 {
		t.Errorf("got %d posts, want 1", len(page.Posts))
	}
}

func TestSearchEndpointRequiresQuery(t *testing.T) {
	mux := newTestMux(&memStore{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSinglePostEndpointNotFound(t *testing.T) {
	mux := newTestMux(&memStore{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/posts/nope", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCreatePostEndpoint(t *testing.T) {
	mux := newTestMux(&memStore{})

	// Anonymous writes are rejected.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts", strings.NewReader(`{"content":"hi"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous create status = %d, want 401", rec.Code)
	}

	// Malformed JSON is a 400.
	req = asViewer(httptest.NewRequest(http.MethodPost, "/api/v1/posts", strings.NewReader(`{not json`)), "u1", "alice")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad JSON status = %d, want 400", rec.Code)
	}

	req = asViewer(httptest.NewRequest(http.MethodPost, "/api/v1/posts", strings.NewReader(`{"content":"hello feed"}`)), "u1", "alice")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201; body: %s", rec.Code, rec.Body.String())
	}
	var post feed.Post
	if err := json.Unmarshal(rec.Body.Bytes(), &post); err != nil {
		t.Fatalf("response is not a post: %v", err)
	}
	if post.ID == "" || post.Content != "hello feed" {
		t.Errorf("created post = %+v", post)
	}
}

func TestDeletePostEndpointOwnership(t *testing.T) {
	store := &memStore{}
	seedPosts(store, "u1", "alice", 1)
	mux := newTestMux(store)
	postID := store.posts[0].ID

	req := asViewer(httptest.NewRequest(http.MethodDelete, "/api/v1/posts/"+postID, nil), "u2", "bob")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("non-owner delete status = %d, want 401", rec.Code)
	}

	req = asViewer(httptest.NewRequest(http.MethodDelete, "/api/v1/posts/"+postID, nil), "u1", "alice")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("owner delete status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
}

func TestToggleEndpoints(t *testing.T) {
	store := &memStore{}
	seedPosts(store, "u1", "alice", 1)
	mux := newTestMux(store)
	postID := store.posts[0].ID

	for _, action := range []string{"like", "echo"} {
		req := asViewer(httptest.NewRequest(http.MethodPost, "/api/v1/posts/"+postID+"/"+action, nil), "u2", "bob")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200; body: %s", action, rec.Code, rec.Body.String())
		}
	}
}

func TestCommentEndpoints(t *testing.T) {
	store := &memStore{}
	seedPosts(store, "u1", "alice", 1)
	mux := newTestMux(store)
	postID := store.posts[0].ID

	req := asViewer(httptest.NewRequest(http.MethodPost, "/api/v1/posts/"+postID+"/comments", strings.NewReader(`{"content":"nice"}`)), "u2", "bob")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create comment status = %d, want 201; body: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/posts/"+postID+"/comments", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list comments status = %d, want 200", rec.Code)
	}
	var body struct {
		Comments []feed.Comment `json:"comments"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding comments: %v", err)
	}
	if len(body.Comments) != 1 || body.Comments[0].Content != "nice" {
		t.Errorf("comments = %+v, want the one created", body.Comments)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := ratelimit.New(3, time.Minute)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RateLimit(limiter)(inner)

	for i := 0; i < 3; i++ {
		req := asViewer(httptest.NewRequest(http.MethodPost, "/api/v1/posts", nil), "u1", "alice")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("write %d status = %d, want 200", i, rec.Code)
		}
	}

	req := asViewer(httptest.NewRequest(http.MethodPost, "/api/v1/posts", nil), "u1", "alice")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("over-limit write status = %d, want 429", rec.Code)
	}

	// Reads bypass the limiter entirely.
	req = asViewer(httptest.NewRequest(http.MethodGet, "/api/v1/feed", nil), "u1", "alice")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("read status = %d, want 200", rec.Code)
	}

	// A different viewer has a fresh bucket.
	req = asViewer(httptest.NewRequest(http.MethodPost, "/api/v1/posts", nil), "u2", "bob")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("other viewer write status = %d, want 200", rec.Code)
	}
}
