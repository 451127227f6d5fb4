package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/echo-social/echonet/internal/feed"
	apperrors "github.com/echo-social/echonet/pkg/errors"
	"github.com/echo-social/echonet/pkg/logger"
)

// Handler implements the HTTP endpoints over the feed service.
type Handler struct {
	svc    *feed.Service
	logger *slog.Logger
}

func NewHandler(svc *feed.Service) *Handler {
	return &Handler{
		svc:    svc,
		logger: slog.Default().With("component", "api-handler"),
	}
}

// ---------- Read handlers ----------

func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	onlyFollowing := r.URL.Query().Get("only_following") == "true"

	page, err := h.svc.Feed(ctx, viewerID(ctx), onlyFollowing, h.limit(r), r.URL.Query().Get("cursor"))
	if err != nil {
		h.handleError(w, r, err, "feed fetch failed")
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

func (h *Handler) ProfileFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := r.PathValue("username")

	page, err := h.svc.ProfileFeed(ctx, viewerID(ctx), username, h.limit(r), r.URL.Query().Get("cursor"))
	if err != nil {
		h.handleError(w, r, err, "profile feed fetch failed")
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	term := r.URL.Query().Get("q")
	if term == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	page, err := h.svc.Search(ctx, viewerID(ctx), term, h.limit(r), r.URL.Query().Get("cursor"))
	if err != nil {
		h.handleError(w, r, err, "search failed")
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

func (h *Handler) SinglePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	post, err := h.svc.SinglePost(ctx, viewerID(ctx), r.PathValue("id"))
	if err != nil {
		h.handleError(w, r, err, "post fetch failed")
		return
	}
	h.writeJSON(w, http.StatusOK, post)
}

func (h *Handler) Comments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.svc.Comments(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleError(w, r, err, "comment fetch failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

// ---------- Write handlers ----------

type postRequest struct {
	Content   string   `json:"content"`
	MediaURLs []string `json:"media_urls"`
}

func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	post, err := h.svc.CreatePost(ctx, viewerID(ctx), req.Content, req.MediaURLs)
	if err != nil {
		h.handleError(w, r, err, "post creation failed")
		return
	}
	h.writeJSON(w, http.StatusCreated, post)
}

func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.svc.DeletePost(ctx, viewerID(ctx), r.PathValue("id")); err != nil {
		h.handleError(w, r, err, "post deletion failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *Handler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	added, err := h.svc.ToggleLike(ctx, viewerID(ctx), r.PathValue("id"))
	if err != nil {
		h.handleError(w, r, err, "like toggle failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"added_like": added})
}

func (h *Handler) ToggleEcho(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	added, err := h.svc.ToggleEcho(ctx, viewerID(ctx), r.PathValue("id"))
	if err != nil {
		h.handleError(w, r, err, "echo toggle failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"added_echo": added})
}

func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	comment, err := h.svc.CreateComment(ctx, viewerID(ctx), r.PathValue("id"), req.Content, req.MediaURLs)
	if err != nil {
		h.handleError(w, r, err, "comment creation failed")
		return
	}
	h.writeJSON(w, http.StatusCreated, comment)
}

func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.svc.DeleteComment(ctx, viewerID(ctx), r.PathValue("id")); err != nil {
		h.handleError(w, r, err, "comment deletion failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// ---------- Helpers ----------

func viewerID(ctx context.Context) string {
	if viewer := ViewerFrom(ctx); viewer != nil {
		return viewer.ID
	}
	return ""
}

func (h *Handler) limit(r *http.Request) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed < 1 {
		return 0
	}
	return parsed
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := apperrors.HTTPStatusCode(err)
	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error(message, "method", r.Method, "path", r.URL.Path, "error", err)
		h.writeError(w, status, message)
		return
	}
	log.Debug(message, "method", r.Method, "path", r.URL.Path, "error", err)
	h.writeError(w, status, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
