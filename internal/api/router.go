package api

import (
	"net/http"
	"time"

	"github.com/echo-social/echonet/internal/analytics"
	"github.com/echo-social/echonet/internal/auth"
	"github.com/echo-social/echonet/internal/auth/ratelimit"
	"github.com/echo-social/echonet/pkg/health"
	"github.com/echo-social/echonet/pkg/metrics"
	pkgmw "github.com/echo-social/echonet/pkg/middleware"
)

// RouterConfig carries the knobs the route table needs.
type RouterConfig struct {
	RequestTimeout time.Duration
}

// NewRouter builds the full HTTP handler with all routes and middleware.
//
// Route table:
//
//	GET    /api/v1/feed                    → public or follow timeline
//	GET    /api/v1/users/{username}/posts  → profile feed
//	GET    /api/v1/search                  → keyword search
//	GET    /api/v1/posts/{id}              → single post
//	GET    /api/v1/posts/{id}/comments     → comment list
//	POST   /api/v1/posts                   → create post
//	DELETE /api/v1/posts/{id}              → delete post
//	POST   /api/v1/posts/{id}/like         → toggle like
//	POST   /api/v1/posts/{id}/echo         → toggle echo
//	POST   /api/v1/posts/{id}/comments     → create comment
//	DELETE /api/v1/comments/{id}           → delete comment
//	GET    /api/v1/analytics               → usage stats
//	GET    /health/live | /health/ready    → probes (unauthenticated)
//
// Middleware chain (outermost first):
//
//	RequestID → Metrics → Auth → RateLimit → Timeout → handler
func NewRouter(
	h *Handler,
	analyticsH *analytics.Handler,
	validator *auth.Validator,
	limiter *ratelimit.Limiter,
	checker *health.Checker,
	m *metrics.Metrics,
	cfg RouterConfig,
) http.Handler {
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

	if analyticsH != nil {
		mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	}

	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = pkgmw.Timeout(cfg.RequestTimeout)(chain)
	chain = RateLimit(limiter)(chain)
	chain = Auth(validator)(chain)
	if m != nil {
		chain = pkgmw.Metrics(m)(chain)
	}
	chain = pkgmw.RequestID(chain)

	return chain
}
