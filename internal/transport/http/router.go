package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"recipehub/internal/handler"
	"recipehub/internal/httputil"
	authmw "recipehub/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	PostHandler        *handler.PostHandler
	FeedHandler        *handler.FeedHandler
	InteractionHandler *handler.InteractionHandler
	CommentHandler     *handler.CommentHandler
	ProfileHandler     *handler.ProfileHandler
	Verifier           authmw.TokenVerifier
	// RateLimiter guards mutation routes; nil disables limiting.
	RateLimiter *authmw.RateLimiter
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Read routes: the viewer is optional and only drives isLiked.
	r.Group(func(r chi.Router) {
		r.Use(authmw.OptionalAuth(cfg.Verifier))

		r.Get("/posts", cfg.FeedHandler.ListPosts)
		r.Get("/posts/search", cfg.FeedHandler.Search)
		r.Get("/posts/user/{uid}", cfg.FeedHandler.ListByAuthor)
		r.Get("/posts/{id}", cfg.PostHandler.GetByID)
		r.Get("/posts/{id}/comments", cfg.CommentHandler.List)
		r.Get("/comments/{id}/replies", cfg.CommentHandler.Replies)
	})

	// Protected routes - require authentication
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(cfg.Verifier))

		r.Get("/me", cfg.ProfileHandler.Me)

		r.Group(func(r chi.Router) {
			if cfg.RateLimiter != nil {
				r.Use(cfg.RateLimiter.Middleware)
			}

			r.Put("/me/profile", cfg.ProfileHandler.UpdateProfile)

			r.Post("/posts", cfg.PostHandler.Create)
			r.Put("/posts/{id}", cfg.PostHandler.Update)
			r.Delete("/posts/{id}", cfg.PostHandler.Delete)

			r.Post("/posts/{id}/like", cfg.InteractionHandler.Like)
			r.Post("/posts/{id}/share", cfg.InteractionHandler.Share)

			r.Post("/posts/{id}/comment", cfg.CommentHandler.Create)
			r.Delete("/comments/{id}", cfg.CommentHandler.Delete)
			r.Post("/comments/{id}/like", cfg.CommentHandler.Like)
		})
	})

	return r
}
