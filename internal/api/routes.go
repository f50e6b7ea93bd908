package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig carries the per-user quotas.
type RouterConfig struct {
	RecommendationLimit RateSpec
	SearchLimit         RateSpec
}

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	r.Handle("/metrics", promhttp.Handler())

	// Recommendations keep their unprefixed public paths.
	r.Route("/recommendation", func(r chi.Router) {
		r.Use(AuthMiddleware(h.apiKey))
		r.Use(IdentityMiddleware)
		r.Use(UserRateLimit(cfg.RecommendationLimit))

		r.Get("/movie", h.RecommendMovie)
		r.Get("/tvshow", h.RecommendTvShow)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.apiKey))

			r.Get("/provider", h.GetProvider)
			r.Post("/provider/{provider}", h.SetProvider)

			// Caller-scoped routes
			r.Group(func(r chi.Router) {
				r.Use(IdentityMiddleware)

				r.Group(func(r chi.Router) {
					r.Use(UserRateLimit(cfg.SearchLimit))
					r.Get("/search/movies", h.SearchMovies)
					r.Get("/search/tvShows", h.SearchTvShows)
				})

				r.Get("/user/activity", h.ListActivity)
				r.Get("/user/{kind}", h.GetProfile)
				r.Post("/user/{kind}/favourites", h.AddFavourites)
				r.Post("/user/{kind}/history", h.AddToHistory)
			})
		})
	})

	return r
}
