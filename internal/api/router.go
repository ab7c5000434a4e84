package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/helpmh2023/sekretos-hunt-quest/internal/api/middleware"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/handlers"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/identity"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/store"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, h *handlers.Handler, provider *identity.Provider, db store.DataStore) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(8 * 1024)) // 8KB max body
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// CORS - the client is a separate static frontend
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	auth := middleware.NewAuthMiddleware(provider, db)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)
	r.Get("/riddle", h.Riddle)
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Get("/leaderboard", h.Leaderboard)
	r.Get("/missions", h.Missions)
	r.Get("/milestones", h.Milestones)

	// Authenticated routes (require session token)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Post("/logout", h.Logout)
		r.Get("/profile", h.Profile)
		r.Post("/missions/{id}/complete", h.CompleteMission)
		r.Get("/feed", h.Feed)
		r.Post("/feed", h.Transmit)
		r.Get("/feed/stream", h.FeedStream)
	})

	return r
}
