package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Arjunan-lab/ChattingApp/internal/api/middleware"
	"github.com/Arjunan-lab/ChattingApp/internal/handlers"
	"github.com/Arjunan-lab/ChattingApp/internal/presence"
	"github.com/Arjunan-lab/ChattingApp/internal/realtime"
	"github.com/Arjunan-lab/ChattingApp/internal/store"
)

// Deps are the services the HTTP surface is built from. Redis is optional;
// without it rate limiting is off.
type Deps struct {
	Logger    zerolog.Logger
	Store     store.DataStore
	Redis     *store.RedisStore
	Verifier  middleware.TokenVerifier
	Presence  *presence.Table
	Hub       *realtime.Hub
	Publisher handlers.Publisher
	Push      http.Handler
	RateLimit middleware.RateLimiterConfig
	// AllowedOrigins feeds CORS. Empty allows any origin.
	AllowedOrigins []string
}

// NewRouter creates and configures the HTTP router.
func NewRouter(d Deps) *chi.Mux {
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
	r.Use(middleware.Logger(d.Logger))
	r.Use(chimw.Recoverer)

	if d.Redis != nil {
		limiter := middleware.NewRateLimiter(d.Redis.Client(), d.Logger, d.RateLimit)
		r.Use(limiter.Middleware)
	} else {
		d.Logger.Warn().Msg("redis not configured, rate limiting disabled")
	}

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(handlers.Deps{
		Store:    d.Store,
		Redis:    d.Redis,
		Presence: d.Presence,
		Hub:      d.Hub,
		Router:   d.Publisher,
		Logger:   d.Logger,
	})
	auth := middleware.NewAuthMiddleware(d.Verifier)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)
	if d.Push != nil {
		// The push transport authenticates from the token query parameter
		// and degrades to an anonymous session instead of rejecting.
		r.Get("/ws", d.Push.ServeHTTP)
	}

	// Authenticated routes (require bearer token)
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Post("/messages", h.SendMessage)
		r.Get("/messages/{userId}", h.GetConversation)
		r.Get("/rooms/{roomId}/messages", h.GetRoomMessages)
		r.Get("/users", h.ListUsers)
		r.Get("/users/{id}", h.GetUser)
	})

	return r
}
