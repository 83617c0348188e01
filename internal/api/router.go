package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Endgame-Tech/choma-sub014/internal/api/handlers"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterConfig struct {
	JWTSecret      []byte
	AllowedOrigins []string
	Logger         *slog.Logger
	Now            func() time.Time
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(svc handlers.TimelineService, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	timelines := &handlers.TimelineHandler{Service: svc, Now: cfg.Now}

	r.Get("/health", handlers.Health)

	r.Route("/subscriptions/{id}", func(r chi.Router) {
		r.Use(authMiddleware(cfg.JWTSecret))

		r.Get("/timeline", timelines.Get)
		r.Put("/slots/{date}/{mealTime}/status", timelines.UpdateSlot)
		r.Put("/days/{date}/status", timelines.UpdateDay)
		r.Post("/sync", timelines.Sync)
	})

	return r
}
