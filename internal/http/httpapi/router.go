package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"vidforge/internal/http/handlers"
	"vidforge/internal/infra"
	"vidforge/internal/middleware"
)

// NewRouter wires the public API surface.
func NewRouter(app *handlers.App, cfg *infra.Config) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP, chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(app.Logger))
	r.Use(middleware.CORS([]string{"http://localhost:3000"}))
	r.Use(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute))

	r.Get("/v1/healthz", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(cfg.JWTSecret))

		r.Route("/v1/generations", func(r chi.Router) {
			r.Post("/", app.GenerationsSubmit)
			r.Get("/", app.GenerationsList)
			r.Post("/cost", app.GenerationsCost)
			r.Get("/{job_id}", app.GenerationStatus)
			r.Post("/{job_id}/cancel", app.GenerationCancel)
			r.Post("/{job_id}/retry", app.GenerationRetry)
		})

		r.Post("/v1/prompts/enhance", app.PromptsEnhance)

		r.Route("/v1/queue", func(r chi.Router) {
			r.Get("/", app.QueueSnapshot)
			r.Post("/pause", app.QueuePause)
			r.Post("/resume", app.QueueResume)
			r.Delete("/", app.QueueClear)
			r.Delete("/{entry_id}", app.QueueRemove)
		})
	})

	return r
}
