package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"vidforge/internal/domain"
	"vidforge/internal/infra"
	"vidforge/internal/orchestrator"
	"vidforge/internal/pricing"
	"vidforge/internal/providers/prompt"
)

// App bundles the collaborators the HTTP handlers need.
type App struct {
	Logger   infra.Logger
	Hub      *orchestrator.Hub
	Pricing  *pricing.Model
	Enhancer prompt.Enhancer
	Jobs     domain.JobRepository
}

func NewApp(logger infra.Logger, hub *orchestrator.Hub, model *pricing.Model, enhancer prompt.Enhancer, jobs domain.JobRepository) *App {
	return &App{
		Logger:   logger,
		Hub:      hub,
		Pricing:  model,
		Enhancer: enhancer,
		Jobs:     jobs,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, msg string) {
	a.json(w, code, map[string]any{
		"error": map[string]string{"code": errCode, "message": msg},
	})
}

// domainError maps typed domain failures onto HTTP responses.
func (a *App) domainError(w http.ResponseWriter, err error) {
	if gerr, ok := domain.AsGenerationError(err); ok {
		a.json(w, statusForCode(gerr.Code), map[string]any{"error": gerr})
		return
	}
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrEntryNotFound):
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, domain.ErrNoActiveJob):
		a.error(w, http.StatusNotFound, "not_found", "no active job")
	default:
		a.Logger.Error().Err(err).Msg("handlers: unexpected error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func statusForCode(code domain.ErrorCode) int {
	switch code {
	case domain.CodeValidation:
		return http.StatusBadRequest
	case domain.CodePermission:
		return http.StatusPaymentRequired
	case domain.CodeConcurrentGeneration:
		return http.StatusConflict
	case domain.CodeCancellationRejected:
		return http.StatusConflict
	case domain.CodeContentPolicy:
		return http.StatusUnprocessableEntity
	case domain.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
