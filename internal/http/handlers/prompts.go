package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"vidforge/internal/middleware"
)

type enhanceRequest struct {
	Prompt string `json:"prompt"`
}

// PromptsEnhance improves a prompt best-effort. The caller always gets a
// usable prompt back; enhancement failures degrade to the original text.
func (a *App) PromptsEnhance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req enhanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt required")
		return
	}

	improved, err := a.Enhancer.Enhance(r.Context(), req.Prompt)
	if err != nil || strings.TrimSpace(improved) == "" {
		improved = req.Prompt
	}
	a.json(w, http.StatusOK, map[string]string{"prompt": improved})
}
