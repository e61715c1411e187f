package handler

import (
	"net/http"
	"strconv"

	"github.com/moeJEE/llm-phone-feedback-agent/internal/service"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/transport/rest/middleware"
)

// UsageHandler serves token usage analytics for the management surface
type UsageHandler struct {
	tokenSvc *service.TokenService
}

// NewUsageHandler creates a new usage handler
func NewUsageHandler(tokenSvc *service.TokenService) *UsageHandler {
	return &UsageHandler{tokenSvc: tokenSvc}
}

// Analytics handles GET /v1/usage/analytics?days=7
func (h *UsageHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	hostID := middleware.GetHostID(r.Context())
	if hostID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 90 {
			days = n
		}
	}

	analytics, err := h.tokenSvc.Analytics(r.Context(), hostID, days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, analytics)
}

// Insights handles GET /v1/usage/insights
func (h *UsageHandler) Insights(w http.ResponseWriter, r *http.Request) {
	hostID := middleware.GetHostID(r.Context())
	if hostID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	insights, err := h.tokenSvc.Insights(r.Context(), hostID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"insights": insights})
}

// Budget handles GET /v1/usage/budget?estimate=1000
func (h *UsageHandler) Budget(w http.ResponseWriter, r *http.Request) {
	hostID := middleware.GetHostID(r.Context())
	if hostID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	estimate := 0
	if v := r.URL.Query().Get("estimate"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			estimate = n
		}
	}

	decision, err := h.tokenSvc.CheckBudget(r.Context(), hostID, estimate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, decision)
}
