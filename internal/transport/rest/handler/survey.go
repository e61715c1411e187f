package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/moeJEE/llm-phone-feedback-agent/internal/model"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/service"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/transport/rest/middleware"
)

// SurveyHandler handles survey definition endpoints
type SurveyHandler struct {
	surveySvc *service.SurveyService
}

// NewSurveyHandler creates a new survey handler
func NewSurveyHandler(surveySvc *service.SurveyService) *SurveyHandler {
	return &SurveyHandler{surveySvc: surveySvc}
}

// CreateSurveyRequest is the request body for creating a survey
type CreateSurveyRequest struct {
	Title        string                 `json:"title"`
	Description  string                 `json:"description"`
	IntroMessage string                 `json:"introMessage"`
	OutroMessage string                 `json:"outroMessage"`
	MaxRetries   int                    `json:"maxRetries"`
	Questions    []model.SurveyQuestion `json:"questions"`
}

// Create handles POST /v1/surveys
func (h *SurveyHandler) Create(w http.ResponseWriter, r *http.Request) {
	hostID := middleware.GetHostID(r.Context())
	if hostID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateSurveyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	survey := &model.Survey{
		OwnerID:      hostID,
		Title:        req.Title,
		Description:  req.Description,
		IntroMessage: req.IntroMessage,
		OutroMessage: req.OutroMessage,
		MaxRetries:   req.MaxRetries,
		Questions:    req.Questions,
	}

	id, err := h.surveySvc.Create(r.Context(), survey)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	survey.ID = id

	writeJSON(w, http.StatusCreated, survey)
}

// List handles GET /v1/surveys
func (h *SurveyHandler) List(w http.ResponseWriter, r *http.Request) {
	hostID := middleware.GetHostID(r.Context())
	if hostID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	surveys, err := h.surveySvc.ListByOwner(r.Context(), hostID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"surveys": surveys})
}

// Get handles GET /v1/surveys/{surveyId}
func (h *SurveyHandler) Get(w http.ResponseWriter, r *http.Request) {
	surveyID := mux.Vars(r)["surveyId"]

	survey, err := h.surveySvc.Get(r.Context(), surveyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if survey == nil {
		writeError(w, http.StatusNotFound, "survey not found")
		return
	}

	writeJSON(w, http.StatusOK, survey)
}

// Update handles PUT /v1/surveys/{surveyId}
func (h *SurveyHandler) Update(w http.ResponseWriter, r *http.Request) {
	hostID := middleware.GetHostID(r.Context())
	surveyID := mux.Vars(r)["surveyId"]

	var survey model.Survey
	if err := json.NewDecoder(r.Body).Decode(&survey); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	survey.ID = surveyID

	err := h.surveySvc.Update(r.Context(), hostID, &survey)
	if err != nil {
		writeSurveyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, survey)
}

// SetStatusRequest is the request body for lifecycle transitions
type SetStatusRequest struct {
	Status model.SurveyStatus `json:"status"`
}

// SetStatus handles POST /v1/surveys/{surveyId}/status
func (h *SurveyHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	hostID := middleware.GetHostID(r.Context())
	surveyID := mux.Vars(r)["surveyId"]

	var req SetStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.surveySvc.SetStatus(r.Context(), hostID, surveyID, req.Status); err != nil {
		writeSurveyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": string(req.Status)})
}

// Delete handles DELETE /v1/surveys/{surveyId}
func (h *SurveyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	hostID := middleware.GetHostID(r.Context())
	surveyID := mux.Vars(r)["surveyId"]

	if err := h.surveySvc.Delete(r.Context(), hostID, surveyID); err != nil {
		writeSurveyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func writeSurveyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSurveyNotFound):
		writeError(w, http.StatusNotFound, "survey not found")
	case errors.Is(err, service.ErrNotOwner):
		writeError(w, http.StatusForbidden, "survey does not belong to this host")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
