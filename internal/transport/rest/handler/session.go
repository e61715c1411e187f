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

// SessionHandler handles survey session endpoints
type SessionHandler struct {
	convSvc *service.ConversationService
	knowSvc *service.KnowledgeService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(convSvc *service.ConversationService, knowSvc *service.KnowledgeService) *SessionHandler {
	return &SessionHandler{
		convSvc: convSvc,
		knowSvc: knowSvc,
	}
}

// InitiateRequest is the request body for starting a survey conversation
type InitiateRequest struct {
	SurveyID string        `json:"surveyId"`
	Contact  string        `json:"contact"`
	Channel  model.Channel `json:"channel"`
}

// Initiate handles POST /v1/sessions. It starts a survey for a contact.
func (h *SessionHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req InitiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SurveyID == "" || req.Contact == "" {
		writeError(w, http.StatusBadRequest, "surveyId and contact are required")
		return
	}
	if req.Channel == "" {
		req.Channel = model.ChannelWhatsApp
	}

	session, err := h.convSvc.Initiate(r.Context(), req.SurveyID, req.Contact, req.Channel)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSurveyNotFound):
			writeError(w, http.StatusNotFound, "survey not found")
		case errors.Is(err, service.ErrSurveyNotActive):
			writeError(w, http.StatusConflict, "survey is not active")
		case errors.Is(err, service.ErrSessionExists):
			writeError(w, http.StatusConflict, "contact already has an active session")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

// Results handles GET /v1/sessions/{sessionId}. It returns session state
// with the survey definition for reporting.
func (h *SessionHandler) Results(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	session, survey, err := h.convSvc.Results(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if session == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session": session,
		"survey":  survey,
	})
}

// StartCallRequest is the request body for opening a knowledge-base call
type StartCallRequest struct {
	Contact         string `json:"contact"`
	KnowledgeBaseID string `json:"knowledgeBaseId"`
}

// StartCall handles POST /v1/calls. It opens a knowledge-base-only call for
// a contact, superseding any active survey session.
func (h *SessionHandler) StartCall(w http.ResponseWriter, r *http.Request) {
	hostID := middleware.GetHostID(r.Context())
	if hostID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req StartCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Contact == "" {
		writeError(w, http.StatusBadRequest, "contact is required")
		return
	}

	id, err := h.knowSvc.StartCall(r.Context(), hostID, req.Contact, req.KnowledgeBaseID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"callId": id})
}
