package rest

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"github.com/moeJEE/llm-phone-feedback-agent/internal/service"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/transport/rest/handler"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/transport/rest/middleware"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService         *service.AuthService
	SurveyService       *service.SurveyService
	ConversationService *service.ConversationService
	KnowledgeService    *service.KnowledgeService
	TokenService        *service.TokenService
	Classifier          *service.Classifier
	Messenger           service.Messenger
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(c.AuthService)
	surveyHandler := handler.NewSurveyHandler(c.SurveyService)
	sessionHandler := handler.NewSessionHandler(c.ConversationService, c.KnowledgeService)
	webhookHandler := handler.NewWebhookHandler(c.Classifier, c.ConversationService, c.KnowledgeService, c.Messenger)
	usageHandler := handler.NewUsageHandler(c.TokenService)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)

	// CORS middleware (apply first)
	r.Use(corsMiddleware)

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes
	v1.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")

	// Provider webhooks (public, called by the channel providers)
	webhooks := r.PathPrefix("/webhooks").Subrouter()
	webhooks.HandleFunc("/whatsapp/inbound", webhookHandler.WhatsAppInbound).Methods("POST")
	webhooks.HandleFunc("/voice/input", webhookHandler.VoiceInput).Methods("POST")
	webhooks.HandleFunc("/status", webhookHandler.Status).Methods("POST")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Host routes (require host auth)
	hostRoutes := v1.NewRoute().Subrouter()
	hostRoutes.Use(authMW.RequireHost)

	hostRoutes.HandleFunc("/surveys", surveyHandler.Create).Methods("POST", "OPTIONS")
	hostRoutes.HandleFunc("/surveys", surveyHandler.List).Methods("GET", "OPTIONS")
	hostRoutes.HandleFunc("/surveys/{surveyId}", surveyHandler.Get).Methods("GET", "OPTIONS")
	hostRoutes.HandleFunc("/surveys/{surveyId}", surveyHandler.Update).Methods("PUT", "OPTIONS")
	hostRoutes.HandleFunc("/surveys/{surveyId}", surveyHandler.Delete).Methods("DELETE", "OPTIONS")
	hostRoutes.HandleFunc("/surveys/{surveyId}/status", surveyHandler.SetStatus).Methods("POST", "OPTIONS")

	hostRoutes.HandleFunc("/sessions", sessionHandler.Initiate).Methods("POST", "OPTIONS")
	hostRoutes.HandleFunc("/sessions/{sessionId}", sessionHandler.Results).Methods("GET", "OPTIONS")
	hostRoutes.HandleFunc("/calls", sessionHandler.StartCall).Methods("POST", "OPTIONS")

	hostRoutes.HandleFunc("/usage/analytics", usageHandler.Analytics).Methods("GET", "OPTIONS")
	hostRoutes.HandleFunc("/usage/insights", usageHandler.Insights).Methods("GET", "OPTIONS")
	hostRoutes.HandleFunc("/usage/budget", usageHandler.Budget).Methods("GET", "OPTIONS")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		allowedMethods := os.Getenv("CORS_ALLOWED_METHODS")
		if allowedMethods == "" {
			allowedMethods = "GET, POST, PUT, DELETE, OPTIONS"
		}

		allowedHeaders := os.Getenv("CORS_ALLOWED_HEADERS")
		if allowedHeaders == "" {
			allowedHeaders = "Content-Type, Authorization"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
		w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
