package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	appconfig "github.com/moeJEE/llm-phone-feedback-agent/config"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/cache"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/config"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/llm"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/repository"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/service"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/transport/rest"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/vector"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	ctx := context.Background()
	cfg := appconfig.Load()

	// AI config
	aiConfig := config.DefaultAIConfig()
	log.Printf("AI Config:")
	log.Printf("  Chat:      %s", aiConfig.Models.Chat)
	log.Printf("  Enhance:   %s", aiConfig.Models.Enhance)
	log.Printf("  Compress:  %s", aiConfig.Models.Compress)
	log.Printf("  Sentiment: %s", aiConfig.Models.Sentiment)
	log.Printf("  Embedding: %s", aiConfig.Models.Embedding)
	if aiConfig.IsEnabled() {
		log.Println("  API Key:   configured ✓")
	} else {
		log.Println("  API Key:   NOT SET (using mock model)")
	}

	// MongoDB connection
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(ctx)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB:", err)
	}
	log.Println("Connected to MongoDB")

	db := mongoClient.Database(cfg.MongoDB)

	// Redis connection
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	defer rdb.Close()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatal("Failed to ping Redis:", err)
	}
	log.Println("Connected to Redis")

	// Language model and embedder
	var lm llm.LanguageModel
	var embedder llm.Embedder
	if aiConfig.IsEnabled() {
		gemini, err := llm.NewGeminiClient(ctx, aiConfig)
		if err != nil {
			log.Fatal("Failed to create Gemini client:", err)
		}
		defer gemini.Close()
		lm = gemini
		embedder = gemini
	} else {
		lm = llm.NewMockModel()
		embedder = llm.NewMockEmbedder()
	}

	// Repositories
	surveyRepo := repository.NewSurveyRepo(db)
	sessionRepo := repository.NewSessionRepo(db)
	documentRepo := repository.NewDocumentRepo(db)
	chunkRepo := repository.NewChunkRepo(db)
	callRepo := repository.NewCallRepo(db)
	usageRepo := repository.NewUsageRepo(db)

	// Caches
	sessionCache := cache.NewSessionCache(rdb)
	usageCache := cache.NewUsageCache(rdb)

	// Services
	authSvc := service.NewAuthService()
	surveySvc := service.NewSurveyService(surveyRepo)
	tokenSvc := service.NewTokenService(usageRepo, usageCache, service.NewTokenCounter(), aiConfig.Budget)
	index := vector.NewIndex(chunkRepo, embedder)
	retriever := service.NewRetriever(documentRepo, index, lm, aiConfig, tokenSvc)
	sentimentSvc := service.NewSentimentService(lm, aiConfig, sessionRepo, tokenSvc)
	runner := service.NewRunner()
	messenger := service.NewLogMessenger()
	convSvc := service.NewConversationService(surveyRepo, sessionRepo, sessionCache, messenger, sentimentSvc, runner)
	knowSvc := service.NewKnowledgeService(retriever, lm, aiConfig, tokenSvc, callRepo, convSvc)
	classifier := service.NewClassifier(sessionRepo, callRepo, sessionCache)

	// Router
	container := &rest.Container{
		AuthService:         authSvc,
		SurveyService:       surveySvc,
		ConversationService: convSvc,
		KnowledgeService:    knowSvc,
		TokenService:        tokenSvc,
		Classifier:          classifier,
		Messenger:           messenger,
	}
	router := rest.NewRouter(container)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.HTTPPort)
		log.Println("Endpoints:")
		log.Println("  POST /v1/auth/login")
		log.Println("  POST/GET /v1/surveys")
		log.Println("  POST /v1/sessions")
		log.Println("  POST /v1/calls")
		log.Println("  GET  /v1/usage/analytics")
		log.Println("  POST /webhooks/whatsapp/inbound")
		log.Println("  POST /webhooks/voice/input")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ListenAndServe:", err)
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	// Let in-flight sentiment jobs finish
	runner.Wait()

	log.Println("Server exited")
}
