package config

import (
	"os"
	"strconv"

	"github.com/moeJEE/llm-phone-feedback-agent/internal/model"
)

// GeminiModels defines which Gemini models to use for different tasks
type GeminiModels struct {
	// Chat answers knowledge base questions (needs to be fast)
	Chat string `json:"chat"`

	// Enhance rewrites search queries from conversation history (fast, cheap)
	Enhance string `json:"enhance"`

	// Compress summarizes retrieved chunks into a token allowance
	Compress string `json:"compress"`

	// Sentiment scores completed survey answers (background, not blocking)
	Sentiment string `json:"sentiment"`

	// Embedding generates query embeddings for vector search
	Embedding string `json:"embedding"`
}

// AIConfig holds all AI-related configuration
type AIConfig struct {
	APIKey    string            `json:"-"` // Never serialize
	Models    GeminiModels      `json:"models"`
	TimeoutMS int               `json:"timeoutMs"`
	Budget    model.TokenBudget `json:"budget"`
}

// DefaultAIConfig returns the default AI configuration
func DefaultAIConfig() *AIConfig {
	budget := model.DefaultTokenBudget()
	budget.DailyLimit = getEnvInt("TOKEN_DAILY_LIMIT", budget.DailyLimit)
	budget.MonthlyLimit = getEnvInt("TOKEN_MONTHLY_LIMIT", budget.MonthlyLimit)
	budget.PerRequestLimit = getEnvInt("TOKEN_PER_REQUEST_LIMIT", budget.PerRequestLimit)

	return &AIConfig{
		APIKey: os.Getenv("GEMINI_API_KEY"),
		Models: GeminiModels{
			// Fast models for the request path
			Chat:     getEnvOrDefault("GEMINI_MODEL_CHAT", "gemini-2.0-flash"),
			Enhance:  getEnvOrDefault("GEMINI_MODEL_ENHANCE", "gemini-2.0-flash"),
			Compress: getEnvOrDefault("GEMINI_MODEL_COMPRESS", "gemini-2.0-flash"),

			// Background scoring can afford a slower model
			Sentiment: getEnvOrDefault("GEMINI_MODEL_SENTIMENT", "gemini-2.0-flash"),
			Embedding: getEnvOrDefault("GEMINI_MODEL_EMBEDDING", "text-embedding-004"),
		},
		TimeoutMS: getEnvInt("AI_TIMEOUT_MS", 10000),
		Budget:    budget,
	}
}

// IsEnabled returns true if the AI API is configured
func (c *AIConfig) IsEnabled() bool {
	return c.APIKey != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}
