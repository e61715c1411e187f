package model

import "time"

// PromptType categorizes language model requests in the usage ledger.
type PromptType string

const (
	PromptSurveyGeneration       PromptType = "survey_generation"
	PromptFollowUpGeneration     PromptType = "follow_up_generation"
	PromptSentimentAnalysis      PromptType = "sentiment_analysis"
	PromptSummaryGeneration      PromptType = "summary_generation"
	PromptQuestionGeneration     PromptType = "question_generation"
	PromptKnowledgeBaseResponse  PromptType = "knowledge_base_response"
	PromptResponseAnalysis       PromptType = "response_analysis"
	PromptKnowledgeRetrieval     PromptType = "knowledge_retrieval"
	PromptBatchSentimentAnalysis PromptType = "batch_sentiment_analysis"
)

// TokenBudget is the per-user ceiling configuration. It is read-only at
// runtime; the core never mutates it.
type TokenBudget struct {
	DailyLimit       int     `json:"dailyLimit"`
	MonthlyLimit     int     `json:"monthlyLimit"`
	PerRequestLimit  int     `json:"perRequestLimit"`
	AlertThreshold   float64 `json:"alertThreshold"`
	CostPer1KTokens  float64 `json:"costPer1kTokens"`
}

// DefaultTokenBudget mirrors the service defaults.
func DefaultTokenBudget() TokenBudget {
	return TokenBudget{
		DailyLimit:      50000,
		MonthlyLimit:    1000000,
		PerRequestLimit: 4000,
		AlertThreshold:  0.8,
		CostPer1KTokens: 0.002,
	}
}

// TokenUsageRecord is one append-only ledger entry for an accepted language
// model request.
type TokenUsageRecord struct {
	ID                  string     `json:"id" bson:"_id,omitempty"`
	UserID              string     `json:"userId" bson:"userId"`
	Timestamp           time.Time  `json:"timestamp" bson:"timestamp"`
	PromptType          PromptType `json:"promptType" bson:"promptType"`
	InputTokens         int        `json:"inputTokens" bson:"inputTokens"`
	OutputTokens        int        `json:"outputTokens" bson:"outputTokens"`
	TotalTokens         int        `json:"totalTokens" bson:"totalTokens"`
	Cost                float64    `json:"cost" bson:"cost"`
	TokensSaved         int        `json:"tokensSaved,omitempty" bson:"tokensSaved,omitempty"`
	OptimizationApplied bool       `json:"optimizationApplied" bson:"optimizationApplied"`
}

// BudgetDecision is the result of a budget check.
type BudgetDecision struct {
	WithinBudget     bool    `json:"withinBudget"`
	DailyUsage       int     `json:"dailyUsage"`
	MonthlyUsage     int     `json:"monthlyUsage"`
	DailyRemaining   int     `json:"dailyRemaining"`
	MonthlyRemaining int     `json:"monthlyRemaining"`
	CostEstimate     float64 `json:"costEstimate"`
}

// UsageBucket aggregates tokens and cost for one analytics dimension.
type UsageBucket struct {
	Tokens   int     `json:"tokens"`
	Cost     float64 `json:"cost"`
	Requests int     `json:"requests,omitempty"`
}

// UsageAnalytics is the rollup served by the usage endpoint.
type UsageAnalytics struct {
	TotalTokens         int                    `json:"totalTokens"`
	TotalCost           float64                `json:"totalCost"`
	TotalRequests       int                    `json:"totalRequests"`
	DailyBreakdown      map[string]UsageBucket `json:"dailyBreakdown"`
	TypeBreakdown       map[string]UsageBucket `json:"typeBreakdown"`
	CacheHitRate        float64                `json:"cacheHitRate"`
	OptimizedRequests   int                    `json:"optimizedRequests"`
	OptimizationSavings int                    `json:"optimizationSavings"`
}

// OptimizationInsight is one usage recommendation derived from analytics.
type OptimizationInsight struct {
	Type             string `json:"type"`
	Message          string `json:"message"`
	Recommendation   string `json:"recommendation"`
	PotentialSavings string `json:"potentialSavings"`
}
