package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/moeJEE/llm-phone-feedback-agent/internal/cache"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/model"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/repository"
)

// TokenCounter counts tokens with a cl100k_base encoder, falling back to the
// chars/4 approximation when the encoding data is unavailable (offline).
type TokenCounter struct {
	encoder *tiktoken.Tiktoken
}

func NewTokenCounter() *TokenCounter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		log.Printf("tiktoken unavailable, falling back to approximate counting: %v", err)
		enc = nil
	}
	return &TokenCounter{encoder: enc}
}

func (c *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.encoder != nil {
		return len(c.encoder.Encode(text, nil, nil))
	}
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// TokenService is the budget guard and usage ledger front. Budget checks
// prefer the Redis counters and fall back to a Mongo aggregation on a miss;
// a check that errors fails open so a broken ledger never blocks the user
// interaction.
type TokenService struct {
	usage   repository.UsageRepo
	counter *TokenCounter
	cached  cache.UsageCache
	budget  model.TokenBudget
}

func NewTokenService(usage repository.UsageRepo, cached cache.UsageCache, counter *TokenCounter, budget model.TokenBudget) *TokenService {
	return &TokenService{
		usage:   usage,
		counter: counter,
		cached:  cached,
		budget:  budget,
	}
}

func (s *TokenService) Count(text string) int {
	return s.counter.Count(text)
}

// CheckBudget decides whether a request estimated at estimatedTokens may
// proceed for this user.
func (s *TokenService) CheckBudget(ctx context.Context, userID string, estimatedTokens int) (*model.BudgetDecision, error) {
	daily, monthly, err := s.currentUsage(ctx, userID)
	if err != nil {
		log.Printf("Budget check failed for %s, allowing request: %v", userID, err)
		return &model.BudgetDecision{WithinBudget: true}, nil
	}

	decision := &model.BudgetDecision{
		WithinBudget: daily+estimatedTokens <= s.budget.DailyLimit &&
			monthly+estimatedTokens <= s.budget.MonthlyLimit &&
			estimatedTokens <= s.budget.PerRequestLimit,
		DailyUsage:       daily,
		MonthlyUsage:     monthly,
		DailyRemaining:   max(0, s.budget.DailyLimit-daily),
		MonthlyRemaining: max(0, s.budget.MonthlyLimit-monthly),
		CostEstimate:     float64(estimatedTokens) / 1000 * s.budget.CostPer1KTokens,
	}
	return decision, nil
}

func (s *TokenService) currentUsage(ctx context.Context, userID string) (int, int, error) {
	if s.cached != nil {
		daily, errD := s.cached.DayUsage(ctx, userID)
		monthly, errM := s.cached.MonthUsage(ctx, userID)
		if errD == nil && errM == nil && daily >= 0 && monthly >= 0 {
			return daily, monthly, nil
		}
	}

	now := time.Now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	daily, err := s.usage.SumSince(ctx, userID, startOfDay)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum daily usage: %w", err)
	}
	monthly, err := s.usage.SumSince(ctx, userID, startOfMonth)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum monthly usage: %w", err)
	}

	if s.cached != nil {
		if err := s.cached.Prime(ctx, userID, daily, monthly); err != nil {
			log.Printf("Failed to prime usage counters for %s: %v", userID, err)
		}
	}
	return daily, monthly, nil
}

// RecordUsage appends a ledger entry and bumps the rolling counters.
func (s *TokenService) RecordUsage(ctx context.Context, record *model.TokenUsageRecord) {
	record.Cost = float64(record.InputTokens+record.OutputTokens) / 1000 * s.budget.CostPer1KTokens
	if err := s.usage.Append(ctx, record); err != nil {
		log.Printf("Failed to record token usage for %s: %v", record.UserID, err)
		return
	}
	if s.cached != nil {
		if err := s.cached.Increment(ctx, record.UserID, record.TotalTokens); err != nil {
			log.Printf("Failed to increment usage counters for %s: %v", record.UserID, err)
		}
	}
}

var questionPromptReplacements = []struct{ old, new string }{
	{"Please generate a question that", "Generate a question that"},
	{"Could you please", "Please"},
	{"I would like you to", ""},
	{"Based on the information provided", "Based on:"},
}

var analysisPromptReplacements = []struct{ old, new string }{
	{"Analyze the following response and provide", "Analyze and provide"},
	{"Please provide a detailed analysis", "Analyze"},
	{"sentiment analysis", "sentiment"},
	{"comprehensive", ""},
}

// OptimizePrompt applies deterministic text simplifications that shrink the
// token footprint without changing the request's meaning. Returns the
// optimized prompt and its token count.
func (s *TokenService) OptimizePrompt(prompt string, promptType model.PromptType) (string, int) {
	optimized := strings.Join(strings.Fields(prompt), " ")

	var replacements []struct{ old, new string }
	switch promptType {
	case model.PromptQuestionGeneration:
		replacements = questionPromptReplacements
	case model.PromptResponseAnalysis:
		replacements = analysisPromptReplacements
	}
	for _, r := range replacements {
		optimized = strings.ReplaceAll(optimized, r.old, r.new)
	}
	optimized = strings.TrimSpace(optimized)

	return optimized, s.counter.Count(optimized)
}

// Analytics aggregates the user's ledger over the trailing window into the
// rollup served by the usage endpoint.
func (s *TokenService) Analytics(ctx context.Context, userID string, days int) (*model.UsageAnalytics, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)
	records, err := s.usage.Since(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch usage records: %w", err)
	}

	analytics := &model.UsageAnalytics{
		DailyBreakdown: map[string]model.UsageBucket{},
		TypeBreakdown:  map[string]model.UsageBucket{},
		TotalRequests:  len(records),
	}

	for _, rec := range records {
		analytics.TotalTokens += rec.TotalTokens
		analytics.TotalCost += rec.Cost

		day := rec.Timestamp.Format("2006-01-02")
		d := analytics.DailyBreakdown[day]
		d.Tokens += rec.TotalTokens
		d.Cost += rec.Cost
		analytics.DailyBreakdown[day] = d

		t := analytics.TypeBreakdown[string(rec.PromptType)]
		t.Tokens += rec.TotalTokens
		t.Cost += rec.Cost
		t.Requests++
		analytics.TypeBreakdown[string(rec.PromptType)] = t

		if rec.OptimizationApplied {
			analytics.OptimizedRequests++
		}
		analytics.OptimizationSavings += rec.TokensSaved
	}

	if len(records) > 0 {
		analytics.CacheHitRate = float64(analytics.OptimizedRequests) / float64(len(records))
	}
	return analytics, nil
}

// Insights derives optimization recommendations from the last 30 days of
// usage.
func (s *TokenService) Insights(ctx context.Context, userID string) ([]model.OptimizationInsight, error) {
	analytics, err := s.Analytics(ctx, userID, 30)
	if err != nil {
		return nil, err
	}

	var insights []model.OptimizationInsight
	if float64(analytics.TotalTokens) > float64(s.budget.DailyLimit)*s.budget.AlertThreshold {
		insights = append(insights, model.OptimizationInsight{
			Type:             "high_usage_warning",
			Message:          "Token usage is approaching daily limits",
			Recommendation:   "Consider optimizing prompts or increasing budget",
			PotentialSavings: "20-40%",
		})
	}
	if analytics.TypeBreakdown[string(model.PromptQuestionGeneration)].Tokens > 1000 {
		insights = append(insights, model.OptimizationInsight{
			Type:             "prompt_optimization",
			Message:          "Question generation prompts can be optimized",
			Recommendation:   "Use shorter, more direct prompts",
			PotentialSavings: "15-25%",
		})
	}
	return insights, nil
}
