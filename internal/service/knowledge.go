package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/moeJEE/llm-phone-feedback-agent/internal/config"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/llm"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/model"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/repository"
)

const (
	knowledgeContextBudget = 2000
	knowledgeFallback      = "I'm sorry, I couldn't find relevant information to answer your question. Please try rephrasing or ask something else."
	knowledgeErrorReply    = "I'm sorry, something went wrong while looking that up. Please try again in a moment."
)

const knowledgeSystem = "You are a helpful assistant answering questions from the provided knowledge base excerpts. " +
	"If the answer is not in the excerpts, clearly say you don't have that information. " +
	"Keep answers concise and suitable for a phone or chat conversation. Do not make up information."

// KnowledgeService answers knowledge-base questions over retrieved context,
// within the owner's token budget, and logs every exchange on the call
// record.
type KnowledgeService struct {
	retriever *Retriever
	lm        llm.LanguageModel
	models    config.GeminiModels
	tokens    *TokenService
	calls     repository.CallRepo
	convs     *ConversationService
}

func NewKnowledgeService(retriever *Retriever, lm llm.LanguageModel, cfg *config.AIConfig, tokens *TokenService, calls repository.CallRepo, convs *ConversationService) *KnowledgeService {
	return &KnowledgeService{
		retriever: retriever,
		lm:        lm,
		models:    cfg.Models,
		tokens:    tokens,
		calls:     calls,
		convs:     convs,
	}
}

// StartCall opens a knowledge-base-only call record for a contact. Any
// active survey session the contact still has is force-closed: the new call
// supersedes it.
func (s *KnowledgeService) StartCall(ctx context.Context, ownerID, contact, knowledgeBaseID string) (string, error) {
	if err := s.convs.AutoComplete(ctx, contact); err != nil {
		log.Printf("Failed to auto-complete superseded session for %s: %v", contact, err)
	}

	call := &model.KnowledgeCall{
		OwnerID:           ownerID,
		Contact:           contact,
		KnowledgeBaseID:   knowledgeBaseID,
		KnowledgeBaseOnly: true,
	}
	id, err := s.calls.Create(ctx, call)
	if err != nil {
		return "", fmt.Errorf("failed to create knowledge call: %w", err)
	}
	return id, nil
}

// Answer responds to a knowledge query on an open call. Budget denial and
// retrieval failure both degrade to a fallback message, never an error to
// the respondent.
func (s *KnowledgeService) Answer(ctx context.Context, call *model.KnowledgeCall, query string) string {
	reply, tokensUsed := s.answer(ctx, call, query)

	event := model.InteractionEvent{
		EventType:   "knowledge_query",
		Description: "knowledge base exchange",
		Query:       query,
		Response:    reply,
		Status:      "answered",
		TokensUsed:  tokensUsed,
		Timestamp:   time.Now(),
	}
	if reply == knowledgeFallback || reply == knowledgeErrorReply {
		event.Status = "fallback"
	}
	if err := s.calls.AppendInteraction(ctx, call.ID, event); err != nil {
		log.Printf("Failed to log interaction on call %s: %v", call.ID, err)
	}

	return reply
}

func (s *KnowledgeService) answer(ctx context.Context, call *model.KnowledgeCall, query string) (string, int) {
	estimate := s.tokens.Count(query) + knowledgeContextBudget
	decision, err := s.tokens.CheckBudget(ctx, call.OwnerID, estimate)
	if err != nil {
		log.Printf("Budget check errored for %s: %v", call.OwnerID, err)
	}

	rc := &model.RetrievalContext{
		UserID:              call.OwnerID,
		KnowledgeBaseID:     call.KnowledgeBaseID,
		ConversationHistory: recentTurns(call),
	}

	var result *model.RetrievalResult
	if decision == nil || decision.WithinBudget {
		result = s.retriever.Retrieve(ctx, query, rc, knowledgeContextBudget, "")
	} else {
		log.Printf("Token budget exceeded for %s (daily remaining %d), skipping retrieval", call.OwnerID, decision.DailyRemaining)
		result = &model.RetrievalResult{}
	}

	if result.Empty() {
		return knowledgeFallback, 0
	}

	prompt := fmt.Sprintf("Knowledge base excerpts:\n\n%s\n\nQuestion: %s", result.Content, query)
	optimized, optTokens := s.tokens.OptimizePrompt(prompt, model.PromptKnowledgeBaseResponse)
	promptSaved := maxInt(s.tokens.Count(prompt)-optTokens, 0)

	completion, err := llm.CompleteWithReasoning(ctx, s.lm, s.models.Chat, knowledgeSystem, optimized)
	if err != nil {
		log.Printf("Knowledge answer generation failed: %v", err)
		return knowledgeErrorReply, result.TokensUsed
	}

	s.tokens.RecordUsage(ctx, &model.TokenUsageRecord{
		UserID:              call.OwnerID,
		PromptType:          model.PromptKnowledgeBaseResponse,
		InputTokens:         completion.InputTokens,
		OutputTokens:        completion.OutputTokens,
		TokensSaved:         result.TokensSaved + promptSaved,
		OptimizationApplied: optimized != prompt || (result.CompressionRatio > 0 && result.CompressionRatio < 1),
	})

	return completion.Output, completion.InputTokens + completion.OutputTokens
}

// recentTurns rebuilds a bounded conversation window from the call's logged
// events for query enhancement.
func recentTurns(call *model.KnowledgeCall) []model.ConversationTurn {
	var turns []model.ConversationTurn
	events := call.Events
	if len(events) > historyWindow {
		events = events[len(events)-historyWindow:]
	}
	for _, e := range events {
		if e.Query != "" {
			turns = append(turns, model.ConversationTurn{Role: "user", Content: e.Query})
		}
		if e.Response != "" {
			turns = append(turns, model.ConversationTurn{Role: "assistant", Content: e.Response})
		}
	}
	return turns
}
