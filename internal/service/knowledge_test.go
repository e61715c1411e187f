package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moeJEE/llm-phone-feedback-agent/internal/config"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/llm"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/model"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/vector"
)

// capturingModel records every prompt it receives and replies with a fixed
// labeled answer.
type capturingModel struct {
	prompts []string
}

func (m *capturingModel) Complete(ctx context.Context, modelName, system, prompt string) (*llm.Completion, error) {
	m.prompts = append(m.prompts, prompt)
	return &llm.Completion{Text: "FINAL OUTPUT: Billing runs monthly.", InputTokens: 20, OutputTokens: 8}, nil
}

type knowledgeFixture struct {
	sessions *fakeSessionRepo
	calls    *fakeCallRepo
	svc      *KnowledgeService
}

func newKnowledgeFixture(t *testing.T, docs *fakeDocumentRepo, chunks *fakeChunkRepo, budget model.TokenBudget) *knowledgeFixture {
	t.Helper()
	cfg := config.DefaultAIConfig()
	cfg.Budget = budget

	sessions := newFakeSessionRepo()
	calls := newFakeCallRepo()
	lm := llm.NewMockModel()
	tokens := NewTokenService(newFakeUsageRepo(), nil, NewTokenCounter(), budget)
	index := vector.NewIndex(chunks, llm.NewMockEmbedder())
	retriever := NewRetriever(docs, index, lm, cfg, tokens)
	convs := NewConversationService(newFakeSurveyRepo(), sessions, nil, &recordingMessenger{}, nil, nil)
	svc := NewKnowledgeService(retriever, lm, cfg, tokens, calls, convs)

	return &knowledgeFixture{sessions: sessions, calls: calls, svc: svc}
}

func knowledgeDocs(t *testing.T) (*fakeDocumentRepo, *fakeChunkRepo) {
	t.Helper()
	docs := newFakeDocumentRepo(&model.Document{
		ID:               "doc1",
		OwnerID:          "host_1",
		Name:             "product-faq",
		Status:           model.DocumentStatusProcessed,
		VectorCollection: "kb_faq",
	})
	chunks := newFakeChunkRepo(
		embedChunk(t, "kb_faq", "doc1", "Billing runs on the first of each month and invoices are emailed.", 0),
	)
	return docs, chunks
}

func TestStartCall(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("Should create a knowledge-base-only call record", func(t *testing.T) {
		docs, chunks := knowledgeDocs(t)
		f := newKnowledgeFixture(t, docs, chunks, model.DefaultTokenBudget())

		id, err := f.svc.StartCall(ctx, "host_1", "+32470000040", "product-faq")
		require.NoError(t, err)
		require.NotEmpty(t, id)

		call, err := f.calls.LatestKnowledgeCall(ctx, "+32470000040", time.Now().Add(-time.Minute))
		require.NoError(t, err)
		require.NotNil(t, call)
		assert.True(t, call.KnowledgeBaseOnly)
		assert.Equal(t, "product-faq", call.KnowledgeBaseID)
	})

	t.Run("Should force-close a superseded survey session", func(t *testing.T) {
		docs, chunks := knowledgeDocs(t)
		f := newKnowledgeFixture(t, docs, chunks, model.DefaultTokenBudget())

		sessionID, err := f.sessions.Create(ctx, &model.ConversationSession{
			SurveyID:  "survey1",
			Contact:   "+32470000041",
			StartTime: time.Now(),
		})
		require.NoError(t, err)

		_, err = f.svc.StartCall(ctx, "host_1", "+32470000041", "")
		require.NoError(t, err)

		stored, err := f.sessions.GetByID(ctx, sessionID)
		require.NoError(t, err)
		assert.True(t, stored.Completed)
		assert.True(t, stored.AutoCompleted)
	})
}

func TestKnowledgeAnswer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	startCall := func(t *testing.T, f *knowledgeFixture, kbID string) *model.KnowledgeCall {
		t.Helper()
		id, err := f.svc.StartCall(ctx, "host_1", "+32470000050", kbID)
		require.NoError(t, err)
		call, err := f.calls.LatestKnowledgeCall(ctx, "+32470000050", time.Now().Add(-time.Minute))
		require.NoError(t, err)
		require.NotNil(t, call)
		require.Equal(t, id, call.ID)
		return call
	}

	t.Run("Should answer from retrieved knowledge and log the exchange", func(t *testing.T) {
		docs, chunks := knowledgeDocs(t)
		f := newKnowledgeFixture(t, docs, chunks, model.DefaultTokenBudget())
		call := startCall(t, f, "product-faq")

		reply := f.svc.Answer(ctx, call, "when does billing run?")
		assert.NotEmpty(t, reply)
		assert.NotEqual(t, knowledgeFallback, reply)

		stored, err := f.calls.LatestKnowledgeCall(ctx, "+32470000050", time.Now().Add(-time.Minute))
		require.NoError(t, err)
		require.Len(t, stored.Events, 1)
		assert.Equal(t, "knowledge_query", stored.Events[0].EventType)
		assert.Equal(t, "answered", stored.Events[0].Status)
		assert.Equal(t, "when does billing run?", stored.Events[0].Query)
	})

	t.Run("Should fall back when no knowledge is available", func(t *testing.T) {
		f := newKnowledgeFixture(t, newFakeDocumentRepo(), newFakeChunkRepo(), model.DefaultTokenBudget())
		call := startCall(t, f, "")

		reply := f.svc.Answer(ctx, call, "when does billing run?")
		assert.Equal(t, knowledgeFallback, reply)

		stored, err := f.calls.LatestKnowledgeCall(ctx, "+32470000050", time.Now().Add(-time.Minute))
		require.NoError(t, err)
		require.Len(t, stored.Events, 1)
		assert.Equal(t, "fallback", stored.Events[0].Status)
	})

	t.Run("Should optimize the prompt before answering and record it", func(t *testing.T) {
		docs, chunks := knowledgeDocs(t)
		cfg := config.DefaultAIConfig()
		budget := model.DefaultTokenBudget()
		cfg.Budget = budget

		usage := newFakeUsageRepo()
		calls := newFakeCallRepo()
		tokens := NewTokenService(usage, nil, NewTokenCounter(), budget)
		index := vector.NewIndex(chunks, llm.NewMockEmbedder())
		retriever := NewRetriever(docs, index, llm.NewMockModel(), cfg, tokens)
		convs := NewConversationService(newFakeSurveyRepo(), newFakeSessionRepo(), nil, &recordingMessenger{}, nil, nil)
		capture := &capturingModel{}
		svc := NewKnowledgeService(retriever, capture, cfg, tokens, calls, convs)

		_, err := svc.StartCall(ctx, "host_1", "+32470000060", "product-faq")
		require.NoError(t, err)
		call, err := calls.LatestKnowledgeCall(ctx, "+32470000060", time.Now().Add(-time.Minute))
		require.NoError(t, err)
		require.NotNil(t, call)

		reply := svc.Answer(ctx, call, "when does billing run?")
		assert.Equal(t, "Billing runs monthly.", reply)

		require.NotEmpty(t, capture.prompts)
		sent := capture.prompts[len(capture.prompts)-1]
		body, _, found := strings.Cut(sent, "\n\nStep through your reasoning")
		require.True(t, found)
		assert.NotContains(t, body, "\n")
		assert.Contains(t, body, "Knowledge base excerpts: ### Source 1: product-faq")

		var rec *model.TokenUsageRecord
		for _, r := range usage.records {
			if r.PromptType == model.PromptKnowledgeBaseResponse {
				rec = r
			}
		}
		require.NotNil(t, rec)
		assert.True(t, rec.OptimizationApplied)
	})

	t.Run("Should skip retrieval and fall back when over budget", func(t *testing.T) {
		docs, chunks := knowledgeDocs(t)
		tight := model.TokenBudget{
			DailyLimit:      100,
			MonthlyLimit:    100,
			PerRequestLimit: 100,
			AlertThreshold:  0.8,
			CostPer1KTokens: 0.002,
		}
		f := newKnowledgeFixture(t, docs, chunks, tight)
		call := startCall(t, f, "product-faq")

		reply := f.svc.Answer(ctx, call, "when does billing run?")
		assert.Equal(t, knowledgeFallback, reply)
	})
}

func TestRecentTurns(t *testing.T) {
	t.Parallel()

	t.Run("Should rebuild user and assistant turns from events", func(t *testing.T) {
		call := &model.KnowledgeCall{
			Events: []model.InteractionEvent{
				{Query: "what plans exist?", Response: "Two plans."},
			},
		}
		turns := recentTurns(call)
		require.Len(t, turns, 2)
		assert.Equal(t, "user", turns[0].Role)
		assert.Equal(t, "assistant", turns[1].Role)
	})

	t.Run("Should bound the window to recent events", func(t *testing.T) {
		var events []model.InteractionEvent
		for i := 0; i < 6; i++ {
			events = append(events, model.InteractionEvent{Query: "q", Response: "a"})
		}
		turns := recentTurns(&model.KnowledgeCall{Events: events})
		assert.Len(t, turns, historyWindow*2)
	})
}
