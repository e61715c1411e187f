package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/moeJEE/llm-phone-feedback-agent/internal/config"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/llm"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/model"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/repository"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/vector"
)

const (
	searchTopK          = 5
	dedupPrefixLen      = 100
	minCompressedTokens = 100
	historyWindow       = 3
)

// Retriever runs the retrieval pipeline: scope documents, enhance the query,
// search each document's vector collection, dedup, rank, and pack into a
// token budget. Every failure degrades to an empty result; callers treat
// empty content as "no knowledge available" and send a fallback message.
type Retriever struct {
	documents repository.DocumentRepo
	index     *vector.Index
	lm        llm.LanguageModel
	models    config.GeminiModels
	tokens    *TokenService
}

func NewRetriever(documents repository.DocumentRepo, index *vector.Index, lm llm.LanguageModel, cfg *config.AIConfig, tokens *TokenService) *Retriever {
	return &Retriever{
		documents: documents,
		index:     index,
		lm:        lm,
		models:    cfg.Models,
		tokens:    tokens,
	}
}

// Retrieve returns token-budgeted knowledge context for a query. An empty
// result is a valid outcome, never an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, rc *model.RetrievalContext, maxTokens int, strategy model.RetrievalStrategy) *model.RetrievalResult {
	if strategy == "" {
		strategy = selectStrategy(query, rc)
	}

	enhancedQuery := r.enhanceQuery(ctx, query, rc)

	docs := r.eligibleDocuments(ctx, rc)
	if len(docs) == 0 {
		log.Printf("No searchable documents for user %s", rc.UserID)
		return &model.RetrievalResult{QueryUsed: enhancedQuery, Strategy: strategy}
	}

	hits := r.search(ctx, enhancedQuery, rc, docs, strategy)
	if len(hits) == 0 {
		log.Printf("No vector search results for query: %s", enhancedQuery)
		return &model.RetrievalResult{QueryUsed: enhancedQuery, Strategy: strategy}
	}

	hits = deduplicateHits(hits)
	hits = rankByRelevance(hits, enhancedQuery)

	packed, ratio, saved := r.packIntoBudget(ctx, hits, maxTokens)

	content := formatHits(packed)
	return &model.RetrievalResult{
		Content:          content,
		Sources:          distinctSources(packed),
		TokensUsed:       r.tokens.Count(content),
		TokensSaved:      saved,
		CompressionRatio: ratio,
		QueryUsed:        enhancedQuery,
		Strategy:         strategy,
		RelevanceScores:  relevanceScores(packed),
	}
}

// eligibleDocuments scopes the search to the owner's processed documents,
// optionally narrowed to one knowledge base. An unknown knowledge base id
// falls back to all eligible documents rather than failing.
func (r *Retriever) eligibleDocuments(ctx context.Context, rc *model.RetrievalContext) []*model.Document {
	if rc.KnowledgeBaseID != "" && rc.KnowledgeBaseID != "general" {
		doc, err := r.documents.GetByIDOrName(ctx, rc.UserID, rc.KnowledgeBaseID)
		if err != nil {
			log.Printf("Document lookup failed for %s: %v", rc.KnowledgeBaseID, err)
		} else if doc != nil && doc.Status == model.DocumentStatusProcessed && doc.VectorCollection != "" {
			return []*model.Document{doc}
		} else {
			log.Printf("Knowledge base %s not found or not searchable, falling back to all documents", rc.KnowledgeBaseID)
		}
	}

	docs, err := r.documents.GetSearchable(ctx, rc.UserID)
	if err != nil {
		log.Printf("Failed to load searchable documents for %s: %v", rc.UserID, err)
		return nil
	}

	if len(rc.DocumentFilters) > 0 {
		wanted := map[string]bool{}
		for _, f := range rc.DocumentFilters {
			wanted[f] = true
		}
		filtered := docs[:0]
		for _, d := range docs {
			if wanted[d.ID] || wanted[d.Name] {
				filtered = append(filtered, d)
			}
		}
		docs = filtered
	}
	return docs
}

// enhanceQuery rewrites the query from recent conversation history with one
// model call. Best-effort: any failure returns the raw query.
func (r *Retriever) enhanceQuery(ctx context.Context, query string, rc *model.RetrievalContext) string {
	if r.lm == nil || len(rc.ConversationHistory) == 0 {
		return query
	}

	prompt := fmt.Sprintf(
		"Given this conversation context and current query, create an enhanced search query that captures the full intent:\n\n"+
			"Conversation Context:\n%s\n\nCurrent Query: %s\n\nEnhanced Query (single line, keywords focused):",
		formatHistory(rc.ConversationHistory), query)

	completion, err := r.lm.Complete(ctx, r.models.Enhance, "", prompt)
	if err != nil {
		log.Printf("Query enhancement failed, using raw query: %v", err)
		return query
	}
	if r.tokens != nil {
		r.tokens.RecordUsage(ctx, &model.TokenUsageRecord{
			UserID:       rc.UserID,
			PromptType:   model.PromptKnowledgeRetrieval,
			InputTokens:  completion.InputTokens,
			OutputTokens: completion.OutputTokens,
		})
	}

	enhanced := strings.TrimSpace(completion.Text)
	if enhanced == "" {
		return query
	}
	return enhanced
}

func (r *Retriever) search(ctx context.Context, query string, rc *model.RetrievalContext, docs []*model.Document, strategy model.RetrievalStrategy) []model.SearchHit {
	switch strategy {
	case model.StrategyHybrid:
		semantic := r.searchAll(ctx, query, docs, 3)
		keyword := r.searchAll(ctx, strings.Join(strings.Fields(query), " AND "), docs, 2)
		return append(semantic, keyword...)
	case model.StrategyContextual:
		contextual := query
		if topics := extractTopics(rc.ConversationHistory); len(topics) > 0 {
			contextual = query + " " + strings.Join(topics, " ")
		}
		return r.searchAll(ctx, contextual, docs, searchTopK)
	case model.StrategyAdaptive:
		words := len(strings.Fields(query))
		switch {
		case words <= 3:
			return r.searchAll(ctx, query, docs, searchTopK)
		case words > 8:
			return r.search(ctx, query, rc, docs, model.StrategyHybrid)
		default:
			return r.search(ctx, query, rc, docs, model.StrategyContextual)
		}
	default:
		return r.searchAll(ctx, query, docs, searchTopK)
	}
}

// searchAll queries each document's own vector collection and tags hits with
// their source. A failure in one collection never aborts the others.
func (r *Retriever) searchAll(ctx context.Context, query string, docs []*model.Document, topK int) []model.SearchHit {
	var all []model.SearchHit
	for _, doc := range docs {
		hits, err := r.index.Search(ctx, doc.VectorCollection, query, topK)
		if err != nil {
			log.Printf("Vector search failed for document %s: %v", doc.Name, err)
			continue
		}
		for i := range hits {
			hits[i].DocumentID = doc.ID
			hits[i].DocumentName = doc.Name
		}
		all = append(all, hits...)
	}
	return all
}

// packIntoBudget fits ranked hits into maxTokens greedily. The first hit
// that would overflow is compressed into the remaining allowance when that
// allowance is still useful; everything after it is dropped.
func (r *Retriever) packIntoBudget(ctx context.Context, hits []model.SearchHit, maxTokens int) ([]model.SearchHit, float64, int) {
	var packed []model.SearchHit
	currentTokens := 0
	originalTokens := 0

	for _, hit := range hits {
		hitTokens := r.tokens.Count(hit.Content)
		originalTokens += hitTokens

		if currentTokens+hitTokens <= maxTokens {
			packed = append(packed, hit)
			currentTokens += hitTokens
			continue
		}

		remaining := maxTokens - currentTokens
		if remaining > minCompressedTokens {
			if compressed := r.compress(ctx, hit.Content, remaining); compressed != "" {
				hit.Content = compressed
				hit.Compressed = true
				packed = append(packed, hit)
				currentTokens += r.tokens.Count(compressed)
			}
		}
		break
	}

	ratio := float64(currentTokens) / float64(maxInt(originalTokens, 1))
	return packed, ratio, originalTokens - currentTokens
}

// compress summarizes content into the target token allowance. The result is
// hard-truncated to the allowance so the budget holds even when the model
// overshoots; on failure the content is truncated without summarization.
func (r *Retriever) compress(ctx context.Context, content string, targetTokens int) string {
	truncate := func(s string) string {
		runes := []rune(s)
		for r.tokens.Count(string(runes)) > targetTokens && len(runes) > 0 {
			runes = runes[:len(runes)*9/10]
		}
		return string(runes)
	}

	if r.lm == nil {
		return truncate(content)
	}

	prompt := fmt.Sprintf(
		"Compress the following text to approximately %d tokens while preserving key information:\n\n%s\n\nCompressed version:",
		targetTokens, content)

	completion, err := r.lm.Complete(ctx, r.models.Compress, "", prompt)
	if err != nil {
		log.Printf("Compression failed, truncating instead: %v", err)
		return truncate(content)
	}
	if r.tokens != nil {
		r.tokens.RecordUsage(ctx, &model.TokenUsageRecord{
			UserID:              "system",
			PromptType:          model.PromptKnowledgeRetrieval,
			InputTokens:         completion.InputTokens,
			OutputTokens:        completion.OutputTokens,
			OptimizationApplied: true,
		})
	}
	return truncate(strings.TrimSpace(completion.Text))
}

func selectStrategy(query string, rc *model.RetrievalContext) model.RetrievalStrategy {
	words := len(strings.Fields(query))
	switch {
	case words <= 3:
		return model.StrategySimple
	case len(rc.ConversationHistory) > 2:
		return model.StrategyContextual
	case words > 8:
		return model.StrategyHybrid
	default:
		return model.StrategyAdaptive
	}
}

// deduplicateHits drops hits whose case-folded leading content collides with
// an earlier hit.
func deduplicateHits(hits []model.SearchHit) []model.SearchHit {
	seen := map[string]bool{}
	var unique []model.SearchHit
	for _, hit := range hits {
		key := hit.Content
		if len(key) > dedupPrefixLen {
			key = key[:dedupPrefixLen]
		}
		key = strings.TrimSpace(strings.ToLower(key))
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, hit)
	}
	return unique
}

// rankByRelevance orders hits by keyword-overlap ratio between the query and
// the hit content.
func rankByRelevance(hits []model.SearchHit, query string) []model.SearchHit {
	queryWords := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(query)) {
		queryWords[w] = true
	}

	for i := range hits {
		overlap := 0
		seen := map[string]bool{}
		for _, w := range strings.Fields(strings.ToLower(hits[i].Content)) {
			if queryWords[w] && !seen[w] {
				overlap++
				seen[w] = true
			}
		}
		hits[i].RelevanceScore = float64(overlap) / float64(maxInt(len(queryWords), 1))
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].RelevanceScore > hits[j].RelevanceScore
	})
	return hits
}

func formatHits(hits []model.SearchHit) string {
	if len(hits) == 0 {
		return ""
	}
	var parts []string
	for i, hit := range hits {
		parts = append(parts, fmt.Sprintf("### Source %d: %s (Relevance: %.2f)\n%s\n", i+1, hit.DocumentName, hit.RelevanceScore, hit.Content))
	}
	return strings.Join(parts, "\n")
}

func distinctSources(hits []model.SearchHit) []string {
	seen := map[string]bool{}
	var sources []string
	for _, hit := range hits {
		if !seen[hit.DocumentName] {
			seen[hit.DocumentName] = true
			sources = append(sources, hit.DocumentName)
		}
	}
	return sources
}

func relevanceScores(hits []model.SearchHit) []float64 {
	scores := make([]float64, len(hits))
	for i, hit := range hits {
		scores[i] = hit.RelevanceScore
	}
	return scores
}

func formatHistory(history []model.ConversationTurn) string {
	start := 0
	if len(history) > historyWindow {
		start = len(history) - historyWindow
	}
	var lines []string
	for _, turn := range history[start:] {
		lines = append(lines, fmt.Sprintf("%s: %s", turn.Role, turn.Content))
	}
	return strings.Join(lines, "\n")
}

// fillerWords are long enough to pass the length filter but carry no topic.
var fillerWords = map[string]bool{
	"about": true, "after": true, "asking": true, "because": true,
	"before": true, "could": true, "please": true, "should": true,
	"thanks": true, "their": true, "there": true, "these": true,
	"those": true, "where": true, "which": true, "would": true,
}

func extractTopics(history []model.ConversationTurn) []string {
	start := 0
	if len(history) > historyWindow {
		start = len(history) - historyWindow
	}
	seen := map[string]bool{}
	var topics []string
	for _, turn := range history[start:] {
		for _, word := range strings.Fields(turn.Content) {
			word = strings.ToLower(word)
			if len(word) > 4 && !fillerWords[word] && !seen[word] {
				seen[word] = true
				topics = append(topics, word)
				if len(topics) == 5 {
					return topics
				}
			}
		}
	}
	return topics
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
