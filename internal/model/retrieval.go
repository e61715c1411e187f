package model

// RetrievalStrategy selects how the retriever combines vector search with
// conversation context.
type RetrievalStrategy string

const (
	StrategySimple     RetrievalStrategy = "simple"
	StrategyHybrid     RetrievalStrategy = "hybrid"
	StrategyContextual RetrievalStrategy = "contextual"
	StrategyAdaptive   RetrievalStrategy = "adaptive"
)

// ConversationTurn is one bounded-window history entry used for query
// enhancement.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RetrievalContext scopes which documents are eligible for a retrieval.
type RetrievalContext struct {
	UserID              string
	KnowledgeBaseID     string
	DocumentFilters     []string
	ConversationHistory []ConversationTurn
}

// RetrievalResult is the token-bounded knowledge excerpt handed to the
// prompt builder. It is ephemeral: consumed immediately, never persisted.
type RetrievalResult struct {
	Content          string
	Sources          []string
	TokensUsed       int
	TokensSaved      int
	CompressionRatio float64
	QueryUsed        string
	Strategy         RetrievalStrategy
	RelevanceScores  []float64
}

// Empty reports whether the retrieval produced no usable knowledge. Callers
// must treat this as "no knowledge available" and fall back, never fabricate.
func (r *RetrievalResult) Empty() bool {
	return r == nil || r.Content == ""
}
