package llm

import (
	"context"
	"strings"
)

// MockModel is the offline fallback used when no Gemini API key is
// configured. It produces deterministic output so local development and
// tests behave the same on every run.
type MockModel struct{}

func NewMockModel() *MockModel {
	return &MockModel{}
}

func (m *MockModel) Complete(ctx context.Context, modelName, system, prompt string) (*Completion, error) {
	text := m.respond(system, prompt)
	return &Completion{
		Text:         text,
		InputTokens:  estimateTokens(system) + estimateTokens(prompt),
		OutputTokens: estimateTokens(text),
	}, nil
}

func (m *MockModel) respond(system, prompt string) string {
	lower := strings.ToLower(system + " " + prompt)

	switch {
	case strings.Contains(lower, "sentiment"):
		return m.mockSentiment(lower)
	case strings.Contains(lower, "compress"), strings.Contains(lower, "summarize"):
		return m.mockCompress(prompt)
	case strings.Contains(lower, "search query"):
		return lastNonEmptyLine(prompt)
	default:
		return "I don't have enough information to answer that right now."
	}
}

func (m *MockModel) mockSentiment(text string) string {
	positive := []string{"good", "great", "excellent", "love", "amazing", "happy", "satisfied"}
	negative := []string{"bad", "terrible", "awful", "hate", "poor", "angry", "disappointed"}

	for _, w := range positive {
		if strings.Contains(text, w) {
			return "0.7"
		}
	}
	for _, w := range negative {
		if strings.Contains(text, w) {
			return "-0.7"
		}
	}
	return "0.0"
}

func (m *MockModel) mockCompress(prompt string) string {
	const maxChars = 400
	if len(prompt) <= maxChars {
		return prompt
	}
	return prompt[:maxChars]
}

func lastNonEmptyLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return s
}

func estimateTokens(s string) int {
	return len(s) / 4
}

// MockEmbedder produces stable pseudo-embeddings derived from the input text.
// Identical inputs embed identically, so similarity ordering is repeatable.
type MockEmbedder struct{}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{}
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	const dims = 64
	vec := make([]float32, dims)
	for i, r := range strings.ToLower(text) {
		vec[i%dims] += float32(r%31) / 31.0
	}
	return vec, nil
}
