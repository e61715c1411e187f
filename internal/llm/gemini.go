package llm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sethvargo/go-retry"
	"google.golang.org/api/option"

	"github.com/moeJEE/llm-phone-feedback-agent/internal/config"
)

const (
	retryAttempts    = 3
	retryBackoffBase = 500 * time.Millisecond
)

// GeminiClient talks to the Gemini API. Transient failures are retried with
// exponential backoff before surfacing to the caller.
type GeminiClient struct {
	client         *genai.Client
	embeddingModel string
	timeout        time.Duration
}

// NewGeminiClient creates a Gemini-backed language model and embedder.
func NewGeminiClient(ctx context.Context, cfg *config.AIConfig) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{
		client:         client,
		embeddingModel: cfg.Models.Embedding,
		timeout:        time.Duration(cfg.TimeoutMS) * time.Millisecond,
	}, nil
}

func (g *GeminiClient) Close() {
	if g.client != nil {
		if err := g.client.Close(); err != nil {
			log.Printf("Error closing GenAI client: %v", err)
		}
	}
}

func (g *GeminiClient) backoff() retry.Backoff {
	b := retry.NewExponential(retryBackoffBase)
	return retry.WithMaxRetries(retryAttempts, retry.WithJitter(100*time.Millisecond, b))
}

func (g *GeminiClient) Complete(ctx context.Context, modelName, system, prompt string) (*Completion, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	model := g.client.GenerativeModel(modelName)
	if system != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}

	var resp *genai.GenerateContentResponse
	err := retry.Do(ctx, g.backoff(), func(ctx context.Context) error {
		var callErr error
		resp, callErr = model.GenerateContent(ctx, genai.Text(prompt))
		if callErr != nil {
			return retry.RetryableError(callErr)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini returned an empty response")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("gemini response contained no text parts")
	}

	completion := &Completion{Text: strings.TrimSpace(text.String())}
	if resp.UsageMetadata != nil {
		completion.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		completion.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return completion, nil
}

func (g *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	em := g.client.EmbeddingModel(g.embeddingModel)

	var res *genai.EmbedContentResponse
	err := retry.Do(ctx, g.backoff(), func(ctx context.Context) error {
		var callErr error
		res, callErr = em.EmbedContent(ctx, genai.Text(text))
		if callErr != nil {
			return retry.RetryableError(callErr)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}

	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding data received from gemini")
	}
	return res.Embedding.Values, nil
}
