package llm

import (
	"context"
	"regexp"
	"strings"
)

// ReasoningCompletion separates the model's step-by-step thinking from the
// final answer so callers can use the answer directly and keep the reasoning
// for diagnostics.
type ReasoningCompletion struct {
	Reasoning    string
	Output       string
	InputTokens  int
	OutputTokens int
}

const reasoningInstruction = `

Step through your reasoning in detail before providing your final answer.
Think step-by-step through this problem:
1. First, analyze the context and question carefully
2. Break down the problem into parts if needed
3. Explore different perspectives or approaches
4. Draw a conclusion based on your reasoning

After your reasoning, provide your final output in a format that can be directly used, labeled as FINAL OUTPUT:`

var finalOutputMarker = regexp.MustCompile(`(?i)FINAL OUTPUT:?`)

// CompleteWithReasoning asks the model to think out loud and label its final
// answer, then splits the two apart. When the model ignores the labeling
// instruction the whole response is used as both reasoning and output.
func CompleteWithReasoning(ctx context.Context, lm LanguageModel, modelName, system, prompt string) (*ReasoningCompletion, error) {
	completion, err := lm.Complete(ctx, modelName, system, prompt+reasoningInstruction)
	if err != nil {
		return nil, err
	}

	reasoning, output := splitReasoning(completion.Text)
	return &ReasoningCompletion{
		Reasoning:    reasoning,
		Output:       output,
		InputTokens:  completion.InputTokens,
		OutputTokens: completion.OutputTokens,
	}, nil
}

func splitReasoning(text string) (reasoning, output string) {
	parts := finalOutputMarker.Split(text, 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(text), strings.TrimSpace(text)
}
