package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedModel struct {
	reply string
}

func (m *scriptedModel) Complete(ctx context.Context, modelName, system, prompt string) (*Completion, error) {
	return &Completion{Text: m.reply, InputTokens: 10, OutputTokens: 5}, nil
}

func TestCompleteWithReasoning(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("Should split reasoning from the labeled answer", func(t *testing.T) {
		lm := &scriptedModel{reply: "The excerpts mention monthly billing.\n\nFINAL OUTPUT: Billing runs on the first of each month."}

		rc, err := CompleteWithReasoning(ctx, lm, "test-model", "", "when does billing run?")
		require.NoError(t, err)
		assert.Equal(t, "The excerpts mention monthly billing.", rc.Reasoning)
		assert.Equal(t, "Billing runs on the first of each month.", rc.Output)
		assert.Equal(t, 10, rc.InputTokens)
		assert.Equal(t, 5, rc.OutputTokens)
	})

	t.Run("Should match the label case-insensitively and without a colon", func(t *testing.T) {
		lm := &scriptedModel{reply: "thinking...\nfinal output the answer"}

		rc, err := CompleteWithReasoning(ctx, lm, "test-model", "", "q")
		require.NoError(t, err)
		assert.Equal(t, "thinking...", rc.Reasoning)
		assert.Equal(t, "the answer", rc.Output)
	})

	t.Run("Should use the whole response when the label is missing", func(t *testing.T) {
		lm := &scriptedModel{reply: "just an answer with no label"}

		rc, err := CompleteWithReasoning(ctx, lm, "test-model", "", "q")
		require.NoError(t, err)
		assert.Equal(t, rc.Reasoning, rc.Output)
		assert.Equal(t, "just an answer with no label", rc.Output)
	})
}
