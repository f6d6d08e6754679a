package sqlchain

import (
	"context"
	"testing"

	"github.com/aanchal1903/BusinessOps-Chatbot/llm"
	"github.com/aanchal1903/BusinessOps-Chatbot/memory"
	"github.com/aanchal1903/BusinessOps-Chatbot/sqldb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesizer_Synthesize(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults", func(t *testing.T) {
		mock := llm.NewMockLLM("  There are 6 active companies.\n")
		s := NewSynthesizer(mock, WithSynthesizerLogger(quietLogger()))

		answer, err := s.Synthesize(ctx, SynthesisInput{
			Question: "How many companies are active?",
			SQLQuery: activeCountSQL,
			Result:   "COUNT(\"id\")\n6",
		})
		require.NoError(t, err)
		assert.Equal(t, "There are 6 active companies.", answer)

		prompt := mock.Prompts()[0]
		assert.Contains(t, prompt, "Strictly give your final answer in ENGLISH.")
		assert.Contains(t, prompt, memory.NoHistory)
		assert.Contains(t, prompt, activeCountSQL)
		assert.Contains(t, prompt, "How many companies are active?")
	})

	t.Run("empty result is sent as the sentinel", func(t *testing.T) {
		mock := llm.NewMockLLM("Sorry, nothing matched.")
		s := NewSynthesizer(mock, WithSynthesizerLogger(quietLogger()))

		_, err := s.Synthesize(ctx, SynthesisInput{Question: "q", SQLQuery: "SELECT 1", Language: "HINDI"})
		require.NoError(t, err)

		prompt := mock.Prompts()[0]
		assert.Contains(t, prompt, "SQL result:\n"+sqldb.NoDataSentinel)
		assert.Contains(t, prompt, "in HINDI.")
	})

	t.Run("model failure", func(t *testing.T) {
		s := NewSynthesizer(llm.NewMockLLMWithError(llm.ErrModelTimeout), WithSynthesizerLogger(quietLogger()))
		_, err := s.Synthesize(ctx, SynthesisInput{Question: "q"})
		assert.ErrorIs(t, err, llm.ErrModelTimeout)
	})
}
