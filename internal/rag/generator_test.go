package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notechat/notechat/internal/index"
	"github.com/notechat/notechat/internal/log"
)

func TestGenerate(t *testing.T) {
	var gotSystem, gotQuestion string
	complete := func(_ context.Context, system, question string) (string, error) {
		gotSystem = system
		gotQuestion = question
		return "  The hiring plan targets two engineers.  ", nil
	}

	g, err := NewGeneratorWithCompletion(complete, log.NewNop())
	require.NoError(t, err)

	docs := []index.Hit{
		{ID: "a", Text: "We plan to hire two engineers."},
		{ID: "b", Text: "Budget approved in March."},
	}

	answer := g.Generate(context.Background(), "what is the hiring plan?", docs)

	assert.Equal(t, "The hiring plan targets two engineers.", answer, "answer must be trimmed")
	assert.Equal(t, "what is the hiring plan?", gotQuestion)
	assert.Contains(t, gotSystem, "We plan to hire two engineers.\n\nBudget approved in March.",
		"documents are joined by a blank line")
	assert.Contains(t, gotSystem, "# Context")
}

func TestGenerateFallsBackOnError(t *testing.T) {
	complete := func(context.Context, string, string) (string, error) {
		return "", errors.New("model overloaded")
	}

	g, err := NewGeneratorWithCompletion(complete, log.NewNop())
	require.NoError(t, err)

	answer := g.Generate(context.Background(), "question", nil)
	assert.Equal(t, FallbackAnswer, answer)
}

func TestGenerateFallsBackOnEmptyAnswer(t *testing.T) {
	complete := func(context.Context, string, string) (string, error) {
		return "   \n ", nil
	}

	g, err := NewGeneratorWithCompletion(complete, log.NewNop())
	require.NoError(t, err)

	answer := g.Generate(context.Background(), "question", nil)
	assert.Equal(t, FallbackAnswer, answer)
}

func TestGenerateWithNoDocuments(t *testing.T) {
	var gotSystem string
	complete := func(_ context.Context, system, _ string) (string, error) {
		gotSystem = system
		return "I do not have enough context to answer that.", nil
	}

	g, err := NewGeneratorWithCompletion(complete, log.NewNop())
	require.NoError(t, err)

	answer := g.Generate(context.Background(), "question", nil)

	assert.NotEqual(t, FallbackAnswer, answer, "empty retrieval is a normal turn, not a failure")
	assert.True(t, strings.HasSuffix(gotSystem, "# Context\n"), "context section is present but empty")
}

func TestWithCallTimeoutBoundsEachCall(t *testing.T) {
	complete := withCallTimeout(10*time.Millisecond, func(ctx context.Context, _, _ string) (string, error) {
		_, hasDeadline := ctx.Deadline()
		require.True(t, hasDeadline, "every model call carries a timeout")
		<-ctx.Done()
		return "", ctx.Err()
	})

	g, err := NewGeneratorWithCompletion(complete, log.NewNop())
	require.NoError(t, err)

	answer := g.Generate(context.Background(), "question", nil)
	assert.Equal(t, FallbackAnswer, answer, "a stalled model call degrades the turn, not the session")
}

func TestNewGeneratorWithCompletionValidation(t *testing.T) {
	_, err := NewGeneratorWithCompletion(nil, log.NewNop())
	assert.Error(t, err)
}
