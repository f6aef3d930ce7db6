package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"

	"github.com/notechat/notechat/internal/index"
)

// FallbackAnswer is returned when generation fails. The chat keeps going;
// a broken model call degrades one turn, not the session.
const FallbackAnswer = "I could not generate an answer right now. Please try again."

const systemPromptHeader = `Answer the user's question based on the context below. If the context does not contain the answer, say so instead of guessing.

# Context
`

// completionTimeout bounds a single model call so a stalled request
// degrades one turn instead of hanging it.
const completionTimeout = 60 * time.Second

// CompletionFunc produces a single-turn completion for a system prompt and a
// user question. Production wires genkit; tests substitute a canned one.
type CompletionFunc func(ctx context.Context, system, question string) (string, error)

// Generator produces answers grounded on retrieved documents.
type Generator struct {
	complete CompletionFunc
	logger   *slog.Logger
}

// NewGenerator creates a Generator backed by a Genkit model.
func NewGenerator(g *genkit.Genkit, modelName string, temperature float32, logger *slog.Logger) (*Generator, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}

	complete := func(ctx context.Context, system, question string) (string, error) {
		resp, err := genkit.Generate(ctx, g,
			ai.WithModelName(modelName),
			ai.WithSystem(system),
			ai.WithPrompt(question),
			ai.WithConfig(&genai.GenerateContentConfig{
				Temperature: genai.Ptr(temperature),
			}),
		)
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}

	return NewGeneratorWithCompletion(withCallTimeout(completionTimeout, complete), logger)
}

// withCallTimeout bounds each completion call.
func withCallTimeout(d time.Duration, complete CompletionFunc) CompletionFunc {
	return func(ctx context.Context, system, question string) (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return complete(callCtx, system, question)
	}
}

// NewGeneratorWithCompletion creates a Generator over an arbitrary
// completion function.
func NewGeneratorWithCompletion(complete CompletionFunc, logger *slog.Logger) (*Generator, error) {
	if complete == nil {
		return nil, fmt.Errorf("completion function is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{complete: complete, logger: logger}, nil
}

// Generate answers the question grounded on the given documents. The
// documents land in the system prompt joined by blank lines; the question
// goes through verbatim as the user turn. Generation failure yields
// FallbackAnswer, not an error.
func (g *Generator) Generate(ctx context.Context, question string, docs []index.Hit) string {
	answer, err := g.complete(ctx, buildSystemPrompt(docs), question)
	if err != nil {
		g.logger.Warn("answer generation failed, using fallback", "error", err)
		return FallbackAnswer
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		g.logger.Warn("model returned empty answer, using fallback")
		return FallbackAnswer
	}

	return answer
}

// buildSystemPrompt assembles the grounding prompt from retrieved documents.
// No hits still produces a valid prompt with an empty context section; the
// instruction tells the model to admit it.
func buildSystemPrompt(docs []index.Hit) string {
	texts := make([]string, 0, len(docs))
	for _, d := range docs {
		texts = append(texts, d.Text)
	}
	return systemPromptHeader + strings.Join(texts, "\n\n")
}
