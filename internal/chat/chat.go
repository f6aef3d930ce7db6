// Package chat orchestrates conversational turns over the retrieval
// pipeline. It owns session history and nothing else; retrieval and
// generation stay behind interfaces.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/notechat/notechat/internal/index"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the session history.
type Message struct {
	Role    Role
	Content string
	Time    time.Time
}

// Answer is the result of one chat turn.
type Answer struct {
	// Text is the generated answer (or the generator's fallback).
	Text string

	// Sources are the retrieved documents the answer was grounded on,
	// ordered by descending similarity.
	Sources []index.Hit
}

// Retriever finds documents relevant to a question. *rag.Retriever
// satisfies it.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]index.Hit, error)
}

// Generator produces a grounded answer. *rag.Generator satisfies it.
type Generator interface {
	Generate(ctx context.Context, question string, docs []index.Hit) string
}

// Session is one conversation. History is append-only and grows by exactly
// two messages per successful turn.
//
// Session is safe for concurrent use, though turns are serialized.
type Session struct {
	id        string
	retriever Retriever
	generator Generator
	logger    *slog.Logger

	mu      sync.Mutex
	history []Message
}

// NewSession creates an empty session with a fresh id.
func NewSession(retriever Retriever, generator Generator, logger *slog.Logger) (*Session, error) {
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		id:        uuid.NewString(),
		retriever: retriever,
		generator: generator,
		logger:    logger,
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// History returns a copy of the conversation so far.
func (s *Session) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

// Clear drops the conversation history. The session id stays.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}

// Ask runs one turn: retrieve relevant documents, generate a grounded
// answer, record both sides in the history.
//
// A retrieval failure is returned as an error and leaves the history
// untouched; the question can simply be asked again. Generation never fails
// a turn, it degrades to the generator's fallback answer.
func (s *Session) Ask(ctx context.Context, question string) (Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hits, err := s.retriever.Retrieve(ctx, question)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieving context: %w", err)
	}

	text := s.generator.Generate(ctx, question, hits)

	now := time.Now()
	s.history = append(s.history,
		Message{Role: RoleUser, Content: question, Time: now},
		Message{Role: RoleAssistant, Content: text, Time: now},
	)

	s.logger.Debug("chat turn complete",
		"session_id", s.id,
		"sources", len(hits),
		"history_length", len(s.history))

	return Answer{Text: text, Sources: hits}, nil
}
