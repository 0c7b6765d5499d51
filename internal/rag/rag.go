// Package rag produces grounded answers: embed the query, retrieve the most
// relevant chunks from the session's index, and hand them to the completion
// model together with the recent conversation.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/docusense/docchat/internal/index"
	"github.com/docusense/docchat/provider"
)

const systemPrompt = "You are an assistant that answers questions about a document. " +
	"Ground every answer in the provided excerpts. If the excerpts do not contain " +
	"the answer, say so instead of guessing."

// Turn is one prior question/answer exchange supplied by the caller as
// conversational context.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Service orchestrates retrieval and completion over injected capabilities.
type Service struct {
	Provider      provider.Provider
	TopK          int
	HistoryTurns  int
	SummaryChunks int
}

// Summarize produces a short summary from the leading chunks of a document.
func (s *Service) Summarize(ctx context.Context, chunks []string) (string, error) {
	n := s.SummaryChunks
	if n <= 0 || n > len(chunks) {
		n = len(chunks)
	}
	messages := []provider.Message{
		{Role: "system", Content: "You summarize documents concisely for a reader who has not seen them."},
		{Role: "user", Content: "Summarize the following document:\n\n" + strings.Join(chunks[:n], "\n\n")},
	}
	summary, err := s.Provider.Complete(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("summarizing document: %w", err)
	}
	return summary, nil
}

// Answer retrieves the chunks most relevant to question from idx and asks
// the completion model for a grounded answer, conditioned on the last few
// turns. Either a complete answer is returned or an error; no partials.
func (s *Service) Answer(ctx context.Context, idx index.Index, question string, history []Turn) (string, error) {
	vecs, err := s.Provider.Embed(ctx, []string{question})
	if err != nil {
		return "", fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) == 0 {
		return "", fmt.Errorf("%w: no query embedding", provider.ErrUpstream)
	}

	hits, err := idx.VectorSearch(ctx, vecs[0], s.TopK)
	if err != nil {
		return "", fmt.Errorf("retrieving chunks: %w", err)
	}
	kwHits, err := idx.KeywordSearch(ctx, question, s.TopK)
	switch {
	case errors.Is(err, index.ErrKeywordSearchUnsupported):
		// vector-only backend
	case err != nil:
		return "", fmt.Errorf("keyword retrieval: %w", err)
	default:
		hits = index.FuseRRF(hits, kwHits, s.TopK)
	}

	answer, err := s.Provider.Complete(ctx, s.buildMessages(hits, question, history))
	if err != nil {
		return "", fmt.Errorf("completing answer: %w", err)
	}
	return answer, nil
}

func (s *Service) buildMessages(hits []index.Hit, question string, history []Turn) []provider.Message {
	var ctxBlock strings.Builder
	ctxBlock.WriteString("Document excerpts:\n")
	if len(hits) == 0 {
		ctxBlock.WriteString("(none)\n")
	}
	for _, h := range hits {
		ctxBlock.WriteString("---\n")
		ctxBlock.WriteString(h.Text)
		ctxBlock.WriteString("\n")
	}

	messages := []provider.Message{{Role: "system", Content: systemPrompt}}
	if n := s.HistoryTurns; n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	for _, turn := range history {
		messages = append(messages,
			provider.Message{Role: "user", Content: turn.Question},
			provider.Message{Role: "assistant", Content: turn.Answer},
		)
	}
	messages = append(messages, provider.Message{
		Role:    "user",
		Content: ctxBlock.String() + "\nQuestion: " + question,
	})
	return messages
}
