package service

import (
	"context"
	"log/slog"

	"github.com/connexus-ai/hybridsearch/internal/model"
)

// defaultAnswerTopN is the maximum number of ranked results passed to strict
// mode answer synthesis (§4.11 caps at 5).
const defaultAnswerTopN = 5

// AnswererService implements C11: strict-mode extractive answers over the
// top-N ranked candidates.
type AnswererService struct {
	llm *LLMClient
}

// NewAnswererService creates an AnswererService.
func NewAnswererService(llm *LLMClient) *AnswererService {
	return &AnswererService{llm: llm}
}

// Answer synthesizes a strict-mode answer from ranked's top N candidates. A
// provider failure degrades to a nil answer rather than failing the request
// (§4.12's DEGRADED branch).
func (a *AnswererService) Answer(ctx context.Context, query string, ranked []*model.Candidate) *model.Answer {
	n := defaultAnswerTopN
	if n > len(ranked) {
		n = len(ranked)
	}

	sources := make([]AnswerSource, 0, n)
	for i, c := range ranked[:n] {
		if c.Document == nil {
			continue
		}
		sources = append(sources, AnswerSource{
			Index:   i + 1,
			Title:   c.Document.Title,
			Excerpt: c.Document.Excerpt,
		})
	}
	if len(sources) == 0 {
		return nil
	}

	result, err := a.llm.Answer(ctx, query, sources)
	if err != nil {
		slog.Warn("answer synthesis degraded", "error", err)
		return nil
	}

	citedIDs := make([]string, 0, len(result.CitedSourceIDs))
	for _, idx := range result.CitedSourceIDs {
		if idx >= 1 && idx <= len(sources) {
			citedIDs = append(citedIDs, ranked[idx-1].DocumentID)
		}
	}

	return &model.Answer{Text: result.Answer, CitedSourceIDs: citedIDs}
}

// AltQueries returns 3..5 content-derived alternative queries for the top
// results, or nil on provider degradation (§4.8.4).
func (a *AnswererService) AltQueries(ctx context.Context, query string, ranked []*model.Candidate) []string {
	n := defaultAnswerTopN
	if n > len(ranked) {
		n = len(ranked)
	}
	sources := make([]AnswerSource, 0, n)
	for i, c := range ranked[:n] {
		if c.Document == nil {
			continue
		}
		sources = append(sources, AnswerSource{Index: i + 1, Title: c.Document.Title, Excerpt: c.Document.Excerpt})
	}
	if len(sources) == 0 {
		return nil
	}
	return a.llm.ContentAlternativeQueries(ctx, query, sources)
}
