package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/connexus-ai/hybridsearch/internal/model"
)

const (
	rrfK = 60

	// defaultRerankTopM and defaultAIWeight back-fill NewFuserService when the
	// operator leaves RERANK_TOP_M/DEFAULT_AI_WEIGHT at their zero value.
	defaultRerankTopM = 20
	defaultAIWeight   = 0.7
)

// FuseOptions configures one fusion+rerank pass.
type FuseOptions struct {
	Query              string
	Intent             model.QueryIntent
	AIWeight           *float64 // caller override; nil uses defaultAIWeight
	EnableReranking    bool
	RerankInstructions string
	PostTypePriority   []string // caller-supplied order; lower index wins ties
}

// FuseResult is the ranked, explained output of one fusion pass.
type FuseResult struct {
	Ranked          []*model.Candidate
	AIWeight        float64
	LexicalWeight   float64
	RerankUsed      bool
	EstimatedScores bool
}

// FuserService implements C10: Reciprocal Rank Fusion of the lexical and
// semantic streams, optional LLM reranking of the top M, hybrid scoring with
// dynamic weight adjustment, and a single composite-key final sort.
type FuserService struct {
	llm           *LLMClient
	defaultWeight float64
	rerankTopM    int
}

// NewFuserService creates a FuserService. If llm is nil, reranking is a
// no-op regardless of FuseOptions.EnableReranking. aiWeight and rerankTopM
// are the operator-configured DEFAULT_AI_WEIGHT/RERANK_TOP_M values; a
// non-positive rerankTopM or an aiWeight outside (0,1] falls back to the
// teacher defaults.
func NewFuserService(llm *LLMClient, aiWeight float64, rerankTopM int) *FuserService {
	if aiWeight <= 0 || aiWeight > 1 {
		aiWeight = defaultAIWeight
	}
	if rerankTopM <= 0 {
		rerankTopM = defaultRerankTopM
	}
	return &FuserService{llm: llm, defaultWeight: aiWeight, rerankTopM: rerankTopM}
}

// Fuse runs RRF over streams.Lexical/Semantic, optionally reranks the top M
// candidates with the LLM, computes each candidate's hybrid score, and
// returns candidates in final sorted order (§4.10).
func (f *FuserService) Fuse(ctx context.Context, streams *RankedStreams, opts FuseOptions) *FuseResult {
	rrfScores := reciprocalRankFusion(streams.Lexical, streams.Semantic)

	ordered := make([]*model.Candidate, 0, len(rrfScores))
	for id := range rrfScores {
		c, ok := streams.Candidates[id]
		if !ok {
			continue
		}
		c.Explanation.Lexical = c.LexicalScore
		c.Explanation.Semantic = c.SemanticScore
		c.Explanation.Boosts = c.Boosts
		c.AIScore = -1
		ordered = append(ordered, c)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return rrfScores[ordered[i].DocumentID] > rrfScores[ordered[j].DocumentID]
	})

	rerankUsed := false
	estimated := false
	if f.llm != nil && opts.EnableReranking && len(ordered) > 0 {
		rerankUsed = true
		estimated = f.rerank(ctx, ordered, opts)
	} else {
		for _, c := range ordered {
			c.AIScore = 0
			c.Explanation.ScoreEstimated = true
		}
		estimated = true
	}

	aiWeight, lexicalWeight := f.resolveWeights(opts)

	for _, c := range ordered {
		c.HybridScore = lexicalWeight*c.LexicalScore + aiWeight*(c.AIScore/100)
		c.Explanation.AIScoreRaw = c.AIScore
		c.Explanation.AIScoreNormal = c.AIScore / 100
		c.Explanation.AIWeight = aiWeight
		c.Explanation.LexicalWeight = lexicalWeight
		c.Explanation.Hybrid = c.HybridScore
		c.Explanation.PostTypePriority = postTypeRank(c.Document, opts.PostTypePriority)
	}

	finalSort(ordered)
	for i, c := range ordered {
		c.Explanation.FinalPosition = i
	}

	return &FuseResult{
		Ranked:          ordered,
		AIWeight:        aiWeight,
		LexicalWeight:   lexicalWeight,
		RerankUsed:      rerankUsed,
		EstimatedScores: estimated,
	}
}

// rerank scores the top M candidates with the LLM, leaving the remainder at
// an estimated score (lexicalScore×0.9). Returns true if any candidate's
// score is estimated rather than LLM-produced.
func (f *FuserService) rerank(ctx context.Context, ordered []*model.Candidate, opts FuseOptions) bool {
	m := f.rerankTopM
	if m > len(ordered) {
		m = len(ordered)
	}

	items := make([]RerankItem, 0, m)
	for _, c := range ordered[:m] {
		if c.Document == nil {
			continue
		}
		items = append(items, RerankItem{
			ID:            c.DocumentID,
			Title:         c.Document.Title,
			Excerpt:       truncate(c.Document.Excerpt, 300),
			Type:          c.Document.Type,
			FreshnessDays: freshnessDays(c.Document.PublishedAt),
			WordCount:     c.Document.WordCount,
			Categories:    taxonNames(c.Document.Categories),
			Tags:          taxonNames(c.Document.Tags),
			LexicalScore:  c.LexicalScore,
		})
	}

	scores := f.llm.Rerank(ctx, opts.Query, opts.RerankInstructions, opts.Intent, items)
	byID := make(map[string]RerankScore, len(scores))
	for _, s := range scores {
		byID[s.ID] = s
	}

	anyEstimated := false
	for _, c := range ordered[:m] {
		if s, ok := byID[c.DocumentID]; ok {
			c.AIScore = float64(s.AIScore)
			c.Explanation.Reason = s.Reason
			c.Explanation.ScoreEstimated = s.ScoreEstimated
			if s.ScoreEstimated {
				anyEstimated = true
			}
		} else {
			c.AIScore = c.LexicalScore * 0.9 * 100
			c.Explanation.ScoreEstimated = true
			anyEstimated = true
		}
	}
	for _, c := range ordered[m:] {
		c.AIScore = c.LexicalScore * 0.9 * 100
		c.Explanation.ScoreEstimated = true
		anyEstimated = true
	}
	return anyEstimated
}

// freshnessDays returns -1 when publishedAt is unknown, signaling the
// reranker prompt to omit the freshness bonus entirely.
func freshnessDays(publishedAt *time.Time) int {
	if publishedAt == nil || publishedAt.IsZero() {
		return -1
	}
	days := int(time.Since(*publishedAt).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func taxonNames(taxons []model.Taxon) []string {
	names := make([]string, len(taxons))
	for i, t := range taxons {
		names[i] = t.Name
	}
	return names
}

// resolveWeights applies §4.10's dynamic aiWeight adjustment.
func (f *FuserService) resolveWeights(opts FuseOptions) (aiWeight, lexicalWeight float64) {
	aiWeight = f.defaultWeight
	if opts.AIWeight != nil {
		aiWeight = *opts.AIWeight
	}

	trimmed := strings.TrimSpace(opts.Query)
	isQuoted := strings.HasPrefix(trimmed, `"`) && strings.HasSuffix(trimmed, `"`) && len(trimmed) > 1
	tokenCount := len(strings.Fields(trimmed))

	switch {
	case tokenCount <= 2 || isQuoted:
		aiWeight *= 0.8
	case opts.Intent == model.IntentPersonName:
		aiWeight = min(aiWeight*1.15, 0.9)
	case tokenCount >= 6 || opts.Intent == model.IntentHowTo:
		aiWeight = min(aiWeight*1.1, 0.85)
	}

	if aiWeight < 0 {
		aiWeight = 0
	}
	if aiWeight > 1 {
		aiWeight = 1
	}
	return aiWeight, 1 - aiWeight
}

// postTypeRank returns the index of doc's type in priority, or len(priority)
// if absent (lowest priority, per §4.10's "lower index wins" tie-break).
func postTypeRank(doc *model.Document, priority []string) int {
	if doc == nil {
		return len(priority)
	}
	for i, t := range priority {
		if t == doc.Type {
			return i
		}
	}
	return len(priority)
}

// finalSort applies the spec's single composite-key ordering: hybrid score
// descending, then post-type priority ascending, then document id ascending.
// This is one sort.Slice call over a composite comparator, never repeated
// nested sorts, so the ordering is stable and well-defined for exact ties.
func finalSort(candidates []*model.Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.HybridScore != b.HybridScore {
			return a.HybridScore > b.HybridScore
		}
		if a.Explanation.PostTypePriority != b.Explanation.PostTypePriority {
			return a.Explanation.PostTypePriority < b.Explanation.PostTypePriority
		}
		return a.DocumentID < b.DocumentID
	})
}

// reciprocalRankFusion scores every document id appearing in either ranked
// list by Σ 1/(k + rank), rank 1-indexed within its list (§4.10).
func reciprocalRankFusion(lexical, semantic []string) map[string]float64 {
	scores := make(map[string]float64)
	for rank, id := range lexical {
		scores[id] += 1.0 / float64(rrfK+rank+1)
	}
	for rank, id := range semantic {
		scores[id] += 1.0 / float64(rrfK+rank+1)
	}
	return scores
}
