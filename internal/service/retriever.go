package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/connexus-ai/hybridsearch/internal/model"
	"golang.org/x/sync/errgroup"
)

// VectorHit is one semantic search result.
type VectorHit struct {
	DocumentID string
	Score      float64
}

// VectorIndexClient abstracts C2's semantic search for testability.
type VectorIndexClient interface {
	SemanticSearch(ctx context.Context, vector []float32, limit int) ([]VectorHit, error)
}

// LexicalSearcher abstracts C1's TF-IDF search for testability. DocumentStore
// satisfies this directly.
type LexicalSearcher interface {
	TFIDFSearch(queries []string, limit int) []tfidfHit
	Lookup(id string) (*model.Document, bool)
}

// RankedStreams holds the per-stream ranked document ids produced by
// Retrieve: the raw input the fuser needs to run Reciprocal Rank Fusion.
type RankedStreams struct {
	Lexical  []string // document ids, descending by boosted lexical score
	Semantic []string // document ids, descending by boosted semantic score

	// Candidates is every document id seen in either stream, carrying its
	// best-across-variants boosted scores and the boost components that
	// produced the better of the two.
	Candidates map[string]*model.Candidate

	// SemanticDegraded is true if the vector index failed for at least one
	// variant; §4.2 treats this as non-fatal, falling back to TF-IDF only.
	SemanticDegraded bool
}

// RetrieverService implements C9: per-variant lexical and semantic search,
// boosted, then merged by best-of-variant.
type RetrieverService struct {
	store       LexicalSearcher
	index       VectorIndexClient
	embedder    *EmbedderService
	topK        int
	concurrency int
}

// NewRetrieverService creates a RetrieverService. topK bounds how many hits
// are requested per stream per variant; concurrency bounds how many
// lexical/semantic lookups run at once across all variants of one Retrieve
// call (RETRIEVAL_CONCURRENCY). A non-positive concurrency leaves the
// per-variant fan-out unbounded.
func NewRetrieverService(store LexicalSearcher, index VectorIndexClient, embedder *EmbedderService, topK, concurrency int) *RetrieverService {
	if topK <= 0 {
		topK = 20
	}
	return &RetrieverService{store: store, index: index, embedder: embedder, topK: topK, concurrency: concurrency}
}

// Retrieve runs lexical and semantic search for every query variant and
// merges the results keeping, per document and per stream, the maximum
// boosted score observed across variants (§4.9).
func (r *RetrieverService) Retrieve(ctx context.Context, variants []string) (*RankedStreams, error) {
	now := time.Now().UTC()

	var mu sync.Mutex
	bestLexical := make(map[string]float64)
	bestSemantic := make(map[string]float64)
	candidates := make(map[string]*model.Candidate)

	ensureLocked := func(id string) *model.Candidate {
		if c, ok := candidates[id]; ok {
			return c
		}
		doc, _ := r.store.Lookup(id)
		c := &model.Candidate{DocumentID: id, Document: doc}
		candidates[id] = c
		return c
	}

	var semanticDegraded atomic.Bool

	g, gctx := errgroup.WithContext(ctx)
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}
	for _, variant := range variants {
		variant := variant

		g.Go(func() error {
			hits := r.store.TFIDFSearch([]string{variant}, r.topK)
			mu.Lock()
			defer mu.Unlock()
			for _, h := range hits {
				c := ensureLocked(h.DocumentID)
				if c.Document == nil {
					continue
				}
				b := computeBoosts(variant, c.Document, now)
				boosted := h.Score * b.Field * b.Freshness * b.Taxonomy
				if boosted > bestLexical[h.DocumentID] {
					bestLexical[h.DocumentID] = boosted
					c.LexicalScore = boosted
					c.Boosts = b
				}
			}
			return nil
		})

		g.Go(func() error {
			vec := r.embedder.EmbedQuery(gctx, variant)
			if IsZeroVector(vec) {
				return nil
			}
			hits, err := r.index.SemanticSearch(gctx, vec, r.topK)
			if err != nil {
				slog.Warn("semantic search degraded, falling back to lexical only", "variant", variant, "error", err)
				semanticDegraded.Store(true)
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			for _, h := range hits {
				c := ensureLocked(h.DocumentID)
				if c.Document == nil {
					continue
				}
				b := computeBoosts(variant, c.Document, now)
				boosted := h.Score * b.Field * b.Freshness * b.Taxonomy
				if boosted > bestSemantic[h.DocumentID] {
					bestSemantic[h.DocumentID] = boosted
					c.SemanticScore = boosted
					if boosted > bestLexical[h.DocumentID] {
						c.Boosts = b
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &RankedStreams{
		Lexical:          rankByScore(bestLexical),
		Semantic:         rankByScore(bestSemantic),
		Candidates:       candidates,
		SemanticDegraded: semanticDegraded.Load(),
	}, nil
}

func rankByScore(scores map[string]float64) []string {
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if scores[ids[i]] != scores[ids[j]] {
			return scores[ids[i]] > scores[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}
