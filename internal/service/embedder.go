package service

import (
	"context"
	"fmt"
	"math"

	"github.com/connexus-ai/hybridsearch/internal/cache"
)

const (
	// maxBatchSize is the max texts per embedding API call.
	maxBatchSize = 250
)

// EmbeddingClient abstracts the embedding backend for document batches.
// Implemented by gcpclient.EmbeddingAdapter.
type EmbeddingClient interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// QueryEmbeddingClient abstracts the embedding backend for a single query,
// which Vertex AI serves under a distinct (asymmetric) task type.
type QueryEmbeddingClient interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedderService implements C3: it turns chunk text into vectors for
// indexing, and query text into a single cached vector for retrieval.
type EmbedderService struct {
	docClient   EmbeddingClient
	queryClient QueryEmbeddingClient
	cache       *cache.QueryEmbeddingCache
	dimensions  int
}

// NewEmbedderService creates an EmbedderService. dimensions is the expected
// vector width (D≈384 per the default model); vectors of any other width are
// rejected rather than silently stored.
func NewEmbedderService(docClient EmbeddingClient, queryClient QueryEmbeddingClient, queryCache *cache.QueryEmbeddingCache, dimensions int) *EmbedderService {
	return &EmbedderService{
		docClient:   docClient,
		queryClient: queryClient,
		cache:       queryCache,
		dimensions:  dimensions,
	}
}

// EmbedBatch generates one L2-normalized vector per input text, batching
// calls at maxBatchSize. Used when indexing chunks (C5 -> C3 -> C1/C2). D is
// fixed per collection (§3): a vector of the wrong width is a fatal indexing
// error, never silently masked as a zero vector, since an undetected
// dimension drift would corrupt the vector index.
func (s *EmbedderService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	allVectors := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]

		vectors, err := s.docClient.EmbedTexts(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("service.EmbedBatch: batch %d-%d: %w", i, end, err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("service.EmbedBatch: got %d vectors for %d texts", len(vectors), len(batch))
		}
		for j, vec := range vectors {
			if s.dimensions > 0 && len(vec) != s.dimensions {
				return nil, fmt.Errorf("service.EmbedBatch: embedding dimension mismatch: got %d, want %d", len(vec), s.dimensions)
			}
			vectors[j] = l2Normalize(vec)
		}
		allVectors = append(allVectors, vectors...)
	}
	return allVectors, nil
}

// EmbedQuery embeds a single query, memoized in a bounded LRU keyed by a
// normalized form of the text (§4.3). A cache miss or embedding-provider
// failure never fails the request: callers degrade to lexical-only search
// by treating an all-zero vector as "no embedding available".
func (s *EmbedderService) EmbedQuery(ctx context.Context, query string) []float32 {
	if s.cache != nil {
		if vec, ok := s.cache.Get(query); ok {
			return vec
		}
	}

	vectors, err := s.queryClient.Embed(ctx, []string{query})
	if err != nil || len(vectors) == 0 {
		return make([]float32, s.dimensions)
	}

	vec := s.normalizeOrZero(vectors[0])
	if s.cache != nil {
		s.cache.Set(query, vec)
	}
	return vec
}

// normalizeOrZero validates dimensionality and L2-normalizes the vector, used
// only by EmbedQuery: a mismatched dimension there degrades to the canonical
// all-zero "no embedding" sentinel rather than failing the search request.
func (s *EmbedderService) normalizeOrZero(vec []float32) []float32 {
	if s.dimensions > 0 && len(vec) != s.dimensions {
		return make([]float32, s.dimensions)
	}
	return l2Normalize(vec)
}

// IsZeroVector reports whether vec is the all-zero sentinel meaning no
// semantic embedding is available for this text.
func IsZeroVector(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

// l2Normalize normalizes a vector to unit length (L2 norm = 1). A zero-norm
// vector is returned unchanged (it already is the "no embedding" sentinel).
func l2Normalize(vec []float32) []float32 {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return vec
	}

	result := make([]float32, len(vec))
	for i, v := range vec {
		result[i] = float32(float64(v) / norm)
	}
	return result
}
