package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/connexus-ai/hybridsearch/internal/cache"
)

const testDim = 384

// mockEmbeddingClient implements EmbeddingClient for testing.
type mockEmbeddingClient struct {
	vectors [][]float32
	err     error
	calls   int
}

func (m *mockEmbeddingClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	result := make([][]float32, len(texts))
	for i := range texts {
		if i < len(m.vectors) {
			result[i] = m.vectors[i]
		} else {
			vec := make([]float32, testDim)
			vec[0] = float32(i + 1)
			vec[1] = 0.5
			result[i] = vec
		}
	}
	return result, nil
}

// mockQueryEmbeddingClient implements QueryEmbeddingClient for testing.
type mockQueryEmbeddingClient struct {
	vectors [][]float32
	err     error
	calls   int
}

func (m *mockQueryEmbeddingClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.vectors, nil
}

func newTestCache() *cache.QueryEmbeddingCache {
	return cache.NewQueryEmbeddingCache(1000, 24*time.Hour)
}

func TestEmbedBatch_Success(t *testing.T) {
	vec := make([]float32, testDim)
	vec[0] = 1.0
	client := &mockEmbeddingClient{vectors: [][]float32{vec}}
	svc := NewEmbedderService(client, nil, nil, testDim)

	vectors, err := svc.EmbedBatch(context.Background(), []string{"hello world"})
	if err != nil {
		t.Fatalf("EmbedBatch() error: %v", err)
	}
	if len(vectors) != 1 {
		t.Fatalf("expected 1 vector, got %d", len(vectors))
	}
	if len(vectors[0]) != testDim {
		t.Errorf("vector dimensions = %d, want %d", len(vectors[0]), testDim)
	}
}

func TestEmbedBatch_L2Normalized(t *testing.T) {
	vec := make([]float32, testDim)
	vec[0] = 3.0
	vec[1] = 4.0
	client := &mockEmbeddingClient{vectors: [][]float32{vec}}
	svc := NewEmbedderService(client, nil, nil, testDim)

	vectors, err := svc.EmbedBatch(context.Background(), []string{"test"})
	if err != nil {
		t.Fatalf("EmbedBatch() error: %v", err)
	}

	var sumSq float64
	for _, v := range vectors[0] {
		sumSq += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSq)
	if math.Abs(norm-1.0) > 0.001 {
		t.Errorf("L2 norm = %f, want ~1.0", norm)
	}
}

func TestEmbedBatch_Batching(t *testing.T) {
	client := &mockEmbeddingClient{}
	svc := NewEmbedderService(client, nil, nil, testDim)

	texts := make([]string, 300)
	for i := range texts {
		texts[i] = fmt.Sprintf("text %d", i)
	}

	vectors, err := svc.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch() error: %v", err)
	}
	if len(vectors) != 300 {
		t.Errorf("expected 300 vectors, got %d", len(vectors))
	}
	if client.calls != 2 {
		t.Errorf("expected 2 API calls (batch of 250 + 50), got %d", client.calls)
	}
}

func TestEmbedBatch_ExactBatchBoundary(t *testing.T) {
	client := &mockEmbeddingClient{}
	svc := NewEmbedderService(client, nil, nil, testDim)

	texts := make([]string, 250)
	for i := range texts {
		texts[i] = fmt.Sprintf("text %d", i)
	}

	vectors, err := svc.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch() error: %v", err)
	}
	if len(vectors) != 250 {
		t.Errorf("expected 250 vectors, got %d", len(vectors))
	}
	if client.calls != 1 {
		t.Errorf("expected 1 API call for 250 texts, got %d", client.calls)
	}
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	client := &mockEmbeddingClient{}
	svc := NewEmbedderService(client, nil, nil, testDim)

	vectors, err := svc.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch() should succeed for empty input: %v", err)
	}
	if vectors != nil {
		t.Errorf("expected nil vectors for empty input, got %v", vectors)
	}
}

func TestEmbedBatch_ClientError(t *testing.T) {
	client := &mockEmbeddingClient{err: fmt.Errorf("API rate limit exceeded")}
	svc := NewEmbedderService(client, nil, nil, testDim)

	_, err := svc.EmbedBatch(context.Background(), []string{"test"})
	if err == nil {
		t.Fatal("expected error when client fails")
	}
}

func TestEmbedBatch_WrongDimensionsIsError(t *testing.T) {
	vec := make([]float32, 100) // wrong width
	client := &mockEmbeddingClient{vectors: [][]float32{vec}}
	svc := NewEmbedderService(client, nil, nil, testDim)

	vectors, err := svc.EmbedBatch(context.Background(), []string{"test"})
	if err == nil {
		t.Fatal("EmbedBatch() should error on dimension mismatch")
	}
	if !strings.Contains(err.Error(), "dimension mismatch") {
		t.Errorf("error = %v, want a dimension mismatch error", err)
	}
	if vectors != nil {
		t.Errorf("expected no vectors on dimension mismatch, got %d", len(vectors))
	}
}

func TestEmbedQuery_CacheHit(t *testing.T) {
	vec := make([]float32, testDim)
	vec[0] = 1.0
	c := newTestCache()
	c.Set("hello", vec)

	queryClient := &mockQueryEmbeddingClient{}
	svc := NewEmbedderService(nil, queryClient, c, testDim)

	got := svc.EmbedQuery(context.Background(), "hello")
	if got[0] != 1.0 {
		t.Errorf("expected cached vector, got %v", got)
	}
	if queryClient.calls != 0 {
		t.Errorf("expected no provider call on cache hit, got %d calls", queryClient.calls)
	}
}

func TestEmbedQuery_MissFillsCache(t *testing.T) {
	vec := make([]float32, testDim)
	vec[0] = 3.0
	vec[1] = 4.0
	queryClient := &mockQueryEmbeddingClient{vectors: [][]float32{vec}}
	c := newTestCache()
	svc := NewEmbedderService(nil, queryClient, c, testDim)

	got := svc.EmbedQuery(context.Background(), "hello world")
	if IsZeroVector(got) {
		t.Fatal("expected non-zero vector on successful embed")
	}
	if c.Len() != 1 {
		t.Errorf("expected cache to be populated, len = %d", c.Len())
	}

	// second call should be served from cache, no further provider calls
	_ = svc.EmbedQuery(context.Background(), "hello world")
	if queryClient.calls != 1 {
		t.Errorf("expected exactly 1 provider call across both lookups, got %d", queryClient.calls)
	}
}

func TestEmbedQuery_ProviderErrorDegradesToZeroVector(t *testing.T) {
	queryClient := &mockQueryEmbeddingClient{err: fmt.Errorf("provider unavailable")}
	svc := NewEmbedderService(nil, queryClient, newTestCache(), testDim)

	got := svc.EmbedQuery(context.Background(), "hello")
	if !IsZeroVector(got) {
		t.Error("expected all-zero vector when the embedding provider fails")
	}
	if len(got) != testDim {
		t.Errorf("zero vector width = %d, want %d", len(got), testDim)
	}
}

func TestEmbedQuery_NormalizedKeyCollision(t *testing.T) {
	vec := make([]float32, testDim)
	vec[0] = 1.0
	queryClient := &mockQueryEmbeddingClient{vectors: [][]float32{vec}}
	c := newTestCache()
	svc := NewEmbedderService(nil, queryClient, c, testDim)

	_ = svc.EmbedQuery(context.Background(), "  Hello   World  ")
	_ = svc.EmbedQuery(context.Background(), "hello world")

	if queryClient.calls != 1 {
		t.Errorf("expected normalization to collapse both queries to one cache key, got %d provider calls", queryClient.calls)
	}
}

func TestL2Normalize(t *testing.T) {
	vec := []float32{3.0, 4.0, 0, 0, 0}
	result := l2Normalize(vec)

	if math.Abs(float64(result[0])-0.6) > 0.001 {
		t.Errorf("result[0] = %f, want ~0.6", result[0])
	}
	if math.Abs(float64(result[1])-0.8) > 0.001 {
		t.Errorf("result[1] = %f, want ~0.8", result[1])
	}
}

func TestL2Normalize_ZeroVector(t *testing.T) {
	vec := []float32{0, 0, 0}
	result := l2Normalize(vec)
	if result[0] != 0 || result[1] != 0 || result[2] != 0 {
		t.Error("zero vector should remain zero")
	}
}

func TestIsZeroVector(t *testing.T) {
	if !IsZeroVector(make([]float32, testDim)) {
		t.Error("all-zero vector should report true")
	}
	nonZero := make([]float32, testDim)
	nonZero[10] = 0.1
	if IsZeroVector(nonZero) {
		t.Error("non-zero vector should report false")
	}
}
