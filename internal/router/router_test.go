package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/connexus-ai/hybridsearch/internal/handler"
	"github.com/connexus-ai/hybridsearch/internal/model"
)

type stubSearcher struct{}

func (stubSearcher) Search(ctx context.Context, req model.SearchRequest) (*model.SearchResponse, error) {
	return &model.SearchResponse{Results: []model.SearchResult{{DocumentID: "a"}}}, nil
}

type stubIndexer struct{}

func (stubIndexer) IndexDocuments(ctx context.Context, types []string, forceFull bool) (*model.IndexResult, error) {
	return &model.IndexResult{Indexed: 1}, nil
}

type stubDeleter struct{}

func (stubDeleter) DeleteDocument(ctx context.Context, id string) error { return nil }

type stubLexicalStats struct{}

func (stubLexicalStats) Count() (int, int)    { return 3, 12 }
func (stubLexicalStats) VocabularySize() int { return 400 }

func newTestDeps() *Dependencies {
	return &Dependencies{
		FrontendURL:     "https://example.com",
		Searcher:        stubSearcher{},
		Indexer:         stubIndexer{},
		DocumentDeleter: stubDeleter{},
		Lexical:         stubLexicalStats{},
		HealthCheckers:  map[string]handler.ComponentChecker{},
	}
}

func TestRouter_SearchRoute(t *testing.T) {
	r := New(newTestDeps())
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query":"estate planning"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
}

func TestRouter_HealthRoute(t *testing.T) {
	r := New(newTestDeps())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRouter_DeleteDocumentRoute(t *testing.T) {
	r := New(newTestDeps())
	req := httptest.NewRequest(http.MethodDelete, "/document/abc", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRouter_StatsRoute(t *testing.T) {
	r := New(newTestDeps())
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRouter_SuggestRouteAbsentWhenNoSuggester(t *testing.T) {
	r := New(newTestDeps())
	req := httptest.NewRequest(http.MethodGet, "/suggest?query=estate", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 when no suggester is configured", rec.Code)
	}
}

func TestRouter_UnknownRouteIs404(t *testing.T) {
	r := New(newTestDeps())
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
