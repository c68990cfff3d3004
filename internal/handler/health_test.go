package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/connexus-ai/hybridsearch/internal/model"
)

func TestHealth_AllComponentsOK(t *testing.T) {
	handler := Health(map[string]ComponentChecker{
		"vector_index": func(ctx context.Context) error { return nil },
		"llm":          func(ctx context.Context) error { return nil },
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp model.HealthStatus
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	if resp.Components["vector_index"] != "ok" || resp.Components["llm"] != "ok" {
		t.Errorf("components = %+v, want all ok", resp.Components)
	}
}

func TestHealth_PartialFailureIsDegradedBut200(t *testing.T) {
	handler := Health(map[string]ComponentChecker{
		"vector_index": func(ctx context.Context) error { return fmt.Errorf("down") },
		"llm":          func(ctx context.Context) error { return nil },
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for partial degradation", rec.Code)
	}
	var resp model.HealthStatus
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Status != "degraded" {
		t.Errorf("status = %q, want degraded", resp.Status)
	}
}

func TestHealth_TotalFailureIs503(t *testing.T) {
	handler := Health(map[string]ComponentChecker{
		"vector_index": func(ctx context.Context) error { return fmt.Errorf("down") },
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 for total failure", rec.Code)
	}
}

func TestHealth_NoCheckersIsHealthy(t *testing.T) {
	handler := Health(nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
