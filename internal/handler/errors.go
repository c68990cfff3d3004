package handler

import (
	"encoding/json"
	"net/http"

	"github.com/connexus-ai/hybridsearch/internal/apperror"
	"github.com/connexus-ai/hybridsearch/internal/middleware"
)

var errMissingID = apperror.New(apperror.Validation, "document id is required")

type errorEnvelope struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"requestId"`
	Details   map[string]any `json:"details,omitempty"`
}

type errorResponse struct {
	Success bool          `json:"success"`
	Error   errorEnvelope `json:"error"`
}

// WriteError maps a service-layer error to the common error envelope and the
// HTTP status mandated by the taxonomy (§7). DependencyDegraded never
// reaches here — callers absorb it and still return a 200.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperror.KindOf(err)
	status := apperror.HTTPStatus(kind)

	var details map[string]any
	if ae, ok := err.(*apperror.Error); ok {
		details = ae.Details
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{
		Success: false,
		Error: errorEnvelope{
			Code:      string(kind),
			Message:   err.Error(),
			RequestID: middleware.RequestIDFromContext(r.Context()),
			Details:   details,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
