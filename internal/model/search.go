package model

import "time"

// SearchRequest is the input to the search orchestrator (C12).
type SearchRequest struct {
	Query                string   `json:"query"`
	Limit                int      `json:"limit"`
	Offset               int      `json:"offset"`
	EnableReranking      bool     `json:"enableReranking"`
	AIWeight             *float64 `json:"aiWeight,omitempty"`
	RerankInstructions   string   `json:"rerankInstructions,omitempty"`
	IncludeAnswer        bool     `json:"includeAnswer"`
	StrictAnswer         *bool    `json:"strictAnswer,omitempty"` // default true
	PostTypePriority     []string `json:"postTypePriority,omitempty"`
	EnableQueryExpansion *bool    `json:"enableQueryExpansion,omitempty"` // default true
	Filters              *Filters `json:"filters,omitempty"`
}

// Filters narrows the corpus considered during retrieval.
type Filters struct {
	Type       string   `json:"type,omitempty"`
	DateFrom   string   `json:"dateFrom,omitempty"`
	DateTo     string   `json:"dateTo,omitempty"`
	Author     string   `json:"author,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// SearchResult is a single ranked document in a SearchResponse.
type SearchResult struct {
	DocumentID string              `json:"documentId"`
	Title      string              `json:"title"`
	Excerpt    string              `json:"excerpt"`
	URL        string              `json:"url"`
	Type       string              `json:"type"`
	Score      float64             `json:"score"`
	Ranking    *RankingExplanation `json:"ranking,omitempty"`
}

// Pagination describes the window returned out of the full candidate set.
type Pagination struct {
	Offset       int  `json:"offset"`
	Limit        int  `json:"limit"`
	HasMore      bool `json:"hasMore"`
	TotalResults int  `json:"totalResults"`
}

// SearchMetadata describes how the response was produced.
type SearchMetadata struct {
	Query             string      `json:"query"`
	Intent            QueryIntent `json:"intent"`
	IntentInstructions string     `json:"intentInstructions"`
	RewrittenQuery    string      `json:"rewrittenQuery,omitempty"`
	AltQueries        []string    `json:"altQueries,omitempty"`
	AIWeight          float64     `json:"aiWeight"`
	LexicalWeight     float64     `json:"lexicalWeight"`
	ResponseTimeMs    int64       `json:"responseTimeMs"`
	RerankUsed        bool        `json:"rerankUsed"`
	TokensUsed        int         `json:"tokensUsed,omitempty"`
	EstimatedScores   bool        `json:"estimatedScores,omitempty"`
	PromptVersion     string      `json:"promptVersion,omitempty"`
}

// Answer is the strict-mode extractive answer (C11).
type Answer struct {
	Text           string   `json:"answer"`
	CitedSourceIDs []string `json:"citedSourceIds"`
}

// SearchResponse is the output of a successful search.
type SearchResponse struct {
	Results    []SearchResult  `json:"results"`
	Pagination Pagination      `json:"pagination"`
	Metadata   SearchMetadata  `json:"metadata"`
	Answer     *Answer         `json:"answer,omitempty"`
}

// IndexRequest is the input to POST /index.
type IndexRequest struct {
	ForceFull bool     `json:"forceFull"`
	Types     []string `json:"types,omitempty"`
}

// IndexResult is the output of an indexing run.
type IndexResult struct {
	Indexed    int      `json:"indexed"`
	Skipped    int      `json:"skipped"`
	Failed     int      `json:"failed"`
	DurationMs int64    `json:"durationMs"`
	Errors     []string `json:"errors,omitempty"`
}

// HealthStatus is the output of GET /health.
type HealthStatus struct {
	Status     string            `json:"status"` // "healthy" | "degraded"
	Components map[string]string `json:"components"`
}

// AuditEntry is one row of the search audit log (§4.14): a record of a
// served query, kept for traffic analysis and content-gap detection.
type AuditEntry struct {
	ID              string    `json:"id"`
	Query           string    `json:"query"`
	Intent          string    `json:"intent"`
	ResultCount     int       `json:"resultCount"`
	ResponseTimeMs  int64     `json:"responseTimeMs"`
	SemanticDegraded bool     `json:"semanticDegraded"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Stats is the output of GET /stats.
type Stats struct {
	DocumentCount int    `json:"documentCount"`
	ChunkCount    int    `json:"chunkCount"`
	VectorCount   int    `json:"vectorCount"`
	VocabularySize int   `json:"vocabularySize"`
	IndexStatus   string `json:"indexStatus"`
}
