package model

import "time"

// Taxon is a category or tag slug/name pair.
type Taxon struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Document is a single piece of indexable content fetched from the CMS.
// Created by the content fetcher, held by the document store and (via its
// chunks' vectors) by the vector index client. Destroyed only on explicit
// delete or full reindex.
type Document struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Body          string     `json:"body"`
	Excerpt       string     `json:"excerpt"`
	Type          string     `json:"type"` // e.g. "post", "page", "scs-professionals", "scs-services"
	URL           string     `json:"url"`
	PublishedAt   *time.Time `json:"publishedAt,omitempty"`
	Author        string     `json:"author,omitempty"`
	Categories    []Taxon    `json:"categories,omitempty"`
	Tags          []Taxon    `json:"tags,omitempty"`
	FeaturedImage string     `json:"featuredImage,omitempty"`
	WordCount     int        `json:"wordCount"`
	RawPayloadURI string     `json:"rawPayloadUri,omitempty"`
}

// Chunk is a bounded, overlapping slice of a Document's body, the unit of
// embedding. Its id is documentId#ordinal.
type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"documentId"`
	Ordinal    int    `json:"ordinal"`
	Content    string `json:"content"`

	// Parent metadata, denormalized at chunk time so scoring never needs to
	// join back to the Document during retrieval.
	Title       string     `json:"title"`
	Type        string     `json:"type"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	Categories  []Taxon    `json:"categories,omitempty"`
	Tags        []Taxon    `json:"tags,omitempty"`
}

// QueryIntent is the coarse category inferred from a query's surface form.
type QueryIntent string

const (
	IntentPersonName    QueryIntent = "person_name"
	IntentExecutiveRole QueryIntent = "executive_role"
	IntentService       QueryIntent = "service"
	IntentHowTo         QueryIntent = "howto"
	IntentNavigational  QueryIntent = "navigational"
	IntentTransactional QueryIntent = "transactional"
	IntentGeneral       QueryIntent = "general"
)

// Boosts holds the multiplicative/additive factors applied to a candidate
// during retrieval, before fusion.
type Boosts struct {
	Field      float64 `json:"field"`      // capped at 2.0
	Freshness  float64 `json:"freshness"`  // one of {1.0, 1.1, 1.2, 1.5}
	Taxonomy   float64 `json:"taxonomy"`   // capped at 1.5
}

// RankingExplanation retains the scalar components of a Candidate's score
// for an admin-visible trace.
type RankingExplanation struct {
	Lexical          float64     `json:"lexical"`
	Semantic         float64     `json:"semantic"`
	Boosts           Boosts      `json:"boosts"`
	AIScoreRaw       float64     `json:"aiScoreRaw"`       // 0..100
	AIScoreNormal    float64     `json:"aiScoreNormalized"` // 0..1
	AIWeight         float64     `json:"aiWeight"`
	LexicalWeight    float64     `json:"lexicalWeight"`
	Hybrid           float64     `json:"hybrid"`
	PostTypePriority int         `json:"postTypePriority"`
	FinalPosition    int         `json:"finalPosition"`
	ScoreEstimated   bool        `json:"scoreEstimated"`
	Reason           string      `json:"reason,omitempty"`
}

// Candidate pairs a document with its per-request ranking data. Candidates
// live only for the duration of a single search request.
type Candidate struct {
	DocumentID    string
	Document      *Document
	LexicalScore  float64
	SemanticScore float64
	Boosts        Boosts
	AIScore       float64 // 0..100, -1 if not yet scored
	HybridScore   float64
	Explanation   RankingExplanation
}
