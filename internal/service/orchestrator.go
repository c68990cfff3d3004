package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/connexus-ai/hybridsearch/internal/apperror"
	"github.com/connexus-ai/hybridsearch/internal/model"
)

const (
	minQueryLen  = 2
	maxQueryLen  = 500
	minLimit     = 1
	maxLimit     = 100
	defaultLimit = 20
)

// DocumentIndexer is the subset of DocumentStore the orchestrator needs for
// indexDocuments, kept as an interface so tests can substitute a fake.
type DocumentIndexer interface {
	UpsertDocuments(docs []*model.Document, chunksByDoc map[string][]*model.Chunk) UpsertResult
	ReplaceAll(docs []*model.Document, chunksByDoc map[string][]*model.Chunk)
	DeleteDocument(id string)
	Count() (docs int, chunks int)
}

// VectorIndexWriter is the subset of C2 the orchestrator needs to keep the
// vector index in sync with the document store during indexing.
type VectorIndexWriter interface {
	UpsertBatch(ctx context.Context, documentID string, chunks []*model.Chunk, vectors [][]float32) error
	DeleteDocument(ctx context.Context, documentID string) error
}

// DegradationRecorder observes non-fatal dependency failures, independent of
// how they're surfaced to an operator (Prometheus, logs, ...).
// *middleware.Metrics satisfies this structurally.
type DegradationRecorder interface {
	IncrementDependencyDegradation(component string)
}

// AuditRecorder persists §4.14's search audit log. The orchestrator always
// calls Record off the request path (in its own goroutine) and logs rather
// than propagates any error, so a database outage never turns a successful
// search into a failed one.
type AuditRecorder interface {
	Record(ctx context.Context, entry model.AuditEntry) error
}

// OrchestratorService implements C12: the public search and indexDocuments
// operations, wiring every other component together.
type OrchestratorService struct {
	store     DocumentIndexer
	index     VectorIndexWriter
	fetcher   *FetcherService
	chunker   *ChunkerService
	embedder  *EmbedderService
	analyzer  *AnalyzerService
	expander  *ExpanderService
	retriever *RetrieverService
	fuser     *FuserService
	answerer  *AnswererService
	llm       *LLMClient

	degradations DegradationRecorder
	auditLog     AuditRecorder
	archiver     *ArchiverService
}

// NewOrchestratorService wires the full pipeline. degradations, auditLog and
// archiver may all be nil.
func NewOrchestratorService(
	store DocumentIndexer,
	index VectorIndexWriter,
	fetcher *FetcherService,
	chunker *ChunkerService,
	embedder *EmbedderService,
	analyzer *AnalyzerService,
	expander *ExpanderService,
	retriever *RetrieverService,
	fuser *FuserService,
	answerer *AnswererService,
	llm *LLMClient,
	degradations DegradationRecorder,
	auditLog AuditRecorder,
	archiver *ArchiverService,
) *OrchestratorService {
	return &OrchestratorService{
		store: store, index: index, fetcher: fetcher, chunker: chunker, embedder: embedder,
		analyzer: analyzer, expander: expander, retriever: retriever, fuser: fuser, answerer: answerer, llm: llm,
		degradations: degradations, auditLog: auditLog, archiver: archiver,
	}
}

// archiveRaw archives doc's raw CMS payload and stamps the resulting URI
// onto doc.RawPayloadURI. A failure is logged and recorded as a dependency
// degradation but never aborts indexing (§4.4a).
func (o *OrchestratorService) archiveRaw(ctx context.Context, doc *model.Document) {
	if o.archiver == nil {
		return
	}
	uri, err := o.archiver.Archive(ctx, doc)
	if err != nil {
		slog.Warn("document archival failed", "document", doc.ID, "error", err)
		if o.degradations != nil {
			o.degradations.IncrementDependencyDegradation("archive_store")
		}
		return
	}
	if uri != "" {
		doc.RawPayloadURI = uri
	}
}

// Search runs the full request state machine: validate, classify, expand,
// retrieve, fuse, paginate, answer (§4.12).
func (o *OrchestratorService) Search(ctx context.Context, req model.SearchRequest) (*model.SearchResponse, error) {
	start := time.Now()

	if err := validateSearchRequest(req); err != nil {
		return nil, err
	}

	intent, instructions := o.analyzer.Analyze(req.Query, "")

	rewritten := o.llm.RewriteQuery(ctx, req.Query)
	seedQuery := req.Query
	if rewritten.RewrittenQuery != "" {
		seedQuery = rewritten.RewrittenQuery
	}

	variants := []string{seedQuery}
	if req.EnableQueryExpansion == nil || *req.EnableQueryExpansion {
		variants = o.expander.Expand(ctx, seedQuery)
	}

	streams, err := o.retriever.Retrieve(ctx, variants)
	if err != nil {
		return nil, apperror.Wrap(apperror.DependencyFatal, "retrieval failed", err)
	}
	if streams.SemanticDegraded && o.degradations != nil {
		o.degradations.IncrementDependencyDegradation("vector_index")
	}

	fuseResult := o.fuser.Fuse(ctx, streams, FuseOptions{
		Query:              req.Query,
		Intent:             intent,
		AIWeight:           req.AIWeight,
		EnableReranking:    req.EnableReranking,
		RerankInstructions: req.RerankInstructions,
		PostTypePriority:   req.PostTypePriority,
	})

	filtered := applyFilters(fuseResult.Ranked, req.Filters)

	total := len(filtered)
	offset := req.Offset
	limit := req.Limit
	if limit == 0 {
		limit = defaultLimit
	}
	end := offset + limit
	if end > total {
		end = total
	}
	var page []*model.Candidate
	if offset < total {
		page = filtered[offset:end]
	}

	results := make([]model.SearchResult, 0, len(page))
	for _, c := range page {
		if c.Document == nil {
			continue
		}
		exp := c.Explanation
		results = append(results, model.SearchResult{
			DocumentID: c.DocumentID,
			Title:      c.Document.Title,
			Excerpt:    c.Document.Excerpt,
			URL:        c.Document.URL,
			Type:       c.Document.Type,
			Score:      c.HybridScore,
			Ranking:    &exp,
		})
	}

	var answer *model.Answer
	var altQueries []string
	if req.IncludeAnswer {
		answer = o.answerer.Answer(ctx, req.Query, page)
		altQueries = o.answerer.AltQueries(ctx, req.Query, page)
	}

	resp := &model.SearchResponse{
		Results: results,
		Pagination: model.Pagination{
			Offset:       offset,
			Limit:        limit,
			HasMore:      end < total,
			TotalResults: total,
		},
		Metadata: model.SearchMetadata{
			Query:              req.Query,
			Intent:             intent,
			IntentInstructions: instructions,
			RewrittenQuery:     rewritten.RewrittenQuery,
			AltQueries:         altQueries,
			AIWeight:           fuseResult.AIWeight,
			LexicalWeight:      fuseResult.LexicalWeight,
			ResponseTimeMs:     time.Since(start).Milliseconds(),
			RerankUsed:         fuseResult.RerankUsed,
			EstimatedScores:    fuseResult.EstimatedScores,
		},
		Answer: answer,
	}

	if o.auditLog != nil {
		go func() {
			entry := model.AuditEntry{
				Query:            req.Query,
				Intent:           string(intent),
				ResultCount:      total,
				ResponseTimeMs:   resp.Metadata.ResponseTimeMs,
				SemanticDegraded: streams.SemanticDegraded,
			}
			if err := o.auditLog.Record(context.WithoutCancel(ctx), entry); err != nil {
				slog.Warn("search audit log write failed", "error", err)
			}
		}()
	}

	return resp, nil
}

func validateSearchRequest(req model.SearchRequest) error {
	if l := len(req.Query); l < minQueryLen || l > maxQueryLen {
		return apperror.New(apperror.Validation, "query must be between 2 and 500 characters")
	}
	if req.Limit != 0 && (req.Limit < minLimit || req.Limit > maxLimit) {
		return apperror.New(apperror.Validation, "limit must be between 1 and 100")
	}
	if req.Offset < 0 {
		return apperror.New(apperror.Validation, "offset must be >= 0")
	}
	return nil
}

func applyFilters(candidates []*model.Candidate, filters *model.Filters) []*model.Candidate {
	if filters == nil {
		return candidates
	}
	out := make([]*model.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Document == nil {
			continue
		}
		if filters.Type != "" && c.Document.Type != filters.Type {
			continue
		}
		if filters.Author != "" && c.Document.Author != filters.Author {
			continue
		}
		if !matchesDateRange(c.Document.PublishedAt, filters.DateFrom, filters.DateTo) {
			continue
		}
		if len(filters.Categories) > 0 && !taxonsOverlap(c.Document.Categories, filters.Categories) {
			continue
		}
		if len(filters.Tags) > 0 && !taxonsOverlap(c.Document.Tags, filters.Tags) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func matchesDateRange(publishedAt *time.Time, from, to string) bool {
	if from == "" && to == "" {
		return true
	}
	if publishedAt == nil {
		return false
	}
	if from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil && publishedAt.Before(t) {
			return false
		}
	}
	if to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil && publishedAt.After(t) {
			return false
		}
	}
	return true
}

func taxonsOverlap(taxons []model.Taxon, slugs []string) bool {
	want := make(map[string]bool, len(slugs))
	for _, s := range slugs {
		want[s] = true
	}
	for _, t := range taxons {
		if want[t.Slug] {
			return true
		}
	}
	return false
}

// IndexDocuments implements the indexDocuments public operation: fetch,
// chunk, embed, and either a full rebuild (build-then-swap) or incremental
// upsert (§4.12).
func (o *OrchestratorService) IndexDocuments(ctx context.Context, types []string, forceFull bool) (*model.IndexResult, error) {
	start := time.Now()
	result := &model.IndexResult{}

	docCh, report := o.fetcher.Fetch(ctx, types)

	var docs []*model.Document
	chunksByDoc := make(map[string][]*model.Chunk)
	for doc := range docCh {
		docs = append(docs, doc)
		o.archiveRaw(ctx, doc)
		chunks := o.chunker.Chunk(doc)
		if len(chunks) == 0 {
			result.Failed++
			continue
		}
		chunksByDoc[doc.ID] = chunks
	}

	for _, skipped := range report.Skipped {
		result.Skipped++
		result.Errors = append(result.Errors, "skipped unknown type: "+skipped)
	}
	for ct, fetchErr := range report.Errors {
		result.Failed++
		result.Errors = append(result.Errors, ct+": "+fetchErr.Error())
	}

	for _, doc := range docs {
		chunks, ok := chunksByDoc[doc.ID]
		if !ok {
			continue
		}
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}
		vectors, err := o.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			slog.Error("embedding failed during indexing", "document", doc.ID, "error", err)
			result.Failed++
			delete(chunksByDoc, doc.ID)
			continue
		}
		if o.index != nil {
			if err := o.index.UpsertBatch(ctx, doc.ID, chunks, vectors); err != nil {
				slog.Error("vector upsert failed during indexing", "document", doc.ID, "error", err)
				result.Failed++
				delete(chunksByDoc, doc.ID)
				continue
			}
		}
		result.Indexed++
	}

	indexable := make([]*model.Document, 0, len(docs))
	for _, doc := range docs {
		if _, ok := chunksByDoc[doc.ID]; ok {
			indexable = append(indexable, doc)
		}
	}

	if forceFull {
		o.store.ReplaceAll(indexable, chunksByDoc)
	} else {
		o.store.UpsertDocuments(indexable, chunksByDoc)
	}

	result.DurationMs = time.Since(start).Milliseconds()
	return result, nil
}

// IndexSingle chunks, embeds, and upserts one already-fetched document,
// bypassing the CMS fetch stage (used by the CMS-push webhook path).
func (o *OrchestratorService) IndexSingle(ctx context.Context, doc *model.Document) error {
	o.archiveRaw(ctx, doc)
	chunks := o.chunker.Chunk(doc)
	if len(chunks) == 0 {
		return apperror.New(apperror.Validation, "document has no indexable content")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := o.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return apperror.Wrap(apperror.DependencyFatal, "embedding failed", err)
	}
	if o.index != nil {
		if err := o.index.UpsertBatch(ctx, doc.ID, chunks, vectors); err != nil {
			if o.degradations != nil {
				o.degradations.IncrementDependencyDegradation("vector_index")
			}
		}
	}

	chunksByDoc := map[string][]*model.Chunk{doc.ID: chunks}
	o.store.UpsertDocuments([]*model.Document{doc}, chunksByDoc)
	return nil
}

// DeleteDocument removes a document from both the document store and the
// vector index. Idempotent: always succeeds, whether or not id was present,
// since a vector index failure here degrades future searches but must not
// turn this call into an error (§7).
func (o *OrchestratorService) DeleteDocument(ctx context.Context, id string) error {
	o.store.DeleteDocument(id)
	if o.index != nil {
		if err := o.index.DeleteDocument(ctx, id); err != nil {
			slog.Warn("vector index delete failed, document remains searchable via stale vectors", "document", id, "error", err)
			if o.degradations != nil {
				o.degradations.IncrementDependencyDegradation("vector_index")
			}
		}
	}
	return nil
}
