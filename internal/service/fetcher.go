package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/connexus-ai/hybridsearch/internal/model"
)

const (
	fetchPageSize     = 50
	fetchMaxPages     = 100
	fetchHardCapTotal = 5000
)

// CMSPage is one page of raw documents for a single content type, as
// returned by the upstream CMS's list endpoint.
type CMSPage struct {
	Documents []*model.Document
	HasMore   bool
}

// CMSClient abstracts the external CMS so FetcherService is testable without
// a live HTTP dependency.
type CMSClient interface {
	// FetchPage retrieves one page (1-indexed) of documents of contentType.
	// A 404 means the type itself is unknown; any other non-2xx is treated
	// as transient by the caller's retry policy.
	FetchPage(ctx context.Context, contentType string, page int) (CMSPage, error)
}

// FetchReport summarizes one FetcherService.Fetch run.
type FetchReport struct {
	TypeCounts map[string]int
	Skipped    []string // unknown content types, skipped with a warning
	Errors     map[string]error
}

// FetcherService implements C4: it enumerates documents across configured
// content types via paginated fetches, retrying transient failures and
// reporting permanent ones without aborting sibling types.
type FetcherService struct {
	client      CMSClient
	concurrency int
	limiter     *rate.Limiter
}

// NewFetcherService creates a FetcherService. concurrency bounds how many
// content types are fetched in parallel; perHostRPS bounds the aggregate
// request rate issued to the CMS.
func NewFetcherService(client CMSClient, concurrency int, perHostRPS float64) *FetcherService {
	if concurrency <= 0 {
		concurrency = 4
	}
	if perHostRPS <= 0 {
		perHostRPS = 10
	}
	return &FetcherService{
		client:      client,
		concurrency: concurrency,
		limiter:     rate.NewLimiter(rate.Limit(perHostRPS), int(perHostRPS)),
	}
}

// Fetch enumerates documents for each contentType and streams them on the
// returned channel so the chunker and embedder can pipeline against the
// same run (§4.4: "bounded channel so C5/C3 can pipeline"). The channel is
// closed once every type has been fully fetched or given up on.
func (f *FetcherService) Fetch(ctx context.Context, contentTypes []string) (<-chan *model.Document, *FetchReport) {
	out := make(chan *model.Document, fetchPageSize*2)
	report := &FetchReport{
		TypeCounts: make(map[string]int),
		Errors:     make(map[string]error),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	var mu sync.Mutex // guards report

	for _, ct := range contentTypes {
		ct := ct
		g.Go(func() error {
			count, err := f.fetchType(gctx, ct, out)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if isUnknownType(err) {
					slog.Warn("skipping unknown content type", "type", ct)
					report.Skipped = append(report.Skipped, ct)
					return nil
				}
				slog.Error("content type fetch failed", "type", ct, "error", err)
				report.Errors[ct] = err
				return nil // a permanent error on one type never aborts siblings
			}
			report.TypeCounts[ct] = count
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(out)
	}()

	return out, report
}

type unknownTypeError struct{ contentType string }

func (e *unknownTypeError) Error() string {
	return fmt.Sprintf("unknown content type: %s", e.contentType)
}

func isUnknownType(err error) bool {
	_, ok := err.(*unknownTypeError)
	return ok
}

func (f *FetcherService) fetchType(ctx context.Context, contentType string, out chan<- *model.Document) (int, error) {
	total := 0
	for page := 1; page <= fetchMaxPages; page++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return total, err
		}

		result, err := f.fetchPageWithRetry(ctx, contentType, page)
		if err != nil {
			return total, err
		}

		for _, doc := range result.Documents {
			if total >= fetchHardCapTotal {
				return total, nil
			}
			select {
			case out <- doc:
				total++
			case <-ctx.Done():
				return total, ctx.Err()
			}
		}

		if !result.HasMore || len(result.Documents) == 0 {
			break
		}
	}
	return total, nil
}

// fetchPageWithRetry retries transient failures (5xx, timeout) with capped
// exponential backoff; 404/401 are reported immediately as permanent.
func (f *FetcherService) fetchPageWithRetry(ctx context.Context, contentType string, page int) (CMSPage, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 8 * time.Second
	b.Multiplier = 2

	return backoff.Retry(ctx, func() (CMSPage, error) {
		result, err := f.client.FetchPage(ctx, contentType, page)
		if err == nil {
			return result, nil
		}
		if isPermanentFetchError(err) {
			return CMSPage{}, backoff.Permanent(err)
		}
		slog.Warn("transient fetch error, retrying", "type", contentType, "page", page, "error", err)
		return CMSPage{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(4))
}

// permanentFetchError carries an HTTP status that should never be retried.
type permanentFetchError struct {
	status int
	err    error
}

func (e *permanentFetchError) Error() string { return e.err.Error() }
func (e *permanentFetchError) Unwrap() error { return e.err }

func isPermanentFetchError(err error) bool {
	if pe, ok := err.(*permanentFetchError); ok {
		return pe.status == http.StatusNotFound || pe.status == http.StatusUnauthorized
	}
	if _, ok := err.(*unknownTypeError); ok {
		return true
	}
	return false
}

// NewPermanentFetchError wraps a non-retryable HTTP status for a CMSClient
// implementation to return.
func NewPermanentFetchError(status int, err error) error {
	return &permanentFetchError{status: status, err: err}
}

// NewUnknownTypeError reports a content type the CMS doesn't recognize.
func NewUnknownTypeError(contentType string) error {
	return &unknownTypeError{contentType: contentType}
}

// httpCMSClient is the production CMSClient: a REST client against a
// WordPress-style CMS content API, one JSON page per request.
type httpCMSClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPCMSClient creates a CMSClient against baseURL (e.g.
// "https://example.org/wp-json/wp/v2").
func NewHTTPCMSClient(baseURL string) CMSClient {
	return &httpCMSClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *httpCMSClient) FetchPage(ctx context.Context, contentType string, page int) (CMSPage, error) {
	url := fmt.Sprintf("%s/%s?page=%d&per_page=%d", c.baseURL, contentType, page, fetchPageSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return CMSPage{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return CMSPage{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return CMSPage{}, NewUnknownTypeError(contentType)
	case http.StatusUnauthorized:
		return CMSPage{}, NewPermanentFetchError(resp.StatusCode, fmt.Errorf("unauthorized fetching %s", contentType))
	case http.StatusOK:
		// fall through
	default:
		return CMSPage{}, fmt.Errorf("cms fetch %s page %d: status %d", contentType, page, resp.StatusCode)
	}

	var payload []cmsDocumentPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return CMSPage{}, fmt.Errorf("cms fetch %s page %d: decode: %w", contentType, page, err)
	}

	docs := make([]*model.Document, 0, len(payload))
	for _, p := range payload {
		docs = append(docs, p.toDocument(contentType))
	}

	return CMSPage{Documents: docs, HasMore: len(docs) == fetchPageSize}, nil
}

// cmsDocumentPayload mirrors the JSON shape of one upstream CMS item.
type cmsDocumentPayload struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Body          string         `json:"body"`
	Excerpt       string         `json:"excerpt"`
	URL           string         `json:"url"`
	PublishedAt   *time.Time     `json:"publishedAt"`
	Author        string         `json:"author"`
	Categories    []model.Taxon  `json:"categories"`
	Tags          []model.Taxon  `json:"tags"`
	FeaturedImage string         `json:"featuredImage"`
}

func (p cmsDocumentPayload) toDocument(contentType string) *model.Document {
	return &model.Document{
		ID:            p.ID,
		Title:         p.Title,
		Body:          p.Body,
		Excerpt:       p.Excerpt,
		Type:          contentType,
		URL:           p.URL,
		PublishedAt:   p.PublishedAt,
		Author:        p.Author,
		Categories:    p.Categories,
		Tags:          p.Tags,
		FeaturedImage: p.FeaturedImage,
		WordCount:     wordCount(p.Body),
	}
}
