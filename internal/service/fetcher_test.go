package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/connexus-ai/hybridsearch/internal/model"
)

type mockCMSClient struct {
	mu    sync.Mutex
	pages map[string][]CMSPage // keyed by contentType, indexed by page-1
	calls map[string]int
	err   map[string]error // error returned on the first call for this type, then cleared
}

func newMockCMSClient() *mockCMSClient {
	return &mockCMSClient{
		pages: make(map[string][]CMSPage),
		calls: make(map[string]int),
		err:   make(map[string]error),
	}
}

func (m *mockCMSClient) FetchPage(ctx context.Context, contentType string, page int) (CMSPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[contentType]++

	if err, ok := m.err[contentType]; ok {
		delete(m.err, contentType)
		return CMSPage{}, err
	}

	pages := m.pages[contentType]
	if page < 1 || page > len(pages) {
		return CMSPage{}, nil
	}
	return pages[page-1], nil
}

func docsN(n int) []*model.Document {
	docs := make([]*model.Document, n)
	for i := range docs {
		docs[i] = &model.Document{ID: fmt.Sprintf("d%d", i)}
	}
	return docs
}

func drain(ch <-chan *model.Document) []*model.Document {
	var out []*model.Document
	for d := range ch {
		out = append(out, d)
	}
	return out
}

func TestFetch_SinglePageSingleType(t *testing.T) {
	client := newMockCMSClient()
	client.pages["pages"] = []CMSPage{{Documents: docsN(3), HasMore: false}}

	f := NewFetcherService(client, 4, 1000)
	out, report := f.Fetch(context.Background(), []string{"pages"})
	docs := drain(out)

	if len(docs) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(docs))
	}
	if report.TypeCounts["pages"] != 3 {
		t.Errorf("TypeCounts[pages] = %d, want 3", report.TypeCounts["pages"])
	}
}

func TestFetch_PaginatesUntilHasMoreFalse(t *testing.T) {
	client := newMockCMSClient()
	client.pages["posts"] = []CMSPage{
		{Documents: docsN(fetchPageSize), HasMore: true},
		{Documents: docsN(fetchPageSize), HasMore: true},
		{Documents: docsN(10), HasMore: false},
	}

	f := NewFetcherService(client, 1, 1000)
	out, report := f.Fetch(context.Background(), []string{"posts"})
	docs := drain(out)

	want := fetchPageSize*2 + 10
	if len(docs) != want {
		t.Fatalf("expected %d documents, got %d", want, len(docs))
	}
	if client.calls["posts"] != 3 {
		t.Errorf("expected 3 page fetches, got %d", client.calls["posts"])
	}
	if report.TypeCounts["posts"] != want {
		t.Errorf("TypeCounts[posts] = %d, want %d", report.TypeCounts["posts"], want)
	}
}

func TestFetch_StopsOnEmptyPage(t *testing.T) {
	client := newMockCMSClient()
	client.pages["posts"] = []CMSPage{
		{Documents: docsN(fetchPageSize), HasMore: true},
		{Documents: nil, HasMore: true},
	}

	f := NewFetcherService(client, 1, 1000)
	out, _ := f.Fetch(context.Background(), []string{"posts"})
	docs := drain(out)

	if len(docs) != fetchPageSize {
		t.Fatalf("expected %d documents, got %d", fetchPageSize, len(docs))
	}
}

func TestFetch_HardCapStopsEnumeration(t *testing.T) {
	client := newMockCMSClient()
	var pages []CMSPage
	for i := 0; i < fetchMaxPages; i++ {
		pages = append(pages, CMSPage{Documents: docsN(fetchPageSize), HasMore: true})
	}
	client.pages["posts"] = pages

	f := NewFetcherService(client, 1, 100000)
	out, report := f.Fetch(context.Background(), []string{"posts"})
	docs := drain(out)

	if len(docs) != fetchHardCapTotal {
		t.Fatalf("expected hard cap of %d documents, got %d", fetchHardCapTotal, len(docs))
	}
	if report.TypeCounts["posts"] != fetchHardCapTotal {
		t.Errorf("TypeCounts[posts] = %d, want %d", report.TypeCounts["posts"], fetchHardCapTotal)
	}
}

func TestFetch_UnknownTypeSkippedWithoutAborting(t *testing.T) {
	client := newMockCMSClient()
	client.pages["pages"] = []CMSPage{{Documents: docsN(2), HasMore: false}}
	client.err["bogus"] = NewUnknownTypeError("bogus")

	f := NewFetcherService(client, 4, 1000)
	out, report := f.Fetch(context.Background(), []string{"pages", "bogus"})
	docs := drain(out)

	if len(docs) != 2 {
		t.Fatalf("expected sibling type to still complete, got %d docs", len(docs))
	}
	if len(report.Skipped) != 1 || report.Skipped[0] != "bogus" {
		t.Errorf("Skipped = %v, want [bogus]", report.Skipped)
	}
	if _, isError := report.Errors["bogus"]; isError {
		t.Error("unknown type should be reported as Skipped, not Errors")
	}
}

func TestFetch_PermanentErrorRecordedWithoutRetry(t *testing.T) {
	client := newMockCMSClient()
	client.pages["pages"] = []CMSPage{{Documents: docsN(1), HasMore: false}}
	client.err["locked"] = NewPermanentFetchError(401, errors.New("unauthorized"))

	f := NewFetcherService(client, 4, 1000)
	out, report := f.Fetch(context.Background(), []string{"pages", "locked"})
	docs := drain(out)

	if len(docs) != 1 {
		t.Fatalf("expected sibling type to still complete, got %d docs", len(docs))
	}
	if report.Errors["locked"] == nil {
		t.Error("expected locked to be recorded in Errors")
	}
	if client.calls["locked"] != 1 {
		t.Errorf("expected permanent error to be attempted once, got %d calls", client.calls["locked"])
	}
}

func TestFetch_TransientErrorRetriesThenSucceeds(t *testing.T) {
	client := newMockCMSClient()
	client.pages["posts"] = []CMSPage{{Documents: docsN(5), HasMore: false}}
	client.err["posts"] = errors.New("temporary 503")

	f := NewFetcherService(client, 1, 1000)
	out, report := f.Fetch(context.Background(), []string{"posts"})
	docs := drain(out)

	if len(docs) != 5 {
		t.Fatalf("expected retry to recover, got %d docs", len(docs))
	}
	if client.calls["posts"] != 2 {
		t.Errorf("expected 2 calls (1 failure + 1 retry), got %d", client.calls["posts"])
	}
	if report.Errors["posts"] != nil {
		t.Errorf("expected no recorded error after successful retry, got %v", report.Errors["posts"])
	}
}

func TestFetch_MultipleTypesFanOut(t *testing.T) {
	client := newMockCMSClient()
	client.pages["pages"] = []CMSPage{{Documents: docsN(2), HasMore: false}}
	client.pages["posts"] = []CMSPage{{Documents: docsN(3), HasMore: false}}
	client.pages["attorneys"] = []CMSPage{{Documents: docsN(4), HasMore: false}}

	f := NewFetcherService(client, 3, 1000)
	out, report := f.Fetch(context.Background(), []string{"pages", "posts", "attorneys"})
	docs := drain(out)

	if len(docs) != 9 {
		t.Fatalf("expected 9 total documents, got %d", len(docs))
	}
	for _, ct := range []string{"pages", "posts", "attorneys"} {
		if _, ok := report.TypeCounts[ct]; !ok {
			t.Errorf("missing TypeCounts entry for %q", ct)
		}
	}
}

func TestIsUnknownType(t *testing.T) {
	if !isUnknownType(NewUnknownTypeError("x")) {
		t.Error("expected NewUnknownTypeError to be recognized")
	}
	if isUnknownType(errors.New("other")) {
		t.Error("plain error should not be recognized as unknown type")
	}
}

func TestIsPermanentFetchError(t *testing.T) {
	if !isPermanentFetchError(NewPermanentFetchError(404, errors.New("x"))) {
		t.Error("404 should be permanent")
	}
	if !isPermanentFetchError(NewPermanentFetchError(401, errors.New("x"))) {
		t.Error("401 should be permanent")
	}
	if isPermanentFetchError(NewPermanentFetchError(500, errors.New("x"))) {
		t.Error("500 should not be permanent")
	}
	if isPermanentFetchError(errors.New("plain")) {
		t.Error("plain error should not be permanent")
	}
}
