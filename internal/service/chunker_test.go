package service

import (
	"strings"
	"testing"

	"github.com/connexus-ai/hybridsearch/internal/model"
)

func docWithBody(id, body string) *model.Document {
	return &model.Document{ID: id, Title: "Test Doc", Type: "post", Body: body}
}

func TestChunk_BasicChunking(t *testing.T) {
	svc := NewChunkerService(100, 20)

	var paragraphs []string
	for i := 0; i < 20; i++ {
		paragraphs = append(paragraphs, "This is a test paragraph with enough words to contribute to the character count. It has multiple sentences. Each sentence adds to the overall length of the paragraph.")
	}
	doc := docWithBody("doc-1", strings.Join(paragraphs, "\n\n"))

	chunks := svc.Chunk(doc)
	if len(chunks) < 2 {
		t.Errorf("expected at least 2 chunks, got %d", len(chunks))
	}

	for i, c := range chunks {
		if c.Content == "" {
			t.Errorf("chunk[%d] has empty content", i)
		}
		if c.DocumentID != "doc-1" {
			t.Errorf("chunk[%d] DocumentID = %q, want %q", i, c.DocumentID, "doc-1")
		}
		if c.Ordinal != i {
			t.Errorf("chunk[%d] Ordinal = %d, want %d", i, c.Ordinal, i)
		}
		if c.Title != doc.Title || c.Type != doc.Type {
			t.Errorf("chunk[%d] missing parent metadata", i)
		}
	}
}

func TestChunk_OverlapApplied(t *testing.T) {
	svc := NewChunkerService(60, 20)

	var paragraphs []string
	for i := 0; i < 15; i++ {
		paragraphs = append(paragraphs, "Alpha beta gamma delta epsilon zeta eta theta iota kappa lambda mu nu xi omicron pi rho sigma tau upsilon.")
	}
	doc := docWithBody("doc-overlap", strings.Join(paragraphs, "\n\n"))

	chunks := svc.Chunk(doc)
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}

	words0 := strings.Fields(chunks[0].Content)
	if len(words0) > 3 {
		lastFew := strings.Join(words0[len(words0)-2:], " ")
		if !strings.Contains(chunks[1].Content, lastFew) {
			t.Errorf("chunk[1] should contain overlap from chunk[0], looking for %q", lastFew)
		}
	}
}

func TestChunk_EmptyBody(t *testing.T) {
	svc := NewChunkerService(DefaultChunkSizeChars, DefaultChunkOverlapChars)

	chunks := svc.Chunk(docWithBody("doc-empty", ""))
	if chunks != nil {
		t.Errorf("expected no chunks for empty body, got %d", len(chunks))
	}
}

func TestChunk_WhitespaceOnly(t *testing.T) {
	svc := NewChunkerService(DefaultChunkSizeChars, DefaultChunkOverlapChars)

	chunks := svc.Chunk(docWithBody("doc-ws", "   \n\n\t  \n  "))
	if chunks != nil {
		t.Errorf("expected no chunks for whitespace-only body, got %d", len(chunks))
	}
}

func TestChunk_NoEmptyChunks(t *testing.T) {
	svc := NewChunkerService(100, 10)

	doc := docWithBody("doc-gaps", "First paragraph.\n\n\n\n\n\nSecond paragraph.\n\n\n\n\n\nThird paragraph.")
	chunks := svc.Chunk(doc)

	for i, c := range chunks {
		if strings.TrimSpace(c.Content) == "" {
			t.Errorf("chunk[%d] is empty after trim", i)
		}
	}
}

func TestChunk_OrdinalsContiguousFromZero(t *testing.T) {
	svc := NewChunkerService(50, 5)

	var sentences []string
	for i := 0; i < 30; i++ {
		sentences = append(sentences, "This is a sentence that contains enough words to matter for length estimation.")
	}
	doc := docWithBody("doc-large", strings.Join(sentences, " "))

	chunks := svc.Chunk(doc)
	if len(chunks) < 2 {
		t.Fatalf("expected large paragraph to be split into multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Ordinal != i {
			t.Errorf("chunk[%d].Ordinal = %d, want %d", i, c.Ordinal, i)
		}
	}
}

func TestChunk_OversizedSentenceHardSplit(t *testing.T) {
	svc := NewChunkerService(40, 5)

	// A single sentence with no spaces long enough to exceed T forces a hard split.
	doc := docWithBody("doc-hard", strings.Repeat("a", 30)+" "+strings.Repeat("b", 200))

	chunks := svc.Chunk(doc)
	for _, c := range chunks {
		if len(c.Content) == 0 {
			t.Error("hard split produced an empty chunk")
		}
	}
}

func TestChunk_SingleParagraphFitsOneChunk(t *testing.T) {
	svc := NewChunkerService(DefaultChunkSizeChars, DefaultChunkOverlapChars)

	doc := docWithBody("doc-single", "A simple short paragraph that fits in one chunk.")
	chunks := svc.Chunk(doc)

	if len(chunks) != 1 {
		t.Errorf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Ordinal != 0 {
		t.Errorf("Ordinal = %d, want 0", chunks[0].Ordinal)
	}
}

func TestChunk_DefaultParameters(t *testing.T) {
	svc := NewChunkerService(0, -1)
	if svc.chunkSizeChars != DefaultChunkSizeChars {
		t.Errorf("chunkSizeChars = %d, want %d", svc.chunkSizeChars, DefaultChunkSizeChars)
	}
	if svc.overlapChars != DefaultChunkOverlapChars {
		t.Errorf("overlapChars = %d, want %d", svc.overlapChars, DefaultChunkOverlapChars)
	}
}

func TestChunk_ParentMetadataCarried(t *testing.T) {
	svc := NewChunkerService(DefaultChunkSizeChars, DefaultChunkOverlapChars)

	doc := docWithBody("doc-meta", "Some content for metadata propagation.")
	doc.Categories = []model.Taxon{{Slug: "legal", Name: "Legal"}}
	doc.Tags = []model.Taxon{{Slug: "gdpr", Name: "GDPR"}}

	chunks := svc.Chunk(doc)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if len(chunks[0].Categories) != 1 || chunks[0].Categories[0].Slug != "legal" {
		t.Error("expected categories to be carried onto the chunk")
	}
	if len(chunks[0].Tags) != 1 || chunks[0].Tags[0].Slug != "gdpr" {
		t.Error("expected tags to be carried onto the chunk")
	}
}

func TestWordCount(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"hello", 1},
		{"one two three four five", 5},
	}
	for _, tt := range tests {
		if got := wordCount(tt.text); got != tt.want {
			t.Errorf("wordCount(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestLastNChars(t *testing.T) {
	text := "the quick brown fox jumps"
	tail := lastNChars(text, 10)
	if !strings.HasSuffix(text, strings.TrimSpace(tail)) {
		t.Errorf("lastNChars(%q, 10) = %q, not a suffix", text, tail)
	}
	if strings.HasPrefix(tail, " ") {
		t.Errorf("lastNChars should start on a word boundary, got %q", tail)
	}
}
