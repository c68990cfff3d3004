package service

import (
	"strconv"
	"strings"

	"github.com/connexus-ai/hybridsearch/internal/model"
)

const (
	// DefaultChunkSizeChars is T: the target chunk size in characters (§4.5).
	DefaultChunkSizeChars = 1000
	// DefaultChunkOverlapChars is O: characters of trailing overlap carried
	// into the next chunk.
	DefaultChunkOverlapChars = 200
)

// ChunkerService splits document text into overlapping, metadata-carrying
// chunks (C5). Unlike the token-budgeted chunker this is grounded on, sizing
// here is character-based per the target contract.
type ChunkerService struct {
	chunkSizeChars int // T
	overlapChars   int // O
}

// NewChunkerService creates a ChunkerService with the given character budget
// and overlap.
func NewChunkerService(chunkSizeChars, overlapChars int) *ChunkerService {
	if chunkSizeChars <= 0 {
		chunkSizeChars = DefaultChunkSizeChars
	}
	if overlapChars < 0 || overlapChars >= chunkSizeChars {
		overlapChars = DefaultChunkOverlapChars
	}
	return &ChunkerService{chunkSizeChars: chunkSizeChars, overlapChars: overlapChars}
}

// Chunk splits a document's body into overlapping chunks, each carrying the
// parent metadata required for scoring (§4.5). Contiguous ordinals start at
// 0; every returned chunk is non-empty.
func (s *ChunkerService) Chunk(doc *model.Document) []*model.Chunk {
	text := strings.TrimSpace(doc.Body)
	if text == "" {
		return nil
	}

	segments := s.splitText(text)

	chunks := make([]*model.Chunk, 0, len(segments))
	ordinal := 0
	for _, seg := range segments {
		content := strings.TrimSpace(seg)
		if content == "" {
			continue
		}
		chunks = append(chunks, &model.Chunk{
			ID:          chunkID(doc.ID, ordinal),
			DocumentID:  doc.ID,
			Ordinal:     ordinal,
			Content:     content,
			Title:       doc.Title,
			Type:        doc.Type,
			PublishedAt: doc.PublishedAt,
			Categories:  doc.Categories,
			Tags:        doc.Tags,
		})
		ordinal++
	}
	return chunks
}

// splitText applies the paragraph -> sentence -> hard-split cascade with
// trailing overlap applied between adjacent segments.
func (s *ChunkerService) splitText(text string) []string {
	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		paragraphs = []string{text}
	}

	var raw []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			raw = append(raw, current.String())
			current.Reset()
		}
	}

	for _, para := range paragraphs {
		if len(para) > s.chunkSizeChars {
			flush()
			raw = append(raw, s.splitOversized(para)...)
			continue
		}
		if current.Len() > 0 && current.Len()+2+len(para) > s.chunkSizeChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	return s.applyOverlap(raw)
}

// splitOversized handles a paragraph exceeding T: split on sentence
// boundaries, and if a single sentence still exceeds T, hard-split at T.
func (s *ChunkerService) splitOversized(para string) []string {
	sentences := splitSentences(para)
	var out []string
	var current strings.Builder

	for _, sent := range sentences {
		if len(sent) > s.chunkSizeChars {
			if current.Len() > 0 {
				out = append(out, current.String())
				current.Reset()
			}
			out = append(out, hardSplit(sent, s.chunkSizeChars)...)
			continue
		}
		if current.Len() > 0 && current.Len()+1+len(sent) > s.chunkSizeChars {
			out = append(out, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sent)
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	if len(out) == 0 {
		out = hardSplit(para, s.chunkSizeChars)
	}
	return out
}

// applyOverlap prepends the trailing O characters of each segment to the
// next, at a word boundary so tokens are never split mid-word.
func (s *ChunkerService) applyOverlap(segments []string) []string {
	if len(segments) <= 1 || s.overlapChars <= 0 {
		return segments
	}

	result := make([]string, len(segments))
	result[0] = segments[0]
	for i := 1; i < len(segments); i++ {
		tail := lastNChars(segments[i-1], s.overlapChars)
		if tail == "" {
			result[i] = segments[i]
			continue
		}
		result[i] = tail + "\n\n" + segments[i]
	}
	return result
}

// splitParagraphs splits text on blank lines into non-empty paragraphs.
func splitParagraphs(text string) []string {
	raw := strings.Split(text, "\n\n")
	result := make([]string, 0, len(raw))
	for _, p := range raw {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// splitSentences does a basic sentence split on ". ", "! ", "? ".
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(text) && text[i+1] == ' ' {
			sentences = append(sentences, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, strings.TrimSpace(current.String()))
	}
	return sentences
}

// hardSplit cuts text into fixed-width runs at word boundaries wherever
// possible, falling back to a hard character cut for unbroken runs (e.g. a
// URL) longer than size.
func hardSplit(text string, size int) []string {
	var out []string
	for len(text) > size {
		cut := size
		if idx := strings.LastIndexByte(text[:size], ' '); idx > size/2 {
			cut = idx
		}
		out = append(out, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

// lastNChars returns at most the trailing n characters of text, trimmed
// forward to start just after the first space in that tail so no word is cut.
func lastNChars(text string, n int) string {
	if len(text) <= n {
		return text
	}
	start := len(text) - n
	if idx := strings.IndexByte(text[start:], ' '); idx >= 0 {
		start += idx + 1
	}
	return text[start:]
}

func chunkID(docID string, ordinal int) string {
	return docID + "#" + strconv.Itoa(ordinal)
}
