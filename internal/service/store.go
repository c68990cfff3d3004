package service

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/connexus-ai/hybridsearch/internal/model"
)

// corpusSnapshot is an immutable view of the corpus. A reader that loads a
// snapshot sees a consistent state for the life of its request even if a
// concurrent reindex swaps in a new snapshot underneath it (§5).
type corpusSnapshot struct {
	docs   map[string]*model.Document
	chunks map[string][]*model.Chunk
	matrix *tfidfMatrix
}

// DocumentStore holds the corpus: documents, chunks, and the derived
// TFIDFMatrix (C1). Mutations only happen via UpsertDocuments/ReplaceAll/DeleteDocument;
// all reads take a snapshot under a single atomic load.
type DocumentStore struct {
	snap atomic.Pointer[corpusSnapshot]
}

// NewDocumentStore creates an empty DocumentStore.
func NewDocumentStore() *DocumentStore {
	s := &DocumentStore{}
	s.snap.Store(&corpusSnapshot{
		docs:   make(map[string]*model.Document),
		chunks: make(map[string][]*model.Chunk),
		matrix: &tfidfMatrix{vocab: &tfidfVocabulary{index: map[string]int{}}, rows: nil},
	})
	return s
}

// UpsertResult reports the outcome of UpsertDocuments.
type UpsertResult struct {
	Inserted int
	Updated  int
}

// UpsertDocuments replaces or inserts documents by id and re-vectorizes only
// the new/changed rows against the existing (frozen) vocabulary. The
// vocabulary itself is not refit until a full reindex (§3 design decision).
func (s *DocumentStore) UpsertDocuments(docs []*model.Document, chunksByDoc map[string][]*model.Chunk) UpsertResult {
	old := s.snap.Load()

	newDocs := make(map[string]*model.Document, len(old.docs)+len(docs))
	for k, v := range old.docs {
		newDocs[k] = v
	}
	newChunks := make(map[string][]*model.Chunk, len(old.chunks)+len(chunksByDoc))
	for k, v := range old.chunks {
		newChunks[k] = v
	}

	var result UpsertResult
	for _, d := range docs {
		if _, exists := newDocs[d.ID]; exists {
			result.Updated++
		} else {
			result.Inserted++
		}
		newDocs[d.ID] = d
		if cs, ok := chunksByDoc[d.ID]; ok {
			newChunks[d.ID] = cs
		}
	}

	newRows := make([]tfidfRow, 0, len(old.matrix.rows))
	seen := make(map[string]bool, len(newDocs))
	for _, row := range old.matrix.rows {
		if d, ok := newDocs[row.documentID]; ok {
			if _, changed := indexOf(docs, row.documentID); changed {
				vec := old.matrix.vocab.vectorize(ngrams(tokenize(tfidfText(d))))
				newRows = append(newRows, tfidfRow{documentID: d.ID, vector: vec, norm: vec.norm()})
			} else {
				newRows = append(newRows, row)
			}
			seen[row.documentID] = true
		}
	}
	for _, d := range docs {
		if seen[d.ID] {
			continue
		}
		vec := old.matrix.vocab.vectorize(ngrams(tokenize(tfidfText(d))))
		newRows = append(newRows, tfidfRow{documentID: d.ID, vector: vec, norm: vec.norm()})
	}
	sort.Slice(newRows, func(i, j int) bool { return newRows[i].documentID < newRows[j].documentID })

	s.snap.Store(&corpusSnapshot{
		docs:   newDocs,
		chunks: newChunks,
		matrix: &tfidfMatrix{vocab: old.matrix.vocab, rows: newRows},
	})
	return result
}

// ReplaceAll atomically swaps in a freshly-fit corpus (full reindex,
// build-then-swap per §4.12). No reader ever observes a half-built matrix.
func (s *DocumentStore) ReplaceAll(docs []*model.Document, chunksByDoc map[string][]*model.Chunk) {
	docsTerms := make([][]string, len(docs))
	for i, d := range docs {
		docsTerms[i] = ngrams(tokenize(tfidfText(d)))
	}
	vocab := buildVocabulary(docsTerms)

	rows := make([]tfidfRow, len(docs))
	for i, d := range docs {
		vec := vocab.vectorize(docsTerms[i])
		rows[i] = tfidfRow{documentID: d.ID, vector: vec, norm: vec.norm()}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].documentID < rows[j].documentID })

	newDocs := make(map[string]*model.Document, len(docs))
	for _, d := range docs {
		newDocs[d.ID] = d
	}

	s.snap.Store(&corpusSnapshot{
		docs:   newDocs,
		chunks: chunksByDoc,
		matrix: &tfidfMatrix{vocab: vocab, rows: rows},
	})
}

// DeleteDocument tombstones a document; it is immediately absent from reads.
func (s *DocumentStore) DeleteDocument(id string) {
	old := s.snap.Load()
	if _, ok := old.docs[id]; !ok {
		return
	}
	newDocs := make(map[string]*model.Document, len(old.docs))
	for k, v := range old.docs {
		if k != id {
			newDocs[k] = v
		}
	}
	newChunks := make(map[string][]*model.Chunk, len(old.chunks))
	for k, v := range old.chunks {
		if k != id {
			newChunks[k] = v
		}
	}
	newRows := make([]tfidfRow, 0, len(old.matrix.rows))
	for _, r := range old.matrix.rows {
		if r.documentID != id {
			newRows = append(newRows, r)
		}
	}
	s.snap.Store(&corpusSnapshot{docs: newDocs, chunks: newChunks, matrix: &tfidfMatrix{vocab: old.matrix.vocab, rows: newRows}})
}

// Lookup returns a Document by id, or (nil, false) if unknown.
func (s *DocumentStore) Lookup(id string) (*model.Document, bool) {
	snap := s.snap.Load()
	d, ok := snap.docs[id]
	return d, ok
}

// Chunks returns the chunks belonging to a document.
func (s *DocumentStore) Chunks(documentID string) []*model.Chunk {
	snap := s.snap.Load()
	return snap.chunks[documentID]
}

// Count returns the number of live documents and chunks.
func (s *DocumentStore) Count() (docs int, chunks int) {
	snap := s.snap.Load()
	docs = len(snap.docs)
	for _, cs := range snap.chunks {
		chunks += len(cs)
	}
	return docs, chunks
}

// VocabularySize returns the number of TF-IDF features currently fit.
func (s *DocumentStore) VocabularySize() int {
	snap := s.snap.Load()
	if snap.matrix == nil || snap.matrix.vocab == nil {
		return 0
	}
	return len(snap.matrix.vocab.index)
}

// TFIDFSearch runs the lexical search contract of §4.1: one search per
// query, merged and de-duplicated across queries by max score.
func (s *DocumentStore) TFIDFSearch(queries []string, limit int) []tfidfHit {
	snap := s.snap.Load()
	best := make(map[string]float64)
	for _, q := range queries {
		for _, hit := range snap.matrix.search(q, limit) {
			if hit.Score > best[hit.DocumentID] {
				best[hit.DocumentID] = hit.Score
			}
		}
	}
	out := make([]tfidfHit, 0, len(best))
	for id, score := range best {
		out = append(out, tfidfHit{DocumentID: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DocumentID < out[j].DocumentID
	})
	return out
}

func indexOf(docs []*model.Document, id string) (int, bool) {
	for i, d := range docs {
		if d.ID == id {
			return i, true
		}
	}
	return -1, false
}

func tfidfText(d *model.Document) string {
	return fmt.Sprintf("%s %s %s", d.Title, d.Body, d.Excerpt)
}
