package service

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// tfidfMaxFeatures bounds the vocabulary size fit on a full reindex (§4.1).
const tfidfMaxFeatures = 10000

var tfidfTokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// englishStopwords is the stopword list removed before vectorization. It is
// small and fixed, matching the closed-list approach of the hand-rolled
// TF-IDF embedder this component is grounded on — there is no ecosystem
// library in the pack that exposes a frozen-vocabulary sparse TF-IDF matrix
// with the exact incremental/full-reindex contract the spec requires, so
// this stays standard-library only by design, not by omission.
var englishStopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "he": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"that": true, "the": true, "to": true, "was": true, "were": true, "will": true,
	"with": true, "would": true, "you": true, "your": true, "i": true, "we": true,
	"this": true, "but": true, "or": true, "not": true, "have": true, "had": true,
	"if": true, "there": true, "their": true, "they": true, "what": true, "which": true,
}

// tokenize lowercases, strips punctuation, and removes stopwords.
func tokenize(text string) []string {
	lower := strings.ToLower(text)
	raw := tfidfTokenPattern.FindAllString(lower, -1)
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		if englishStopwords[t] {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}

// ngrams builds 1-gram and 2-gram terms from a token sequence.
func ngrams(tokens []string) []string {
	out := make([]string, 0, 2*len(tokens))
	out = append(out, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		out = append(out, tokens[i]+" "+tokens[i+1])
	}
	return out
}

// sparseVector is a term-index -> weight map for a single row or query.
type sparseVector map[int]float64

func (v sparseVector) norm() float64 {
	var sum float64
	for _, w := range v {
		sum += w * w
	}
	return math.Sqrt(sum)
}

func cosine(a sparseVector, aNorm float64, b sparseVector, bNorm float64) float64 {
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	// Iterate the smaller map for speed.
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for idx, w := range a {
		if bw, ok := b[idx]; ok {
			dot += w * bw
		}
	}
	return dot / (aNorm * bNorm)
}

// tfidfVocabulary maps a term to its feature index and inverse-document
// frequency. It is frozen once fit and never mutated in place — incremental
// adds reuse it as-is per §3's "frozen until full reindex" rule.
type tfidfVocabulary struct {
	index map[string]int
	idf   []float64
}

// buildVocabulary fits a vocabulary from a set of per-document term lists,
// selecting at most tfidfMaxFeatures terms ranked by document frequency
// (ties broken lexicographically for determinism).
func buildVocabulary(docsTerms [][]string) *tfidfVocabulary {
	df := make(map[string]int)
	for _, terms := range docsTerms {
		seen := make(map[string]bool, len(terms))
		for _, t := range terms {
			if !seen[t] {
				seen[t] = true
				df[t]++
			}
		}
	}

	type termDF struct {
		term string
		df   int
	}
	all := make([]termDF, 0, len(df))
	for t, c := range df {
		all = append(all, termDF{t, c})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].df != all[j].df {
			return all[i].df > all[j].df
		}
		return all[i].term < all[j].term
	})
	if len(all) > tfidfMaxFeatures {
		all = all[:tfidfMaxFeatures]
	}

	n := float64(len(docsTerms))
	vocab := &tfidfVocabulary{
		index: make(map[string]int, len(all)),
		idf:   make([]float64, len(all)),
	}
	for i, td := range all {
		vocab.index[td.term] = i
		vocab.idf[i] = math.Log((1+n)/(1+float64(td.df))) + 1
	}
	return vocab
}

// vectorize projects a term list into the vocabulary's feature space using
// sub-linear (1+ln) term frequency scaling, times idf.
func (vocab *tfidfVocabulary) vectorize(terms []string) sparseVector {
	tf := make(map[int]int)
	for _, t := range terms {
		if idx, ok := vocab.index[t]; ok {
			tf[idx]++
		}
	}
	vec := make(sparseVector, len(tf))
	for idx, count := range tf {
		vec[idx] = (1 + math.Log(float64(count))) * vocab.idf[idx]
	}
	return vec
}

// tfidfRow is one document's vector plus its precomputed norm.
type tfidfRow struct {
	documentID string
	vector     sparseVector
	norm       float64
}

// tfidfMatrix is an immutable snapshot of the corpus's TF-IDF representation.
// Row order is stable for the life of the matrix (§3).
type tfidfMatrix struct {
	vocab *tfidfVocabulary
	rows  []tfidfRow
}

// tfidfHit is a single scored row from a search.
type tfidfHit struct {
	DocumentID string
	Score      float64
}

// search returns documents ranked by cosine similarity to query, limited to
// limit results. Ties are broken by document id ascending. An empty or
// all-zero query vector yields an empty result, not an error (§4.1).
func (m *tfidfMatrix) search(query string, limit int) []tfidfHit {
	if m == nil || len(m.rows) == 0 {
		return nil
	}
	qVec := m.vocab.vectorize(ngrams(tokenize(query)))
	qNorm := qVec.norm()
	if qNorm == 0 {
		return nil
	}

	hits := make([]tfidfHit, 0, len(m.rows))
	for _, row := range m.rows {
		sim := cosine(qVec, qNorm, row.vector, row.norm)
		if sim <= 0 {
			continue
		}
		hits = append(hits, tfidfHit{DocumentID: row.documentID, Score: sim})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocumentID < hits[j].DocumentID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
