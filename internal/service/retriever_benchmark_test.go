package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/connexus-ai/hybridsearch/internal/model"
)

func makeBenchStreams(n int) *RankedStreams {
	lexical := make([]string, n)
	semantic := make([]string, n)
	candidates := make(map[string]*model.Candidate, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("doc-%d", i)
		lexical[i] = id
		semantic[(i+n/2)%n] = id
		candidates[id] = &model.Candidate{
			DocumentID:   id,
			Document:     &model.Document{ID: id, Type: "post"},
			LexicalScore: 0.9 - float64(i)*0.01,
		}
	}
	return &RankedStreams{Lexical: lexical, Semantic: semantic, Candidates: candidates}
}

func BenchmarkReciprocalRankFusion_40Candidates(b *testing.B) {
	streams := makeBenchStreams(40)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = reciprocalRankFusion(streams.Lexical, streams.Semantic)
	}
}

func BenchmarkFinalSort_40Candidates(b *testing.B) {
	streams := makeBenchStreams(40)
	candidates := make([]*model.Candidate, 0, len(streams.Candidates))
	for _, c := range streams.Candidates {
		c.HybridScore = c.LexicalScore
		candidates = append(candidates, c)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		finalSort(candidates)
	}
}

func BenchmarkFuse_NoRerank_40Candidates(b *testing.B) {
	fuser := NewFuserService(nil, 0, 0)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		streams := makeBenchStreams(40)
		_ = fuser.Fuse(context.Background(), streams, FuseOptions{Query: "estate planning services"})
	}
}
