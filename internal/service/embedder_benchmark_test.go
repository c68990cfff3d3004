package service

import (
	"math/rand"
	"testing"
)

func BenchmarkL2Normalize(b *testing.B) {
	vec := make([]float32, testDim)
	rng := rand.New(rand.NewSource(42))
	for i := range vec {
		vec[i] = rng.Float32()*2 - 1 // [-1, 1]
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = l2Normalize(vec)
	}
}
