package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an in-process VectorStore backed by a map and brute-force
// cosine similarity. It exists for tests and for running without a Qdrant
// instance; it honors the same namespace isolation contract as QdrantStore.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	// records maps namespace -> record ID -> record.
	records map[string]map[string]Record
}

// NewMemoryStore creates an empty in-memory vector store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]map[string]Record)}
}

// EnsureReady fixes the embedding dimension for the store. Subsequent calls
// with a different dimension fail rather than silently mixing vector sizes.
func (s *MemoryStore) EnsureReady(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("memory store: invalid embedding dimension %d", dimension)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension != 0 && s.dimension != dimension {
		return fmt.Errorf("memory store: dimension %d conflicts with existing dimension %d", dimension, s.dimension)
	}
	s.dimension = dimension
	return nil
}

// Upsert stores or overwrites records under the namespace. The whole batch is
// validated before any record is written, so a bad record leaves the store
// untouched.
func (s *MemoryStore) Upsert(_ context.Context, namespace string, records []Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if err := rec.Metadata.validate(); err != nil {
			return 0, err
		}
		if s.dimension != 0 && len(rec.Vector) != s.dimension {
			return 0, fmt.Errorf("memory store: record %s has dimension %d, want %d", rec.ID, len(rec.Vector), s.dimension)
		}
	}

	ns, ok := s.records[namespace]
	if !ok {
		ns = make(map[string]Record)
		s.records[namespace] = ns
	}
	for _, rec := range records {
		vec := make([]float32, len(rec.Vector))
		copy(vec, rec.Vector)
		rec.Vector = vec
		ns[rec.ID] = rec
	}

	return len(records), nil
}

// QueryTopK returns the k nearest records in the namespace by cosine
// similarity, highest score first. Querying an unknown namespace returns an
// empty slice.
func (s *MemoryStore) QueryTopK(_ context.Context, namespace string, vector []float32, k int) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ns := s.records[namespace]
	results := make([]Result, 0, len(ns))
	for _, rec := range ns {
		results = append(results, Result{
			ID:       rec.ID,
			Metadata: rec.Metadata,
			Score:    cosineSimilarity(vector, rec.Vector),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// DeleteNamespace removes every record in the namespace. Unknown namespaces
// are a no-op.
func (s *MemoryStore) DeleteNamespace(_ context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, namespace)
	return nil
}

// Count returns the number of records in the namespace.
func (s *MemoryStore) Count(_ context.Context, namespace string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.records[namespace])), nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// cosineSimilarity computes the cosine of the angle between a and b.
// Mismatched lengths and zero vectors score 0 rather than erroring, matching
// how a degenerate match behaves in ranking.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
