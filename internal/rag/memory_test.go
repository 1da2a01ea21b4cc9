package rag

import (
	"context"
	"fmt"
	"testing"
)

func Test_Namespace(t *testing.T) {
	t.Parallel()
	cases := []struct {
		tenant string
		thread string
		want   string
	}{
		{"alice", "t1", "alice::t1"},
		{"", "t1", "anonymous::t1"},
		{"bob", "", "bob::"},
	}
	for _, tc := range cases {
		got := Namespace(tc.tenant, tc.thread)
		if got != tc.want {
			t.Errorf("Namespace(%q, %q) = %q, want %q", tc.tenant, tc.thread, got, tc.want)
		}
	}
}

func Test_MemoryStore_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.EnsureReady(ctx, 3); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}

	rec := Record{
		ID:     "11111111-1111-1111-1111-111111111111",
		Vector: []float32{0.1, 0.2, 0.3},
		Metadata: Metadata{
			SourceDocument: "doc.txt",
			PreviewText:    "hello world",
		},
	}
	n, err := store.Upsert(ctx, "alice::t1", []Record{rec})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if n != 1 {
		t.Fatalf("Upsert stored %d records, want 1", n)
	}

	// Querying with the exact stored vector must return that record at rank 1.
	results, err := store.QueryTopK(ctx, "alice::t1", []float32{0.1, 0.2, 0.3}, 5)
	if err != nil {
		t.Fatalf("QueryTopK: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].ID != rec.ID {
		t.Errorf("rank-1 ID = %q, want %q", results[0].ID, rec.ID)
	}
	if results[0].Metadata.PreviewText != "hello world" {
		t.Errorf("preview = %q, want %q", results[0].Metadata.PreviewText, "hello world")
	}
	if results[0].Score < 0.999 {
		t.Errorf("exact-match score = %f, want ~1.0", results[0].Score)
	}
}

func Test_MemoryStore_NamespaceIsolation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.EnsureReady(ctx, 2); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}

	recA := Record{ID: "aaaaaaaa-0000-0000-0000-000000000000", Vector: []float32{1, 0}}
	recB := Record{ID: "bbbbbbbb-0000-0000-0000-000000000000", Vector: []float32{1, 0}}
	if _, err := store.Upsert(ctx, "alice::t1", []Record{recA}); err != nil {
		t.Fatalf("Upsert alice: %v", err)
	}
	if _, err := store.Upsert(ctx, "bob::t9", []Record{recB}); err != nil {
		t.Fatalf("Upsert bob: %v", err)
	}

	results, err := store.QueryTopK(ctx, "alice::t1", []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("QueryTopK: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].ID != recA.ID {
		t.Errorf("cross-namespace leak: got %q", results[0].ID)
	}
}

func Test_MemoryStore_EmptyNamespace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	results, err := store.QueryTopK(ctx, "nobody::nothing", []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("QueryTopK on empty namespace: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func Test_MemoryStore_DescendingOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.EnsureReady(ctx, 2); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}

	records := []Record{
		{ID: "00000000-0000-0000-0000-000000000001", Vector: []float32{1, 0}},
		{ID: "00000000-0000-0000-0000-000000000002", Vector: []float32{0.8, 0.6}},
		{ID: "00000000-0000-0000-0000-000000000003", Vector: []float32{0, 1}},
	}
	if _, err := store.Upsert(ctx, "alice::t1", records); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := store.QueryTopK(ctx, "alice::t1", []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("QueryTopK: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not in descending order at %d: %f > %f", i, results[i].Score, results[i-1].Score)
		}
	}
	if results[0].ID != records[0].ID {
		t.Errorf("rank-1 = %q, want %q", results[0].ID, records[0].ID)
	}
}

func Test_MemoryStore_UpsertOverwrites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.EnsureReady(ctx, 2); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}

	id := "00000000-0000-0000-0000-00000000000a"
	first := Record{ID: id, Vector: []float32{1, 0}, Metadata: Metadata{PreviewText: "v1"}}
	second := Record{ID: id, Vector: []float32{0, 1}, Metadata: Metadata{PreviewText: "v2"}}
	if _, err := store.Upsert(ctx, "alice::t1", []Record{first}); err != nil {
		t.Fatalf("Upsert first: %v", err)
	}
	if _, err := store.Upsert(ctx, "alice::t1", []Record{second}); err != nil {
		t.Fatalf("Upsert second: %v", err)
	}

	count, err := store.Count(ctx, "alice::t1")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1 after overwrite", count)
	}

	results, err := store.QueryTopK(ctx, "alice::t1", []float32{0, 1}, 1)
	if err != nil {
		t.Fatalf("QueryTopK: %v", err)
	}
	if results[0].Metadata.PreviewText != "v2" {
		t.Errorf("preview = %q, want %q", results[0].Metadata.PreviewText, "v2")
	}
}

func Test_MemoryStore_DeleteNamespace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.EnsureReady(ctx, 2); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}

	if _, err := store.Upsert(ctx, "alice::t1", []Record{{ID: "00000000-0000-0000-0000-00000000000b", Vector: []float32{1, 0}}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.DeleteNamespace(ctx, "alice::t1"); err != nil {
		t.Fatalf("DeleteNamespace: %v", err)
	}
	count, err := store.Count(ctx, "alice::t1")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0 after delete", count)
	}

	// Deleting again is a no-op, not an error.
	if err := store.DeleteNamespace(ctx, "alice::t1"); err != nil {
		t.Errorf("second DeleteNamespace: %v", err)
	}
}

func Test_MemoryStore_DimensionMismatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.EnsureReady(ctx, 3); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}

	_, err := store.Upsert(ctx, "alice::t1", []Record{{ID: "00000000-0000-0000-0000-00000000000c", Vector: []float32{1, 0}}})
	if err == nil {
		t.Fatal("Upsert with wrong dimension succeeded, want error")
	}
}

func Test_Metadata_ExtraKeyLimit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.EnsureReady(ctx, 1); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}

	extra := make(map[string]string)
	for i := 0; i < MaxExtraKeys+1; i++ {
		extra[fmt.Sprintf("key%d", i)] = "v"
	}
	rec := Record{
		ID:       "00000000-0000-0000-0000-00000000000d",
		Vector:   []float32{1},
		Metadata: Metadata{Extra: extra},
	}
	if _, err := store.Upsert(ctx, "alice::t1", []Record{rec}); err == nil {
		t.Fatal("Upsert with too many extra keys succeeded, want error")
	}

	// The failed upsert must not have written anything.
	count, err := store.Count(ctx, "alice::t1")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0 after rejected batch", count)
	}
}
