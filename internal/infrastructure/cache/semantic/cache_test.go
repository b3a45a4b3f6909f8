package semantic

import (
	"context"
	"testing"
	"time"

	"github.com/kirillkom/lexrag/internal/core/domain"
)

func embeddingOf(v ...float32) domain.QueryEmbedding {
	return domain.QueryEmbedding{Vector: v, Model: "test-embed"}
}

func TestLookupHitsOnSimilarEmbedding(t *testing.T) {
	cache := New(Config{SimilarityThreshold: 0.95}, nil)
	cache.Store(context.Background(), embeddingOf(1, 0, 0), domain.Answer{Text: "stored"})

	// Nearly parallel vector, cosine ≈ 0.9998.
	answer, ok := cache.Lookup(context.Background(), embeddingOf(1, 0.02, 0))
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if answer.Text != "stored" {
		t.Fatalf("unexpected answer: %s", answer.Text)
	}
}

func TestLookupMissesBelowThreshold(t *testing.T) {
	cache := New(Config{SimilarityThreshold: 0.95}, nil)
	cache.Store(context.Background(), embeddingOf(1, 0, 0), domain.Answer{Text: "stored"})

	if _, ok := cache.Lookup(context.Background(), embeddingOf(0, 1, 0)); ok {
		t.Fatalf("orthogonal embedding must miss")
	}
}

func TestLookupPicksBestMatch(t *testing.T) {
	cache := New(Config{SimilarityThreshold: 0.5}, nil)
	cache.Store(context.Background(), embeddingOf(1, 0.5, 0), domain.Answer{Text: "farther"})
	cache.Store(context.Background(), embeddingOf(1, 0, 0), domain.Answer{Text: "closer"})

	answer, ok := cache.Lookup(context.Background(), embeddingOf(1, 0.01, 0))
	if !ok {
		t.Fatalf("expected hit")
	}
	if answer.Text != "closer" {
		t.Fatalf("expected best match, got %s", answer.Text)
	}
}

func TestExpiredEntriesAreMisses(t *testing.T) {
	cache := New(Config{TTL: time.Millisecond}, nil)
	cache.Store(context.Background(), embeddingOf(1, 0, 0), domain.Answer{Text: "stale"})
	time.Sleep(5 * time.Millisecond)

	if _, ok := cache.Lookup(context.Background(), embeddingOf(1, 0, 0)); ok {
		t.Fatalf("expired entry must not hit")
	}
}

func TestDimensionMismatchTreatedAsMiss(t *testing.T) {
	cache := New(Config{}, nil)
	cache.Store(context.Background(), embeddingOf(1, 0, 0), domain.Answer{Text: "old-model"})

	if _, ok := cache.Lookup(context.Background(), embeddingOf(1, 0)); ok {
		t.Fatalf("mismatched dimensions must be treated as a miss")
	}
}

func TestPurgeDocumentRemovesCitingEntries(t *testing.T) {
	cache := New(Config{}, nil)
	cache.Store(context.Background(), embeddingOf(1, 0, 0), domain.Answer{
		Text:    "cites doc-1",
		Sources: []domain.AnswerSource{{DocumentID: "doc-1"}},
	})
	cache.Store(context.Background(), embeddingOf(0, 1, 0), domain.Answer{
		Text:    "cites doc-2",
		Sources: []domain.AnswerSource{{DocumentID: "doc-2"}},
	})

	if purged := cache.PurgeDocument("doc-1"); purged != 1 {
		t.Fatalf("expected 1 purged entry, got %d", purged)
	}
	if cache.Len() != 1 {
		t.Fatalf("expected 1 remaining entry, got %d", cache.Len())
	}
	if _, ok := cache.Lookup(context.Background(), embeddingOf(1, 0, 0)); ok {
		t.Fatalf("purged entry must not hit")
	}
}

func TestCapacityEvictsOldestFirst(t *testing.T) {
	cache := New(Config{Capacity: 2, SimilarityThreshold: 0.99}, nil)
	cache.Store(context.Background(), embeddingOf(1, 0, 0), domain.Answer{Text: "first"})
	cache.Store(context.Background(), embeddingOf(0, 1, 0), domain.Answer{Text: "second"})
	cache.Store(context.Background(), embeddingOf(0, 0, 1), domain.Answer{Text: "third"})

	if cache.Len() != 2 {
		t.Fatalf("expected capacity-bounded length 2, got %d", cache.Len())
	}
	if _, ok := cache.Lookup(context.Background(), embeddingOf(1, 0, 0)); ok {
		t.Fatalf("oldest entry should have been evicted")
	}
	if _, ok := cache.Lookup(context.Background(), embeddingOf(0, 0, 1)); !ok {
		t.Fatalf("newest entry should survive")
	}
}

func TestZeroVectorNeverStoredOrMatched(t *testing.T) {
	cache := New(Config{}, nil)
	cache.Store(context.Background(), embeddingOf(0, 0, 0), domain.Answer{Text: "zero"})
	if cache.Len() != 0 {
		t.Fatalf("zero vector must not be stored")
	}
	if _, ok := cache.Lookup(context.Background(), embeddingOf(0, 0, 0)); ok {
		t.Fatalf("zero probe must miss")
	}
}
