package usecase

import (
	"testing"

	"github.com/kirillkom/lexrag/internal/core/domain"
)

func candidate(id string, relevance float64) domain.RetrievedDocument {
	return domain.RetrievedDocument{DocumentID: id, Title: id, Snippet: "snippet " + id, Relevance: relevance, Freshness: 0.9}
}

func TestFuseHybridDeduplicatesByDocumentID(t *testing.T) {
	semantic := []domain.RetrievedDocument{candidate("doc-1", 0.9), candidate("doc-2", 0.6)}
	lexical := []domain.RetrievedDocument{candidate("doc-1", 0.8), candidate("doc-3", 0.7)}

	fused := fuseHybridCandidates(semantic, lexical, 0.6)
	if len(fused) != 3 {
		t.Fatalf("expected 3 unique documents, got %d", len(fused))
	}
	seen := map[string]bool{}
	for _, doc := range fused {
		if seen[doc.DocumentID] {
			t.Fatalf("duplicate document %s in fused list", doc.DocumentID)
		}
		seen[doc.DocumentID] = true
	}
}

func TestFuseHybridDocumentInBothListsRanksFirst(t *testing.T) {
	semantic := []domain.RetrievedDocument{candidate("doc-both", 0.9), candidate("doc-sem", 0.8)}
	lexical := []domain.RetrievedDocument{candidate("doc-both", 0.9), candidate("doc-lex", 0.8)}

	fused := fuseHybridCandidates(semantic, lexical, 0.6)
	if fused[0].DocumentID != "doc-both" {
		t.Fatalf("document scoring on both sides should rank first, got %s", fused[0].DocumentID)
	}
	// Max on both normalized scales: weighted sum is exactly 1.
	if fused[0].Relevance != 1.0 {
		t.Fatalf("expected fused relevance 1.0, got %f", fused[0].Relevance)
	}
}

func TestFuseHybridWeightExtremes(t *testing.T) {
	semantic := []domain.RetrievedDocument{candidate("doc-sem", 0.9), candidate("doc-weak", 0.1)}
	lexical := []domain.RetrievedDocument{candidate("doc-lex", 0.9), candidate("doc-weak", 0.8)}

	allSemantic := fuseHybridCandidates(semantic, lexical, 1.0)
	if allSemantic[0].DocumentID != "doc-sem" {
		t.Fatalf("weight 1.0 must rank by semantic score alone, got %s", allSemantic[0].DocumentID)
	}

	allLexical := fuseHybridCandidates(semantic, lexical, 0.0)
	if allLexical[0].DocumentID != "doc-lex" {
		t.Fatalf("weight 0.0 must rank by lexical score alone, got %s", allLexical[0].DocumentID)
	}
}

func TestFuseHybridIdenticalScoresNormalizeToOne(t *testing.T) {
	semantic := []domain.RetrievedDocument{candidate("doc-1", 0.5), candidate("doc-2", 0.5)}

	fused := fuseHybridCandidates(semantic, nil, 1.0)
	for _, doc := range fused {
		if doc.Relevance != 1.0 {
			t.Fatalf("degenerate scale should map positive scores to 1, got %f for %s", doc.Relevance, doc.DocumentID)
		}
	}
}

func TestFuseHybridPrefersCandidateWithSnippet(t *testing.T) {
	bare := candidate("doc-1", 0.9)
	bare.Snippet = ""
	withSnippet := candidate("doc-1", 0.7)

	fused := fuseHybridCandidates([]domain.RetrievedDocument{bare}, []domain.RetrievedDocument{withSnippet}, 0.6)
	if fused[0].Snippet == "" {
		t.Fatalf("fusion should keep the variant carrying a snippet")
	}
}

func TestSortByRankDeterministicOrdering(t *testing.T) {
	docs := []domain.RetrievedDocument{
		{DocumentID: "doc-c", Relevance: 0.8, Freshness: 0.5},
		{DocumentID: "doc-a", Relevance: 0.8, Freshness: 0.5},
		{DocumentID: "doc-b", Relevance: 0.8, Freshness: 0.9},
		{DocumentID: "doc-d", Relevance: 0.9, Freshness: 0.1},
	}
	sortByRank(docs)

	want := []string{"doc-d", "doc-b", "doc-a", "doc-c"}
	for i, id := range want {
		if docs[i].DocumentID != id {
			t.Fatalf("position %d: got %s, want %s", i, docs[i].DocumentID, id)
		}
	}
}

func TestFilterByThreshold(t *testing.T) {
	docs := []domain.RetrievedDocument{
		{DocumentID: "doc-1", Relevance: 0.9},
		{DocumentID: "doc-2", Relevance: 0.69},
		{DocumentID: "doc-3", Relevance: 0.7},
	}
	filtered := filterByThreshold(docs, 0.7)
	if len(filtered) != 2 {
		t.Fatalf("expected 2 documents at or above threshold, got %d", len(filtered))
	}
	for _, doc := range filtered {
		if doc.Relevance < 0.7 {
			t.Fatalf("document %s below threshold survived", doc.DocumentID)
		}
	}
}

func TestTrimCandidates(t *testing.T) {
	docs := []domain.RetrievedDocument{{DocumentID: "a"}, {DocumentID: "b"}, {DocumentID: "c"}}
	if got := trimCandidates(docs, 2); len(got) != 2 {
		t.Fatalf("expected trim to 2, got %d", len(got))
	}
	if got := trimCandidates(docs, 0); len(got) != 3 {
		t.Fatalf("zero limit must not trim, got %d", len(got))
	}
}
