package usecase

import (
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/lexrag/internal/core/domain"
)

func statuteDoc(id, title, snippet string, relevance, freshness float64) domain.RetrievedDocument {
	return domain.RetrievedDocument{
		DocumentID: id,
		Title:      title,
		Snippet:    snippet,
		Relevance:  relevance,
		Freshness:  freshness,
		Kind:       domain.KindStatute,
		Authority: domain.Authority{
			IssuingBody: "Parliament",
			IssuedAt:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Locator:     "https://laws.example/" + id,
		},
	}
}

func TestBuildAssignsCitationIDsInInclusionOrder(t *testing.T) {
	b := NewContextBuilder(6000, nil)
	docs := []domain.RetrievedDocument{
		statuteDoc("doc-b", "Second", "text b", 0.8, 0.9),
		statuteDoc("doc-a", "First", "text a", 0.9, 0.9),
		statuteDoc("doc-c", "Third", "text c", 0.7, 0.9),
	}

	assembled := b.Build("query", docs)
	if len(assembled.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(assembled.Entries))
	}
	for i, entry := range assembled.Entries {
		if entry.ID != i+1 {
			t.Fatalf("entry %d has id %d, want %d", i, entry.ID, i+1)
		}
	}
	if assembled.Entries[0].Document.DocumentID != "doc-a" {
		t.Fatalf("highest relevance should be cited first, got %s", assembled.Entries[0].Document.DocumentID)
	}
	if !strings.Contains(assembled.Rendered, "[1] First") || !strings.Contains(assembled.Rendered, "[3] Third") {
		t.Fatalf("rendered context missing numbered blocks:\n%s", assembled.Rendered)
	}
}

func TestBuildTieBreaksOnFreshnessThenID(t *testing.T) {
	b := NewContextBuilder(6000, nil)
	docs := []domain.RetrievedDocument{
		statuteDoc("doc-z", "Older", "text", 0.8, 0.5),
		statuteDoc("doc-m", "Newer", "text", 0.8, 0.9),
		statuteDoc("doc-a", "AlsoOlder", "text", 0.8, 0.5),
	}

	assembled := b.Build("query", docs)
	got := []string{
		assembled.Entries[0].Document.DocumentID,
		assembled.Entries[1].Document.DocumentID,
		assembled.Entries[2].Document.DocumentID,
	}
	want := []string{"doc-m", "doc-a", "doc-z"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: got %s, want %s (full order %v)", i, got[i], want[i], got)
		}
	}
}

func TestBuildSkipsOversizedDocumentWithoutTruncating(t *testing.T) {
	// Budget fits the small blocks but not the huge middle one.
	b := NewContextBuilder(100, nil)
	huge := statuteDoc("doc-huge", "Huge", strings.Repeat("lorem ipsum ", 200), 0.85, 0.9)
	docs := []domain.RetrievedDocument{
		statuteDoc("doc-1", "First", "short text", 0.9, 0.9),
		huge,
		statuteDoc("doc-2", "Second", "short text", 0.8, 0.9),
	}

	assembled := b.Build("query", docs)
	if assembled.TokenCount > 100 {
		t.Fatalf("token count %d exceeds budget", assembled.TokenCount)
	}
	for _, entry := range assembled.Entries {
		if entry.Document.DocumentID == "doc-huge" {
			t.Fatalf("oversized document must be skipped, not included")
		}
	}
	if len(assembled.Entries) != 2 {
		t.Fatalf("expected the two small documents, got %d entries", len(assembled.Entries))
	}
	// The skipped document must not leave a gap in citation numbering.
	if assembled.Entries[1].ID != 2 {
		t.Fatalf("citation ids must stay contiguous, got %d", assembled.Entries[1].ID)
	}
	if strings.Contains(assembled.Rendered, "lorem ipsum") {
		t.Fatalf("skipped document leaked into rendered context")
	}
}

func TestBuildRendersCitationTemplatesPerKind(t *testing.T) {
	b := NewContextBuilder(6000, map[string]string{
		"statute": "{title}",
		"ruling":  "{title}, {issuing_body} ({date})",
		"default": "{title} ({issuing_body})",
	})

	ruling := statuteDoc("doc-r", "Case 42/2023", "ruling text", 0.9, 0.9)
	ruling.Kind = domain.KindRuling
	ruling.Authority.IssuingBody = "Supreme Court"
	article := statuteDoc("doc-a", "Commentary", "article text", 0.7, 0.9)
	article.Kind = domain.KindArticle

	assembled := b.Build("query", []domain.RetrievedDocument{
		ruling,
		statuteDoc("doc-s", "Employment Act, Section 35", "statute text", 0.8, 0.9),
		article,
	})

	if assembled.Entries[0].Formatted != "Case 42/2023, Supreme Court (2024-03-01)" {
		t.Fatalf("ruling template mismatch: %q", assembled.Entries[0].Formatted)
	}
	if assembled.Entries[1].Formatted != "Employment Act, Section 35" {
		t.Fatalf("statute template mismatch: %q", assembled.Entries[1].Formatted)
	}
	if assembled.Entries[2].Formatted != "Commentary (Parliament)" {
		t.Fatalf("unknown kind should use the default template: %q", assembled.Entries[2].Formatted)
	}
}

func TestBuildHighlightsQueryTermsInExcerpt(t *testing.T) {
	b := NewContextBuilder(6000, nil)
	doc := statuteDoc("doc-1", "Employment Act", "The notice period is 30 days. Noticeably short.", 0.9, 0.9)

	assembled := b.Build("What is the notice period?", []domain.RetrievedDocument{doc})
	excerpt := assembled.Entries[0].Excerpt
	if !strings.Contains(excerpt, HighlightOpen+"notice"+HighlightClose) {
		t.Fatalf("expected highlighted term in excerpt: %q", excerpt)
	}
	if !strings.Contains(excerpt, HighlightOpen+"period"+HighlightClose) {
		t.Fatalf("expected highlighted second term: %q", excerpt)
	}
	if strings.Contains(excerpt, HighlightOpen+"Noticeably"+HighlightClose) {
		t.Fatalf("partial-word match must not be highlighted: %q", excerpt)
	}
}

func TestBuildComputesMeanFreshness(t *testing.T) {
	b := NewContextBuilder(6000, nil)
	assembled := b.Build("q", []domain.RetrievedDocument{
		statuteDoc("doc-1", "A", "text", 0.9, 1.0),
		statuteDoc("doc-2", "B", "text", 0.8, 0.5),
	})
	if assembled.Freshness != 0.75 {
		t.Fatalf("expected mean freshness 0.75, got %f", assembled.Freshness)
	}
}

func TestBuildEmptyInput(t *testing.T) {
	b := NewContextBuilder(6000, nil)
	assembled := b.Build("q", nil)
	if !assembled.Empty() {
		t.Fatalf("empty input should yield an empty context")
	}
	if assembled.Rendered != "" || assembled.TokenCount != 0 || assembled.Freshness != 0 {
		t.Fatalf("empty context must carry zero values: %+v", assembled)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := estimateTokens(""); got != 0 {
		t.Fatalf("empty string: got %d", got)
	}
	if got := estimateTokens("abcd"); got != 1 {
		t.Fatalf("four bytes: got %d", got)
	}
	if got := estimateTokens("abcde"); got != 2 {
		t.Fatalf("five bytes should round up: got %d", got)
	}
}
