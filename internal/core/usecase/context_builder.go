package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/lexrag/internal/core/domain"
)

const (
	// HighlightOpen and HighlightClose are neutral markers the caller
	// renders; the core takes no markup opinion beyond them.
	HighlightOpen  = "⟦"
	HighlightClose = "⟧"
)

// ContextBuilder turns a ranked candidate list into a token-budgeted,
// citation-numbered context block. Output is deterministic for a given
// input ordering.
type ContextBuilder struct {
	tokenBudget int
	templates   map[string]string
}

func NewContextBuilder(tokenBudget int, templates map[string]string) *ContextBuilder {
	if tokenBudget <= 0 {
		tokenBudget = 6000
	}
	if len(templates) == 0 {
		templates = map[string]string{"default": "{title}"}
	}
	return &ContextBuilder{
		tokenBudget: tokenBudget,
		templates:   templates,
	}
}

// Build sorts candidates, greedily packs them into the token budget
// (skipping, never truncating, documents that do not fit), assigns 1-based
// citation ids in inclusion order and renders the prompt context string.
func (b *ContextBuilder) Build(queryText string, docs []domain.RetrievedDocument) domain.AssembledContext {
	ordered := make([]domain.RetrievedDocument, len(docs))
	copy(ordered, docs)
	sortByRank(ordered)

	queryTerms := extractTerms(queryText)

	var rendered strings.Builder
	entries := make([]domain.CitationEntry, 0, len(ordered))
	tokenCount := 0
	freshnessSum := 0.0

	for _, doc := range ordered {
		block := renderContextBlock(len(entries)+1, doc)
		blockTokens := estimateTokens(block)
		if tokenCount+blockTokens > b.tokenBudget {
			continue
		}

		id := len(entries) + 1
		entries = append(entries, domain.CitationEntry{
			ID:        id,
			Document:  doc,
			Formatted: b.formatCitation(doc),
			Excerpt:   highlightTerms(doc.Snippet, queryTerms),
		})
		rendered.WriteString(renderContextBlock(id, doc))
		tokenCount += blockTokens
		freshnessSum += doc.Freshness
	}

	freshness := 0.0
	if len(entries) > 0 {
		freshness = freshnessSum / float64(len(entries))
	}

	return domain.AssembledContext{
		Entries:    entries,
		Rendered:   rendered.String(),
		TokenCount: tokenCount,
		Freshness:  freshness,
	}
}

func (b *ContextBuilder) formatCitation(doc domain.RetrievedDocument) string {
	tmpl, ok := b.templates[string(doc.Kind)]
	if !ok {
		tmpl = b.templates["default"]
	}
	if tmpl == "" {
		tmpl = "{title}"
	}

	date := ""
	if !doc.Authority.IssuedAt.IsZero() {
		date = doc.Authority.IssuedAt.Format("2006-01-02")
	}

	replacer := strings.NewReplacer(
		"{title}", doc.Title,
		"{issuing_body}", doc.Authority.IssuingBody,
		"{date}", date,
		"{locator}", doc.Authority.Locator,
	)
	return strings.TrimSpace(replacer.Replace(tmpl))
}

func renderContextBlock(id int, doc domain.RetrievedDocument) string {
	return fmt.Sprintf("[%d] %s (%s)\n%s\n\n", id, doc.Title, doc.Kind, doc.Snippet)
}

// estimateTokens approximates token usage as one token per four bytes of
// text, matching the budget semantics of the generation backends closely
// enough for packing decisions.
func estimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return (len(s) + 3) / 4
}
