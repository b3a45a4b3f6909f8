package domain

// CitationEntry binds a 1-based citation id to exactly one retrieved
// document. Ids are scoped to a single answer.
type CitationEntry struct {
	ID        int               `json:"id"`
	Document  RetrievedDocument `json:"document"`
	Formatted string            `json:"formatted"`
	Excerpt   string            `json:"excerpt"`
}

// AssembledContext is the token-budgeted, deterministically ordered
// context block handed to the generation backends.
type AssembledContext struct {
	Entries    []CitationEntry
	Rendered   string
	TokenCount int
	Freshness  float64
}

func (c AssembledContext) Empty() bool {
	return len(c.Entries) == 0
}

// MeanRelevance feeds the confidence blend.
func (c AssembledContext) MeanRelevance() float64 {
	if len(c.Entries) == 0 {
		return 0
	}
	sum := 0.0
	for _, e := range c.Entries {
		sum += e.Document.Relevance
	}
	return sum / float64(len(c.Entries))
}
