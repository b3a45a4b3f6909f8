package domain

import "time"

// ModelInvocationResult is the raw outcome of one backend call. Ephemeral,
// discarded once the orchestrator extracts the answer.
type ModelInvocationResult struct {
	Backend          string
	Text             string
	Confidence       float64
	ConfidenceKnown  bool
	PromptTokens     int
	CompletionTokens int
	Latency          time.Duration
}

// BackendAttempt records one failed backend call for the attempt log.
type BackendAttempt struct {
	Backend string `json:"backend"`
	Reason  string `json:"reason"`
}

// AnswerSource is the caller-facing projection of one citation entry.
type AnswerSource struct {
	CitationID int          `json:"citation_id"`
	DocumentID string       `json:"document_id"`
	Title      string       `json:"title"`
	Kind       DocumentKind `json:"kind"`
	Formatted  string       `json:"formatted"`
	Excerpt    string       `json:"excerpt"`
	Relevance  float64      `json:"relevance"`
	Freshness  float64      `json:"freshness"`
}

// Answer is the only artifact that crosses the system boundary.
type Answer struct {
	QueryID           string           `json:"query_id"`
	Text              string           `json:"answer"`
	CitationMap       map[int]string   `json:"citation_map"`
	Sources           []AnswerSource   `json:"sources"`
	Confidence        float64          `json:"confidence"`
	Backend           string           `json:"backend"`
	Latency           time.Duration    `json:"latency_ms"`
	Degraded          bool             `json:"degraded"`
	DegradationReason string           `json:"degradation_reason,omitempty"`
	NoSources         bool             `json:"no_sources"`
	CacheHit          bool             `json:"cache_hit"`
	Attempts          []BackendAttempt `json:"attempts,omitempty"`
}
