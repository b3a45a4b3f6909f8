package domain

import (
	"strings"

	"github.com/google/uuid"
)

type RetrievalMode string

const (
	RetrievalModeVector  RetrievalMode = "vector"
	RetrievalModeKeyword RetrievalMode = "keyword"
	RetrievalModeHybrid  RetrievalMode = "hybrid"
)

// ContextHint carries optional structured hints supplied by the caller.
type ContextHint struct {
	Domain       string `json:"domain,omitempty"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
}

// Query is immutable for the duration of one orchestration call.
type Query struct {
	ID   string      `json:"query_id"`
	Text string      `json:"text"`
	Hint ContextHint `json:"hint"`
}

func NewQuery(text string, hint ContextHint) Query {
	return Query{
		ID:   uuid.NewString(),
		Text: strings.TrimSpace(text),
		Hint: hint,
	}
}

// QueryEmbedding is the vector representation of a query text plus the
// model that produced it. It never outlives the call except as a cache key.
type QueryEmbedding struct {
	Vector []float32
	Model  string
}

// QueryOptions is the per-call configuration recognized by AnswerQuery.
type QueryOptions struct {
	UseCache        bool
	RetrievalMode   RetrievalMode
	SemanticWeight  float64
	TopK            int
	RacingEnabled   bool
	ConfidenceFloor float64
}

func DefaultQueryOptions() QueryOptions {
	return QueryOptions{
		UseCache:       true,
		RetrievalMode:  RetrievalModeHybrid,
		SemanticWeight: 0.6,
		TopK:           5,
	}
}

// Validate rejects unknown modes and out-of-range weights before any
// external call is made.
func (o QueryOptions) Validate() error {
	switch o.RetrievalMode {
	case RetrievalModeVector, RetrievalModeKeyword, RetrievalModeHybrid:
	default:
		return WrapError(ErrConfiguration, "validate options", Errorf("unknown retrieval mode %q", string(o.RetrievalMode)))
	}
	if o.SemanticWeight < 0 || o.SemanticWeight > 1 {
		return WrapError(ErrConfiguration, "validate options", Errorf("semantic weight %.2f out of [0,1]", o.SemanticWeight))
	}
	if o.TopK < 0 {
		return WrapError(ErrConfiguration, "validate options", Errorf("top_k %d must be non-negative", o.TopK))
	}
	if o.ConfidenceFloor < 0 || o.ConfidenceFloor > 1 {
		return WrapError(ErrConfiguration, "validate options", Errorf("confidence floor %.2f out of [0,1]", o.ConfidenceFloor))
	}
	return nil
}
