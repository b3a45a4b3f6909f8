package ports

import (
	"context"

	"github.com/kirillkom/lexrag/internal/core/domain"
)

// Embedder converts query text into a fixed-dimension vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) (domain.QueryEmbedding, error)
}

// DocumentIndex is the primary hybrid retrieval index.
type DocumentIndex interface {
	SearchVector(ctx context.Context, queryVector []float32, limit int) ([]domain.RetrievedDocument, error)
	SearchLexical(ctx context.Context, queryText string, limit int) ([]domain.RetrievedDocument, error)
}

// KeywordSearcher is the secondary keyword-only collaborator used when the
// primary index is unavailable.
type KeywordSearcher interface {
	SearchKeyword(ctx context.Context, queryText string, limit int) ([]domain.RetrievedDocument, error)
}

// SourceStore reads full documents and verifies locators.
type SourceStore interface {
	GetSource(ctx context.Context, documentID string) (*domain.SourceDocument, error)
	VerifySource(ctx context.Context, documentID string) (*domain.SourceVerification, error)
}

// InvocationOptions tunes one generation call.
type InvocationOptions struct {
	Racing bool
}

// ModelInvoker runs a prompt against the configured backends with ordered
// fallback and optional racing. Attempts lists every failed backend call
// in order, also on success.
type ModelInvoker interface {
	Invoke(ctx context.Context, prompt string, opts InvocationOptions) (*domain.ModelInvocationResult, []domain.BackendAttempt, error)
}

// AnswerCache is the semantic response cache keyed by embedding similarity.
type AnswerCache interface {
	Lookup(ctx context.Context, embedding domain.QueryEmbedding) (*domain.Answer, bool)
	Store(ctx context.Context, embedding domain.QueryEmbedding, answer domain.Answer)
	PurgeDocument(documentID string) int
}

// InvalidationFeed delivers document-updated signals from the ingestion
// pipeline. Best effort, not strict consistency.
type InvalidationFeed interface {
	SubscribeDocumentUpdated(ctx context.Context, handler func(ctx context.Context, documentID string) error) error
}
