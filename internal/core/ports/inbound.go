package ports

import (
	"context"

	"github.com/kirillkom/lexrag/internal/core/domain"
)

// QueryAnswerer is the single query-to-answer entry point.
type QueryAnswerer interface {
	AnswerQuery(ctx context.Context, questionText string, hint domain.ContextHint, opts domain.QueryOptions) (*domain.Answer, error)
}

// SourceInspector exposes the read-only auxiliary operations consumed by
// the calling layer for UI purposes.
type SourceInspector interface {
	VerifySource(ctx context.Context, documentID string) (*domain.SourceVerification, error)
	GetFullSource(ctx context.Context, documentID string) (*domain.SourceDocument, error)
}
