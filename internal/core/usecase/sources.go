package usecase

import (
	"context"
	"strings"

	"github.com/kirillkom/lexrag/internal/core/domain"
	"github.com/kirillkom/lexrag/internal/core/ports"
)

// SourceUseCase exposes the read-only source operations the UI consumes.
// No generation is involved.
type SourceUseCase struct {
	store ports.SourceStore
}

func NewSourceUseCase(store ports.SourceStore) *SourceUseCase {
	return &SourceUseCase{store: store}
}

func (uc *SourceUseCase) GetFullSource(ctx context.Context, documentID string) (*domain.SourceDocument, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get full source", domain.Errorf("document id is empty"))
	}
	return uc.store.GetSource(ctx, documentID)
}

func (uc *SourceUseCase) VerifySource(ctx context.Context, documentID string) (*domain.SourceVerification, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "verify source", domain.Errorf("document id is empty"))
	}
	return uc.store.VerifySource(ctx, documentID)
}
