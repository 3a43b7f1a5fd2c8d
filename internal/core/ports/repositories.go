package ports

import (
	"context"
	"time"

	"github.com/atlasbank/mailtriage/internal/core/domain"
)

type AnalysisRepository interface {
	Save(ctx context.Context, analysis domain.EmailAnalysis) error
	FindByContactID(ctx context.Context, contactID string) (*domain.EmailAnalysis, error)
	FindSince(ctx context.Context, since time.Time, limit int) ([]domain.EmailAnalysis, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
