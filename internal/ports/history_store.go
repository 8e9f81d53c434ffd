package ports

import (
	"context"

	"github.com/bnema/pttsync/internal/domain"
)

// HistoryStore persists the full cached history list. Load returns an empty
// slice when nothing was saved yet.
type HistoryStore interface {
	Load(ctx context.Context) ([]domain.HistoryRecord, error)
	Save(ctx context.Context, records []domain.HistoryRecord) error
}
