package out

import (
	"context"

	"brillprime/internal/tracking/domain"
)

// LiveLocationStore is the authoritative real-time store.
// Upsert is last-write-wins per user id.
type LiveLocationStore interface {
	Upsert(ctx context.Context, userID string, pos domain.Position) error
	AppendHistory(ctx context.Context, userID string, batch []domain.Position) error
	// Get returns domain.ErrLocationNotFound when the subject never reported.
	Get(ctx context.Context, userID string) (domain.Position, error)
	History(ctx context.Context, userID string, limit int) ([]domain.Position, error)
}
