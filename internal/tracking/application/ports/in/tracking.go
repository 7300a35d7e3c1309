package in

import (
	"context"
	"time"

	"brillprime/internal/tracking/domain"
)

// Tracker is the device-side sampling loop.
type Tracker interface {
	Start(ctx context.Context, interval time.Duration) error
	Stop()
	OnUpdate(fn func(domain.Position)) (unsubscribe func())
}

// LiveLocationQuery reads other users' positions through the cache.
type LiveLocationQuery interface {
	GetLiveLocation(ctx context.Context, subjectID string) (domain.Position, error)
	Invalidate(subjectID string)
}

// UpdateLiveLocationInput is the body of PUT /location/live.
type UpdateLiveLocationInput struct {
	UserID    string   `json:"-"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Timestamp int64    `json:"timestamp"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
}

type UpdateLiveLocationUseCase interface {
	Execute(ctx context.Context, input UpdateLiveLocationInput) (domain.Position, error)
}

type LocationHistoryUseCase interface {
	History(ctx context.Context, subjectID string, limit int) ([]domain.Position, error)
}
