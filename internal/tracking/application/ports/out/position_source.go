package out

import (
	"context"

	"brillprime/internal/tracking/domain"
)

// PositionSource feeds driver positions into the proximity state machine.
type PositionSource interface {
	Next(ctx context.Context, d *domain.ActiveDelivery) (domain.Position, error)
}
