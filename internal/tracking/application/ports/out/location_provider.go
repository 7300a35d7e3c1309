package out

import (
	"context"

	"brillprime/internal/tracking/domain"
)

// LocationProvider is the platform geolocation SDK.
type LocationProvider interface {
	// Permission inspects the current state without prompting.
	Permission(ctx context.Context) (domain.PermissionState, error)
	// RequestPermission prompts the user where the platform can.
	RequestPermission(ctx context.Context) (domain.PermissionState, error)
	// CurrentPosition returns one fix. Implementations should honour ctx and opts.Timeout
	// and return domain.ErrPermissionDenied when access is refused.
	CurrentPosition(ctx context.Context, opts domain.PositionOptions) (domain.Position, error)
}

type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}
