package out

import (
	"context"

	"brillprime/internal/tracking/domain"
)

// LocationPublisher broadcasts accepted positions to observers (consumers watching a driver).
type LocationPublisher interface {
	PublishLocation(ctx context.Context, loc domain.LiveLocation) error
}

// LocationAPI is the optional REST persistence strategy (PUT /location/live).
type LocationAPI interface {
	PutLiveLocation(ctx context.Context, token string, pos domain.Position) error
}

// DeliveryNotifier emits one notification per phase transition.
type DeliveryNotifier interface {
	NotifyPhaseChanged(ctx context.Context, d domain.ActiveDelivery, t domain.Transition) error
}

type AlertKind string

const (
	AlertPermissionDenied AlertKind = "permission_denied"
	AlertTrackingStopped  AlertKind = "tracking_stopped"
)

type Alert struct {
	Kind    AlertKind `json:"kind"`
	Message string    `json:"message"`
}

// UserAlerter shows a user-visible message. Callers fire it once per incident.
type UserAlerter interface {
	Alert(ctx context.Context, userID string, alert Alert) error
}
