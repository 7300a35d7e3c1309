package notifier

import (
	"context"
	"fmt"

	"brillprime/internal/shared/logger"
	"brillprime/internal/tracking/application/ports/out"
	"brillprime/internal/tracking/domain"
)

const (
	MsgDeliveryPhaseChanged = "delivery_phase_changed"
	MsgTrackingAlert        = "tracking_alert"
	MsgDriverLocation       = "driver_location"
)

// Pusher is the part of *ws.Hub used here.
type Pusher interface {
	SendTypedMessage(userID, msgType string, data any) error
	IsUserConnected(userID string) bool
}

type PhasePayload struct {
	DeliveryID     string          `json:"delivery_id"`
	From           domain.Phase    `json:"from"`
	Phase          domain.Phase    `json:"phase"`
	DistanceKm     float64         `json:"distance_km"`
	DriverLocation domain.Position `json:"driver_location"`
	ETAMinutes     int             `json:"eta_minutes"`
}

type deliveryNotifier struct {
	hub Pusher
	log *logger.Logger
}

// NewDeliveryNotifier pushes phase changes to the consumer and the driver of a delivery.
func NewDeliveryNotifier(hub Pusher, log *logger.Logger) out.DeliveryNotifier {
	return &deliveryNotifier{hub: hub, log: log}
}

func (n *deliveryNotifier) NotifyPhaseChanged(_ context.Context, d domain.ActiveDelivery, t domain.Transition) error {
	payload := PhasePayload{
		DeliveryID:     d.ID,
		From:           t.From,
		Phase:          t.To,
		DistanceKm:     t.DistanceKm,
		DriverLocation: d.DriverLocation,
	}
	if !t.To.Terminal() {
		payload.ETAMinutes = domain.EstimatedTravelMinutes(d.DriverLocation.DistanceKm(d.Target()), domain.DefaultAverageSpeedKmh)
	}

	for _, userID := range []string{d.ConsumerID, d.DriverID} {
		if !n.hub.IsUserConnected(userID) {
			n.log.Debug(logger.Entry{
				Action:     "phase_notify_skipped",
				Message:    "user not connected",
				DeliveryID: d.ID,
				Additional: map[string]any{"user_id": userID},
			})
			continue
		}
		if err := n.hub.SendTypedMessage(userID, MsgDeliveryPhaseChanged, payload); err != nil {
			return fmt.Errorf("push phase change to %s: %w", userID, err)
		}
	}
	return nil
}

type alerter struct {
	hub Pusher
	log *logger.Logger
}

// NewAlerter shows tracking alerts on every connection of the user.
func NewAlerter(hub Pusher, log *logger.Logger) out.UserAlerter {
	return &alerter{hub: hub, log: log}
}

func (a *alerter) Alert(_ context.Context, userID string, alert out.Alert) error {
	a.log.Warn(logger.Entry{
		Action:     "user_alert",
		Message:    alert.Message,
		Additional: map[string]any{"user_id": userID, "kind": string(alert.Kind)},
	})
	if userID == "" {
		return nil
	}
	return a.hub.SendTypedMessage(userID, MsgTrackingAlert, alert)
}
