package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"brillprime/internal/shared/logger"
	"brillprime/internal/shared/mq"
	"brillprime/internal/tracking/application/ports/out"
	"brillprime/internal/tracking/domain"
)

// Broker is the slice of *mq.RabbitMQ the publishers need.
type Broker interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

// LocationMessage is the body published on the location fanout.
type LocationMessage struct {
	UserID    string   `json:"user_id"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

func (m LocationMessage) LiveLocation() domain.LiveLocation {
	return domain.LiveLocation{
		UserID: m.UserID,
		Position: domain.Position{
			Latitude:  m.Latitude,
			Longitude: m.Longitude,
			Accuracy:  m.Accuracy,
			Timestamp: m.Timestamp,
		},
	}
}

type locationPublisher struct {
	mq  Broker
	log *logger.Logger
}

func NewLocationPublisher(broker Broker, log *logger.Logger) out.LocationPublisher {
	return &locationPublisher{mq: broker, log: log}
}

func (p *locationPublisher) PublishLocation(ctx context.Context, loc domain.LiveLocation) error {
	body, err := json.Marshal(LocationMessage{
		UserID:    loc.UserID,
		Latitude:  loc.Position.Latitude,
		Longitude: loc.Position.Longitude,
		Accuracy:  loc.Position.Accuracy,
		Timestamp: loc.Position.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("marshal location: %w", err)
	}

	// fanout exchanges ignore the routing key
	if err := p.mq.Publish(ctx, mq.LocationExchange, "", body); err != nil {
		return fmt.Errorf("publish location: %w", err)
	}
	return nil
}

// PhaseChangedEvent is published on delivery.phase_changed.
type PhaseChangedEvent struct {
	DeliveryID string          `json:"delivery_id"`
	DriverID   string          `json:"driver_id"`
	ConsumerID string          `json:"consumer_id"`
	From       domain.Phase    `json:"from"`
	To         domain.Phase    `json:"to"`
	DistanceKm float64         `json:"distance_km"`
	Driver     domain.Position `json:"driver_location"`
	Timestamp  string          `json:"timestamp"`
}

type deliveryEventPublisher struct {
	mq  Broker
	log *logger.Logger
}

func NewDeliveryEventPublisher(broker Broker, log *logger.Logger) out.DeliveryNotifier {
	return &deliveryEventPublisher{mq: broker, log: log}
}

func (p *deliveryEventPublisher) NotifyPhaseChanged(ctx context.Context, d domain.ActiveDelivery, t domain.Transition) error {
	body, err := json.Marshal(PhaseChangedEvent{
		DeliveryID: d.ID,
		DriverID:   d.DriverID,
		ConsumerID: d.ConsumerID,
		From:       t.From,
		To:         t.To,
		DistanceKm: t.DistanceKm,
		Driver:     d.DriverLocation,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal phase event: %w", err)
	}

	if err := p.mq.Publish(ctx, mq.DeliveryExchange, mq.RoutingDeliveryPhaseChanged, body); err != nil {
		return fmt.Errorf("publish phase event: %w", err)
	}

	p.log.Debug(logger.Entry{
		Action:     "phase_event_published",
		Message:    fmt.Sprintf("%s -> %s", t.From, t.To),
		DeliveryID: d.ID,
	})
	return nil
}

// AlertEvent is published on tracking.alert.
type AlertEvent struct {
	UserID    string        `json:"user_id"`
	Kind      out.AlertKind `json:"kind"`
	Message   string        `json:"message"`
	Timestamp string        `json:"timestamp"`
}

type alertPublisher struct {
	mq Broker
}

func NewAlertPublisher(broker Broker) out.UserAlerter {
	return &alertPublisher{mq: broker}
}

func (p *alertPublisher) Alert(ctx context.Context, userID string, alert out.Alert) error {
	body, err := json.Marshal(AlertEvent{
		UserID:    userID,
		Kind:      alert.Kind,
		Message:   alert.Message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	if err := p.mq.Publish(ctx, mq.TrackingExchange, mq.RoutingTrackingAlert, body); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}
