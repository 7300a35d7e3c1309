package mq

import (
	"context"
	"fmt"

	"brillprime/internal/shared/logger"
)

const (
	// LocationExchange fans every persisted live position out to all api instances.
	LocationExchange = "location_fanout"
	// DeliveryExchange carries delivery lifecycle events.
	DeliveryExchange = "delivery_topic"
	// TrackingExchange carries tracker alerts (permission denied, auto-stop).
	TrackingExchange = "tracking_topic"

	RoutingDeliveryPhaseChanged = "delivery.phase_changed"
	RoutingTrackingAlert        = "tracking.alert"
)

type exchangeDecl struct {
	name string
	kind string
}

type queueDecl struct {
	name       string
	exchange   string
	routingKey string
}

var exchanges = []exchangeDecl{
	{LocationExchange, "fanout"},
	{DeliveryExchange, "topic"},
	{TrackingExchange, "topic"},
}

// durable queues for consumers outside this repo (analytics, audit)
var queues = []queueDecl{
	{RoutingDeliveryPhaseChanged, DeliveryExchange, RoutingDeliveryPhaseChanged},
	{RoutingTrackingAlert, TrackingExchange, RoutingTrackingAlert},
}

// SetupTopology declares exchanges and durable queues. Safe to call repeatedly.
func SetupTopology(ctx context.Context, mq *RabbitMQ, log *logger.Logger) error {
	ch := mq.Channel()
	if ch == nil {
		return ErrChannelUnavailable
	}

	for _, ex := range exchanges {
		if err := ch.ExchangeDeclare(
			ex.name,
			ex.kind,
			true,  // durable
			false, // auto-deleted
			false, // internal
			false, // no-wait
			nil,
		); err != nil {
			return fmt.Errorf("declare %s: %w", ex.name, err)
		}
	}

	for _, q := range queues {
		if _, err := ch.QueueDeclare(q.name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
		if err := ch.QueueBind(q.name, q.routingKey, q.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", q.name, err)
		}
	}

	log.Info(logger.Entry{
		Action:  "topology_setup_complete",
		Message: "exchanges and queues declared",
		Additional: map[string]any{
			"exchanges": len(exchanges),
			"queues":    len(queues),
		},
	})
	return nil
}
