package inamqp

import (
	"context"
	"encoding/json"
	"fmt"

	"brillprime/internal/shared/logger"
	"brillprime/internal/shared/mq"
	"brillprime/internal/tracking/adapters/out/messaging"
	"brillprime/internal/tracking/domain"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Forwarder receives every valid broadcast position (notifier.DriverRelay).
type Forwarder interface {
	Forward(loc domain.LiveLocation)
}

// LocationConsumer feeds the location fanout into a Forwarder.
type LocationConsumer struct {
	mqConn    *mq.RabbitMQ
	forwarder Forwarder
	log       *logger.Logger
}

func NewLocationConsumer(mqConn *mq.RabbitMQ, forwarder Forwarder, log *logger.Logger) *LocationConsumer {
	return &LocationConsumer{mqConn: mqConn, forwarder: forwarder, log: log}
}

// Start binds a private queue to the location fanout and consumes until ctx ends.
func (c *LocationConsumer) Start(ctx context.Context) error {
	queue, err := c.mqConn.BindExclusive(mq.LocationExchange, "")
	if err != nil {
		return fmt.Errorf("bind location queue: %w", err)
	}

	if err := c.mqConn.Consume(ctx, queue, "", c.Handle); err != nil {
		return err
	}

	c.log.Info(logger.Entry{
		Action:  "location_consumer_started",
		Message: fmt.Sprintf("listening on %s (queue: %s)", mq.LocationExchange, queue),
	})
	return nil
}

// Handle acks good messages and drops malformed ones without requeue.
func (c *LocationConsumer) Handle(msg amqp.Delivery) {
	loc, err := decode(msg.Body)
	if err != nil {
		c.log.Warn(logger.Entry{
			Action:  "location_message_invalid",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
		_ = msg.Nack(false, false)
		return
	}

	c.forwarder.Forward(loc)
	_ = msg.Ack(false)
}

func decode(body []byte) (domain.LiveLocation, error) {
	var m messaging.LocationMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return domain.LiveLocation{}, fmt.Errorf("unmarshal location: %w", err)
	}
	if m.UserID == "" {
		return domain.LiveLocation{}, fmt.Errorf("%w: user_id missing", domain.ErrInvalidRequest)
	}
	loc := m.LiveLocation()
	if err := loc.Position.Validate(); err != nil {
		return domain.LiveLocation{}, err
	}
	return loc, nil
}
