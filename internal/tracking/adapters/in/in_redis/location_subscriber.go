package inredis

import (
	"context"
	"errors"

	"brillprime/internal/shared/logger"
	"brillprime/internal/tracking/domain"
)

// Source is the pattern subscription of redisstore.LiveLocationStore.
type Source interface {
	SubscribeAll(ctx context.Context, fn func(domain.LiveLocation)) error
}

// Forwarder receives every published position (notifier.DriverRelay).
type Forwarder interface {
	Forward(loc domain.LiveLocation)
}

// LocationSubscriber feeds the Redis per-user channels into a Forwarder. It is
// used in place of the AMQP location consumer when positions live in Redis.
type LocationSubscriber struct {
	source    Source
	forwarder Forwarder
	log       *logger.Logger
}

func NewLocationSubscriber(source Source, forwarder Forwarder, log *logger.Logger) *LocationSubscriber {
	return &LocationSubscriber{source: source, forwarder: forwarder, log: log}
}

// Start blocks until ctx ends. Cancellation is not an error.
func (s *LocationSubscriber) Start(ctx context.Context) error {
	s.log.Info(logger.Entry{Action: "location_subscriber_started", Message: "listening on redis location channels"})

	err := s.source.SubscribeAll(ctx, s.forwarder.Forward)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	s.log.Error(logger.Entry{
		Action:  "location_subscriber_failed",
		Message: err.Error(),
		Error:   &logger.ErrObj{Msg: err.Error()},
	})
	return err
}
