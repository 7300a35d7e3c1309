package notifier

import (
	"brillprime/internal/shared/logger"
	"brillprime/internal/tracking/domain"
)

// DriverTopic is the hub topic carrying one driver's positions.
func DriverTopic(driverID string) string { return "driver:" + driverID }

// DriverLocationPayload is the data of a driver_location push.
type DriverLocationPayload struct {
	DriverID  string   `json:"driver_id"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Timestamp int64    `json:"timestamp"`
	IsStale   bool     `json:"is_stale,omitempty"`
}

func NewDriverLocationPayload(driverID string, pos domain.Position) DriverLocationPayload {
	return DriverLocationPayload{
		DriverID:  driverID,
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
		Accuracy:  pos.Accuracy,
		Timestamp: pos.Timestamp,
		IsStale:   pos.IsStale,
	}
}

// TopicPublisher is the part of *ws.Hub the relay pushes to.
type TopicPublisher interface {
	Publish(topic, msgType string, data any) error
}

// Observer primes the live-location cache.
type Observer interface {
	Observe(loc domain.LiveLocation)
}

// DriverRelay hands a broadcast position to the local cache and to the ws
// subscribers of that driver. Broadcast consumers (AMQP, Redis pub/sub) share it.
type DriverRelay struct {
	hub      TopicPublisher
	observer Observer
	log      *logger.Logger
}

// NewDriverRelay accepts a nil observer.
func NewDriverRelay(hub TopicPublisher, observer Observer, log *logger.Logger) *DriverRelay {
	return &DriverRelay{hub: hub, observer: observer, log: log}
}

func (r *DriverRelay) Forward(loc domain.LiveLocation) {
	if r.observer != nil {
		r.observer.Observe(loc)
	}
	if err := r.hub.Publish(DriverTopic(loc.UserID), MsgDriverLocation, NewDriverLocationPayload(loc.UserID, loc.Position)); err != nil {
		r.log.Warn(logger.Entry{
			Action:     "location_forward_failed",
			Message:    err.Error(),
			Error:      &logger.ErrObj{Msg: err.Error()},
			Additional: map[string]any{"driver_id": loc.UserID},
		})
	}
}
