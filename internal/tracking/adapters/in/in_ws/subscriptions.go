package in_ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"brillprime/internal/shared/auth"
	"brillprime/internal/shared/logger"
	"brillprime/internal/shared/ws"
	"brillprime/internal/tracking/adapters/out/notifier"
	"brillprime/internal/tracking/application/ports/in"
	"brillprime/internal/tracking/domain"
)

const (
	MsgSubscribeDriver   = "subscribe_driver"
	MsgUnsubscribeDriver = "unsubscribe_driver"

	snapshotTimeout = 2 * time.Second
)

var ErrNotAllowed = errors.New("not allowed to follow this driver")

type driverRequest struct {
	DriverID string `json:"driver_id"`
}

type Hub interface {
	Subscribe(client *ws.Client, topic string) bool
	Unsubscribe(client *ws.Client, topic string)
}

// Deliveries lists the in-flight deliveries (usecase.DeliveryRegistry).
type Deliveries interface {
	List() []domain.ActiveDelivery
}

// SubscriptionHandler lets clients follow a driver's live position. Admins and
// the driver itself may always follow; a consumer needs an active delivery
// with that driver.
type SubscriptionHandler struct {
	hub        Hub
	live       in.LiveLocationQuery
	deliveries Deliveries
	log        *logger.Logger
}

func NewSubscriptionHandler(hub Hub, live in.LiveLocationQuery, deliveries Deliveries, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{hub: hub, live: live, deliveries: deliveries, log: log}
}

// Handle is a ws.MessageHandler.
func (h *SubscriptionHandler) Handle(c *ws.Client, msgType string, data json.RawMessage) error {
	switch msgType {
	case MsgSubscribeDriver:
		req, err := parseDriver(data)
		if err != nil {
			return err
		}
		if !h.mayFollow(c, req.DriverID) {
			h.log.Warn(logger.Entry{
				Action:     "driver_subscribe_denied",
				Message:    req.DriverID,
				Additional: map[string]any{"user_id": c.UserID, "role": c.Role},
			})
			return ErrNotAllowed
		}
		topic := notifier.DriverTopic(req.DriverID)
		if !h.hub.Subscribe(c, topic) {
			return fmt.Errorf("connection closed")
		}
		h.log.Debug(logger.Entry{
			Action:     "driver_subscribed",
			Message:    topic,
			Additional: map[string]any{"user_id": c.UserID},
		})
		if err := c.Send("subscribed", req); err != nil {
			return err
		}
		h.sendSnapshot(c, req.DriverID)
		return nil

	case MsgUnsubscribeDriver:
		req, err := parseDriver(data)
		if err != nil {
			return err
		}
		h.hub.Unsubscribe(c, notifier.DriverTopic(req.DriverID))
		return c.Send("unsubscribed", req)

	default:
		return fmt.Errorf("unknown message type %q", msgType)
	}
}

func (h *SubscriptionHandler) mayFollow(c *ws.Client, driverID string) bool {
	if c.Role == auth.RoleAdmin || c.UserID == driverID {
		return true
	}
	if h.deliveries == nil {
		return false
	}
	for _, d := range h.deliveries.List() {
		if d.DriverID == driverID && d.ConsumerID == c.UserID {
			return true
		}
	}
	return false
}

// sendSnapshot pushes the last known position so the map is not blank until the next tick.
func (h *SubscriptionHandler) sendSnapshot(c *ws.Client, driverID string) {
	if h.live == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	pos, err := h.live.GetLiveLocation(ctx, driverID)
	if err != nil {
		return
	}
	_ = c.Send(notifier.MsgDriverLocation, notifier.NewDriverLocationPayload(driverID, pos))
}

func parseDriver(data json.RawMessage) (driverRequest, error) {
	var req driverRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("invalid payload: %w", err)
	}
	req.DriverID = strings.TrimSpace(req.DriverID)
	if req.DriverID == "" {
		return req, fmt.Errorf("driver_id is required")
	}
	return req, nil
}
