package in_ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"brillprime/internal/shared/logger"
	"brillprime/internal/shared/ws"
	"brillprime/internal/tracking/adapters/out/notifier"
	"brillprime/internal/tracking/domain"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type liveStub map[string]domain.Position

func (l liveStub) GetLiveLocation(_ context.Context, id string) (domain.Position, error) {
	if pos, ok := l[id]; ok {
		return pos, nil
	}
	return domain.Position{}, domain.ErrLocationNotFound
}

func (l liveStub) Invalidate(string) {}

type deliveryList []domain.ActiveDelivery

func (d deliveryList) List() []domain.ActiveDelivery { return d }

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func (c wsClient) read() map[string]any {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m map[string]any
	require.NoError(c.t, c.conn.ReadJSON(&m))
	return m
}

func (c wsClient) send(msgType, driverID string) {
	c.t.Helper()
	data := map[string]string{}
	if driverID != "" {
		data["driver_id"] = driverID
	}
	require.NoError(c.t, c.conn.WriteJSON(map[string]any{"type": msgType, "data": data}))
}

// startHub serves a hub whose tokens map to "userID:role".
func startHub(t *testing.T, deliveries Deliveries, tokens map[string]string) (*ws.Hub, string) {
	t.Helper()
	hub := ws.NewHub(func(token string) (string, string, error) {
		if who, ok := tokens[token]; ok {
			user, role, _ := strings.Cut(who, ":")
			return user, role, nil
		}
		return "", "", errors.New("bad token")
	}, logger.Nop())
	h := NewSubscriptionHandler(hub, liveStub{"driver-1": {Latitude: 6.5, Longitude: 3.3, Timestamp: 9}}, deliveries, logger.Nop())
	hub.SetMessageHandler(h.Handle)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialAs(t *testing.T, url, token string) wsClient {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	c := wsClient{t: t, conn: conn}
	require.NoError(t, conn.WriteJSON(map[string]string{"token": token}))
	c.read() // auth ack
	return c
}

func TestSubscribeDriverSendsSnapshotThenUpdates(t *testing.T) {
	hub, url := startHub(t,
		deliveryList{{ID: "d1", DriverID: "driver-1", ConsumerID: "consumer-1"}},
		map[string]string{"good": "consumer-1:CONSUMER"})
	c := dialAs(t, url, "good")

	c.send(MsgSubscribeDriver, "driver-1")
	assert.Equal(t, "subscribed", c.read()["type"])

	snap := c.read()
	require.Equal(t, notifier.MsgDriverLocation, snap["type"])
	assert.Equal(t, 6.5, snap["data"].(map[string]any)["latitude"])
	assert.Equal(t, 1, hub.SubscriberCount(notifier.DriverTopic("driver-1")))

	c.send(MsgUnsubscribeDriver, "driver-1")
	assert.Equal(t, "unsubscribed", c.read()["type"])
	assert.Zero(t, hub.SubscriberCount(notifier.DriverTopic("driver-1")))

	c.send(MsgSubscribeDriver, "")
	assert.Equal(t, "error", c.read()["type"])
}

func TestSubscribeDriverRequiresDeliveryOrAdmin(t *testing.T) {
	hub, url := startHub(t,
		deliveryList{{ID: "d1", DriverID: "driver-1", ConsumerID: "consumer-1"}},
		map[string]string{
			"stranger": "consumer-2:CONSUMER",
			"admin":    "ops-1:ADMIN",
			"self":     "driver-2:DRIVER",
		})
	topic := notifier.DriverTopic("driver-1")

	stranger := dialAs(t, url, "stranger")
	stranger.send(MsgSubscribeDriver, "driver-1")
	denied := stranger.read()
	require.Equal(t, "error", denied["type"])
	assert.Equal(t, ErrNotAllowed.Error(), denied["data"].(map[string]any)["message"])
	assert.Zero(t, hub.SubscriberCount(topic))

	admin := dialAs(t, url, "admin")
	admin.send(MsgSubscribeDriver, "driver-1")
	assert.Equal(t, "subscribed", admin.read()["type"])
	assert.Equal(t, 1, hub.SubscriberCount(topic))

	self := dialAs(t, url, "self")
	self.send(MsgSubscribeDriver, "driver-2")
	assert.Equal(t, "subscribed", self.read()["type"])
	self.send(MsgSubscribeDriver, "driver-1")
	assert.Equal(t, "error", self.read()["type"])
}

func TestMayFollowWithoutRegistry(t *testing.T) {
	h := NewSubscriptionHandler(nil, nil, nil, logger.Nop())

	assert.True(t, h.mayFollow(&ws.Client{UserID: "a", Role: "ADMIN"}, "driver-1"))
	assert.True(t, h.mayFollow(&ws.Client{UserID: "driver-1", Role: "DRIVER"}, "driver-1"))
	assert.False(t, h.mayFollow(&ws.Client{UserID: "consumer-1", Role: "CONSUMER"}, "driver-1"))
}
