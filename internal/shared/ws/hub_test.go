package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"brillprime/internal/shared/logger"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func testAuth(token string) (string, string, error) {
	if strings.HasPrefix(token, "ok:") {
		return strings.TrimPrefix(token, "ok:"), "CONSUMER", nil
	}
	return "", "", errors.New("bad token")
}

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(testAuth, logger.Nop())
	hub.SetMessageHandler(func(c *Client, msgType string, data json.RawMessage) error {
		if msgType == "subscribe" {
			var p struct {
				Topic string `json:"topic"`
			}
			if err := json.Unmarshal(data, &p); err != nil {
				return err
			}
			hub.Subscribe(c, p.Topic)
			return c.Send("subscribed", p)
		}
		return errors.New("unknown type")
	})

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url, token string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.WriteJSON(map[string]string{"token": token}))
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m map[string]any
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestHubAuthAndSendToUser(t *testing.T) {
	hub, url := startHub(t)

	conn := dial(t, url, "ok:consumer-1")
	ack := readMsg(t, conn)
	require.Equal(t, "authenticated", ack["status"])
	require.Equal(t, "consumer-1", ack["user_id"])
	require.True(t, hub.IsUserConnected("consumer-1"))

	require.NoError(t, hub.SendTypedMessage("consumer-1", "tracking_alert", map[string]string{"reason": "x"}))
	msg := readMsg(t, conn)
	require.Equal(t, "tracking_alert", msg["type"])
}

func TestHubRejectsInvalidToken(t *testing.T) {
	hub, url := startHub(t)

	conn := dial(t, url, "nope")
	msg := readMsg(t, conn)
	require.Equal(t, "invalid token", msg["error"])
	require.False(t, hub.IsUserConnected(""))
}

func TestHubTopicSubscription(t *testing.T) {
	hub, url := startHub(t)

	conn := dial(t, url, "ok:consumer-2")
	readMsg(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "subscribe", "data": map[string]string{"topic": "driver:d1"}}))
	ack := readMsg(t, conn)
	require.Equal(t, "subscribed", ack["type"])
	require.Equal(t, 1, hub.SubscriberCount("driver:d1"))

	require.NoError(t, hub.Publish("driver:d1", "driver_location", map[string]float64{"latitude": 6.5}))
	msg := readMsg(t, conn)
	require.Equal(t, "driver_location", msg["type"])

	_ = conn.Close()
	require.Eventually(t, func() bool { return hub.SubscriberCount("driver:d1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubHandlerErrorIsReported(t *testing.T) {
	_, url := startHub(t)

	conn := dial(t, url, "ok:u")
	readMsg(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "bogus"}))
	msg := readMsg(t, conn)
	require.Equal(t, "error", msg["type"])
}

func TestServeWSRejectsForeignOrigin(t *testing.T) {
	hub := NewHub(testAuth, logger.Nop())
	hub.SetAllowedOrigins([]string{" https://app.brillprime.com/ ", ""})

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://app.brillprime.com"}})
	require.NoError(t, err)
	_ = conn.Close()

	// native clients send no Origin header
	conn, _, err = websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = conn.Close()
}

func TestCheckOriginAcceptsAnyWhenUnset(t *testing.T) {
	hub := NewHub(testAuth, logger.Nop())
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Origin", "https://anything.example")
	require.True(t, hub.checkOrigin(r))

	hub.SetAllowedOrigins(nil)
	require.True(t, hub.checkOrigin(r))
}
