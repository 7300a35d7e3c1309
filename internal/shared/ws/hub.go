// Package ws is the WebSocket hub shared by consumers, drivers and merchants.
//
// A client connects to /ws and must send {"token": "<jwt>"} within authTimeout.
// After that it may send typed messages ({"type": ..., "data": ...}) which are
// passed to the MessageHandler, and it receives whatever the server pushes to
// its user id or to the topics it subscribed to.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"brillprime/internal/shared/logger"
	"brillprime/internal/shared/utils"

	"github.com/gorilla/websocket"
)

const (
	authTimeout    = 5 * time.Second
	pingInterval   = 30 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 8192
	writeWait      = 10 * time.Second
	sendBuffer     = 256
)

// AuthFunc validates the first-message token.
type AuthFunc func(token string) (userID, role string, err error)

// MessageHandler receives every typed message a client sends after auth.
type MessageHandler func(client *Client, messageType string, data json.RawMessage) error

// Message is the server push envelope.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type Client struct {
	ID     string
	UserID string
	Role   string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	log    *logger.Logger
}

type Hub struct {
	clients map[string]*Client
	// topic -> client id -> client
	topics map[string]map[string]*Client
	mu     sync.RWMutex

	unregister chan *Client
	done       chan struct{}

	upgrader       websocket.Upgrader
	allowedOrigins map[string]struct{}
	authFunc       AuthFunc
	messageHandler MessageHandler
	log            *logger.Logger
}

func NewHub(authFunc AuthFunc, log *logger.Logger) *Hub {
	h := &Hub{
		clients:    make(map[string]*Client),
		topics:     make(map[string]map[string]*Client),
		unregister: make(chan *Client, 16),
		done:       make(chan struct{}),
		authFunc:   authFunc,
		log:        log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// SetMessageHandler must be called before Run.
func (h *Hub) SetMessageHandler(handler MessageHandler) {
	h.messageHandler = handler
}

// SetAllowedOrigins restricts browser upgrades to the given Origin values.
// An empty list accepts any origin. Must be called before serving.
func (h *Hub) SetAllowedOrigins(origins []string) {
	h.allowedOrigins = nil
	for _, o := range origins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			if h.allowedOrigins == nil {
				h.allowedOrigins = make(map[string]struct{})
			}
			h.allowedOrigins[o] = struct{}{}
		}
	}
}

// checkOrigin lets non-browser clients (no Origin header) through.
func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.allowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	_, ok := h.allowedOrigins[origin]
	if !ok {
		h.log.Warn(logger.Entry{
			Action:  "ws_origin_rejected",
			Message: origin,
		})
	}
	return ok
}

// Run owns unregistration. It returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			h.log.Info(logger.Entry{Action: "hub_stopped", Message: "websocket hub stopped"})
			return

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

// add registers synchronously so a client may subscribe right after the ack.
func (h *Hub) add(client *Client) bool {
	h.mu.Lock()
	select {
	case <-h.done:
		h.mu.Unlock()
		return false
	default:
	}
	h.clients[client.ID] = client
	h.mu.Unlock()

	h.log.Info(logger.Entry{
		Action:  "client_registered",
		Message: client.ID,
		Additional: map[string]any{
			"user_id": client.UserID,
			"role":    client.Role,
		},
	})
	return true
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client.ID]
	if ok {
		delete(h.clients, client.ID)
		for topic, subs := range h.topics {
			delete(subs, client.ID)
			if len(subs) == 0 {
				delete(h.topics, topic)
			}
		}
		close(client.send)
	}
	h.mu.Unlock()
	if ok {
		h.log.Info(logger.Entry{Action: "client_unregistered", Message: client.ID})
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
	}
	h.topics = make(map[string]map[string]*Client)
}

// Subscribe adds the client to topic. Unknown (unregistered) clients are ignored.
func (h *Hub) Subscribe(client *Client, topic string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return false
	}
	subs := h.topics[topic]
	if subs == nil {
		subs = make(map[string]*Client)
		h.topics[topic] = subs
	}
	subs[client.ID] = client
	return true
}

func (h *Hub) Unsubscribe(client *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.topics[topic]; ok {
		delete(subs, client.ID)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

// SubscriberCount reports how many clients listen on topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Publish pushes a typed message to every subscriber of topic.
func (h *Hub) Publish(topic, msgType string, data any) error {
	msg, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.topics[topic] {
		h.trySend(c, msg, "publish_dropped")
	}
	return nil
}

func (h *Hub) SendToUser(userID string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.UserID == userID {
			h.trySend(c, message, "send_to_user_failed")
		}
	}
}

// SendTypedMessage pushes {"type": msgType, "data": data} to every connection of userID.
func (h *Hub) SendTypedMessage(userID, msgType string, data any) error {
	msg, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		return err
	}
	h.SendToUser(userID, msg)
	return nil
}

func (h *Hub) IsUserConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.UserID == userID {
			return true
		}
	}
	return false
}

// caller holds h.mu
func (h *Hub) trySend(c *Client, msg []byte, action string) {
	select {
	case c.send <- msg:
	default:
		h.log.Warn(logger.Entry{
			Action:     action,
			Message:    "client send buffer full",
			Additional: map[string]any{"client_id": c.ID, "user_id": c.UserID},
		})
	}
}

// Send pushes a typed message to this connection only.
func (c *Client) Send(msgType string, data any) error {
	msg, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		return err
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c.ID]; ok {
		c.hub.trySend(c, msg, "send_to_client_failed")
	}
	return nil
}

// ServeWS upgrades the request and runs the auth handshake.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error(logger.Entry{
			Action:  "ws_upgrade_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
		return
	}

	client := &Client{
		ID:   "ws_" + utils.NewUUID(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		hub:  h,
		log:  h.log,
	}

	_ = conn.SetReadDeadline(time.Now().Add(authTimeout))

	var authMsg struct {
		Token string `json:"token"`
	}
	if err := conn.ReadJSON(&authMsg); err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseProtocolError, "auth timeout"))
		_ = conn.Close()
		h.log.Warn(logger.Entry{Action: "ws_auth_failed", Message: "no auth message received"})
		return
	}

	userID, role, err := h.authFunc(authMsg.Token)
	if err != nil {
		_ = conn.WriteJSON(map[string]string{"error": "invalid token"})
		_ = conn.Close()
		h.log.Warn(logger.Entry{
			Action:  "ws_auth_invalid_token",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
		return
	}

	client.UserID = userID
	client.Role = role

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// the ack is written before the pumps start so there is a single writer at a time
	if err := conn.WriteJSON(map[string]string{"status": "authenticated", "user_id": userID}); err != nil {
		_ = conn.Close()
		return
	}

	if !h.add(client) {
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Warn(logger.Entry{
					Action:  "ws_read_error",
					Message: c.ID,
					Error:   &logger.ErrObj{Msg: err.Error()},
				})
			}
			return
		}

		var msg struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data,omitempty"`
		}
		if err := json.Unmarshal(message, &msg); err != nil {
			c.log.Warn(logger.Entry{
				Action:     "ws_parse_message_error",
				Message:    err.Error(),
				Additional: map[string]any{"client_id": c.ID},
			})
			continue
		}

		if c.hub.messageHandler == nil {
			continue
		}
		if err := c.hub.messageHandler(c, msg.Type, msg.Data); err != nil {
			c.log.Warn(logger.Entry{
				Action:  "ws_handle_message_error",
				Message: err.Error(),
				Error:   &logger.ErrObj{Msg: err.Error()},
				Additional: map[string]any{
					"client_id": c.ID,
					"msg_type":  msg.Type,
				},
			})
			_ = c.Send("error", map[string]string{"message": err.Error()})
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
