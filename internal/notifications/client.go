package notifications

import (
	"encoding/json"
	"log/slog"
	"time"

	"guildhall/internal/middleware"
	"guildhall/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must stay below pongWait
	maxInboundSize = 512
	sendBuffer     = 64
)

// Inbound frame types. The socket is push-only apart from keepalives.
const (
	frameClientPing = "ping"
	frameServerPong = "pong"
)

var droppedNotice = mustMarshal(NewEvent("messages_dropped", map[string]any{"reason": "buffer_full"}))

func mustMarshal(ev Event) []byte {
	b, err := json.Marshal(ev)
	if err != nil {
		panic(err)
	}
	return b
}

// clientOwner is the hub a client reports back to.
type clientOwner interface {
	UnregisterClient(c *Client)
	Name() string
}

// Client is one member's websocket connection.
type Client struct {
	owner  clientOwner
	conn   *websocket.Conn
	send   chan []byte
	UserID uuid.UUID
}

func newClient(owner clientOwner, conn *websocket.Conn, userID uuid.UUID) *Client {
	return &Client{
		owner:  owner,
		conn:   conn,
		UserID: userID,
		send:   make(chan []byte, sendBuffer),
	}
}

// ReadPump blocks until the peer goes away, answering keepalive frames.
// It unregisters the client on return.
func (c *Client) ReadPump() {
	defer func() {
		c.owner.UnregisterClient(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				middleware.Logger.Warn("websocket closed unexpectedly",
					slog.String("user_id", c.UserID.String()), slog.String("error", err.Error()))
			}
			return
		}
		c.handleInbound(frame)
	}
}

func (c *Client) handleInbound(frame []byte) {
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(frame, &msg); err != nil || msg.Type != frameClientPing {
		middleware.Logger.Debug("ignoring inbound websocket frame",
			slog.String("user_id", c.UserID.String()), slog.Int("bytes", len(frame)))
		return
	}
	c.TrySend(mustMarshal(NewEvent(frameServerPong, nil)))
}

// WritePump drains the send buffer onto the socket and pings the peer.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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

// TrySend queues frame without blocking. When the buffer is full the frame is
// dropped and a messages_dropped event is queued if there is room, so the
// client knows to refetch.
func (c *Client) TrySend(frame []byte) {
	select {
	case c.send <- frame:
		return
	default:
	}

	observability.WebSocketBackpressureDrops.WithLabelValues(c.owner.Name(), "full").Inc()
	middleware.Logger.Warn("websocket buffer full, dropped frame",
		slog.String("user_id", c.UserID.String()))
	select {
	case c.send <- droppedNotice:
	default:
	}
}
