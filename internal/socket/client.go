package socket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/slotter-org/tutor-backend/internal/logger"
)

// InboundMessage is what a browser may send: subscribe/unsubscribe to its own user channel.
type InboundMessage struct {
	Action  string `json:"action,omitempty"`
	Channel string `json:"channel,omitempty"`
}

const (
	OutboundChanBuffer = 64

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxInbound = 4 << 10
)

type Client struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Conn      *websocket.Conn
	Hub       *Hub
	Log       *logger.Logger
	Outbound  chan Event
	cancelFn  context.CancelFunc
	closeOnce sync.Once
}

// NewClient wraps conn for userID. cancel stops the sibling pump once either side exits.
func NewClient(conn *websocket.Conn, hub *Hub, userID uuid.UUID, cancel context.CancelFunc, log *logger.Logger) *Client {
	id := uuid.New()
	return &Client{
		ID:       id,
		UserID:   userID,
		Conn:     conn,
		Hub:      hub,
		Log:      log.With("client", id, "userID", userID),
		Outbound: make(chan Event, OutboundChanBuffer),
		cancelFn: cancel,
	}
}

func (c *Client) ReadLoop(ctx context.Context)  { c.readLoop(ctx) }
func (c *Client) WriteLoop(ctx context.Context) { c.writeLoop(ctx) }

// allowed reports whether the client may listen on channel. Only its own user channel is.
func (c *Client) allowed(channel string) bool {
	return channel == UserChannel(c.UserID)
}

func (c *Client) readLoop(ctx context.Context) {
	defer c.close()

	c.Conn.SetReadLimit(maxInbound)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			c.Log.Debug("websocket read error, closing client", "error", err)
			return
		}

		var inbound InboundMessage
		if err := json.Unmarshal(data, &inbound); err != nil {
			c.Log.Debug("failed to unmarshal inbound message", "error", err)
			continue
		}

		switch inbound.Action {
		case "subscribe":
			if !c.allowed(inbound.Channel) {
				c.Log.Warn("refused subscription to foreign channel", "channel", inbound.Channel)
				continue
			}
			c.Hub.Subscribe(c, []string{inbound.Channel})
		case "unsubscribe":
			if inbound.Channel != "" {
				c.Hub.UnsubscribeFromChannel(c, inbound.Channel)
			}
		case "ping":
			c.enqueue(Event{Channel: UserChannel(c.UserID), Data: EventData{Action: "pong"}})
		default:
			c.Log.Debug("inbound WS message unhandled", "action", inbound.Action)
		}
	}
}

func (c *Client) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return

		case ev := <-c.Outbound:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.writeJSON(ev); err != nil {
				c.Log.Warn("failed writing JSON", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Log.Debug("ping error, closing client", "error", err)
				return
			}
		}
	}
}

func (c *Client) enqueue(ev Event) {
	select {
	case c.Outbound <- ev:
	default:
	}
}

func (c *Client) writeJSON(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w, err := c.Conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	if _, err = w.Write(payload); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// close leaves the hub before tearing down the connection so no broadcast targets a dead client.
// Outbound is never closed; the hub may still hold a reference while it unsubscribes.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.Hub.Unsubscribe(c)
		if c.cancelFn != nil {
			c.cancelFn()
		}
		_ = c.Conn.Close()
		c.Log.Debug("client connection closed")
	})
}
