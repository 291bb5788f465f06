package socket

import (
    "context"
    "sync"

    "github.com/google/uuid"

    "github.com/slotter-org/tutor-backend/internal/logger"
)

// Event is what every subscriber of Channel receives.
type Event struct {
    Channel string      `json:"channel"`
    Data    EventData   `json:"data"`
}

type EventData struct {
    Action  string      `json:"action"`
    Payload interface{} `json:"payload,omitempty"`
}

// UserChannel is the only channel a client is allowed to join.
func UserChannel(userID uuid.UUID) string {
    return "user:" + userID.String()
}

type Hub struct {
    log       *logger.Logger
    mu        sync.RWMutex
    channels  map[string]map[uuid.UUID]*Client

    redisPubSub *RedisPubSub
}

func NewHub(log *logger.Logger) *Hub {
    return &Hub{
        log:       log.With("component", "Hub"),
        channels:  make(map[string]map[uuid.UUID]*Client),
    }
}

func (h *Hub) SetRedisPubSub(rp *RedisPubSub) {
    h.redisPubSub = rp
}

func (h *Hub) Subscribe(client *Client, channels []string) {
    h.mu.Lock()
    defer h.mu.Unlock()

    for _, ch := range channels {
        if h.channels[ch] == nil {
            h.channels[ch] = make(map[uuid.UUID]*Client)
        }
        h.channels[ch][client.ID] = client
    }
    h.log.Debug("Client subscribed", "client", client.ID, "channels", channels)
}

func (h *Hub) Unsubscribe(client *Client) {
    h.mu.Lock()
    defer h.mu.Unlock()

    for ch, clientsMap := range h.channels {
        if _, ok := clientsMap[client.ID]; ok {
            delete(clientsMap, client.ID)
            if len(clientsMap) == 0 {
                delete(h.channels, ch)
            }
        }
    }
    h.log.Debug("Client unsubscribed from all channels", "client", client.ID)
}

func (h *Hub) UnsubscribeFromChannel(client *Client, channel string) {
    h.mu.Lock()
    defer h.mu.Unlock()
    if clientsMap, ok := h.channels[channel]; ok {
        delete(clientsMap, client.ID)
        if len(clientsMap) == 0 {
            delete(h.channels, channel)
        }
    }
}

// Subscribers reports how many local clients listen on channel.
func (h *Hub) Subscribers(channel string) int {
    h.mu.RLock()
    defer h.mu.RUnlock()
    return len(h.channels[channel])
}

func (h *Hub) localBroadcast(ev Event) {
    h.mu.RLock()
    defer h.mu.RUnlock()

    clientsMap, ok := h.channels[ev.Channel]
    if !ok {
        return
    }
    for _, client := range clientsMap {
        select {
        case client.Outbound <- ev:
        default:
            h.log.Warn("Dropping event to client; outbound buffer full", "client", client.ID, "channel", ev.Channel)
        }
    }
}

// Broadcast delivers locally and, when Redis is wired, publishes so other instances deliver too.
func (h *Hub) Broadcast(ctx context.Context, ev Event) {
    h.localBroadcast(ev)

    if h.redisPubSub != nil {
        if err := h.redisPubSub.Publish(ctx, ev); err != nil {
            h.log.Warn("Failed to publish to Redis", "error", err)
        }
    }
}

// NotifyUser sends a change event to every open connection of userID.
func (h *Hub) NotifyUser(userID uuid.UUID, action string, payload interface{}) {
    h.Broadcast(context.Background(), Event{
        Channel: UserChannel(userID),
        Data:    EventData{Action: action, Payload: payload},
    })
}
