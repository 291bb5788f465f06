package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/slotter-org/tutor-backend/internal/logger"
)

// RedisPubSub relays hub events between API instances. Each instance already delivered
// its own events locally, so envelopes carrying our origin are skipped on receipt.
type RedisPubSub struct {
	log        *logger.Logger
	origin     string
	client     *redis.Client
	channel    string
	cancelFunc context.CancelFunc
	mu         sync.Mutex
}

func NewRedisPubSub(log *logger.Logger, client *redis.Client, channel string) *RedisPubSub {
	return &RedisPubSub{
		log:     log.With("component", "RedisPubSub"),
		origin:  uuid.NewString(),
		client:  client,
		channel: channel,
	}
}

// StartSubscriber forwards every relayed event into hub's local subscribers until Stop.
func (rp *RedisPubSub) StartSubscriber(hub *Hub) error {
	ctx, cancel := context.WithCancel(context.Background())
	rp.mu.Lock()
	rp.cancelFunc = cancel
	rp.mu.Unlock()

	pubsub := rp.client.Subscribe(ctx, rp.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to redis channel: %w", err)
	}
	rp.log.Info("RedisPubSub subscribed successfully", "channel", rp.channel)

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				rp.log.Debug("Redis pubsub context done, stopping subscription goroutine")
				return
			case msg, ok := <-ch:
				if !ok {
					rp.log.Debug("PubSub channel closed, stopping subscription goroutine")
					return
				}
				env, err := decodeEnvelope(msg.Payload)
				if err != nil {
					rp.log.Warn("Failed to decode pubsub message", "error", err)
					continue
				}
				if env.Origin == rp.origin {
					continue
				}
				hub.localBroadcast(env.Event)
			}
		}
	}()
	return nil
}

func (rp *RedisPubSub) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(envelope{Origin: rp.origin, Event: ev})
	if err != nil {
		return fmt.Errorf("failed to encode event for redis: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return rp.client.Publish(ctx, rp.channel, payload).Err()
}

func (rp *RedisPubSub) Stop() {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	if rp.cancelFunc != nil {
		rp.cancelFunc()
		rp.cancelFunc = nil
	}
}

type envelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

func decodeEnvelope(payload string) (envelope, error) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return env, fmt.Errorf("json unmarshal failed: %w", err)
	}
	return env, nil
}
