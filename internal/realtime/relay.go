package realtime

import (
	"context"
	"encoding/json"
	"errors"

	"consultation_backend/internal/metrics"
	"consultation_backend/platform/apperr"
	"consultation_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

// Envelope carries an event between hub instances. Exactly one of Room and
// UserID addresses it. Members restricts the room before delivery and Close
// empties it afterwards.
type Envelope struct {
	Origin  string   `json:"origin"`
	Room    int64    `json:"room,omitempty"`
	UserID  string   `json:"userId,omitempty"`
	Members []string `json:"members,omitempty"`
	Close   bool     `json:"close,omitempty"`
	Event   Event    `json:"event"`
}

// Relay fans events out to the other API replicas.
type Relay interface {
	Publish(ctx context.Context, env Envelope) error
	// Listen subscribes before returning; deliver is called for every
	// envelope received until stop is called.
	Listen(ctx context.Context, deliver func(Envelope)) (stop func(), err error)
}

// AttachRelay starts forwarding remote envelopes to local connections and
// publishing local broadcasts to the relay.
func (h *Hub) AttachRelay(ctx context.Context, relay Relay) error {
	stop, err := relay.Listen(ctx, h.deliverRemote)
	if err != nil {
		return err
	}

	h.mu.Lock()
	previous := h.stopRelay
	h.relay = relay
	h.stopRelay = stop
	h.mu.Unlock()

	if previous != nil {
		previous()
	}
	return nil
}

func (h *Hub) relayOut(ctx context.Context, env Envelope) error {
	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()
	if relay == nil {
		return nil
	}
	if err := relay.Publish(ctx, env); err != nil {
		metrics.RecordSideEffectFailure("realtime_relay")
		return apperr.Dependency("realtime relay unavailable", err).WithOp("realtime.relay.publish")
	}
	return nil
}

func (h *Hub) deliverRemote(env Envelope) {
	if env.Origin == h.instanceID {
		return
	}
	if env.UserID != "" {
		h.deliverUser(env.UserID, env.Event)
		return
	}
	if len(env.Members) > 0 {
		h.restrictRoom(env.Room, env.Members)
	}
	h.deliverRoom(env.Room, env.Event)
	if env.Close {
		h.restrictRoom(env.Room, nil)
	}
}

// RedisRelay is a Relay over one Redis pub/sub channel.
type RedisRelay struct {
	client  *redis.Client
	channel string
	log     *logger.Logger
}

// NewRedisRelay creates a relay publishing on channel.
func NewRedisRelay(client *redis.Client, channel string, log *logger.Logger) *RedisRelay {
	if log == nil {
		log = logger.Discard()
	}
	return &RedisRelay{client: client, channel: channel, log: log}
}

func (r *RedisRelay) Publish(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, body).Err()
}

func (r *RedisRelay) Listen(ctx context.Context, deliver func(Envelope)) (func(), error) {
	sub := r.client.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	messages := sub.Channel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range messages {
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.log.Warn("discarding malformed realtime envelope", "channel", msg.Channel, "error", err)
				continue
			}
			deliver(env)
		}
	}()

	stop := func() {
		if err := sub.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			r.log.Warn("realtime relay close failed", "error", err)
		}
		<-done
	}
	return stop, nil
}
