package bus

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBus implements Bus over Redis PUBLISH/SUBSCRIBE, giving publishers
// and subscribers independent process lifetimes as the spec requires.
type RedisBus struct {
	client *redis.Client
}

var _ Bus = (*RedisBus)(nil)

// NewRedisBus connects to the Redis instance at url (a redis:// URL, e.g.
// REDIS_URL).
func NewRedisBus(url string) (*RedisBus, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisBus{client: redis.NewClient(opts)}, nil
}

func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) (int64, error) {
	n, err := b.client.Publish(ctx, topic, payload).Result()
	if err != nil {
		return 0, fmt.Errorf("publish %s: %w", topic, err)
	}
	return n, nil
}

func (b *RedisBus) Subscribe(ctx context.Context, topics ...string) (Subscription, error) {
	pubsub := b.client.Subscribe(ctx, topics...)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %v: %w", topics, err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		ch:     make(chan Message, subscriberBuffer),
	}
	go sub.pump()
	return sub, nil
}

// Ping issues a Redis PING to confirm the connection is alive.
func (b *RedisBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}

type redisSubscription struct {
	pubsub *redis.PubSub
	ch     chan Message
}

func (s *redisSubscription) pump() {
	defer close(s.ch)
	for msg := range s.pubsub.Channel() {
		select {
		case s.ch <- Message{Topic: msg.Channel, Payload: []byte(msg.Payload)}:
		default:
			// Slow consumer: drop rather than block the Redis client's read loop.
		}
	}
}

func (s *redisSubscription) C() <-chan Message { return s.ch }

func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}
