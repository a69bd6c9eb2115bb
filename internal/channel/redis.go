package channel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisChannel implements Channel on a shared redis instance, so the two
// terminals can run as separate processes. Writes SET the key and PUBLISH the
// new value on a companion notify channel; subscribers merge the pub/sub
// stream with a poll ticker, since pub/sub alone offers no delivery guarantee
// to a context that was not connected at publish time.
type RedisChannel struct {
	client *redis.Client
	poll   time.Duration
}

// NewRedisChannel creates a redis-backed channel. poll <= 0 uses
// DefaultPollInterval.
func NewRedisChannel(client *redis.Client, poll time.Duration) *RedisChannel {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &RedisChannel{client: client, poll: poll}
}

func notifyChannel(key string) string {
	return fmt.Sprintf("%s:notify", key)
}

func (c *RedisChannel) Publish(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	// Values are JSON or timestamps, never empty; an empty notify payload
	// means the key was cleared.
	if err := c.client.Publish(ctx, notifyChannel(key), value).Err(); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

func (c *RedisChannel) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoValue
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return value, nil
}

func (c *RedisChannel) Clear(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	if err := c.client.Publish(ctx, notifyChannel(key), "").Err(); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

func (c *RedisChannel) Subscribe(ctx context.Context, key string) <-chan Update {
	out := make(chan Update)
	sub := c.client.Subscribe(ctx, notifyChannel(key))

	go func() {
		defer close(out)
		defer sub.Close()

		ticker := time.NewTicker(c.poll)
		defer ticker.Stop()

		var last []byte
		emit := func(value []byte) {
			if bytes.Equal(last, value) {
				return
			}
			last = append([]byte(nil), value...)
			select {
			case out <- Update{Key: key, Value: value}:
			case <-ctx.Done():
			}
		}

		msgs := sub.Channel()
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				if msg.Payload == "" {
					emit(nil)
					continue
				}
				emit([]byte(msg.Payload))
			case <-ticker.C:
				value, err := c.Get(ctx, key)
				if err != nil {
					if !errors.Is(err, ErrNoValue) {
						continue // transient redis error, retry next tick
					}
					value = nil
				}
				emit(value)
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
