package channel

import (
	"bytes"
	"context"
	"sync"
	"time"
)

// MemoryChannel implements Channel with an in-process map. It backs unit
// tests and single-process demos where both terminals share one runtime.
type MemoryChannel struct {
	mu       sync.RWMutex
	values   map[string][]byte
	watchers map[string]map[int]chan []byte
	nextID   int
	poll     time.Duration
}

// NewMemoryChannel creates an in-memory channel. poll <= 0 uses
// DefaultPollInterval.
func NewMemoryChannel(poll time.Duration) *MemoryChannel {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &MemoryChannel{
		values:   make(map[string][]byte),
		watchers: make(map[string]map[int]chan []byte),
		poll:     poll,
	}
}

func (c *MemoryChannel) Publish(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	c.values[key] = append([]byte(nil), value...)
	c.notifyLocked(key, value)
	c.mu.Unlock()
	return nil
}

func (c *MemoryChannel) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.values[key]
	if !ok {
		return nil, ErrNoValue
	}
	return append([]byte(nil), value...), nil
}

func (c *MemoryChannel) Clear(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.values, key)
	c.notifyLocked(key, nil)
	c.mu.Unlock()
	return nil
}

// notifyLocked is the change-event path. Sends are non-blocking: a slow
// subscriber falls back to its polling path.
func (c *MemoryChannel) notifyLocked(key string, value []byte) {
	for _, w := range c.watchers[key] {
		select {
		case w <- append([]byte(nil), value...):
		default:
		}
	}
}

func (c *MemoryChannel) Subscribe(ctx context.Context, key string) <-chan Update {
	events := make(chan []byte, 8)

	c.mu.Lock()
	if c.watchers[key] == nil {
		c.watchers[key] = make(map[int]chan []byte)
	}
	id := c.nextID
	c.nextID++
	c.watchers[key][id] = events
	c.mu.Unlock()

	out := make(chan Update)
	go func() {
		defer close(out)
		defer func() {
			c.mu.Lock()
			delete(c.watchers[key], id)
			c.mu.Unlock()
		}()

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

		for {
			select {
			case value := <-events:
				emit(value)
			case <-ticker.C:
				value, err := c.Get(ctx, key)
				if err != nil {
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
