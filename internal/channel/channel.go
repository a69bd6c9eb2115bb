package channel

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultPollInterval bounds worst-case signal latency for same-context
// writes, where the native change notification does not fire.
const DefaultPollInterval = 400 * time.Millisecond

var ErrNoValue = errors.New("no value for key")

// Update is one observed change of a key. Value is nil when the key was
// cleared; readers interpret absence as "no active transaction".
type Update struct {
	Key   string
	Value []byte
}

// Channel is a broadcast primitive visible across independent terminal
// contexts. There is no delivery guarantee for a context that is not
// currently subscribed: values are not queued, last write wins.
type Channel interface {
	// Publish writes a value, visible to subscribers via change notification
	// and to the writer's own context via polling.
	Publish(ctx context.Context, key string, value []byte) error

	// Get reads the current value, or ErrNoValue if the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Clear removes a value.
	Clear(ctx context.Context, key string) error

	// Subscribe emits one Update per logical change of key, deduplicated
	// against the last observed value, merging change notifications with
	// polling. The returned channel closes when ctx is done.
	Subscribe(ctx context.Context, key string) <-chan Update
}

// Channel keys are namespaced per terminal group so that several POS lanes
// can share one store.

func DraftKey(group string) string {
	return fmt.Sprintf("cloudpay:pos:%s:draft", group)
}

func SignalKey(group string) string {
	return fmt.Sprintf("cloudpay:pos:%s:signal", group)
}

func SessionKey(group string) string {
	return fmt.Sprintf("cloudpay:pos:%s:session", group)
}

func TriggerKey(group string) string {
	return fmt.Sprintf("cloudpay:pos:%s:trigger", group)
}
