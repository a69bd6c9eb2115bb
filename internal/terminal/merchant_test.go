package terminal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/protegacloudpay/cloudpay/internal/channel"
	"github.com/protegacloudpay/cloudpay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{Group: "test", ResetDelay: 60 * time.Millisecond, WaitTimeout: 2 * time.Second}
}

func startMerchant(t *testing.T, ch channel.Channel, fin Finalizer, cfg Config) (*Merchant, context.Context) {
	t.Helper()
	m := NewMerchant(ch, fin, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go m.Run(ctx)
	return m, ctx
}

func TestMerchant_AddItem_Validation(t *testing.T) {
	m := NewMerchant(channel.NewMemoryChannel(5*time.Millisecond), &mockFinalizer{}, testConfig())

	assert.ErrorIs(t, m.AddItem(domain.DraftItem{Name: "Free", Price: 0}), domain.ErrNonPositivePrice)
	assert.NoError(t, m.AddItem(domain.DraftItem{Name: "Coffee", Price: 5.99}))
	assert.Len(t, m.Cart(), 1)

	require.NoError(t, m.RemoveItem(0))
	assert.Empty(t, m.Cart())
	assert.Error(t, m.RemoveItem(0))
}

func TestMerchant_StartTransaction_EmptyCart(t *testing.T) {
	ch := channel.NewMemoryChannel(5 * time.Millisecond)
	m := NewMerchant(ch, &mockFinalizer{}, testConfig())

	err := m.StartTransaction(context.Background())
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
	assert.Equal(t, MerchantIdle, m.State())

	// No draft may have been published.
	_, err = ch.Get(context.Background(), channel.DraftKey("test"))
	assert.ErrorIs(t, err, channel.ErrNoValue)
}

func TestMerchant_StartTransaction_PublishesDraftAndWaiting(t *testing.T) {
	ch := channel.NewMemoryChannel(5 * time.Millisecond)
	m := NewMerchant(ch, &mockFinalizer{}, testConfig())
	ctx := context.Background()

	require.NoError(t, m.AddItem(domain.DraftItem{Name: "Coffee", Price: 5.99}))
	require.NoError(t, m.AddItem(domain.DraftItem{Name: "Bagel", Price: 3.01}))
	require.NoError(t, m.StartTransaction(ctx))

	assert.Equal(t, MerchantWaiting, m.State())

	draft, err := channel.GetDraft(ctx, ch, "test")
	require.NoError(t, err)
	assert.InDelta(t, 9.00, draft.Amount, 0.01)
	assert.Len(t, draft.Items, 2)

	value, err := ch.Get(ctx, channel.SignalKey("test"))
	require.NoError(t, err)
	env, err := channel.DecodeSignal(value)
	require.NoError(t, err)
	assert.Equal(t, domain.SignalWaiting, env.Status)
	assert.Equal(t, domain.SenderMerchant, env.Sender)

	// Starting again while waiting is rejected.
	assert.ErrorIs(t, m.StartTransaction(ctx), ErrInvalidState)
}

func TestMerchant_CompleteTriggersFinalizerExactlyOnce(t *testing.T) {
	ch := channel.NewMemoryChannel(5 * time.Millisecond)
	fin := &mockFinalizer{}
	cfg := testConfig()
	cfg.ResetDelay = time.Second // hold the complete state for assertions
	m, ctx := startMerchant(t, ch, fin, cfg)

	require.NoError(t, m.AddItem(domain.DraftItem{Name: "Coffee", Price: 5.99}))
	require.NoError(t, m.StartTransaction(ctx))

	sess := domain.PaymentContext{CustomerID: "cust-1", FingerprintHash: "fp_abc", PaymentMethodID: 7}
	require.NoError(t, channel.PublishSession(ctx, ch, "test", sess))
	require.NoError(t, channel.PublishSignal(ctx, ch, "test", domain.SignalComplete, domain.SenderCustomer))

	require.Eventually(t, func() bool { return m.State() == MerchantComplete }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, fin.callCount())

	draft, gotSess := fin.lastCall()
	assert.InDelta(t, 5.99, draft.Amount, 0.01)
	assert.Equal(t, "cust-1", gotSess.CustomerID)
	assert.Equal(t, int64(7), gotSess.PaymentMethodID)
	require.NotNil(t, m.LastTransaction())
	assert.InDelta(t, 5.99*1.08, m.LastTransaction().Total, 0.01)

	// A fresh complete envelope for the same cycle must not re-finalize.
	require.NoError(t, channel.PublishSignal(ctx, ch, "test", domain.SignalComplete, domain.SenderCustomer))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, fin.callCount())
}

func TestMerchant_FinalizerFailureCancelsAndSignals(t *testing.T) {
	ch := channel.NewMemoryChannel(5 * time.Millisecond)
	fin := &mockFinalizer{err: errors.New("card declined")}
	cfg := testConfig()
	cfg.ResetDelay = time.Second
	m, ctx := startMerchant(t, ch, fin, cfg)

	require.NoError(t, m.AddItem(domain.DraftItem{Name: "Coffee", Price: 5.99}))
	require.NoError(t, m.StartTransaction(ctx))

	require.NoError(t, channel.PublishSession(ctx, ch, "test", domain.PaymentContext{CustomerID: "cust-1"}))
	require.NoError(t, channel.PublishSignal(ctx, ch, "test", domain.SignalComplete, domain.SenderCustomer))

	require.Eventually(t, func() bool { return m.State() == MerchantCancelled }, 2*time.Second, 5*time.Millisecond)
	assert.Contains(t, m.FailReason(), "card declined")

	// The failure is pushed back over the channel, not dropped.
	value, err := ch.Get(ctx, channel.SignalKey("test"))
	require.NoError(t, err)
	env, err := channel.DecodeSignal(value)
	require.NoError(t, err)
	assert.Equal(t, domain.SignalCancelled, env.Status)
	assert.Equal(t, domain.SenderMerchant, env.Sender)
}

func TestMerchant_CustomerCancelAborts(t *testing.T) {
	ch := channel.NewMemoryChannel(5 * time.Millisecond)
	fin := &mockFinalizer{}
	m, ctx := startMerchant(t, ch, fin, testConfig())

	require.NoError(t, m.AddItem(domain.DraftItem{Name: "Coffee", Price: 5.99}))
	require.NoError(t, m.StartTransaction(ctx))

	require.NoError(t, channel.PublishSignal(ctx, ch, "test", domain.SignalCancelled, domain.SenderCustomer))

	require.Eventually(t, func() bool { return m.State() == MerchantCancelled }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, fin.callCount())

	// After the display delay the machine resets and clears the lane.
	require.Eventually(t, func() bool { return m.State() == MerchantIdle }, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, m.Cart())
	_, err := ch.Get(ctx, channel.DraftKey("test"))
	assert.ErrorIs(t, err, channel.ErrNoValue)
}

func TestMerchant_WaitTimeoutAutoCancels(t *testing.T) {
	ch := channel.NewMemoryChannel(5 * time.Millisecond)
	fin := &mockFinalizer{}
	cfg := testConfig()
	cfg.WaitTimeout = 50 * time.Millisecond
	cfg.ResetDelay = time.Second
	m, ctx := startMerchant(t, ch, fin, cfg)

	require.NoError(t, m.AddItem(domain.DraftItem{Name: "Coffee", Price: 5.99}))
	require.NoError(t, m.StartTransaction(ctx))

	require.Eventually(t, func() bool { return m.State() == MerchantCancelled }, 2*time.Second, 5*time.Millisecond)
	assert.Contains(t, m.FailReason(), "timed out")
	assert.Equal(t, 0, fin.callCount())
}

func TestMerchant_StaleSignalsIgnored(t *testing.T) {
	ch := channel.NewMemoryChannel(5 * time.Millisecond)
	fin := &mockFinalizer{}
	m, ctx := startMerchant(t, ch, fin, testConfig())

	// complete while idle: stale value, must be ignored, not crash.
	require.NoError(t, channel.PublishSignal(ctx, ch, "test", domain.SignalComplete, domain.SenderCustomer))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, MerchantIdle, m.State())
	assert.Equal(t, 0, fin.callCount())
}

// refusingChannel fails Publish for one key, letting earlier writes in the
// same call sequence land.
type refusingChannel struct {
	channel.Channel
	refuseKey string
}

func (c *refusingChannel) Publish(ctx context.Context, key string, value []byte) error {
	if key == c.refuseKey {
		return errors.New("publish refused")
	}
	return c.Channel.Publish(ctx, key, value)
}

func TestMerchant_SignalPublishFailureClearsDraft(t *testing.T) {
	inner := channel.NewMemoryChannel(5 * time.Millisecond)
	ch := &refusingChannel{Channel: inner, refuseKey: channel.SignalKey("test")}
	m := NewMerchant(ch, &mockFinalizer{}, testConfig())
	ctx := context.Background()

	require.NoError(t, m.AddItem(domain.DraftItem{Name: "Coffee", Price: 5.99}))
	require.Error(t, m.StartTransaction(ctx))
	assert.Equal(t, MerchantIdle, m.State())

	// The half-announced cycle must not be visible to the customer side.
	_, err := ch.Get(ctx, channel.DraftKey("test"))
	assert.ErrorIs(t, err, channel.ErrNoValue)
}

func TestMerchant_OutOfOrderCancelAfterCompleteIgnored(t *testing.T) {
	ch := channel.NewMemoryChannel(5 * time.Millisecond)
	fin := &mockFinalizer{}
	cfg := testConfig()
	cfg.ResetDelay = time.Second // hold the complete state for assertions
	m, ctx := startMerchant(t, ch, fin, cfg)

	require.NoError(t, m.AddItem(domain.DraftItem{Name: "Coffee", Price: 5.99}))
	require.NoError(t, m.StartTransaction(ctx))

	sess := domain.PaymentContext{CustomerID: "cust-1", FingerprintHash: "fp_abc", PaymentMethodID: 7}
	require.NoError(t, channel.PublishSession(ctx, ch, "test", sess))
	require.NoError(t, channel.PublishSignal(ctx, ch, "test", domain.SignalComplete, domain.SenderCustomer))
	require.Eventually(t, func() bool { return m.State() == MerchantComplete }, 2*time.Second, 5*time.Millisecond)

	// A cancel arriving after the cycle completed is out of order; the
	// recorded outcome stands.
	require.NoError(t, channel.PublishSignal(ctx, ch, "test", domain.SignalCancelled, domain.SenderCustomer))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, MerchantComplete, m.State())
	assert.Empty(t, m.FailReason())
	assert.Equal(t, 1, fin.callCount())
}
