package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignal_IsTerminal(t *testing.T) {
	assert.True(t, SignalComplete.IsTerminal())
	assert.True(t, SignalCancelled.IsTerminal())
	assert.True(t, SignalFailed.IsTerminal())
	assert.False(t, SignalIdle.IsTerminal())
	assert.False(t, SignalWaiting.IsTerminal())
	assert.False(t, SignalProcessing.IsTerminal())
}

func TestSignal_Valid(t *testing.T) {
	assert.True(t, SignalWaiting.Valid())
	assert.False(t, Signal("bogus").Valid())
	assert.False(t, Signal("").Valid())
}

func TestCanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to Signal
		want     bool
	}{
		{SignalIdle, SignalWaiting, true},
		{SignalWaiting, SignalProcessing, true},
		{SignalWaiting, SignalComplete, true},
		{SignalProcessing, SignalComplete, true},
		{SignalWaiting, SignalCancelled, true},
		{SignalProcessing, SignalFailed, true},
		{SignalComplete, SignalIdle, true},
		{SignalCancelled, SignalIdle, true},
		{SignalIdle, SignalComplete, false},
		{SignalIdle, SignalCancelled, false},
		{SignalComplete, SignalCancelled, false},
		{SignalWaiting, SignalIdle, false},
		{SignalComplete, SignalWaiting, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CanTransitionTo(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestSender_Owns(t *testing.T) {
	assert.True(t, SenderMerchant.Owns(SignalWaiting))
	assert.True(t, SenderMerchant.Owns(SignalIdle))
	assert.True(t, SenderMerchant.Owns(SignalCancelled))
	assert.False(t, SenderMerchant.Owns(SignalComplete))
	assert.False(t, SenderMerchant.Owns(SignalProcessing))

	assert.True(t, SenderCustomer.Owns(SignalProcessing))
	assert.True(t, SenderCustomer.Owns(SignalComplete))
	assert.True(t, SenderCustomer.Owns(SignalCancelled))
	assert.True(t, SenderCustomer.Owns(SignalFailed))
	assert.False(t, SenderCustomer.Owns(SignalWaiting))
	assert.False(t, SenderCustomer.Owns(SignalIdle))
}
