package domain

import "time"

// Signal is a single status value written to the shared channel to advance
// the terminal handoff protocol.
type Signal string

const (
	SignalIdle       Signal = "idle"
	SignalWaiting    Signal = "waiting"
	SignalProcessing Signal = "processing"
	SignalComplete   Signal = "complete"
	SignalCancelled  Signal = "cancelled"
	SignalFailed     Signal = "failed"
)

func (s Signal) IsTerminal() bool {
	return s == SignalComplete || s == SignalCancelled || s == SignalFailed
}

func (s Signal) Valid() bool {
	switch s {
	case SignalIdle, SignalWaiting, SignalProcessing, SignalComplete, SignalCancelled, SignalFailed:
		return true
	}
	return false
}

// String representation (for logging)
func (s Signal) String() string {
	return string(s)
}

// CanTransitionTo reports whether a signal may legally follow the current one.
// cancelled is reachable from every non-idle signal; idle is reachable only
// from a terminal signal (the reset path).
func CanTransitionTo(from, to Signal) bool {
	switch to {
	case SignalWaiting:
		return from == SignalIdle
	case SignalProcessing:
		return from == SignalWaiting
	case SignalComplete:
		return from == SignalWaiting || from == SignalProcessing
	case SignalCancelled, SignalFailed:
		return from != SignalIdle && !from.IsTerminal()
	case SignalIdle:
		return from.IsTerminal()
	}
	return false
}

// Sender identifies which terminal authored a signal.
type Sender string

const (
	SenderMerchant Sender = "merchant"
	SenderCustomer Sender = "customer"
)

// Owns reports whether the sender is the designated writer for the signal.
// The merchant initiates (waiting), resets (idle) and may abort; the customer
// drives the payment itself. Both may cancel. Readers drop envelopes whose
// sender does not own the carried signal.
func (r Sender) Owns(s Signal) bool {
	switch s {
	case SignalIdle, SignalWaiting:
		return r == SenderMerchant
	case SignalProcessing, SignalComplete, SignalFailed:
		return r == SenderCustomer
	case SignalCancelled:
		return r == SenderMerchant || r == SenderCustomer
	}
	return false
}

// SignalEnvelope is the wire form of a signal: the status plus the role that
// authored it, so readers can enforce single-writer-per-transition.
type SignalEnvelope struct {
	Status Signal    `json:"status"`
	Sender Sender    `json:"sender"`
	SentAt time.Time `json:"sent_at"`
}
