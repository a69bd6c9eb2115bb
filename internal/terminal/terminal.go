// Package terminal implements the two sides of the point-of-sale handoff:
// the merchant terminal builds a cart and publishes a transaction request on
// the shared channel, the customer terminal drives identity verification and
// payment-method selection and publishes the outcome. The channel is the only
// coupling between them; each side writes only its own signal values and
// ignores signals inconsistent with its local state.
package terminal

import (
	"context"
	"errors"
	"time"

	"github.com/protegacloudpay/cloudpay/internal/domain"
)

var (
	ErrInvalidState    = errors.New("operation not allowed in current state")
	ErrNoPaymentMethod = errors.New("no payment method selected")
	ErrNoIdentity      = errors.New("no verified identity for this transaction")
	ErrNoDraft         = errors.New("no active transaction draft")
)

// Config carries the tunables shared by both terminal machines.
type Config struct {
	// Group names the POS lane; both terminals of a lane must agree on it.
	Group string

	// ResetDelay is how long a terminal displays a terminal outcome before
	// returning to idle.
	ResetDelay time.Duration

	// WaitTimeout bounds how long the merchant side stays in waiting or
	// processing before auto-cancelling. The channel offers no delivery
	// guarantee, so an unbounded wait would wedge the lane. Zero disables.
	WaitTimeout time.Duration
}

const (
	DefaultResetDelay  = 3 * time.Second
	DefaultWaitTimeout = 90 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Group == "" {
		c.Group = "lane1"
	}
	if c.ResetDelay <= 0 {
		c.ResetDelay = DefaultResetDelay
	}
	if c.WaitTimeout < 0 {
		c.WaitTimeout = 0
	}
	return c
}

// Finalizer persists the authoritative transaction record once the customer
// confirms. It is called exactly once per successful confirmation; any error
// is mapped to a cancelled outcome on the channel, never dropped silently.
type Finalizer interface {
	CreateTransaction(ctx context.Context, draft *domain.TransactionDraft, sess domain.PaymentContext) (*domain.Transaction, error)
}

// FingerprintVerifier resolves a scanned fingerprint reference to a customer
// identity, or reports it unknown.
type FingerprintVerifier interface {
	VerifyFingerprint(ctx context.Context, hash string) (domain.SessionIdentity, error)
}

// Registrar enrolls a new customer captured at the terminal.
type Registrar interface {
	RegisterCustomer(ctx context.Context, reg domain.Registration) (domain.SessionIdentity, error)
}

// MethodSource lists a customer's registered payment methods.
type MethodSource interface {
	PaymentMethods(ctx context.Context, customerID string) ([]domain.PaymentMethod, error)
}
