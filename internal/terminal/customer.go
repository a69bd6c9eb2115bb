package terminal

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/protegacloudpay/cloudpay/internal/channel"
	"github.com/protegacloudpay/cloudpay/internal/domain"
)

// CustomerState is the customer terminal's local state.
type CustomerState string

const (
	CustomerIdle          CustomerState = "idle"
	CustomerFingerprint   CustomerState = "fingerprint"
	CustomerRegister      CustomerState = "register"
	CustomerPaymentMethod CustomerState = "payment-method"
	CustomerProcessing    CustomerState = "processing"
	CustomerComplete      CustomerState = "complete"
	CustomerCancelled     CustomerState = "cancelled"
)

func (s CustomerState) terminal() bool {
	return s == CustomerComplete || s == CustomerCancelled
}

// Customer is the customer-side terminal state machine:
// idle -> fingerprint -> (register | payment-method) -> processing ->
// complete | cancelled -> idle.
type Customer struct {
	ch        channel.Channel
	scanner   Scanner
	verifier  FingerprintVerifier
	registrar Registrar
	methods   MethodSource
	cfg       Config

	mu       sync.Mutex
	state    CustomerState
	draft    *domain.TransactionDraft
	identity *domain.SessionIdentity
	list     []domain.PaymentMethod
	selected int64
	epoch    int

	onChange func(old, new CustomerState)
}

func NewCustomer(ch channel.Channel, scanner Scanner, verifier FingerprintVerifier, registrar Registrar, methods MethodSource, cfg Config) *Customer {
	return &Customer{
		ch:        ch,
		scanner:   scanner,
		verifier:  verifier,
		registrar: registrar,
		methods:   methods,
		cfg:       cfg.withDefaults(),
		state:     CustomerIdle,
	}
}

// SetOnChange installs a state-change hook for the UI. The hook runs with the
// machine lock held and must not call back into the terminal.
func (c *Customer) SetOnChange(fn func(old, new CustomerState)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

func (c *Customer) State() CustomerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Draft returns the transaction currently presented to the customer.
func (c *Customer) Draft() *domain.TransactionDraft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Identity returns the session identity for the current cycle, if verified
// or registered.
func (c *Customer) Identity() *domain.SessionIdentity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Methods returns the payment methods offered for selection.
func (c *Customer) Methods() []domain.PaymentMethod {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.PaymentMethod(nil), c.list...)
}

// Selected returns the currently selected payment method id, 0 if none.
func (c *Customer) Selected() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

func (c *Customer) setStateLocked(next CustomerState) {
	if c.state == next {
		return
	}
	prev := c.state
	c.state = next
	if c.onChange != nil {
		c.onChange(prev, next)
	}
}

// Run consumes the draft and signal streams until ctx is done.
func (c *Customer) Run(ctx context.Context) {
	drafts := c.ch.Subscribe(ctx, channel.DraftKey(c.cfg.Group))
	signals := c.ch.Subscribe(ctx, channel.SignalKey(c.cfg.Group))
	for drafts != nil || signals != nil {
		select {
		case u, ok := <-drafts:
			if !ok {
				drafts = nil
				continue
			}
			c.onDraft(u)
		case u, ok := <-signals:
			if !ok {
				signals = nil
				continue
			}
			if u.Value == nil {
				continue
			}
			env, err := channel.DecodeSignal(u.Value)
			if err != nil {
				log.Printf("customer: dropping bad signal: %v", err)
				continue
			}
			if env.Sender == domain.SenderCustomer {
				continue
			}
			c.onSignal(env)
		}
	}
}

// onDraft enters fingerprint the moment a draft appears while idle. A draft
// observed in any other state belongs to a cycle already underway (or a stale
// value) and is ignored.
func (c *Customer) onDraft(u channel.Update) {
	if u.Value == nil {
		return
	}
	draft, err := channel.DecodeDraft(u.Value)
	if err != nil {
		log.Printf("customer: dropping bad draft: %v", err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != CustomerIdle {
		return
	}
	c.draft = draft
	c.setStateLocked(CustomerFingerprint)
}

func (c *Customer) onSignal(env domain.SignalEnvelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch env.Status {
	case domain.SignalCancelled:
		// A cancel authored by the other side is authoritative, whatever the
		// local state.
		if c.state == CustomerIdle || c.state == CustomerCancelled {
			return
		}
		c.setStateLocked(CustomerCancelled)
		c.scheduleResetLocked()

	case domain.SignalIdle:
		// Merchant reset the lane. Terminal display states keep their own
		// timer; anything mid-flow resets immediately.
		if c.state == CustomerIdle || c.state.terminal() {
			return
		}
		c.resetLocked()
	}
}

// ScanFingerprint acquires a biometric reference and resolves it. A known
// subject moves to payment-method selection with their saved methods
// preloaded; an unknown one moves to registration.
func (c *Customer) ScanFingerprint(ctx context.Context) error {
	c.mu.Lock()
	if c.state != CustomerFingerprint {
		c.mu.Unlock()
		return ErrInvalidState
	}
	epoch := c.epoch
	c.mu.Unlock()

	hash, err := c.scanner.Scan(ctx)
	if err != nil {
		return err
	}

	id, err := c.verifier.VerifyFingerprint(ctx, hash)

	c.mu.Lock()
	if c.epoch != epoch || c.state != CustomerFingerprint {
		// The cycle moved on (cancel, reset) while scanning; discard.
		c.mu.Unlock()
		return nil
	}
	if err != nil || !id.Verified || id.IsNew {
		// Unknown fingerprint: capture identity before payment.
		c.identity = &domain.SessionIdentity{FingerprintHash: hash, IsNew: true}
		c.setStateLocked(CustomerRegister)
		c.mu.Unlock()
		return nil
	}
	id.FingerprintHash = hash
	c.identity = &id
	c.mu.Unlock()

	c.loadMethods(ctx, epoch, id.CustomerID)
	return nil
}

// Register enrolls a new customer and proceeds to payment-method selection.
func (c *Customer) Register(ctx context.Context, name, email, phone string) error {
	c.mu.Lock()
	if c.state != CustomerRegister || c.identity == nil {
		c.mu.Unlock()
		return ErrInvalidState
	}
	epoch := c.epoch
	reg := domain.Registration{
		Name:            name,
		Email:           email,
		Phone:           phone,
		FingerprintHash: c.identity.FingerprintHash,
	}
	c.mu.Unlock()

	id, err := c.registrar.RegisterCustomer(ctx, reg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.epoch != epoch || c.state != CustomerRegister {
		c.mu.Unlock()
		return nil
	}
	id.FingerprintHash = reg.FingerprintHash
	c.identity = &id
	c.mu.Unlock()

	c.loadMethods(ctx, epoch, id.CustomerID)
	return nil
}

// loadMethods fetches the subject's saved methods and presents the selection
// screen with the default (or first) preselected.
func (c *Customer) loadMethods(ctx context.Context, epoch int, customerID string) {
	list, err := c.methods.PaymentMethods(ctx, customerID)
	if err != nil {
		log.Printf("customer: load payment methods failed: %v", err)
		list = nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch || (c.state != CustomerFingerprint && c.state != CustomerRegister) {
		return
	}
	c.list = list
	c.selected = 0
	for _, m := range list {
		if m.IsDefault {
			c.selected = m.ID
			break
		}
	}
	if c.selected == 0 && len(list) > 0 {
		c.selected = list[0].ID
	}
	c.setStateLocked(CustomerPaymentMethod)
}

// SelectMethod chooses one of the presented payment methods.
func (c *Customer) SelectMethod(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != CustomerPaymentMethod {
		return ErrInvalidState
	}
	for _, m := range c.list {
		if m.ID == id {
			c.selected = id
			return nil
		}
	}
	return ErrNoPaymentMethod
}

// ConfirmPayment publishes the session reference and the processing and
// complete signals. It requires a draft, a verified or registered identity
// and a selected method; otherwise it is a no-op surfaced to the user.
func (c *Customer) ConfirmPayment(ctx context.Context) error {
	c.mu.Lock()
	if c.state != CustomerPaymentMethod {
		c.mu.Unlock()
		return ErrInvalidState
	}
	if c.draft == nil {
		c.mu.Unlock()
		return ErrNoDraft
	}
	if c.identity == nil || c.identity.CustomerID == "" {
		c.mu.Unlock()
		return ErrNoIdentity
	}
	if c.selected == 0 {
		c.mu.Unlock()
		return ErrNoPaymentMethod
	}
	sess := domain.PaymentContext{
		CustomerID:      c.identity.CustomerID,
		FingerprintHash: c.identity.FingerprintHash,
		PaymentMethodID: c.selected,
	}
	epoch := c.epoch
	c.setStateLocked(CustomerProcessing)
	c.mu.Unlock()

	fail := func(err error) error {
		c.mu.Lock()
		if c.epoch == epoch && c.state == CustomerProcessing {
			c.setStateLocked(CustomerPaymentMethod)
		}
		c.mu.Unlock()
		return err
	}

	// The session reference must land before the merchant can observe
	// complete and finalize with it.
	if err := channel.PublishSession(ctx, c.ch, c.cfg.Group, sess); err != nil {
		return fail(err)
	}
	if err := channel.PublishSignal(ctx, c.ch, c.cfg.Group, domain.SignalProcessing, domain.SenderCustomer); err != nil {
		return fail(err)
	}
	if err := channel.PublishSignal(ctx, c.ch, c.cfg.Group, domain.SignalComplete, domain.SenderCustomer); err != nil {
		return fail(err)
	}

	c.mu.Lock()
	if c.epoch == epoch && c.state == CustomerProcessing {
		c.setStateLocked(CustomerComplete)
		c.scheduleResetLocked()
	}
	c.mu.Unlock()
	return nil
}

// Cancel aborts from fingerprint, register or payment-method.
func (c *Customer) Cancel(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case CustomerFingerprint, CustomerRegister, CustomerPaymentMethod:
	default:
		c.mu.Unlock()
		return ErrInvalidState
	}
	c.setStateLocked(CustomerCancelled)
	c.scheduleResetLocked()
	c.mu.Unlock()

	if err := channel.PublishSignal(ctx, c.ch, c.cfg.Group, domain.SignalCancelled, domain.SenderCustomer); err != nil {
		log.Printf("customer: publish cancelled failed: %v", err)
	}
	return nil
}

func (c *Customer) scheduleResetLocked() {
	epoch := c.epoch
	time.AfterFunc(c.cfg.ResetDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.epoch != epoch || !c.state.terminal() {
			return
		}
		c.resetLocked()
	})
}

// resetLocked clears all per-cycle state. The customer never clears channel
// keys; the merchant owns the lane reset.
func (c *Customer) resetLocked() {
	c.epoch++
	c.draft = nil
	c.identity = nil
	c.list = nil
	c.selected = 0
	c.setStateLocked(CustomerIdle)
}
