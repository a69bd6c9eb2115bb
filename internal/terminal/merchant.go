package terminal

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/protegacloudpay/cloudpay/internal/channel"
	"github.com/protegacloudpay/cloudpay/internal/domain"
)

// MerchantState is the merchant terminal's local state. The words match the
// signal values the merchant publishes, but the state is never read back from
// the channel.
type MerchantState string

const (
	MerchantIdle       MerchantState = "idle"
	MerchantWaiting    MerchantState = "waiting"
	MerchantProcessing MerchantState = "processing"
	MerchantComplete   MerchantState = "complete"
	MerchantCancelled  MerchantState = "cancelled"
)

func (s MerchantState) terminal() bool {
	return s == MerchantComplete || s == MerchantCancelled
}

// signal maps the local state onto the protocol signal it corresponds to, so
// incoming signals can be checked against the legal transition table.
func (s MerchantState) signal() domain.Signal {
	switch s {
	case MerchantWaiting:
		return domain.SignalWaiting
	case MerchantProcessing:
		return domain.SignalProcessing
	case MerchantComplete:
		return domain.SignalComplete
	case MerchantCancelled:
		return domain.SignalCancelled
	}
	return domain.SignalIdle
}

// Merchant is the merchant-side terminal state machine:
// idle -> waiting -> (processing) -> complete | cancelled -> idle.
type Merchant struct {
	ch  channel.Channel
	fin Finalizer
	cfg Config

	mu         sync.Mutex
	state      MerchantState
	cart       []domain.DraftItem
	draft      *domain.TransactionDraft
	lastTxn    *domain.Transaction
	failReason string
	finalized  bool
	epoch      int // bumped on reset; in-flight work from an older epoch is discarded

	onChange func(old, new MerchantState)
}

func NewMerchant(ch channel.Channel, fin Finalizer, cfg Config) *Merchant {
	return &Merchant{
		ch:    ch,
		fin:   fin,
		cfg:   cfg.withDefaults(),
		state: MerchantIdle,
	}
}

// SetOnChange installs a state-change hook for the UI. The hook runs with the
// machine lock held and must not call back into the terminal.
func (m *Merchant) SetOnChange(fn func(old, new MerchantState)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

func (m *Merchant) State() MerchantState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Merchant) Cart() []domain.DraftItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.DraftItem(nil), m.cart...)
}

// FailReason reports why the last cycle ended in cancelled, if it did.
func (m *Merchant) FailReason() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failReason
}

// LastTransaction returns the finalized record of the last completed cycle.
func (m *Merchant) LastTransaction() *domain.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastTxn
}

func (m *Merchant) setStateLocked(next MerchantState) {
	if m.state == next {
		return
	}
	prev := m.state
	m.state = next
	if m.onChange != nil {
		m.onChange(prev, next)
	}
}

// AddItem appends a cart line while idle. Price must be positive.
func (m *Merchant) AddItem(item domain.DraftItem) error {
	if item.Price <= 0 {
		return domain.ErrNonPositivePrice
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != MerchantIdle {
		return ErrInvalidState
	}
	m.cart = append(m.cart, item)
	return nil
}

func (m *Merchant) RemoveItem(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != MerchantIdle {
		return ErrInvalidState
	}
	if index < 0 || index >= len(m.cart) {
		return errors.New("no such cart line")
	}
	m.cart = append(m.cart[:index], m.cart[index+1:]...)
	return nil
}

// StartTransaction publishes the draft and the waiting signal. It is a no-op
// returning ErrEmptyCart when the cart is empty; the caller surfaces that to
// the operator.
func (m *Merchant) StartTransaction(ctx context.Context) error {
	m.mu.Lock()
	if m.state != MerchantIdle {
		m.mu.Unlock()
		return ErrInvalidState
	}
	draft, err := domain.NewDraft(m.cart)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.draft = draft
	m.failReason = ""
	m.lastTxn = nil
	m.finalized = false
	m.setStateLocked(MerchantWaiting)
	epoch := m.epoch
	m.mu.Unlock()

	if err := channel.PublishDraft(ctx, m.ch, m.cfg.Group, draft); err != nil {
		m.revertToIdle(epoch)
		return err
	}
	if err := channel.PublishSignal(ctx, m.ch, m.cfg.Group, domain.SignalWaiting, domain.SenderMerchant); err != nil {
		// The draft is already on the channel; take it back down so the
		// customer side never picks up a cycle that was never announced.
		if clearErr := m.ch.Clear(ctx, channel.DraftKey(m.cfg.Group)); clearErr != nil {
			log.Printf("merchant: clear draft failed: %v", clearErr)
		}
		m.revertToIdle(epoch)
		return err
	}

	if m.cfg.WaitTimeout > 0 {
		time.AfterFunc(m.cfg.WaitTimeout, func() { m.timeoutExpired(epoch) })
	}
	return nil
}

func (m *Merchant) revertToIdle(epoch int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		return
	}
	m.draft = nil
	m.setStateLocked(MerchantIdle)
}

// timeoutExpired auto-cancels a cycle whose customer never responded.
func (m *Merchant) timeoutExpired(epoch int) {
	m.mu.Lock()
	if m.epoch != epoch || (m.state != MerchantWaiting && m.state != MerchantProcessing) {
		m.mu.Unlock()
		return
	}
	m.failReason = "transaction timed out"
	m.setStateLocked(MerchantCancelled)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := channel.PublishSignal(ctx, m.ch, m.cfg.Group, domain.SignalCancelled, domain.SenderMerchant); err != nil {
		log.Printf("merchant: publish cancelled failed: %v", err)
	}
	m.scheduleReset(epoch)
}

// Cancel aborts the current cycle from any non-idle state.
func (m *Merchant) Cancel(ctx context.Context) error {
	m.mu.Lock()
	if m.state == MerchantIdle || m.state.terminal() {
		m.mu.Unlock()
		return ErrInvalidState
	}
	m.failReason = "cancelled by operator"
	m.setStateLocked(MerchantCancelled)
	epoch := m.epoch
	m.mu.Unlock()

	if err := channel.PublishSignal(ctx, m.ch, m.cfg.Group, domain.SignalCancelled, domain.SenderMerchant); err != nil {
		log.Printf("merchant: publish cancelled failed: %v", err)
	}
	m.scheduleReset(epoch)
	return nil
}

// Run consumes the signal stream until ctx is done. Signals authored by the
// merchant itself are echoes of its own writes and are skipped.
func (m *Merchant) Run(ctx context.Context) {
	for u := range m.ch.Subscribe(ctx, channel.SignalKey(m.cfg.Group)) {
		if u.Value == nil {
			continue
		}
		env, err := channel.DecodeSignal(u.Value)
		if err != nil {
			log.Printf("merchant: dropping bad signal: %v", err)
			continue
		}
		if env.Sender == domain.SenderMerchant {
			continue
		}
		m.onSignal(ctx, env)
	}
}

func (m *Merchant) onSignal(ctx context.Context, env domain.SignalEnvelope) {
	m.mu.Lock()
	if !domain.CanTransitionTo(m.state.signal(), env.Status) {
		// Stale or out-of-order signal; ignore rather than crash.
		m.mu.Unlock()
		return
	}
	switch env.Status {
	case domain.SignalProcessing:
		m.setStateLocked(MerchantProcessing)
		m.mu.Unlock()

	case domain.SignalComplete:
		// The subscription dedupes, so a repeated observation of the same
		// signal value cannot re-trigger; finalized guards the rest.
		if m.finalized {
			m.mu.Unlock()
			return
		}
		m.finalized = true
		m.setStateLocked(MerchantProcessing)
		epoch := m.epoch
		draft := m.draft
		m.mu.Unlock()
		go m.finalize(ctx, epoch, draft)

	case domain.SignalCancelled, domain.SignalFailed:
		m.failReason = "cancelled by customer"
		m.setStateLocked(MerchantCancelled)
		epoch := m.epoch
		m.mu.Unlock()
		m.scheduleReset(epoch)

	default:
		m.mu.Unlock()
	}
}

// finalize calls the external finalizer with the draft and the session
// reference the customer wrote. The result is discarded if the machine has
// left processing by the time the call returns.
func (m *Merchant) finalize(ctx context.Context, epoch int, draft *domain.TransactionDraft) {
	sess, err := channel.GetSession(ctx, m.ch, m.cfg.Group)
	var txn *domain.Transaction
	if err == nil {
		txn, err = m.fin.CreateTransaction(ctx, draft, *sess)
	}

	m.mu.Lock()
	if m.epoch != epoch || m.state != MerchantProcessing {
		m.mu.Unlock()
		return
	}
	if err != nil {
		m.failReason = err.Error()
		m.setStateLocked(MerchantCancelled)
		m.mu.Unlock()
		// The failure is communicated back over the channel so the customer
		// terminal aborts too.
		pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if pubErr := channel.PublishSignal(pubCtx, m.ch, m.cfg.Group, domain.SignalCancelled, domain.SenderMerchant); pubErr != nil {
			log.Printf("merchant: publish cancelled failed: %v", pubErr)
		}
		m.scheduleReset(epoch)
		return
	}
	m.lastTxn = txn
	m.setStateLocked(MerchantComplete)
	m.mu.Unlock()
	m.scheduleReset(epoch)
}

// scheduleReset returns the terminal to idle after the display delay. Reset
// is the only path back to idle and the only place the channel is cleared.
func (m *Merchant) scheduleReset(epoch int) {
	time.AfterFunc(m.cfg.ResetDelay, func() {
		m.mu.Lock()
		if m.epoch != epoch || !m.state.terminal() {
			m.mu.Unlock()
			return
		}
		m.epoch++
		m.cart = nil
		m.draft = nil
		m.finalized = false
		m.setStateLocked(MerchantIdle)
		m.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.ch.Clear(ctx, channel.DraftKey(m.cfg.Group)); err != nil {
			log.Printf("merchant: clear draft failed: %v", err)
		}
		if err := m.ch.Clear(ctx, channel.SessionKey(m.cfg.Group)); err != nil {
			log.Printf("merchant: clear session failed: %v", err)
		}
		if err := channel.PublishSignal(ctx, m.ch, m.cfg.Group, domain.SignalIdle, domain.SenderMerchant); err != nil {
			log.Printf("merchant: publish idle failed: %v", err)
		}
	})
}
