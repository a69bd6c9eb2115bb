package terminal

import (
	"context"
	"sync"

	"github.com/protegacloudpay/cloudpay/internal/domain"
)

type mockFinalizer struct {
	mu    sync.Mutex
	calls int
	draft *domain.TransactionDraft
	sess  domain.PaymentContext
	txn   *domain.Transaction
	err   error
}

func (f *mockFinalizer) CreateTransaction(_ context.Context, draft *domain.TransactionDraft, sess domain.PaymentContext) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.draft = draft
	f.sess = sess
	if f.err != nil {
		return nil, f.err
	}
	if f.txn != nil {
		return f.txn, nil
	}
	tax, total := domain.Totals(draft.Amount)
	_ = tax
	return &domain.Transaction{
		ID:         "txn-1",
		CustomerID: sess.CustomerID,
		Amount:     draft.Amount,
		Total:      total,
		Items:      draft.Items,
		Status:     domain.TransactionCompleted,
	}, nil
}

func (f *mockFinalizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *mockFinalizer) lastCall() (*domain.TransactionDraft, domain.PaymentContext) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft, f.sess
}

type mockVerifier struct {
	identity domain.SessionIdentity
	err      error
}

func (v *mockVerifier) VerifyFingerprint(_ context.Context, hash string) (domain.SessionIdentity, error) {
	if v.err != nil {
		return domain.SessionIdentity{}, v.err
	}
	id := v.identity
	id.FingerprintHash = hash
	return id, nil
}

type mockRegistrar struct {
	mu       sync.Mutex
	calls    int
	lastReg  domain.Registration
	identity domain.SessionIdentity
	err      error
}

func (r *mockRegistrar) RegisterCustomer(_ context.Context, reg domain.Registration) (domain.SessionIdentity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.lastReg = reg
	if r.err != nil {
		return domain.SessionIdentity{}, r.err
	}
	return r.identity, nil
}

type mockMethods struct {
	list []domain.PaymentMethod
	err  error
}

func (m *mockMethods) PaymentMethods(context.Context, string) ([]domain.PaymentMethod, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.list, nil
}
