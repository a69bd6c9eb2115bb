package identity

import (
	"context"
	"sync"
	"time"

	"github.com/protegacloudpay/cloudpay/internal/domain"
)

// memoryRepository backs tests and single-process deployments.
type memoryRepository struct {
	mu            sync.RWMutex
	byID          map[string]*domain.Customer
	byFingerprint map[string]string
	methods       map[string][]domain.PaymentMethod
	nextMethodID  int64
}

func NewMemoryRepository() Repository {
	return &memoryRepository{
		byID:          make(map[string]*domain.Customer),
		byFingerprint: make(map[string]string),
		methods:       make(map[string][]domain.PaymentMethod),
	}
}

func (m *memoryRepository) CreateCustomer(_ context.Context, c *domain.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byFingerprint[c.FingerprintHash]; ok {
		return ErrFingerprintExists
	}

	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	stored := *c
	m.byID[c.ID] = &stored
	m.byFingerprint[c.FingerprintHash] = c.ID
	m.methods[c.ID] = nil
	return nil
}

func (m *memoryRepository) GetByFingerprint(_ context.Context, hash string) (*domain.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byFingerprint[hash]
	if !ok {
		return nil, ErrCustomerNotFound
	}
	c := *m.byID[id]
	return &c, nil
}

func (m *memoryRepository) GetByID(_ context.Context, customerID string) (*domain.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.byID[customerID]
	if !ok {
		return nil, ErrCustomerNotFound
	}
	out := *c
	return &out, nil
}

func (m *memoryRepository) PaymentMethods(_ context.Context, customerID string) ([]domain.PaymentMethod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.byID[customerID]; !ok {
		return nil, ErrCustomerNotFound
	}
	out := make([]domain.PaymentMethod, len(m.methods[customerID]))
	copy(out, m.methods[customerID])
	return out, nil
}

func (m *memoryRepository) AddPaymentMethod(_ context.Context, customerID string, method domain.PaymentMethod) (domain.PaymentMethod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[customerID]; !ok {
		return domain.PaymentMethod{}, ErrCustomerNotFound
	}

	m.nextMethodID++
	method.ID = m.nextMethodID
	if len(m.methods[customerID]) == 0 {
		method.IsDefault = true
	}
	if method.IsDefault {
		for i := range m.methods[customerID] {
			m.methods[customerID][i].IsDefault = false
		}
	}
	m.methods[customerID] = append(m.methods[customerID], method)
	return method, nil
}

func (m *memoryRepository) SetDefaultMethod(_ context.Context, customerID string, methodID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list, ok := m.methods[customerID]
	if !ok {
		return ErrCustomerNotFound
	}

	found := false
	for i := range list {
		if list[i].ID == methodID {
			found = true
		}
	}
	if !found {
		return ErrMethodNotFound
	}
	for i := range list {
		list[i].IsDefault = list[i].ID == methodID
	}
	return nil
}

func (m *memoryRepository) CountCustomers(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID), nil
}
