package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/protegacloudpay/cloudpay/internal/domain"
)

type memoryRepository struct {
	mu          sync.RWMutex
	txns        map[string]*domain.Transaction
	outbox      []*OutboxEvent
	nextEventID int64
}

func NewMemoryRepository() Repository {
	return &memoryRepository{
		txns: make(map[string]*domain.Transaction),
	}
}

func (m *memoryRepository) CreateTransaction(_ context.Context, txn *domain.Transaction, event *OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.txns[txn.ID]; ok {
		return ErrDuplicateID
	}

	now := time.Now()
	stored := *txn
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.txns[txn.ID] = &stored
	txn.CreatedAt = now
	txn.UpdatedAt = now

	if event != nil {
		m.nextEventID++
		e := *event
		e.ID = m.nextEventID
		e.CreatedAt = now
		m.outbox = append(m.outbox, &e)
	}
	return nil
}

func (m *memoryRepository) GetByID(_ context.Context, id string) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	txn, ok := m.txns[id]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	out := *txn
	return &out, nil
}

func (m *memoryRepository) ListByMerchant(_ context.Context, merchantID string, skip, limit int) ([]*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []*domain.Transaction
	for _, txn := range m.txns {
		if txn.MerchantID == merchantID {
			out := *txn
			all = append(all, &out)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if skip >= len(all) {
		return nil, nil
	}
	all = all[skip:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (m *memoryRepository) Stats(_ context.Context, merchantID string) (domain.MerchantStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stats domain.MerchantStats
	customers := make(map[string]struct{})
	total := 0
	for _, txn := range m.txns {
		if txn.MerchantID != merchantID {
			continue
		}
		total++
		switch txn.Status {
		case domain.TransactionCompleted:
			stats.TotalTransactions++
			stats.Revenue += txn.Total
			customers[txn.CustomerID] = struct{}{}
		case domain.TransactionFailed:
			stats.FraudAttempts++
		}
	}
	stats.Customers = len(customers)
	stats.Fees = stats.Revenue * domain.FeeRate
	if stats.TotalTransactions > 0 {
		stats.AvgTransaction = stats.Revenue / float64(stats.TotalTransactions)
	}
	if total > 0 {
		stats.ApprovalRate = float64(stats.TotalTransactions) / float64(total) * 100
	}
	return stats, nil
}

func (m *memoryRepository) GetUnpublishedEvents(_ context.Context, limit int) ([]*OutboxEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var events []*OutboxEvent
	for _, e := range m.outbox {
		if e.PublishedAt != nil {
			continue
		}
		out := *e
		events = append(events, &out)
		if limit > 0 && len(events) >= limit {
			break
		}
	}
	return events, nil
}

func (m *memoryRepository) MarkEventPublished(_ context.Context, eventID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.outbox {
		if e.ID == eventID && e.PublishedAt == nil {
			now := time.Now()
			e.PublishedAt = &now
			return nil
		}
	}
	return ErrTransactionNotFound
}

func (m *memoryRepository) Close() error { return nil }
