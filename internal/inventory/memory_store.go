package inventory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/protegacloudpay/cloudpay/internal/domain"
)

// MemoryStore backs tests and demo terminals that run without a database
// file.
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[string]map[int64]*domain.InventoryItem
	nextID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]map[int64]*domain.InventoryItem),
	}
}

func (s *MemoryStore) List(_ context.Context, merchantID string) ([]*domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.InventoryItem
	for _, item := range s.items[merchantID] {
		copied := *item
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetByBarcode(_ context.Context, merchantID, barcode string) (*domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.items[merchantID] {
		if item.Barcode != "" && item.Barcode == barcode {
			copied := *item
			return &copied, nil
		}
	}
	return nil, ErrItemNotFound
}

func (s *MemoryStore) Create(_ context.Context, merchantID string, item *domain.InventoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.items[merchantID] == nil {
		s.items[merchantID] = make(map[int64]*domain.InventoryItem)
	}
	if item.Barcode != "" {
		for _, existing := range s.items[merchantID] {
			if existing.Barcode == item.Barcode {
				return ErrDuplicateBarcode
			}
		}
	}

	s.nextID++
	item.ID = s.nextID
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now

	stored := *item
	s.items[merchantID][item.ID] = &stored
	return nil
}

func (s *MemoryStore) Update(_ context.Context, merchantID string, item *domain.InventoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.items[merchantID][item.ID]
	if !ok {
		return ErrItemNotFound
	}
	if item.Barcode != "" {
		for id, other := range s.items[merchantID] {
			if id != item.ID && other.Barcode == item.Barcode {
				return ErrDuplicateBarcode
			}
		}
	}

	item.CreatedAt = existing.CreatedAt
	item.UpdatedAt = time.Now()
	stored := *item
	s.items[merchantID][item.ID] = &stored
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, merchantID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[merchantID][id]; !ok {
		return ErrItemNotFound
	}
	delete(s.items[merchantID], id)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
