// Package inventory is the merchant catalog behind the barcode scanner.
package inventory

import (
	"context"
	"errors"

	"github.com/protegacloudpay/cloudpay/internal/domain"
)

var (
	ErrItemNotFound     = errors.New("inventory item not found")
	ErrDuplicateBarcode = errors.New("barcode already in use")
)

type Store interface {
	List(ctx context.Context, merchantID string) ([]*domain.InventoryItem, error)
	GetByBarcode(ctx context.Context, merchantID, barcode string) (*domain.InventoryItem, error)
	Create(ctx context.Context, merchantID string, item *domain.InventoryItem) error
	Update(ctx context.Context, merchantID string, item *domain.InventoryItem) error
	Delete(ctx context.Context, merchantID string, id int64) error
	Close() error
}
