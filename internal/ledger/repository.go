// Package ledger persists finalized transactions and their outbox events.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/protegacloudpay/cloudpay/internal/domain"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrDuplicateID         = errors.New("transaction already recorded")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// OutboxEvent is a pending downstream notification, written in the same
// transaction as the ledger row it describes.
type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
	PublishedAt *time.Time
}

type Repository interface {
	// CreateTransaction writes the ledger row and its outbox event
	// atomically.
	CreateTransaction(ctx context.Context, txn *domain.Transaction, event *OutboxEvent) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	ListByMerchant(ctx context.Context, merchantID string, skip, limit int) ([]*domain.Transaction, error)
	Stats(ctx context.Context, merchantID string) (domain.MerchantStats, error)

	GetUnpublishedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventPublished(ctx context.Context, eventID int64) error

	Close() error
}
