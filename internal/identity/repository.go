// Package identity stores customers, their fingerprint hashes and their
// payment methods.
package identity

import (
	"context"
	"errors"

	"github.com/protegacloudpay/cloudpay/internal/domain"
)

var (
	ErrCustomerNotFound  = errors.New("customer not found")
	ErrFingerprintExists = errors.New("fingerprint already registered")
	ErrMethodNotFound    = errors.New("payment method not found")
)

type Repository interface {
	CreateCustomer(ctx context.Context, c *domain.Customer) error
	GetByFingerprint(ctx context.Context, hash string) (*domain.Customer, error)
	GetByID(ctx context.Context, customerID string) (*domain.Customer, error)
	PaymentMethods(ctx context.Context, customerID string) ([]domain.PaymentMethod, error)
	AddPaymentMethod(ctx context.Context, customerID string, m domain.PaymentMethod) (domain.PaymentMethod, error)
	SetDefaultMethod(ctx context.Context, customerID string, methodID int64) error
	CountCustomers(ctx context.Context) (int, error)
}
