package identity

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/protegacloudpay/cloudpay/internal/domain"
	"golang.org/x/sync/singleflight"
)

// Service fronts the repository with a fingerprint cache. Verification is the
// hot path: every customer terminal cycle starts with it.
type Service struct {
	repo  Repository
	cache Cache
	sfg   singleflight.Group // collapses concurrent lookups for one hash
}

func NewService(repo Repository, cache Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

// VerifyFingerprint resolves a hash to a customer. An unknown hash is not an
// error: the terminal routes it to registration.
func (s *Service) VerifyFingerprint(ctx context.Context, hash string) (domain.SessionIdentity, error) {
	v, err, _ := s.sfg.Do(hash, func() (interface{}, error) {
		c, err := s.cache.Get(ctx, hash)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			log.Printf("identity: cache get error: %v", err)
		}

		c, err = s.repo.GetByFingerprint(ctx, hash)
		if errors.Is(err, ErrCustomerNotFound) {
			return (*domain.Customer)(nil), nil
		}
		if err != nil {
			return nil, err
		}

		go func() {
			if errSet := s.cache.Set(context.Background(), hash, c); errSet != nil {
				log.Printf("identity: cache set error: %v", errSet)
			}
		}()

		return c, nil
	})
	if err != nil {
		return domain.SessionIdentity{}, err
	}

	c := v.(*domain.Customer)
	if c == nil {
		return domain.SessionIdentity{IsNew: true, FingerprintHash: hash}, nil
	}
	return domain.SessionIdentity{
		Verified:        true,
		CustomerID:      c.ID,
		FingerprintHash: hash,
	}, nil
}

// RegisterCustomer enrolls a new customer keyed by fingerprint hash.
func (s *Service) RegisterCustomer(ctx context.Context, reg domain.Registration) (domain.SessionIdentity, error) {
	c := &domain.Customer{
		ID:              uuid.NewString(),
		Name:            reg.Name,
		Email:           reg.Email,
		Phone:           reg.Phone,
		FingerprintHash: reg.FingerprintHash,
	}
	if err := s.repo.CreateCustomer(ctx, c); err != nil {
		return domain.SessionIdentity{}, err
	}
	return domain.SessionIdentity{
		Verified:        true,
		CustomerID:      c.ID,
		IsNew:           true,
		FingerprintHash: reg.FingerprintHash,
	}, nil
}

// Customer returns the persisted profile.
func (s *Service) Customer(ctx context.Context, customerID string) (*domain.Customer, error) {
	return s.repo.GetByID(ctx, customerID)
}

// PaymentMethods lists a customer's instruments.
func (s *Service) PaymentMethods(ctx context.Context, customerID string) ([]domain.PaymentMethod, error) {
	return s.repo.PaymentMethods(ctx, customerID)
}

// AddPaymentMethod attaches an instrument and invalidates the cached profile.
func (s *Service) AddPaymentMethod(ctx context.Context, customerID string, m domain.PaymentMethod) (domain.PaymentMethod, error) {
	added, err := s.repo.AddPaymentMethod(ctx, customerID, m)
	if err != nil {
		return domain.PaymentMethod{}, err
	}
	s.invalidate(ctx, customerID)
	return added, nil
}

// SetDefaultMethod marks one instrument as the preselected default.
func (s *Service) SetDefaultMethod(ctx context.Context, customerID string, methodID int64) error {
	if err := s.repo.SetDefaultMethod(ctx, customerID, methodID); err != nil {
		return err
	}
	s.invalidate(ctx, customerID)
	return nil
}

// CountCustomers feeds the merchant stats endpoint.
func (s *Service) CountCustomers(ctx context.Context) (int, error) {
	return s.repo.CountCustomers(ctx)
}

func (s *Service) invalidate(ctx context.Context, customerID string) {
	c, err := s.repo.GetByID(ctx, customerID)
	if err != nil {
		return
	}
	if err := s.cache.Delete(ctx, c.FingerprintHash); err != nil {
		log.Printf("identity: cache invalidate error: %v", err)
	}
}
