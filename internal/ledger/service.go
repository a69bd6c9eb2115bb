package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/protegacloudpay/cloudpay/internal/domain"
)

// EventTransactionCompleted is the outbox event type for finalized payments.
const EventTransactionCompleted = "transaction.completed"

// Service applies the pricing rules and records transactions together with
// their outbox events.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// FinalizeRequest carries everything the customer side handed over.
type FinalizeRequest struct {
	MerchantID      string
	CustomerID      string
	PaymentMethodID int64
	FingerprintHash string
	Amount          float64
	Items           []domain.DraftItem
}

// Finalize computes tax and total and records the completed transaction.
func (s *Service) Finalize(ctx context.Context, req FinalizeRequest) (*domain.Transaction, error) {
	tax, total := domain.Totals(req.Amount)
	txn := &domain.Transaction{
		ID:              uuid.NewString(),
		MerchantID:      req.MerchantID,
		CustomerID:      req.CustomerID,
		PaymentMethodID: req.PaymentMethodID,
		Amount:          req.Amount,
		Tax:             tax,
		Total:           total,
		Items:           req.Items,
		FingerprintHash: req.FingerprintHash,
		Status:          domain.TransactionCompleted,
	}

	payload, err := json.Marshal(map[string]any{
		"transaction_id": txn.ID,
		"merchant_id":    txn.MerchantID,
		"customer_id":    txn.CustomerID,
		"amount":         txn.Amount,
		"tax":            txn.Tax,
		"total":          txn.Total,
		"items":          txn.Items,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal outbox payload: %w", err)
	}

	event := &OutboxEvent{
		AggregateID: txn.ID,
		EventType:   EventTransactionCompleted,
		Payload:     payload,
	}
	if err := s.repo.CreateTransaction(ctx, txn, event); err != nil {
		return nil, err
	}
	return txn, nil
}

// RecordFailure keeps declined attempts in the ledger for the stats surface.
// No outbox event: downstream consumers only care about completed payments.
func (s *Service) RecordFailure(ctx context.Context, req FinalizeRequest) (*domain.Transaction, error) {
	tax, total := domain.Totals(req.Amount)
	txn := &domain.Transaction{
		ID:              uuid.NewString(),
		MerchantID:      req.MerchantID,
		CustomerID:      req.CustomerID,
		PaymentMethodID: req.PaymentMethodID,
		Amount:          req.Amount,
		Tax:             tax,
		Total:           total,
		Items:           req.Items,
		FingerprintHash: req.FingerprintHash,
		Status:          domain.TransactionFailed,
	}
	if err := s.repo.CreateTransaction(ctx, txn, nil); err != nil {
		return nil, err
	}
	return txn, nil
}

// Transactions pages a merchant's history, newest first.
func (s *Service) Transactions(ctx context.Context, merchantID string, skip, limit int) ([]*domain.Transaction, error) {
	return s.repo.ListByMerchant(ctx, merchantID, skip, limit)
}

// Stats aggregates the merchant dashboard numbers.
func (s *Service) Stats(ctx context.Context, merchantID string) (domain.MerchantStats, error) {
	return s.repo.Stats(ctx, merchantID)
}
