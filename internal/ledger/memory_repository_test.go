package ledger

import (
	"context"
	"testing"

	"github.com/protegacloudpay/cloudpay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	txn := &domain.Transaction{
		ID: "txn-1", MerchantID: "m-1", CustomerID: "cust-1",
		Amount: 5.99, Tax: 0.48, Total: 6.47,
		Items:  []domain.DraftItem{{Name: "Coffee", Price: 5.99}},
		Status: domain.TransactionCompleted,
	}
	require.NoError(t, repo.CreateTransaction(ctx, txn, nil))
	assert.False(t, txn.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, "txn-1")
	require.NoError(t, err)
	assert.InDelta(t, 6.47, got.Total, 0.001)
	require.Len(t, got.Items, 1)

	assert.ErrorIs(t, repo.CreateTransaction(ctx, txn, nil), ErrDuplicateID)

	_, err = repo.GetByID(ctx, "txn-missing")
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestMemoryRepository_OutboxLifecycle(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	txn := &domain.Transaction{ID: "txn-1", MerchantID: "m-1", Status: domain.TransactionCompleted}
	event := &OutboxEvent{AggregateID: "txn-1", EventType: EventTransactionCompleted, Payload: []byte(`{}`)}
	require.NoError(t, repo.CreateTransaction(ctx, txn, event))

	pending, err := repo.GetUnpublishedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, EventTransactionCompleted, pending[0].EventType)

	eventID := pending[0].ID
	require.NoError(t, repo.MarkEventPublished(ctx, eventID))

	pending, err = repo.GetUnpublishedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Publishing is one-shot per event.
	assert.ErrorIs(t, repo.MarkEventPublished(ctx, eventID), ErrTransactionNotFound)
}

func TestService_FinalizeAppliesTaxAndWritesOutbox(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)
	ctx := context.Background()

	txn, err := svc.Finalize(ctx, FinalizeRequest{
		MerchantID: "m-1", CustomerID: "cust-1", PaymentMethodID: 3,
		FingerprintHash: "fp_a", Amount: 5.99,
		Items: []domain.DraftItem{{Name: "Coffee", Price: 5.99}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, txn.ID)
	assert.InDelta(t, 0.4792, txn.Tax, 0.001)
	assert.InDelta(t, 6.4692, txn.Total, 0.001)
	assert.Equal(t, domain.TransactionCompleted, txn.Status)

	events, err := repo.GetUnpublishedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, txn.ID, events[0].AggregateID)
}

func TestService_StatsAggregation(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Finalize(ctx, FinalizeRequest{MerchantID: "m-1", CustomerID: "cust-1", Amount: 100})
	require.NoError(t, err)
	_, err = svc.Finalize(ctx, FinalizeRequest{MerchantID: "m-1", CustomerID: "cust-2", Amount: 50})
	require.NoError(t, err)
	_, err = svc.RecordFailure(ctx, FinalizeRequest{MerchantID: "m-1", CustomerID: "cust-3", Amount: 10})
	require.NoError(t, err)
	_, err = svc.Finalize(ctx, FinalizeRequest{MerchantID: "m-other", CustomerID: "cust-1", Amount: 999})
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalTransactions)
	assert.InDelta(t, 162.0, stats.Revenue, 0.001)
	assert.InDelta(t, 1.62, stats.Fees, 0.001)
	assert.Equal(t, 2, stats.Customers)
	assert.Equal(t, 1, stats.FraudAttempts)
	assert.InDelta(t, 81.0, stats.AvgTransaction, 0.001)
	assert.InDelta(t, 66.67, stats.ApprovalRate, 0.01)
}

func TestService_TransactionsPagination(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Finalize(ctx, FinalizeRequest{MerchantID: "m-1", CustomerID: "cust-1", Amount: float64(i + 1)})
		require.NoError(t, err)
	}

	page, err := svc.Transactions(ctx, "m-1", 0, 3)
	require.NoError(t, err)
	assert.Len(t, page, 3)

	rest, err := svc.Transactions(ctx, "m-1", 3, 3)
	require.NoError(t, err)
	assert.Len(t, rest, 2)

	none, err := svc.Transactions(ctx, "m-1", 10, 3)
	require.NoError(t, err)
	assert.Empty(t, none)
}
