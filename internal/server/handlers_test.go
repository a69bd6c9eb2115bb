package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/protegacloudpay/cloudpay/internal/client"
	"github.com/protegacloudpay/cloudpay/internal/domain"
	"github.com/protegacloudpay/cloudpay/internal/identity"
	"github.com/protegacloudpay/cloudpay/internal/inventory"
	"github.com/protegacloudpay/cloudpay/internal/ledger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestAPI starts the full routed handler over in-memory backends and
// returns an authenticated API client for it.
func setupTestAPI(t *testing.T) *client.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	cache := identity.NewRedisCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	srv := New(
		NewAccountStore(),
		identity.NewService(identity.NewMemoryRepository(), cache),
		ledger.NewService(ledger.NewMemoryRepository()),
		inventory.NewMemoryStore(),
	)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	c := client.New(ts.URL)
	err := c.RegisterAccount(context.Background(), "Test Merchant", "merchant@example.com", "s3cret", "Test Co", "")
	require.NoError(t, err)
	return c
}

func TestAuth_RegisterLoginAndMe(t *testing.T) {
	c := setupTestAPI(t)
	ctx := context.Background()

	me, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "merchant@example.com", me["email"])
	assert.Equal(t, "merchant", me["role"])

	err = c.Login(ctx, "merchant@example.com", "s3cret")
	require.NoError(t, err)

	err = c.Login(ctx, "merchant@example.com", "wrong")
	assert.ErrorIs(t, err, client.ErrUnauthorized)

	err = c.RegisterAccount(ctx, "Again", "merchant@example.com", "pw", "", "")
	assert.Error(t, err)
}

func TestAuth_RejectsMissingToken(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := identity.NewRedisCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	srv := New(
		NewAccountStore(),
		identity.NewService(identity.NewMemoryRepository(), cache),
		ledger.NewService(ledger.NewMemoryRepository()),
		inventory.NewMemoryStore(),
	)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/api/transactions")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCustomers_RegisterVerifyAndMethods(t *testing.T) {
	c := setupTestAPI(t)
	ctx := context.Background()

	// Unknown hash verifies as a new identity, not an error.
	id, err := c.VerifyFingerprint(ctx, "fp_unknown")
	require.NoError(t, err)
	assert.False(t, id.Verified)
	assert.True(t, id.IsNew)

	reg, err := c.RegisterCustomer(ctx, domain.Registration{
		Name:            "Ada Lovelace",
		Email:           "ada@example.com",
		FingerprintHash: "fp_ada",
	})
	require.NoError(t, err)
	require.NotEmpty(t, reg.CustomerID)

	// Re-registering the same fingerprint conflicts.
	_, err = c.RegisterCustomer(ctx, domain.Registration{Name: "Imposter", FingerprintHash: "fp_ada"})
	assert.Error(t, err)

	id, err = c.VerifyFingerprint(ctx, "fp_ada")
	require.NoError(t, err)
	assert.True(t, id.Verified)
	assert.Equal(t, reg.CustomerID, id.CustomerID)

	methods, err := c.PaymentMethods(ctx, reg.CustomerID)
	require.NoError(t, err)
	assert.Empty(t, methods)

	added, err := c.AddPaymentMethod(ctx, reg.CustomerID, domain.PaymentMethod{
		Type:  "card",
		Name:  "Personal Visa",
		Last4: "4242",
	})
	require.NoError(t, err)
	assert.True(t, added.IsDefault, "first method becomes the default")

	methods, err = c.PaymentMethods(ctx, reg.CustomerID)
	require.NoError(t, err)
	require.Len(t, methods, 1)
	assert.Equal(t, added.ID, methods[0].ID)

	_, err = c.PaymentMethods(ctx, "no-such-customer")
	assert.ErrorIs(t, err, client.ErrNotFound)
}

func TestTransactions_CreateListAndStats(t *testing.T) {
	c := setupTestAPI(t)
	ctx := context.Background()

	reg, err := c.RegisterCustomer(ctx, domain.Registration{Name: "Ada", FingerprintHash: "fp_ada"})
	require.NoError(t, err)
	method, err := c.AddPaymentMethod(ctx, reg.CustomerID, domain.PaymentMethod{Type: "card", Name: "Visa", Last4: "4242"})
	require.NoError(t, err)

	draft, err := domain.NewDraft([]domain.DraftItem{
		{Name: "Coffee", Price: 5.99, Barcode: "100001"},
		{Name: "Bagel", Price: 3.25},
	})
	require.NoError(t, err)

	txn, err := c.CreateTransaction(ctx, draft, domain.PaymentContext{
		CustomerID:      reg.CustomerID,
		FingerprintHash: "fp_ada",
		PaymentMethodID: method.ID,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, txn.ID)
	assert.Equal(t, reg.CustomerID, txn.CustomerID)
	assert.Equal(t, domain.TransactionCompleted, txn.Status)
	assert.InDelta(t, 9.24*(1+domain.TaxRate), txn.Total, 0.001)

	txns, err := c.Transactions(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, txn.ID, txns[0].ID)

	stats, err := c.MerchantStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalTransactions)
	assert.InDelta(t, txn.Total, stats.Revenue, 0.001)
	assert.Equal(t, 1, stats.Customers)
}

func TestTransactions_UnverifiedFingerprintIsRejected(t *testing.T) {
	c := setupTestAPI(t)

	draft, err := domain.NewDraft([]domain.DraftItem{{Name: "Coffee", Price: 5.99}})
	require.NoError(t, err)

	_, err = c.CreateTransaction(context.Background(), draft, domain.PaymentContext{
		FingerprintHash: "fp_nobody",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fingerprint")

	// The decline is recorded against the merchant as a fraud attempt.
	stats, err := c.MerchantStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FraudAttempts)
}

func TestInventory_CRUDAndBarcode(t *testing.T) {
	c := setupTestAPI(t)
	ctx := context.Background()

	created, err := c.CreateInventoryItem(ctx, domain.InventoryItem{
		Name:     "Coffee",
		Barcode:  "100001",
		Price:    5.99,
		Category: "drinks",
		Stock:    12,
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	_, err = c.CreateInventoryItem(ctx, domain.InventoryItem{Name: "Clone", Barcode: "100001", Price: 1})
	assert.Error(t, err, "duplicate barcode must conflict")

	byBarcode, err := c.InventoryByBarcode(ctx, "100001")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byBarcode.ID)

	created.Price = 6.49
	updated, err := c.UpdateInventoryItem(ctx, created.ID, created)
	require.NoError(t, err)
	assert.Equal(t, 6.49, updated.Price)

	items, err := c.Inventory(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.NoError(t, c.DeleteInventoryItem(ctx, created.ID))

	_, err = c.InventoryByBarcode(ctx, "100001")
	assert.ErrorIs(t, err, client.ErrNotFound)

	err = c.DeleteInventoryItem(ctx, created.ID)
	assert.ErrorIs(t, err, client.ErrNotFound)
}
