// Package client is the terminals' HTTP client for the CloudPay backend.
// It satisfies the terminal ports (finalizer, verifier, registrar, method
// source) so a terminal binary only ever sees interfaces.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/protegacloudpay/cloudpay/internal/domain"
	"github.com/sony/gobreaker/v2"
)

var (
	ErrUnauthorized = errors.New("client: unauthorized")
	ErrNotFound     = errors.New("client: not found")
)

// Client talks to the backend over REST with a bearer token. Transaction
// finalization goes through a circuit breaker so a dying backend fails the
// lane fast instead of stalling every checkout behind timeouts.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*domain.Transaction]

	mu    sync.RWMutex
	token string
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		breaker: gobreaker.NewCircuitBreaker[*domain.Transaction](gobreaker.Settings{
			Name:    "cloudpay-finalizer",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

// SetToken installs the bearer token used on subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("client: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if tok := c.bearer(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var eb errorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		msg := eb.Error
		if msg == "" {
			msg = eb.Detail
		}
		if msg == "" {
			msg = resp.Status
		}
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, msg)
		default:
			return fmt.Errorf("client: %s %s: %s", method, path, msg)
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s %s: %w", method, path, err)
	}
	return nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login authenticates a merchant account and installs the returned token.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var tr tokenResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &tr)
	if err != nil {
		return err
	}
	c.SetToken(tr.AccessToken)
	return nil
}

// RegisterAccount creates a merchant account and installs the returned token.
func (c *Client) RegisterAccount(ctx context.Context, name, email, password, company, phone string) error {
	var tr tokenResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/register", map[string]string{
		"name":         name,
		"email":        email,
		"password":     password,
		"company_name": company,
		"phone":        phone,
		"role":         "merchant",
	}, &tr)
	if err != nil {
		return err
	}
	c.SetToken(tr.AccessToken)
	return nil
}

// Me returns the authenticated account profile.
func (c *Client) Me(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// VerifyFingerprint asks the backend whether a fingerprint hash belongs to a
// known customer.
func (c *Client) VerifyFingerprint(ctx context.Context, hash string) (domain.SessionIdentity, error) {
	var id domain.SessionIdentity
	err := c.do(ctx, http.MethodPost, "/api/customers/verify-fingerprint", map[string]string{
		"fingerprint_hash": hash,
	}, &id)
	if err != nil {
		return domain.SessionIdentity{}, err
	}
	id.FingerprintHash = hash
	return id, nil
}

// RegisterCustomer enrolls a new customer keyed by fingerprint hash.
func (c *Client) RegisterCustomer(ctx context.Context, reg domain.Registration) (domain.SessionIdentity, error) {
	var out struct {
		CustomerID string `json:"customer_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/customers/register", reg, &out); err != nil {
		return domain.SessionIdentity{}, err
	}
	return domain.SessionIdentity{
		Verified:        true,
		CustomerID:      out.CustomerID,
		IsNew:           true,
		FingerprintHash: reg.FingerprintHash,
	}, nil
}

// PaymentMethods lists a customer's saved payment instruments.
func (c *Client) PaymentMethods(ctx context.Context, customerID string) ([]domain.PaymentMethod, error) {
	var out []domain.PaymentMethod
	path := "/api/customers/payment-methods?customer_id=" + customerID
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddPaymentMethod attaches a payment instrument to a customer.
func (c *Client) AddPaymentMethod(ctx context.Context, customerID string, m domain.PaymentMethod) (domain.PaymentMethod, error) {
	var out domain.PaymentMethod
	err := c.do(ctx, http.MethodPost, "/api/customers/payment-methods?customer_id="+customerID, m, &out)
	if err != nil {
		return domain.PaymentMethod{}, err
	}
	return out, nil
}

type createTransactionRequest struct {
	Amount          float64            `json:"amount"`
	Items           []domain.DraftItem `json:"items"`
	FingerprintHash string             `json:"fingerprint_hash"`
	PaymentMethodID int64              `json:"payment_method_id,omitempty"`
}

// CreateTransaction finalizes a draft against the verified session. It is the
// merchant terminal's Finalizer; calls share one circuit breaker.
func (c *Client) CreateTransaction(ctx context.Context, draft *domain.TransactionDraft, sess domain.PaymentContext) (*domain.Transaction, error) {
	return c.breaker.Execute(func() (*domain.Transaction, error) {
		var txn domain.Transaction
		err := c.do(ctx, http.MethodPost, "/api/transactions/create", createTransactionRequest{
			Amount:          draft.Amount,
			Items:           draft.Items,
			FingerprintHash: sess.FingerprintHash,
			PaymentMethodID: sess.PaymentMethodID,
		}, &txn)
		if err != nil {
			return nil, err
		}
		return &txn, nil
	})
}

// Transactions pages through the merchant's transaction history.
func (c *Client) Transactions(ctx context.Context, skip, limit int) ([]domain.Transaction, error) {
	var out []domain.Transaction
	path := "/api/transactions?skip=" + strconv.Itoa(skip) + "&limit=" + strconv.Itoa(limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MerchantStats returns the merchant dashboard aggregates.
func (c *Client) MerchantStats(ctx context.Context) (domain.MerchantStats, error) {
	var out domain.MerchantStats
	if err := c.do(ctx, http.MethodGet, "/api/merchant/stats", nil, &out); err != nil {
		return domain.MerchantStats{}, err
	}
	return out, nil
}

// Inventory lists the merchant catalog.
func (c *Client) Inventory(ctx context.Context) ([]domain.InventoryItem, error) {
	var out []domain.InventoryItem
	if err := c.do(ctx, http.MethodGet, "/api/inventory", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateInventoryItem adds a catalog entry.
func (c *Client) CreateInventoryItem(ctx context.Context, item domain.InventoryItem) (domain.InventoryItem, error) {
	var out domain.InventoryItem
	if err := c.do(ctx, http.MethodPost, "/api/inventory", item, &out); err != nil {
		return domain.InventoryItem{}, err
	}
	return out, nil
}

// UpdateInventoryItem replaces a catalog entry.
func (c *Client) UpdateInventoryItem(ctx context.Context, id int64, item domain.InventoryItem) (domain.InventoryItem, error) {
	var out domain.InventoryItem
	path := "/api/inventory/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, http.MethodPut, path, item, &out); err != nil {
		return domain.InventoryItem{}, err
	}
	return out, nil
}

// DeleteInventoryItem removes a catalog entry.
func (c *Client) DeleteInventoryItem(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/inventory/"+strconv.FormatInt(id, 10), nil, nil)
}

// InventoryByBarcode resolves a scanned barcode to a catalog entry.
func (c *Client) InventoryByBarcode(ctx context.Context, barcode string) (domain.InventoryItem, error) {
	var out domain.InventoryItem
	if err := c.do(ctx, http.MethodGet, "/api/inventory/barcode/"+barcode, nil, &out); err != nil {
		return domain.InventoryItem{}, err
	}
	return out, nil
}
