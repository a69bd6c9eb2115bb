package domain

import "time"

// TaxRate is applied on top of the draft amount when a transaction is
// finalized.
const TaxRate = 0.08

// FeeRate is the platform fee taken from completed revenue.
const FeeRate = 0.01

type TransactionStatus string

const (
	TransactionProcessing TransactionStatus = "processing"
	TransactionCompleted  TransactionStatus = "completed"
	TransactionFailed     TransactionStatus = "failed"
)

// Transaction is the authoritative record persisted by the backend once the
// customer confirms. One draft maps to zero or one of these.
type Transaction struct {
	ID              string            `json:"transaction_id"`
	MerchantID      string            `json:"merchant_id,omitempty"`
	CustomerID      string            `json:"customer_id"`
	PaymentMethodID int64             `json:"payment_method_id,omitempty"`
	Amount          float64           `json:"amount"`
	Tax             float64           `json:"tax"`
	Total           float64           `json:"total"`
	Items           []DraftItem       `json:"items"`
	FingerprintHash string            `json:"-"`
	Status          TransactionStatus `json:"status"`
	CreatedAt       time.Time         `json:"timestamp"`
	UpdatedAt       time.Time         `json:"-"`
}

// Totals computes tax and total for an amount.
func Totals(amount float64) (tax, total float64) {
	tax = amount * TaxRate
	return tax, amount + tax
}

// MerchantStats aggregates a merchant's completed transactions.
type MerchantStats struct {
	TotalTransactions int     `json:"total_transactions"`
	Revenue           float64 `json:"revenue"`
	Fees              float64 `json:"protega_fees"`
	Customers         int     `json:"customers"`
	AvgTransaction    float64 `json:"avg_transaction"`
	FraudAttempts     int     `json:"fraud_attempts"`
	ApprovalRate      float64 `json:"approval_rate"`
}
