package domain

import (
	"errors"
	"time"
)

var (
	ErrEmptyCart        = errors.New("cart is empty, nothing to start")
	ErrNonPositivePrice = errors.New("item price must be positive")
)

// DraftItem is a single cart line.
type DraftItem struct {
	Name    string  `json:"name"`
	Price   float64 `json:"price"`
	Barcode string  `json:"barcode,omitempty"`
}

// TransactionDraft is the proposed transaction published by the merchant
// terminal. It is immutable after publication; the channel value is discarded
// when the cycle resets.
type TransactionDraft struct {
	Amount    float64     `json:"amount"`
	Items     []DraftItem `json:"items"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewDraft builds a draft from cart lines, computing Amount as the exact sum
// of item prices.
func NewDraft(items []DraftItem) (*TransactionDraft, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	var sum float64
	for _, it := range items {
		if it.Price <= 0 {
			return nil, ErrNonPositivePrice
		}
		sum += it.Price
	}
	draft := &TransactionDraft{
		Amount:    sum,
		Items:     append([]DraftItem(nil), items...),
		CreatedAt: time.Now(),
	}
	return draft, nil
}
