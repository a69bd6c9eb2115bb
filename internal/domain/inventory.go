package domain

import "time"

// InventoryItem is a merchant catalog entry, looked up by barcode at the POS.
type InventoryItem struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Barcode   string    `json:"barcode,omitempty"`
	Price     float64   `json:"price"`
	Category  string    `json:"category,omitempty"`
	Stock     int       `json:"stock"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
