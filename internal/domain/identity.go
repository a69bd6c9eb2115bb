package domain

import "time"

// SessionIdentity is the result of fingerprint verification. It is owned by
// the customer terminal for one transaction cycle and never persisted locally
// beyond it.
type SessionIdentity struct {
	Verified        bool   `json:"verified"`
	CustomerID      string `json:"customer_id,omitempty"`
	IsNew           bool   `json:"is_new"`
	FingerprintHash string `json:"fingerprint_hash,omitempty"`
}

// Registration is the minimal identity capture required before a payment
// method can be attached to a new customer.
type Registration struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone,omitempty"`
	FingerprintHash string `json:"fingerprint_hash"`
}

// Customer is the backend's persisted identity record.
type Customer struct {
	ID              string    `json:"customer_id" bson:"customer_id"`
	Name            string    `json:"name" bson:"name"`
	Email           string    `json:"email" bson:"email"`
	Phone           string    `json:"phone,omitempty" bson:"phone,omitempty"`
	FingerprintHash string    `json:"-" bson:"fingerprint_hash"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" bson:"updated_at"`
}

// PaymentMethod references a previously registered payment instrument.
type PaymentMethod struct {
	ID        int64  `json:"id" bson:"id"`
	Type      string `json:"type" bson:"type"`
	Name      string `json:"name" bson:"name"`
	Last4     string `json:"last4" bson:"last4"`
	IsDefault bool   `json:"is_default" bson:"is_default"`
}

// PaymentContext is the session reference the customer terminal writes to the
// channel before confirming, so the merchant side can finalize with it.
type PaymentContext struct {
	CustomerID      string `json:"customer_id"`
	FingerprintHash string `json:"fingerprint_hash"`
	PaymentMethodID int64  `json:"payment_method_id,omitempty"`
}
