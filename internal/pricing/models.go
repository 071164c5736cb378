package pricing

import "time"

// CallRate defines the flat per-call price for dispatching one contact.
// Rates are account-scoped; amounts are minor units (e.g., cents) in int64.
type CallRate struct {
	ID        string `json:"id" db:"id"`
	AccountID string `json:"account_id" db:"account_id"`

	// Prefix is the dialed-number prefix bucket the rate applies to
	// (e.g., "+1", "+44"). Longest matching prefix wins. Empty matches all.
	Prefix string `json:"prefix" db:"prefix"`

	Currency string `json:"currency" db:"currency"`

	// PricePerCallMinor is charged per contact released, not per request.
	PricePerCallMinor int64 `json:"price_per_call_minor" db:"price_per_call_minor"`

	// Effective window for the rate.
	EffectiveFrom time.Time  `json:"effective_from" db:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty" db:"effective_to"`

	Status RateStatus `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type RateStatus string

const (
	RateStatusActive   RateStatus = "active"
	RateStatusInactive RateStatus = "inactive"
)
