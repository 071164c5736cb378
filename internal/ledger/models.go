package ledger

import "time"

// Entry is an immutable append-only ledger record.
// Each row represents a credit, debit, or refund posted to an account.
//
// Money invariant: any balance change MUST have a corresponding ledger entry,
// and the projected balance never drops below zero.
type Entry struct {
	ID        string `json:"id" db:"id"`
	AccountID string `json:"account_id" db:"account_id"`

	// Type categorizes the ledger entry. Keep stable.
	Type EntryType `json:"type" db:"type"`

	// AmountMinor is the signed amount in minor units (e.g., cents).
	// Credits and refunds are positive, debits are negative.
	AmountMinor int64  `json:"amount_minor" db:"amount_minor"`
	Currency    string `json:"currency" db:"currency"`

	// ExternalRef is optional: campaign_id, batch token, invoice id, etc.
	ExternalRef string `json:"external_ref,omitempty" db:"external_ref"`

	// IdempotencyKey is required for safe retries of money-posting operations.
	IdempotencyKey string `json:"idempotency_key" db:"idempotency_key"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EntryType string

const (
	EntryTypeCredit EntryType = "credit" // top-up, admin adjustment
	EntryTypeDebit  EntryType = "debit"  // dispatch batch charge
	EntryTypeRefund EntryType = "refund" // returned charge for undispatched contacts
)

// Balance is the projected account balance, updated atomically alongside
// ledger inserts.
type Balance struct {
	AccountID    string    `json:"account_id" db:"account_id"`
	Currency     string    `json:"currency" db:"currency"`
	BalanceMinor int64     `json:"balance_minor" db:"balance_minor"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
