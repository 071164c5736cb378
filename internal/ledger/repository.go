package ledger

import "context"

// Repository is the persistence contract for account money state.
//
// Apply is the linearization point for all money movement: it must insert
// the entry and adjust the balance projection as one atomic conditional
// update. A debit that would take the balance below zero fails with
// ErrInsufficientFunds and leaves no trace. Two concurrent debits against
// the same account must never both succeed past the remaining funds.
//
// If an entry with the same (account_id, idempotency_key) already exists,
// Apply returns that entry and the current balance without posting again.
type Repository interface {
	Balance(ctx context.Context, accountID string) (Balance, error)
	Apply(ctx context.Context, e Entry) (Entry, Balance, error)
}
