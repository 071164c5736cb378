package ledger

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory repository useful for tests and early development.
// The mutex makes Apply a single atomic unit, matching the conditional-update
// contract the Postgres implementation gets from its transaction.
//
// NOTE: Not intended for production.
type MemoryRepo struct {
	mu       sync.Mutex
	balances map[string]Balance
	entries  []Entry
	byKey    map[string]int // account_id + "\x00" + idempotency_key -> index into entries
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		balances: make(map[string]Balance),
		byKey:    make(map[string]int),
	}
}

func (r *MemoryRepo) Balance(ctx context.Context, accountID string) (Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.balances[accountID]
	if !ok {
		return Balance{AccountID: accountID}, nil
	}
	return b, nil
}

func (r *MemoryRepo) Apply(ctx context.Context, e Entry) (Entry, Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := e.AccountID + "\x00" + e.IdempotencyKey
	if idx, ok := r.byKey[key]; ok {
		return r.entries[idx], r.balances[e.AccountID], nil
	}

	b, ok := r.balances[e.AccountID]
	if !ok {
		b = Balance{AccountID: e.AccountID, Currency: e.Currency}
	}
	if b.Currency != "" && b.Currency != e.Currency {
		return Entry{}, Balance{}, ErrCurrencyMismatch
	}
	if b.BalanceMinor+e.AmountMinor < 0 {
		return Entry{}, Balance{}, ErrInsufficientFunds
	}

	b.BalanceMinor += e.AmountMinor
	if b.Currency == "" {
		b.Currency = e.Currency
	}
	b.UpdatedAt = e.CreatedAt
	r.balances[e.AccountID] = b

	r.entries = append(r.entries, e)
	r.byKey[key] = len(r.entries) - 1
	return e, b, nil
}

// Entries returns a copy of all posted entries, oldest first.
func (r *MemoryRepo) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Seed sets an account balance directly, bypassing the ledger. Tests only.
func (r *MemoryRepo) Seed(accountID, currency string, balanceMinor int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[accountID] = Balance{
		AccountID:    accountID,
		Currency:     currency,
		BalanceMinor: balanceMinor,
		UpdatedAt:    time.Now().UTC(),
	}
}
