package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Service owns all balance mutation for prepaid accounts.
//
// Money invariants:
// - No balance updates without a ledger entry
// - Ledger is append-only (immutable)
// - Balance is never observable below zero
//
// Concurrency:
// - Correctness under concurrent callers is delegated to Repository.Apply,
//   which performs a conditional atomic update. The service holds no locks.
type Service struct {
	repo Repository
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidArgument   = errors.New("invalid argument")
	// ErrCurrencyMismatch: the entry's currency differs from the account's.
	// Minor units are only comparable within one currency.
	ErrCurrencyMismatch = errors.New("currency mismatch")
)

type CreditRequest struct {
	AmountMinor    int64  `json:"amount_minor"`
	Currency       string `json:"currency"`
	ExternalRef    string `json:"external_ref,omitempty"`
	IdempotencyKey string `json:"idempotency_key"`
}

type DebitRequest struct {
	AmountMinor    int64  `json:"amount_minor"`
	Currency       string `json:"currency"`
	ExternalRef    string `json:"external_ref,omitempty"`
	IdempotencyKey string `json:"idempotency_key"`
}

type RefundRequest struct {
	AmountMinor    int64  `json:"amount_minor"`
	Currency       string `json:"currency"`
	ExternalRef    string `json:"external_ref,omitempty"`
	IdempotencyKey string `json:"idempotency_key"`
}

func (s *Service) GetBalance(ctx context.Context, accountID string) (Balance, error) {
	if accountID == "" {
		return Balance{}, ErrInvalidArgument
	}
	return s.repo.Balance(ctx, accountID)
}

// Credit posts an unconditional top-up. Amount must be positive.
func (s *Service) Credit(ctx context.Context, accountID string, req CreditRequest) (Entry, Balance, error) {
	if err := validateMoneyReq(accountID, req.AmountMinor, req.Currency, req.IdempotencyKey); err != nil {
		return Entry{}, Balance{}, err
	}

	return s.repo.Apply(ctx, Entry{
		ID:             uuid.NewString(),
		AccountID:      accountID,
		Type:           EntryTypeCredit,
		AmountMinor:    req.AmountMinor,
		Currency:       req.Currency,
		ExternalRef:    req.ExternalRef,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      s.clock().UTC(),
	})
}

// Debit posts a conditional charge. It fails with ErrInsufficientFunds when
// the balance cannot cover the amount; the check and the decrement are a
// single atomic unit inside the repository.
func (s *Service) Debit(ctx context.Context, accountID string, req DebitRequest) (Entry, Balance, error) {
	if err := validateMoneyReq(accountID, req.AmountMinor, req.Currency, req.IdempotencyKey); err != nil {
		return Entry{}, Balance{}, err
	}

	return s.repo.Apply(ctx, Entry{
		ID:             uuid.NewString(),
		AccountID:      accountID,
		Type:           EntryTypeDebit,
		AmountMinor:    -req.AmountMinor,
		Currency:       req.Currency,
		ExternalRef:    req.ExternalRef,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      s.clock().UTC(),
	})
}

// Refund returns part or all of a previous charge. ExternalRef should carry
// the reference of the debit being reversed.
func (s *Service) Refund(ctx context.Context, accountID string, req RefundRequest) (Entry, Balance, error) {
	if err := validateMoneyReq(accountID, req.AmountMinor, req.Currency, req.IdempotencyKey); err != nil {
		return Entry{}, Balance{}, err
	}

	return s.repo.Apply(ctx, Entry{
		ID:             uuid.NewString(),
		AccountID:      accountID,
		Type:           EntryTypeRefund,
		AmountMinor:    req.AmountMinor,
		Currency:       req.Currency,
		ExternalRef:    req.ExternalRef,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      s.clock().UTC(),
	})
}

func validateMoneyReq(accountID string, amountMinor int64, currency, idempotencyKey string) error {
	if accountID == "" {
		return ErrInvalidArgument
	}
	if currency == "" {
		return ErrInvalidArgument
	}
	if idempotencyKey == "" {
		return ErrInvalidArgument
	}
	if amountMinor <= 0 {
		return ErrInvalidArgument
	}
	return nil
}
