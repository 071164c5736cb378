package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dialer-platform/pkg/utils"
)

// PostgresRepo persists the ledger and balance projection in Postgres.
//
// Assumed tables:
// - balance_ledger (immutable append-only), with
//   UNIQUE (account_id, idempotency_key)
// - account_balances (projection)
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Balance(ctx context.Context, accountID string) (Balance, error) {
	const q = `
SELECT account_id, currency, balance_minor, updated_at
FROM account_balances
WHERE account_id = $1
`
	var b Balance
	if err := r.db.QueryRowContext(ctx, q, accountID).Scan(
		&b.AccountID,
		&b.Currency,
		&b.BalanceMinor,
		&b.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Accounts without money movement report a zero balance.
			return Balance{AccountID: accountID}, nil
		}
		return Balance{}, err
	}
	return b, nil
}

func (r *PostgresRepo) Apply(ctx context.Context, e Entry) (Entry, Balance, error) {
	var outEntry Entry
	var outBal Balance

	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		// Idempotency: if an entry already exists for this account+key,
		// return it and the current balance without posting again.
		existing, ok, err := findEntryByKey(ctx, tx, e.AccountID, e.IdempotencyKey)
		if err != nil {
			return err
		}
		if ok {
			b, err := balanceTx(ctx, tx, e.AccountID)
			if err != nil {
				return err
			}
			outEntry = existing
			outBal = b
			return nil
		}

		if err := insertEntry(ctx, tx, e); err != nil {
			return err
		}

		b, err := applyDelta(ctx, tx, e.AccountID, e.Currency, e.AmountMinor, e.CreatedAt)
		if err != nil {
			return err
		}
		outEntry = e
		outBal = b
		return nil
	})

	return outEntry, outBal, err
}

func findEntryByKey(ctx context.Context, tx *sql.Tx, accountID, key string) (Entry, bool, error) {
	const q = `
SELECT id, account_id, type, amount_minor, currency, external_ref, idempotency_key, created_at
FROM balance_ledger
WHERE account_id = $1 AND idempotency_key = $2
LIMIT 1
`
	var e Entry
	err := tx.QueryRowContext(ctx, q, accountID, key).Scan(
		&e.ID,
		&e.AccountID,
		&e.Type,
		&e.AmountMinor,
		&e.Currency,
		&e.ExternalRef,
		&e.IdempotencyKey,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	return e, true, nil
}

func insertEntry(ctx context.Context, tx *sql.Tx, e Entry) error {
	const q = `
INSERT INTO balance_ledger (
  id, account_id, type, amount_minor, currency, external_ref, idempotency_key, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
)
`
	_, err := tx.ExecContext(ctx, q,
		e.ID,
		e.AccountID,
		e.Type,
		e.AmountMinor,
		e.Currency,
		e.ExternalRef,
		e.IdempotencyKey,
		e.CreatedAt,
	)
	return err
}

func balanceTx(ctx context.Context, tx *sql.Tx, accountID string) (Balance, error) {
	const q = `
SELECT account_id, currency, balance_minor, updated_at
FROM account_balances
WHERE account_id = $1
`
	var b Balance
	if err := tx.QueryRowContext(ctx, q, accountID).Scan(
		&b.AccountID,
		&b.Currency,
		&b.BalanceMinor,
		&b.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Balance{AccountID: accountID}, nil
		}
		return Balance{}, err
	}
	return b, nil
}

// applyDelta adjusts the balance projection. The WHERE guard makes the
// decrement conditional: a debit that would take the balance below zero
// matches no row and the whole transaction rolls back with
// ErrInsufficientFunds. This is the linearization point for money movement.
func applyDelta(ctx context.Context, tx *sql.Tx, accountID, currency string, deltaMinor int64, now time.Time) (Balance, error) {
	if deltaMinor < 0 {
		const q = `
UPDATE account_balances
SET balance_minor = balance_minor + $3, updated_at = $4
WHERE account_id = $1 AND currency = $2 AND balance_minor + $3 >= 0
RETURNING account_id, currency, balance_minor, updated_at
`
		var b Balance
		err := tx.QueryRowContext(ctx, q, accountID, currency, deltaMinor, now).Scan(
			&b.AccountID,
			&b.Currency,
			&b.BalanceMinor,
			&b.UpdatedAt,
		)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return Balance{}, ErrInsufficientFunds
			}
			return Balance{}, err
		}
		return b, nil
	}

	// The conflict update only fires when the currencies agree; adding
	// foreign-currency minor units into an existing balance would corrupt it.
	const q = `
INSERT INTO account_balances (account_id, currency, balance_minor, updated_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (account_id)
DO UPDATE SET balance_minor = account_balances.balance_minor + EXCLUDED.balance_minor,
              updated_at = EXCLUDED.updated_at
WHERE account_balances.currency = EXCLUDED.currency
RETURNING account_id, currency, balance_minor, updated_at
`
	var b Balance
	if err := tx.QueryRowContext(ctx, q, accountID, currency, deltaMinor, now).Scan(
		&b.AccountID,
		&b.Currency,
		&b.BalanceMinor,
		&b.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Balance{}, ErrCurrencyMismatch
		}
		return Balance{}, err
	}
	return b, nil
}
