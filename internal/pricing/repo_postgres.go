package pricing

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresRepo reads rate rows from the call_rates table.
//
// Expected uniqueness: at most a handful of rows per (account_id, prefix);
// the most recent effective row wins.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) FindCallRate(ctx context.Context, accountID, prefix string, at time.Time) (CallRate, bool, error) {
	const q = `
SELECT id, account_id, prefix, currency, price_per_call_minor, effective_from, effective_to, status
FROM call_rates
WHERE account_id = $1
  AND prefix = $2
  AND status = $3
  AND effective_from <= $4
  AND (effective_to IS NULL OR effective_to > $4)
ORDER BY effective_from DESC
LIMIT 1
`
	var out CallRate
	var effectiveTo sql.NullTime
	err := r.db.QueryRowContext(ctx, q, accountID, prefix, RateStatusActive, at).Scan(
		&out.ID,
		&out.AccountID,
		&out.Prefix,
		&out.Currency,
		&out.PricePerCallMinor,
		&out.EffectiveFrom,
		&effectiveTo,
		&out.Status,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallRate{}, false, nil
		}
		return CallRate{}, false, err
	}
	if effectiveTo.Valid {
		t := effectiveTo.Time
		out.EffectiveTo = &t
	}
	return out, true, nil
}
