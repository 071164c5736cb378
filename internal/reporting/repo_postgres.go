package reporting

import (
	"context"
	"database/sql"
	"time"

	"dialer-platform/internal/campaign"
	"dialer-platform/internal/ledger"
)

// PostgresRepo reads reporting data straight from the operational tables.
// All queries are read-only; account isolation happens in SQL, never in Go.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ListLedger(ctx context.Context, accountID string, from, to time.Time, campaignID string) ([]ledger.Entry, error) {
	const q = `
SELECT id, account_id, type, amount_minor, currency, external_ref, idempotency_key, created_at
FROM balance_ledger
WHERE account_id = $1
  AND created_at >= $2 AND created_at < $3
  AND ($4 = '' OR external_ref = $4)
ORDER BY created_at
`
	rows, err := r.db.QueryContext(ctx, q, accountID, from, to, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		if err := rows.Scan(
			&e.ID, &e.AccountID, &e.Type, &e.AmountMinor, &e.Currency,
			&e.ExternalRef, &e.IdempotencyKey, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListContacts(ctx context.Context, accountID, campaignID string) ([]campaign.Contact, error) {
	// Join through campaigns so a foreign campaign id yields no rows instead
	// of leaking another account's contacts.
	const q = `
SELECT ct.id, ct.campaign_id, ct.name, ct.phone, ct.status, ct.batch_token,
       ct.notes, ct.position, ct.created_at, ct.updated_at
FROM contacts ct
JOIN campaigns c ON c.id = ct.campaign_id
WHERE c.account_id = $1 AND ct.campaign_id = $2
ORDER BY ct.position
`
	rows, err := r.db.QueryContext(ctx, q, accountID, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []campaign.Contact
	for rows.Next() {
		var ct campaign.Contact
		var token sql.NullString
		if err := rows.Scan(
			&ct.ID, &ct.CampaignID, &ct.Name, &ct.Phone, &ct.Status,
			&token, &ct.Notes, &ct.Position, &ct.CreatedAt, &ct.UpdatedAt,
		); err != nil {
			return nil, err
		}
		ct.BatchToken = token.String
		out = append(out, ct)
	}
	return out, rows.Err()
}
