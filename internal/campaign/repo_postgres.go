package campaign

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"dialer-platform/pkg/utils"
)

// PostgresRepo persists campaigns and contacts in Postgres.
//
// Assumed tables:
// - campaigns (forbidden_words stored as JSONB)
// - contacts, with UNIQUE (campaign_id, phone)
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Create(ctx context.Context, c Campaign, contacts []Contact) (Campaign, []Contact, error) {
	words, err := json.Marshal(c.ForbiddenWords)
	if err != nil {
		return Campaign{}, nil, err
	}

	var kept []Contact
	err = utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const qc = `
INSERT INTO campaigns (
  id, account_id, name, from_number, message_template, batch_size,
  batch_delay_seconds, forbidden_words, active, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`
		if _, err := tx.ExecContext(ctx, qc,
			c.ID, c.AccountID, c.Name, c.FromNumber, c.MessageTemplate, c.BatchSize,
			c.BatchDelaySeconds, string(words), c.Active, c.CreatedAt, c.UpdatedAt,
		); err != nil {
			return err
		}

		// ON CONFLICT DO NOTHING enforces (phone, campaign) uniqueness:
		// duplicates inside one upload are silently dropped, first wins.
		const qct = `
INSERT INTO contacts (
  id, campaign_id, name, phone, status, notes, position, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (campaign_id, phone) DO NOTHING
`
		pos := 0
		for _, ct := range contacts {
			res, err := tx.ExecContext(ctx, qct,
				ct.ID, c.ID, ct.Name, ct.Phone, ct.Status, ct.Notes, pos, ct.CreatedAt, ct.UpdatedAt,
			)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				continue
			}
			ct.CampaignID = c.ID
			ct.Position = pos
			pos++
			kept = append(kept, ct)
		}
		return nil
	})
	if err != nil {
		return Campaign{}, nil, err
	}
	return c, kept, nil
}

func (r *PostgresRepo) Get(ctx context.Context, accountID, campaignID string) (Campaign, error) {
	const q = `
SELECT id, account_id, name, from_number, message_template, batch_size,
       batch_delay_seconds, forbidden_words, active, last_dispatch_at, created_at, updated_at
FROM campaigns
WHERE account_id = $1 AND id = $2
`
	return scanCampaign(r.db.QueryRowContext(ctx, q, accountID, campaignID))
}

func (r *PostgresRepo) ListByAccount(ctx context.Context, accountID string) ([]Campaign, error) {
	const q = `
SELECT id, account_id, name, from_number, message_template, batch_size,
       batch_delay_seconds, forbidden_words, active, last_dispatch_at, created_at, updated_at
FROM campaigns
WHERE account_id = $1
ORDER BY created_at
`
	rows, err := r.db.QueryContext(ctx, q, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) SetActive(ctx context.Context, campaignID string, active bool, at time.Time) error {
	const q = `
UPDATE campaigns SET active = $2, updated_at = $3
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q, campaignID, active, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) TouchDispatch(ctx context.Context, campaignID string, at time.Time) error {
	const q = `
UPDATE campaigns SET last_dispatch_at = $2, updated_at = $2
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q, campaignID, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimPending selects-and-marks in one statement, keyed on status=pending.
// SKIP LOCKED keeps racing ticks from serving the same contact; ordering on
// position keeps batches stable in upload order.
func (r *PostgresRepo) ClaimPending(ctx context.Context, campaignID string, limit int, batchToken string, at time.Time) ([]Contact, error) {
	const q = `
UPDATE contacts
SET status = 'dispatched', batch_token = $3, updated_at = $4
WHERE id IN (
  SELECT id FROM contacts
  WHERE campaign_id = $1 AND status = 'pending'
  ORDER BY position
  LIMIT $2
  FOR UPDATE SKIP LOCKED
)
RETURNING id, campaign_id, name, phone, status, batch_token, notes, position, created_at, updated_at
`
	rows, err := r.db.QueryContext(ctx, q, campaignID, limit, batchToken, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out, err := collectContacts(rows)
	if err != nil {
		return nil, err
	}

	// RETURNING order is not guaranteed; restore upload order.
	sortByPosition(out)
	return out, nil
}

func (r *PostgresRepo) FindByBatchToken(ctx context.Context, campaignID, batchToken string) ([]Contact, error) {
	if batchToken == "" {
		return nil, nil
	}
	const q = `
SELECT id, campaign_id, name, phone, status, batch_token, notes, position, created_at, updated_at
FROM contacts
WHERE campaign_id = $1 AND batch_token = $2
ORDER BY position
`
	rows, err := r.db.QueryContext(ctx, q, campaignID, batchToken)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectContacts(rows)
}

func collectContacts(rows *sql.Rows) ([]Contact, error) {
	var out []Contact
	for rows.Next() {
		var ct Contact
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

func sortByPosition(list []Contact) {
	for i := 1; i < len(list); i++ {
		for j := i; j > 0 && list[j].Position < list[j-1].Position; j-- {
			list[j], list[j-1] = list[j-1], list[j]
		}
	}
}

func (r *PostgresRepo) TransitionContact(ctx context.Context, campaignID, contactID string, from, to ContactStatus, at time.Time) error {
	const q = `
UPDATE contacts SET status = $4, updated_at = $5
WHERE campaign_id = $1 AND id = $2 AND status = $3
`
	res, err := r.db.ExecContext(ctx, q, campaignID, contactID, from, to, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	// Distinguish a lost race from a missing contact.
	const qe = `SELECT 1 FROM contacts WHERE campaign_id = $1 AND id = $2`
	var one int
	if err := r.db.QueryRowContext(ctx, qe, campaignID, contactID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return ErrConflict
}

func (r *PostgresRepo) CountByStatus(ctx context.Context, campaignID string) (map[ContactStatus]int, error) {
	const q = `
SELECT status, COUNT(*)
FROM contacts
WHERE campaign_id = $1
GROUP BY status
`
	rows, err := r.db.QueryContext(ctx, q, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[ContactStatus]int)
	for rows.Next() {
		var s ContactStatus
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[s] = n
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (Campaign, error) {
	var c Campaign
	var words string
	var lastDispatch sql.NullTime
	if err := row.Scan(
		&c.ID, &c.AccountID, &c.Name, &c.FromNumber, &c.MessageTemplate, &c.BatchSize,
		&c.BatchDelaySeconds, &words, &c.Active, &lastDispatch, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		return Campaign{}, err
	}
	if words != "" && words != "null" {
		if err := json.Unmarshal([]byte(words), &c.ForbiddenWords); err != nil {
			return Campaign{}, err
		}
	}
	if lastDispatch.Valid {
		t := lastDispatch.Time
		c.LastDispatchAt = &t
	}
	return c, nil
}
