package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends audit events to the audit_events table.
// INSERT only; there are intentionally no read or delete methods here.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
  id, type, account_id, actor_user_id, actor_role, campaign_id, number, message, metadata, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.Type,
		e.AccountID,
		e.ActorUserID,
		e.ActorRole,
		e.CampaignID,
		e.Number,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}
