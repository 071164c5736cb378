package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to account holders.
// - Callers should treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogAdminCredit records a manual balance top-up performed by an admin.
func (s *Service) LogAdminCredit(ctx context.Context, accountID, actorUserID, actorRole, metadata string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeAdminCredit,
		AccountID:   accountID,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		Message:     "manual balance credit",
		Metadata:    metadata,
	})
}

// LogBlocklistEdit records a global caller-ID blocklist change.
func (s *Service) LogBlocklistEdit(ctx context.Context, actorUserID, actorRole, number, action string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeBlocklistEdit,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		Number:      number,
		Message:     "blocklist " + action,
	})
}

// LogAutoPause records a dispatcher-initiated campaign pause.
func (s *Service) LogAutoPause(ctx context.Context, accountID, campaignID, reason string) error {
	return s.Append(ctx, Event{
		Type:       EventTypeAutoPause,
		AccountID:  accountID,
		CampaignID: campaignID,
		Message:    reason,
	})
}
