package campaign

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("campaign: not found")
	// ErrConflict means a conditional update lost its race; safe to retry.
	ErrConflict = errors.New("campaign: conflict")
)

// Repository is the persistence contract for campaigns and their contacts.
//
// Concurrency contract:
// - ClaimPending selects and marks contacts in one conditional update keyed
//   on status=pending. Once a contact is claimed, no racing tick may claim
//   it again. Selection is stable in upload order.
// - TransitionContact is a conditional update keyed on the expected current
//   status; losing the race returns ErrConflict.
type Repository interface {
	Create(ctx context.Context, c Campaign, contacts []Contact) (Campaign, []Contact, error)
	Get(ctx context.Context, accountID, campaignID string) (Campaign, error)
	ListByAccount(ctx context.Context, accountID string) ([]Campaign, error)

	SetActive(ctx context.Context, campaignID string, active bool, at time.Time) error
	TouchDispatch(ctx context.Context, campaignID string, at time.Time) error

	ClaimPending(ctx context.Context, campaignID string, limit int, batchToken string, at time.Time) ([]Contact, error)
	FindByBatchToken(ctx context.Context, campaignID, batchToken string) ([]Contact, error)
	TransitionContact(ctx context.Context, campaignID, contactID string, from, to ContactStatus, at time.Time) error

	CountByStatus(ctx context.Context, campaignID string) (map[ContactStatus]int, error)
}
