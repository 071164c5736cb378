package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dialer-platform/internal/ledger"
	"dialer-platform/internal/moderation"
	"dialer-platform/internal/numberpolicy"
	"dialer-platform/internal/pricing"

	"github.com/google/uuid"
)

var (
	ErrInvalidArgument = errors.New("campaign: invalid argument")
	// ErrMessageFlagged and ErrNumberBlocked are policy rejections:
	// reported to the caller, no state change.
	ErrMessageFlagged = errors.New("campaign: message flagged by moderation")
	ErrNumberBlocked  = errors.New("campaign: caller-id number is blocked")
)

// Service owns campaign creation and the active/paused state machine.
//
// Lifecycle:
// - campaigns are created Paused
// - Start requires the account balance to cover at least one call
// - Pause (owner) is always allowed
// - AutoPause is the dispatcher's reaction to insufficient funds
type Service struct {
	repo      Repository
	ledger    *ledger.Service
	rates     *pricing.Service
	moderator *moderation.Service
	blocklist numberpolicy.Blocklist
	clock     func() time.Time
}

func NewService(repo Repository, led *ledger.Service, rates *pricing.Service, mod *moderation.Service, bl numberpolicy.Blocklist) *Service {
	return &Service{
		repo:      repo,
		ledger:    led,
		rates:     rates,
		moderator: mod,
		blocklist: bl,
		clock:     time.Now,
	}
}

type ContactInput struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Notes string `json:"notes,omitempty"`
}

type CreateRequest struct {
	Name              string         `json:"name"`
	FromNumber        string         `json:"from_number"`
	MessageTemplate   string         `json:"message_template"`
	BatchSize         int            `json:"batch_size"`
	BatchDelaySeconds int            `json:"batch_delay_seconds"`
	ForbiddenWords    []string       `json:"forbidden_words,omitempty"`
	Contacts          []ContactInput `json:"contacts"`
}

// Create runs the moderation pipeline and the number policy guard, then
// persists the campaign with its deduplicated contact list. The campaign
// starts Paused.
func (s *Service) Create(ctx context.Context, accountID string, req CreateRequest) (Campaign, []Contact, error) {
	if accountID == "" {
		return Campaign{}, nil, ErrInvalidArgument
	}
	if req.Name == "" || req.FromNumber == "" || req.MessageTemplate == "" {
		return Campaign{}, nil, ErrInvalidArgument
	}
	if req.BatchSize < MinBatchSize || req.BatchSize > MaxBatchSize {
		return Campaign{}, nil, fmt.Errorf("%w: batch_size must be in [%d,%d]", ErrInvalidArgument, MinBatchSize, MaxBatchSize)
	}
	if req.BatchDelaySeconds < 0 {
		return Campaign{}, nil, ErrInvalidArgument
	}
	for _, ct := range req.Contacts {
		if ct.Phone == "" {
			return Campaign{}, nil, fmt.Errorf("%w: contact phone is required", ErrInvalidArgument)
		}
	}

	if verdict := s.moderator.Evaluate(ctx, req.MessageTemplate, req.ForbiddenWords); verdict.Flagged {
		return Campaign{}, nil, fmt.Errorf("%w: %v", ErrMessageFlagged, verdict.Reasons)
	}

	blocked, err := s.blocklist.Contains(ctx, req.FromNumber)
	if err != nil {
		return Campaign{}, nil, err
	}
	if blocked {
		return Campaign{}, nil, ErrNumberBlocked
	}

	now := s.clock().UTC()
	c := Campaign{
		ID:                uuid.NewString(),
		AccountID:         accountID,
		Name:              req.Name,
		FromNumber:        req.FromNumber,
		MessageTemplate:   req.MessageTemplate,
		BatchSize:         req.BatchSize,
		BatchDelaySeconds: req.BatchDelaySeconds,
		ForbiddenWords:    req.ForbiddenWords,
		Active:            false,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	contacts := make([]Contact, 0, len(req.Contacts))
	for _, in := range req.Contacts {
		contacts = append(contacts, Contact{
			ID:         uuid.NewString(),
			CampaignID: c.ID,
			Name:       in.Name,
			Phone:      in.Phone,
			Status:     ContactStatusPending,
			Notes:      in.Notes,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	return s.repo.Create(ctx, c, contacts)
}

func (s *Service) Get(ctx context.Context, accountID, campaignID string) (Campaign, error) {
	if accountID == "" || campaignID == "" {
		return Campaign{}, ErrInvalidArgument
	}
	return s.repo.Get(ctx, accountID, campaignID)
}

func (s *Service) List(ctx context.Context, accountID string) ([]Campaign, error) {
	if accountID == "" {
		return nil, ErrInvalidArgument
	}
	return s.repo.ListByAccount(ctx, accountID)
}

// Start transitions Paused -> Active, allowed only when the account balance
// covers at least one call at the current rate. Otherwise the campaign stays
// Paused and ErrInsufficientFunds is returned.
func (s *Service) Start(ctx context.Context, accountID, campaignID string) (Campaign, error) {
	c, err := s.Get(ctx, accountID, campaignID)
	if err != nil {
		return Campaign{}, err
	}
	if c.Active {
		return c, nil
	}

	now := s.clock().UTC()
	quote, err := s.rates.PerCallRate(ctx, accountID, c.FromNumber, now)
	if err != nil {
		return Campaign{}, err
	}
	bal, err := s.ledger.GetBalance(ctx, accountID)
	if err != nil {
		return Campaign{}, err
	}
	if bal.BalanceMinor < quote.PricePerCallMinor {
		return Campaign{}, ledger.ErrInsufficientFunds
	}

	if err := s.repo.SetActive(ctx, campaignID, true, now); err != nil {
		return Campaign{}, err
	}
	c.Active = true
	c.UpdatedAt = now
	return c, nil
}

// Pause transitions Active -> Paused. Always allowed; pausing an already
// paused campaign is a no-op.
func (s *Service) Pause(ctx context.Context, accountID, campaignID string) (Campaign, error) {
	c, err := s.Get(ctx, accountID, campaignID)
	if err != nil {
		return Campaign{}, err
	}
	if !c.Active {
		return c, nil
	}
	now := s.clock().UTC()
	if err := s.repo.SetActive(ctx, campaignID, false, now); err != nil {
		return Campaign{}, err
	}
	c.Active = false
	c.UpdatedAt = now
	return c, nil
}

// AutoPause is the system-initiated pause used by the batch dispatcher when
// a tick cannot afford the requested batch. There is no terminal state;
// the campaign may be started again once funds are replenished.
func (s *Service) AutoPause(ctx context.Context, campaignID string) error {
	if campaignID == "" {
		return ErrInvalidArgument
	}
	return s.repo.SetActive(ctx, campaignID, false, s.clock().UTC())
}

// RecordOutcome moves a dispatched contact to its terminal answered or
// unanswered state. Transitions are forward-only; a lost conditional update
// surfaces as ErrConflict and is safe to retry.
func (s *Service) RecordOutcome(ctx context.Context, accountID, campaignID, contactID string, outcome ContactStatus) error {
	if accountID == "" || campaignID == "" || contactID == "" {
		return ErrInvalidArgument
	}
	if outcome != ContactStatusAnswered && outcome != ContactStatusUnanswered {
		return ErrInvalidArgument
	}
	if !CanTransition(ContactStatusDispatched, outcome) {
		return ErrInvalidArgument
	}

	// Ownership check before touching contact state.
	if _, err := s.repo.Get(ctx, accountID, campaignID); err != nil {
		return err
	}
	return s.repo.TransitionContact(ctx, campaignID, contactID, ContactStatusDispatched, outcome, s.clock().UTC())
}

// Progress reports per-status contact counts for a campaign.
func (s *Service) Progress(ctx context.Context, accountID, campaignID string) (map[ContactStatus]int, error) {
	if _, err := s.Get(ctx, accountID, campaignID); err != nil {
		return nil, err
	}
	return s.repo.CountByStatus(ctx, campaignID)
}
