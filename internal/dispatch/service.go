package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dialer-platform/internal/audit"
	"dialer-platform/internal/campaign"
	"dialer-platform/internal/ledger"
	"dialer-platform/internal/pricing"
	"dialer-platform/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrInvalidArgument = errors.New("dispatch: invalid argument")

	// ErrCampaignNotActive: the campaign is paused; start it before ticking.
	ErrCampaignNotActive = errors.New("dispatch: campaign is not active")

	// ErrCampaignExhausted: every contact has already been dispatched.
	// Distinct from insufficient funds so callers stop polling; the tick is
	// a no-op and nothing is charged.
	ErrCampaignExhausted = errors.New("dispatch: campaign exhausted")
)

// Service is the batch dispatcher: for one tick it reserves funds, claims the
// next pending contacts, and settles the charge against what was actually
// claimed.
//
// Failure semantics: the debit happens first (conditional, atomic). A
// shortfall or an exhausted campaign is settled by refunding through the
// ledger, with idempotency keys derived from the batch token so retries
// reconcile instead of double-posting. A failed claim keeps the reservation
// in place: the same-token retry reuses the idempotent debit and settles the
// tick against the funds already held.
type Service struct {
	repo      campaign.Repository
	lifecycle *campaign.Service
	ledger    *ledger.Service
	rates     *pricing.Service
	audit     *audit.Service // best-effort, may be nil
	clock     func() time.Time
}

func NewService(repo campaign.Repository, lifecycle *campaign.Service, led *ledger.Service, rates *pricing.Service, aud *audit.Service) *Service {
	return &Service{
		repo:      repo,
		lifecycle: lifecycle,
		ledger:    led,
		rates:     rates,
		audit:     aud,
		clock:     time.Now,
	}
}

// BatchContact is one released contact with its rendered message.
type BatchContact struct {
	campaign.Contact
	Message string `json:"message"`
}

// Batch is the result of one successful dispatch tick.
type Batch struct {
	CampaignID string `json:"campaign_id"`

	// Token identifies this tick; retries with the same token reconcile
	// against the same ledger entries.
	Token string `json:"token"`

	Contacts []BatchContact `json:"contacts"`

	// ChargedMinor is perCallCost x len(Contacts), never the requested count.
	ChargedMinor int64  `json:"charged_minor"`
	Currency     string `json:"currency"`

	// BalanceMinor is the account balance after debit and any refund.
	BalanceMinor int64 `json:"balance_minor"`
}

// RequestBatch performs one dispatch tick.
//
// Preconditions: the campaign exists, belongs to accountID, is Active, and
// 1 <= requested <= the campaign's batch size. token may be empty; one is
// generated, but schedulers should pass their own for safe retries.
func (s *Service) RequestBatch(ctx context.Context, accountID, campaignID string, requested int, token string) (Batch, error) {
	if accountID == "" || campaignID == "" {
		return Batch{}, ErrInvalidArgument
	}
	if requested < 1 {
		return Batch{}, fmt.Errorf("%w: requested count must be positive", ErrInvalidArgument)
	}
	if token == "" {
		token = uuid.NewString()
	}

	c, err := s.repo.Get(ctx, accountID, campaignID)
	if err != nil {
		return Batch{}, err
	}
	if !c.Active {
		return Batch{}, ErrCampaignNotActive
	}
	if requested > c.BatchSize {
		return Batch{}, fmt.Errorf("%w: requested count %d exceeds campaign batch size %d", ErrInvalidArgument, requested, c.BatchSize)
	}

	now := s.clock().UTC()
	quote, err := s.rates.PerCallRate(ctx, accountID, c.FromNumber, now)
	if err != nil {
		return Batch{}, err
	}

	// Step 1-3: reserve funds for the full request up front. The debit is the
	// linearization point; two racing ticks can never both pass a balance
	// check and then drive it below zero.
	required := quote.PricePerCallMinor * int64(requested)
	_, bal, err := s.ledger.Debit(ctx, accountID, ledger.DebitRequest{
		AmountMinor:    required,
		Currency:       quote.Currency,
		ExternalRef:    campaignID,
		IdempotencyKey: token + ":debit",
	})
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			s.autoPause(ctx, accountID, campaignID, "insufficient funds for dispatch tick")
			return Batch{}, ledger.ErrInsufficientFunds
		}
		return Batch{}, err
	}

	// Retried tick: if this token already claimed contacts, return the same
	// batch instead of claiming fresh ones against the idempotent debit.
	claimed, err := s.repo.FindByBatchToken(ctx, campaignID, token)
	if err != nil {
		return Batch{}, err
	}
	if len(claimed) == 0 {
		// Step 4: claim the next pending contacts. Selection and marking are
		// one conditional update keyed on status, so no contact is ever
		// served twice.
		claimed, err = s.repo.ClaimPending(ctx, campaignID, requested, token, now)
	}
	if err != nil {
		// Keep the reservation. The debit for this token is already posted;
		// a same-token retry reuses it idempotently and then settles against
		// whatever it claims. Refunding here would let that retry release a
		// batch with a net charge of zero.
		return Batch{}, fmt.Errorf("dispatch: claim failed, funds held for retry: %w", err)
	}

	if len(claimed) == 0 {
		// All contacts already dispatched: cheap no-op, not a balance leak.
		_, bal, err = s.refund(ctx, accountID, campaignID, required, quote.Currency, token)
		if err != nil {
			return Batch{}, err
		}
		return Batch{CampaignID: campaignID, Token: token, Currency: quote.Currency, BalanceMinor: bal.BalanceMinor}, ErrCampaignExhausted
	}

	// Step 4b: charge only for contacts actually released.
	charged := quote.PricePerCallMinor * int64(len(claimed))
	if excess := required - charged; excess > 0 {
		_, bal, err = s.refund(ctx, accountID, campaignID, excess, quote.Currency, token)
		if err != nil {
			return Batch{}, err
		}
	}

	// Step 5: stamp the dispatch time. Advisory; a failure here must not
	// undo an otherwise completed batch.
	if err := s.repo.TouchDispatch(ctx, campaignID, now); err != nil {
		logger.From(ctx).Warn("dispatch timestamp update failed", "campaign_id", campaignID, "err", err)
	}

	out := Batch{
		CampaignID:   campaignID,
		Token:        token,
		Contacts:     make([]BatchContact, 0, len(claimed)),
		ChargedMinor: charged,
		Currency:     quote.Currency,
		BalanceMinor: bal.BalanceMinor,
	}
	for _, ct := range claimed {
		out.Contacts = append(out.Contacts, BatchContact{
			Contact: ct,
			Message: campaign.RenderMessage(c.MessageTemplate, ct.Name),
		})
	}
	return out, nil
}

func (s *Service) refund(ctx context.Context, accountID, campaignID string, amount int64, currency, token string) (ledger.Entry, ledger.Balance, error) {
	return s.ledger.Refund(ctx, accountID, ledger.RefundRequest{
		AmountMinor:    amount,
		Currency:       currency,
		ExternalRef:    campaignID,
		IdempotencyKey: token + ":refund",
	})
}

func (s *Service) autoPause(ctx context.Context, accountID, campaignID, reason string) {
	if err := s.lifecycle.AutoPause(ctx, campaignID); err != nil {
		logger.From(ctx).Error("auto-pause failed", "campaign_id", campaignID, "err", err)
		return
	}
	logger.From(ctx).Info("campaign auto-paused", "campaign_id", campaignID, "reason", reason)
	if s.audit != nil {
		if err := s.audit.LogAutoPause(ctx, accountID, campaignID, reason); err != nil {
			logger.From(ctx).Warn("audit append failed", "err", err)
		}
	}
}
