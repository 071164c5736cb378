package reporting

import (
	"context"
	"errors"
	"time"

	"dialer-platform/internal/campaign"
	"dialer-platform/internal/ledger"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
//
// IMPORTANT:
// - Methods must enforce account filtering.
// - Implementations should query immutable sources when possible (ledger
//   entries, contact status snapshots).

type Repository interface {
	ListLedger(ctx context.Context, accountID string, from, to time.Time, campaignID string) ([]ledger.Entry, error)
	ListContacts(ctx context.Context, accountID, campaignID string) ([]campaign.Contact, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) CampaignSummary(ctx context.Context, req CampaignSummaryRequest) (CampaignSummary, error) {
	if req.AccountID == "" || req.CampaignID == "" {
		return CampaignSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CampaignSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListContacts(ctx, req.AccountID, req.CampaignID)
	if err != nil {
		return CampaignSummary{}, err
	}

	out := CampaignSummary{AccountID: req.AccountID, CampaignID: req.CampaignID}
	for _, ct := range rows {
		out.TotalContacts++
		switch ct.Status {
		case campaign.ContactStatusPending:
			out.PendingContacts++
		case campaign.ContactStatusDispatched:
			out.DispatchedContacts++
		case campaign.ContactStatusAnswered:
			out.AnsweredContacts++
		case campaign.ContactStatusUnanswered:
			out.UnansweredContacts++
		}
	}

	attempted := out.DispatchedContacts + out.AnsweredContacts + out.UnansweredContacts
	if attempted > 0 {
		out.AnswerRate = float64(out.AnsweredContacts) / float64(attempted)
	}
	if out.TotalContacts > 0 {
		out.CompletionRate = float64(attempted) / float64(out.TotalContacts)
	}
	return out, nil
}

func (s *Service) SpendSummary(ctx context.Context, req SpendSummaryRequest) (SpendSummary, error) {
	if req.AccountID == "" {
		return SpendSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return SpendSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return SpendSummary{}, errors.New("reporting: repository not configured")
	}

	entries, err := s.repo.ListLedger(ctx, req.AccountID, req.Range.From, req.Range.To, req.CampaignID)
	if err != nil {
		return SpendSummary{}, err
	}

	out := SpendSummary{AccountID: req.AccountID, CampaignID: req.CampaignID, Currency: req.Currency}
	for _, e := range entries {
		// currency normalization: if request specified currency, filter; else populate from first row.
		if out.Currency == "" {
			out.Currency = e.Currency
		}
		if req.Currency != "" && e.Currency != req.Currency {
			continue
		}

		switch e.Type {
		case ledger.EntryTypeDebit:
			out.TotalDebitMinor += -e.AmountMinor
			out.DispatchDebitMinor += -e.AmountMinor
		case ledger.EntryTypeRefund:
			out.RefundMinor += e.AmountMinor
		case ledger.EntryTypeCredit:
			out.TotalCreditMinor += e.AmountMinor
			if e.ExternalRef == "admin_manual_credit" {
				out.AdminCreditMinor += e.AmountMinor
			}
		}
	}
	// Refunds reverse dispatch debits, so net spend subtracts them.
	out.DispatchDebitMinor -= out.RefundMinor
	out.NetDeltaMinor = out.TotalCreditMinor + out.RefundMinor - out.TotalDebitMinor
	if out.Currency == "" {
		out.Currency = "UNKNOWN"
	}
	return out, nil
}
