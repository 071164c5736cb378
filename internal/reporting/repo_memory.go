package reporting

import (
	"context"
	"errors"
	"sync"
	"time"

	"dialer-platform/internal/campaign"
	"dialer-platform/internal/ledger"
)

// MemoryRepo is a simple in-memory reporting repository for tests and early
// development. It enforces account isolation on reads.

type MemoryRepo struct {
	mu sync.Mutex

	Entries  []ledger.Entry
	Contacts []campaign.Contact

	// CampaignAccounts maps campaign_id to its owning account, mirroring the
	// join a SQL implementation would perform.
	CampaignAccounts map[string]string
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{CampaignAccounts: map[string]string{}} }

func (r *MemoryRepo) ListLedger(ctx context.Context, accountID string, from, to time.Time, campaignID string) ([]ledger.Entry, error) {
	if accountID == "" {
		return nil, errors.New("account_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ledger.Entry, 0)
	for _, e := range r.Entries {
		if e.AccountID != accountID {
			continue
		}
		if !e.CreatedAt.IsZero() {
			if e.CreatedAt.Before(from) || !e.CreatedAt.Before(to) {
				continue
			}
		}
		if campaignID != "" && e.ExternalRef != campaignID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *MemoryRepo) ListContacts(ctx context.Context, accountID, campaignID string) ([]campaign.Contact, error) {
	if accountID == "" || campaignID == "" {
		return nil, errors.New("account_id and campaign_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.CampaignAccounts[campaignID]; ok && owner != accountID {
		return nil, campaign.ErrNotFound
	}
	out := make([]campaign.Contact, 0)
	for _, ct := range r.Contacts {
		if ct.CampaignID != campaignID {
			continue
		}
		out = append(out, ct)
	}
	return out, nil
}
