package campaign

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory repository useful for tests and early development.
// The mutex makes ClaimPending and TransitionContact single atomic units,
// matching the conditional-update contract of the Postgres implementation.
//
// NOTE: Not intended for production.
type MemoryRepo struct {
	mu        sync.Mutex
	campaigns map[string]Campaign
	contacts  map[string][]Contact // campaign_id -> contacts in position order
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		campaigns: make(map[string]Campaign),
		contacts:  make(map[string][]Contact),
	}
}

func (r *MemoryRepo) Create(ctx context.Context, c Campaign, contacts []Contact) (Campaign, []Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Enforce (phone, campaign) uniqueness: first occurrence wins.
	seen := make(map[string]struct{}, len(contacts))
	kept := make([]Contact, 0, len(contacts))
	for _, ct := range contacts {
		if _, dup := seen[ct.Phone]; dup {
			continue
		}
		seen[ct.Phone] = struct{}{}
		ct.Position = len(kept)
		kept = append(kept, ct)
	}

	r.campaigns[c.ID] = c
	r.contacts[c.ID] = kept
	return c, kept, nil
}

func (r *MemoryRepo) Get(ctx context.Context, accountID, campaignID string) (Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[campaignID]
	if !ok || c.AccountID != accountID {
		return Campaign{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) ListByAccount(ctx context.Context, accountID string) ([]Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Campaign
	for _, c := range r.campaigns {
		if c.AccountID == accountID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) SetActive(ctx context.Context, campaignID string, active bool, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[campaignID]
	if !ok {
		return ErrNotFound
	}
	c.Active = active
	c.UpdatedAt = at
	r.campaigns[campaignID] = c
	return nil
}

func (r *MemoryRepo) TouchDispatch(ctx context.Context, campaignID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[campaignID]
	if !ok {
		return ErrNotFound
	}
	t := at
	c.LastDispatchAt = &t
	c.UpdatedAt = at
	r.campaigns[campaignID] = c
	return nil
}

func (r *MemoryRepo) ClaimPending(ctx context.Context, campaignID string, limit int, batchToken string, at time.Time) ([]Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.campaigns[campaignID]; !ok {
		return nil, ErrNotFound
	}

	list := r.contacts[campaignID]
	var claimed []Contact
	for i := range list {
		if len(claimed) >= limit {
			break
		}
		if list[i].Status != ContactStatusPending {
			continue
		}
		list[i].Status = ContactStatusDispatched
		list[i].BatchToken = batchToken
		list[i].UpdatedAt = at
		claimed = append(claimed, list[i])
	}
	r.contacts[campaignID] = list
	return claimed, nil
}

func (r *MemoryRepo) FindByBatchToken(ctx context.Context, campaignID, batchToken string) ([]Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if batchToken == "" {
		return nil, nil
	}
	var out []Contact
	for _, ct := range r.contacts[campaignID] {
		if ct.BatchToken == batchToken {
			out = append(out, ct)
		}
	}
	return out, nil
}

func (r *MemoryRepo) TransitionContact(ctx context.Context, campaignID, contactID string, from, to ContactStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.contacts[campaignID]
	for i := range list {
		if list[i].ID != contactID {
			continue
		}
		if list[i].Status != from {
			return ErrConflict
		}
		list[i].Status = to
		list[i].UpdatedAt = at
		r.contacts[campaignID] = list
		return nil
	}
	return ErrNotFound
}

func (r *MemoryRepo) CountByStatus(ctx context.Context, campaignID string) (map[ContactStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.campaigns[campaignID]; !ok {
		return nil, ErrNotFound
	}
	out := make(map[ContactStatus]int)
	for _, ct := range r.contacts[campaignID] {
		out[ct.Status]++
	}
	return out, nil
}

// Contacts returns a copy of a campaign's contact list in position order. Tests only.
func (r *MemoryRepo) Contacts(campaignID string) []Contact {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.contacts[campaignID]
	out := make([]Contact, len(list))
	copy(out, list)
	return out
}
