package pricing

import (
	"context"
	"time"
)

// MemoryRepo is a simple in-memory repository useful for tests and early development.
// It is account-scoped and supports exact prefix matches; the service walks
// prefixes from most to least specific.
//
// NOTE: This is not intended for production; replace with Postgres implementation.
type MemoryRepo struct {
	Rates []CallRate
}

func (r *MemoryRepo) FindCallRate(ctx context.Context, accountID, prefix string, at time.Time) (CallRate, bool, error) {
	_ = ctx

	// Prefer the most recent effective rate row.
	var best CallRate
	found := false

	for _, c := range r.Rates {
		if c.AccountID != accountID {
			continue
		}
		if c.Prefix != prefix {
			continue
		}
		if c.Status != RateStatusActive {
			continue
		}
		if at.Before(c.EffectiveFrom) {
			continue
		}
		if c.EffectiveTo != nil && !at.Before(*c.EffectiveTo) {
			continue
		}

		if !found || c.EffectiveFrom.After(best.EffectiveFrom) {
			best = c
			found = true
		}
	}

	return best, found, nil
}
