package pricing

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Service resolves the per-call price used by campaign start checks and the
// batch dispatcher.
//
// Contract:
// - Account-scoped rate lookup by dialed-number prefix bucket.
// - Falls back to the configured default rate when no row matches, so
//   resolution never blocks dispatching.
// - Pure calculation + repository lookups; no provider SDK calls.
type Service struct {
	repo  RateRepository
	clock func() time.Time

	defaultRateMinor int64
	currency         string
}

// RateRepository abstracts rate persistence.
// Implementation can be Postgres, cached, etc.
type RateRepository interface {
	FindCallRate(ctx context.Context, accountID, prefix string, at time.Time) (CallRate, bool, error)
}

func NewService(repo RateRepository, defaultRateMinor int64, currency string) *Service {
	return &Service{
		repo:             repo,
		clock:            time.Now,
		defaultRateMinor: defaultRateMinor,
		currency:         currency,
	}
}

var ErrInvalidRateReq = errors.New("pricing: invalid rate request")

// Quote is the resolved price of one call.
type Quote struct {
	AccountID         string `json:"account_id"`
	Prefix            string `json:"prefix,omitempty"`
	Currency          string `json:"currency"`
	PricePerCallMinor int64  `json:"price_per_call_minor"`
}

// PerCallRate resolves the price of one call for an account. destination is
// the dialed number (or empty for the account default); the longest rate
// prefix containing it wins.
func (s *Service) PerCallRate(ctx context.Context, accountID, destination string, at time.Time) (Quote, error) {
	if accountID == "" {
		return Quote{}, ErrInvalidRateReq
	}
	if at.IsZero() {
		at = s.clock().UTC()
	}

	if s.repo != nil {
		for prefix := destination; prefix != ""; prefix = prefix[:len(prefix)-1] {
			r, ok, err := s.repo.FindCallRate(ctx, accountID, prefix, at)
			if err != nil {
				return Quote{}, err
			}
			if ok {
				return Quote{
					AccountID:         accountID,
					Prefix:            r.Prefix,
					Currency:          r.Currency,
					PricePerCallMinor: r.PricePerCallMinor,
				}, nil
			}
		}
		// catch-all row with empty prefix
		r, ok, err := s.repo.FindCallRate(ctx, accountID, "", at)
		if err != nil {
			return Quote{}, err
		}
		if ok {
			return Quote{
				AccountID:         accountID,
				Currency:          r.Currency,
				PricePerCallMinor: r.PricePerCallMinor,
			}, nil
		}
	}

	return Quote{
		AccountID:         accountID,
		Currency:          s.currency,
		PricePerCallMinor: s.defaultRateMinor,
	}, nil
}

// NormalizePrefix strips spacing so "+1 415" and "+1415" bucket identically.
func NormalizePrefix(p string) string {
	return strings.ReplaceAll(strings.TrimSpace(p), " ", "")
}
