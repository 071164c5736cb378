package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"dialer-platform/internal/audit"
	"dialer-platform/internal/campaign"
	"dialer-platform/internal/ledger"
	"dialer-platform/internal/moderation"
	"dialer-platform/internal/numberpolicy"
	"dialer-platform/internal/pricing"
)

const (
	testAccount = "acc-1"
	testRate    = int64(25)
)

type fixture struct {
	repo       *campaign.MemoryRepo
	ledgerRepo *ledger.MemoryRepo
	auditRepo  *audit.MemoryRepo
	campaigns  *campaign.Service
	svc        *Service
}

func newFixture(t *testing.T, balanceMinor int64, contactCount int, batchSize int) (*fixture, campaign.Campaign) {
	t.Helper()

	repo := campaign.NewMemoryRepo()
	ledgerRepo := ledger.NewMemoryRepo()
	auditRepo := audit.NewMemoryRepo()

	led := ledger.NewService(ledgerRepo)
	rates := pricing.NewService(&pricing.MemoryRepo{}, testRate, "USD")
	mod := moderation.NewService(nil, nil)
	campaigns := campaign.NewService(repo, led, rates, mod, numberpolicy.NewMemoryBlocklist())

	ledgerRepo.Seed(testAccount, "USD", balanceMinor)

	var contacts []campaign.ContactInput
	for i := 0; i < contactCount; i++ {
		contacts = append(contacts, campaign.ContactInput{
			Name:  fmt.Sprintf("Contact %d", i),
			Phone: fmt.Sprintf("+1555000%04d", i),
		})
	}

	c, _, err := campaigns.Create(context.Background(), testAccount, campaign.CreateRequest{
		Name:            "test",
		FromNumber:      "+15551230000",
		MessageTemplate: "hello {name}",
		BatchSize:       batchSize,
		Contacts:        contacts,
	})
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	if _, err := campaigns.Start(context.Background(), testAccount, c.ID); err != nil {
		t.Fatalf("start campaign: %v", err)
	}

	return &fixture{
		repo:       repo,
		ledgerRepo: ledgerRepo,
		auditRepo:  auditRepo,
		campaigns:  campaigns,
		svc:        NewService(repo, campaigns, led, rates, audit.NewService(auditRepo)),
	}, c
}

func (f *fixture) balance(t *testing.T) int64 {
	t.Helper()
	b, err := f.ledgerRepo.Balance(context.Background(), testAccount)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return b.BalanceMinor
}

func TestRequestBatch_TwoBatchesThenExhausted(t *testing.T) {
	f, c := newFixture(t, 1000, 10, 10)
	ctx := context.Background()

	seen := make(map[string]bool)

	b1, err := f.svc.RequestBatch(ctx, testAccount, c.ID, 5, "t1")
	if err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if len(b1.Contacts) != 5 {
		t.Fatalf("expected 5 contacts, got %d", len(b1.Contacts))
	}
	for _, ct := range b1.Contacts {
		seen[ct.ID] = true
	}

	b2, err := f.svc.RequestBatch(ctx, testAccount, c.ID, 5, "t2")
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if len(b2.Contacts) != 5 {
		t.Fatalf("expected 5 contacts, got %d", len(b2.Contacts))
	}
	for _, ct := range b2.Contacts {
		if seen[ct.ID] {
			t.Fatalf("contact %s served twice", ct.ID)
		}
		seen[ct.ID] = true
	}
	if len(seen) != 10 {
		t.Fatalf("expected all 10 distinct contacts, got %d", len(seen))
	}

	// Third tick: exhausted, fully refunded, no balance leak.
	before := f.balance(t)
	_, err = f.svc.RequestBatch(ctx, testAccount, c.ID, 5, "t3")
	if !errors.Is(err, ErrCampaignExhausted) {
		t.Fatalf("expected ErrCampaignExhausted, got %v", err)
	}
	if got := f.balance(t); got != before {
		t.Fatalf("exhausted tick leaked balance: %d -> %d", before, got)
	}
}

func TestRequestBatch_ChargesOnlyReturnedCount(t *testing.T) {
	f, c := newFixture(t, 1000, 3, 10)
	ctx := context.Background()

	b, err := f.svc.RequestBatch(ctx, testAccount, c.ID, 5, "t1")
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(b.Contacts) != 3 {
		t.Fatalf("expected 3 contacts, got %d", len(b.Contacts))
	}
	if b.ChargedMinor != 3*testRate {
		t.Fatalf("expected charge %d, got %d", 3*testRate, b.ChargedMinor)
	}
	// 1000 - 3*25 = 925: the two undelivered slots were refunded.
	if b.BalanceMinor != 1000-3*testRate {
		t.Fatalf("expected balance %d, got %d", 1000-3*testRate, b.BalanceMinor)
	}
	if got := f.balance(t); got != b.BalanceMinor {
		t.Fatalf("reported balance %d disagrees with ledger %d", b.BalanceMinor, got)
	}
}

func TestRequestBatch_InsufficientFundsAutoPauses(t *testing.T) {
	// Enough for one call, tick asks for five.
	f, c := newFixture(t, testRate, 10, 10)
	ctx := context.Background()

	_, err := f.svc.RequestBatch(ctx, testAccount, c.ID, 5, "t1")
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	got, err := f.campaigns.Get(ctx, testAccount, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Active {
		t.Fatalf("campaign should be auto-paused")
	}
	if f.balance(t) != testRate {
		t.Fatalf("failed tick must not charge, balance %d", f.balance(t))
	}

	// Auto-pause leaves an audit trail.
	events := f.auditRepo.Events()
	if len(events) != 1 || events[0].Type != audit.EventTypeAutoPause {
		t.Fatalf("expected one auto-pause audit event, got %+v", events)
	}

	// A paused campaign never releases contacts.
	_, err = f.svc.RequestBatch(ctx, testAccount, c.ID, 1, "t2")
	if !errors.Is(err, ErrCampaignNotActive) {
		t.Fatalf("expected ErrCampaignNotActive, got %v", err)
	}
}

func TestRequestBatch_ValidatesCountAgainstPolicy(t *testing.T) {
	f, c := newFixture(t, 1000, 10, 5)
	ctx := context.Background()

	if _, err := f.svc.RequestBatch(ctx, testAccount, c.ID, 0, "t1"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for zero count, got %v", err)
	}
	if _, err := f.svc.RequestBatch(ctx, testAccount, c.ID, 6, "t1"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument above batch size, got %v", err)
	}
	if _, err := f.svc.RequestBatch(ctx, "other-account", c.ID, 1, "t1"); !errors.Is(err, campaign.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign account, got %v", err)
	}
}

func TestRequestBatch_RetryWithSameTokenReturnsSameBatch(t *testing.T) {
	f, c := newFixture(t, 1000, 10, 10)
	ctx := context.Background()

	b1, err := f.svc.RequestBatch(ctx, testAccount, c.ID, 4, "tick-7")
	if err != nil {
		t.Fatalf("batch: %v", err)
	}

	// Same token: the debit is idempotent and the claimed contacts are
	// reconstructed, not re-claimed.
	b2, err := f.svc.RequestBatch(ctx, testAccount, c.ID, 4, "tick-7")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(b2.Contacts) != len(b1.Contacts) {
		t.Fatalf("retry returned %d contacts, want %d", len(b2.Contacts), len(b1.Contacts))
	}
	for i := range b1.Contacts {
		if b1.Contacts[i].ID != b2.Contacts[i].ID {
			t.Fatalf("retry returned a different batch")
		}
	}
	if got := f.balance(t); got != 1000-4*testRate {
		t.Fatalf("retry double-charged: balance %d", got)
	}
}

// flakyClaimRepo fails the first n ClaimPending calls, then delegates.
type flakyClaimRepo struct {
	campaign.Repository
	mu       sync.Mutex
	failures int
}

func (r *flakyClaimRepo) ClaimPending(ctx context.Context, campaignID string, limit int, batchToken string, at time.Time) ([]campaign.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		return nil, errors.New("storage unavailable")
	}
	return r.Repository.ClaimPending(ctx, campaignID, limit, batchToken, at)
}

func TestRequestBatch_ClaimFailureHoldsFundsForRetry(t *testing.T) {
	f, c := newFixture(t, 1000, 10, 10)
	ctx := context.Background()

	led := ledger.NewService(f.ledgerRepo)
	rates := pricing.NewService(&pricing.MemoryRepo{}, testRate, "USD")
	flaky := &flakyClaimRepo{Repository: f.repo, failures: 1}
	svc := NewService(flaky, f.campaigns, led, rates, audit.NewService(f.auditRepo))

	if _, err := svc.RequestBatch(ctx, testAccount, c.ID, 5, "tick-9"); err == nil {
		t.Fatalf("expected the tick to fail on claim")
	}
	// The reservation stays posted after a failed claim.
	if got := f.balance(t); got != 1000-5*testRate {
		t.Fatalf("expected %d held after failed claim, balance %d", 5*testRate, got)
	}

	// The same-token retry settles against the held funds: one charge total.
	b, err := svc.RequestBatch(ctx, testAccount, c.ID, 5, "tick-9")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(b.Contacts) != 5 {
		t.Fatalf("retry released %d contacts, want 5", len(b.Contacts))
	}
	if b.ChargedMinor != 5*testRate {
		t.Fatalf("retry reported charge %d, want %d", b.ChargedMinor, 5*testRate)
	}
	if got := f.balance(t); got != 1000-5*testRate {
		t.Fatalf("retry must charge exactly once: balance %d, want %d", got, 1000-5*testRate)
	}
	if b.BalanceMinor != 1000-5*testRate {
		t.Fatalf("reported balance %d disagrees with ledger", b.BalanceMinor)
	}
}

func TestRequestBatch_ConcurrentTicks_NoOverlapSingleDebit(t *testing.T) {
	// Balance covers exactly one 5-call batch.
	f, c := newFixture(t, 5*testRate, 10, 10)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]Batch, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.RequestBatch(ctx, testAccount, c.ID, 5, fmt.Sprintf("race-%d", i))
		}(i)
	}
	wg.Wait()

	var okIdx = -1
	var failures int
	for i := range errs {
		switch {
		case errs[i] == nil:
			okIdx = i
		case errors.Is(errs[i], ledger.ErrInsufficientFunds):
			failures++
		default:
			t.Fatalf("unexpected error: %v", errs[i])
		}
	}
	if okIdx == -1 || failures != 1 {
		t.Fatalf("expected exactly one winner, got errs=%v", errs)
	}
	if len(results[okIdx].Contacts) != 5 {
		t.Fatalf("winner got %d contacts", len(results[okIdx].Contacts))
	}
	if got := f.balance(t); got != 0 {
		t.Fatalf("final balance reflects more than one debit: %d", got)
	}
}

func TestRequestBatch_ConcurrentTicks_DisjointContacts(t *testing.T) {
	f, c := newFixture(t, 100000, 20, 10)
	ctx := context.Background()

	const workers = 4
	var wg sync.WaitGroup
	batches := make([]Batch, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := f.svc.RequestBatch(ctx, testAccount, c.ID, 5, fmt.Sprintf("w-%d", i))
			if err != nil && !errors.Is(err, ErrCampaignExhausted) {
				t.Errorf("worker %d: %v", i, err)
				return
			}
			batches[i] = b
		}(i)
	}
	wg.Wait()

	seen := make(map[string]int)
	total := 0
	for _, b := range batches {
		for _, ct := range b.Contacts {
			seen[ct.ID]++
			total++
		}
	}
	for id, n := range seen {
		if n > 1 {
			t.Fatalf("contact %s served %d times", id, n)
		}
	}
	if total != 20 {
		t.Fatalf("expected all 20 contacts served exactly once, got %d", total)
	}

	// Charged amount must equal contacts served.
	if got := f.balance(t); got != 100000-20*testRate {
		t.Fatalf("expected balance %d, got %d", 100000-20*testRate, got)
	}
}
