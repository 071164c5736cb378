package campaign

import (
	"context"
	"errors"
	"testing"

	"dialer-platform/internal/ledger"
	"dialer-platform/internal/moderation"
	"dialer-platform/internal/numberpolicy"
	"dialer-platform/internal/pricing"
)

const testAccount = "acc-1"

func newService(t *testing.T) (*Service, *MemoryRepo, *ledger.MemoryRepo, *numberpolicy.MemoryBlocklist) {
	t.Helper()
	repo := NewMemoryRepo()
	ledgerRepo := ledger.NewMemoryRepo()
	bl := numberpolicy.NewMemoryBlocklist()
	svc := NewService(
		repo,
		ledger.NewService(ledgerRepo),
		pricing.NewService(&pricing.MemoryRepo{}, 25, "USD"),
		moderation.NewService(nil, nil),
		bl,
	)
	return svc, repo, ledgerRepo, bl
}

func validCreate() CreateRequest {
	return CreateRequest{
		Name:            "spring promo",
		FromNumber:      "+15551230000",
		MessageTemplate: "hi {name}, call us back",
		BatchSize:       10,
		Contacts: []ContactInput{
			{Name: "Ann", Phone: "+15550000001"},
			{Name: "Bob", Phone: "+15550000002"},
		},
	}
}

func TestCreate_StartsPaused(t *testing.T) {
	svc, _, _, _ := newService(t)

	c, contacts, err := svc.Create(context.Background(), testAccount, validCreate())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Active {
		t.Fatalf("new campaign must start paused")
	}
	if len(contacts) != 2 {
		t.Fatalf("expected 2 contacts, got %d", len(contacts))
	}
	for _, ct := range contacts {
		if ct.Status != ContactStatusPending {
			t.Fatalf("contact %s not pending", ct.ID)
		}
	}
}

func TestCreate_RejectsInvalidInput(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()

	req := validCreate()
	req.BatchSize = 0
	if _, _, err := svc.Create(ctx, testAccount, req); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for batch size 0, got %v", err)
	}

	req = validCreate()
	req.BatchSize = 101
	if _, _, err := svc.Create(ctx, testAccount, req); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for batch size 101, got %v", err)
	}

	req = validCreate()
	req.MessageTemplate = ""
	if _, _, err := svc.Create(ctx, testAccount, req); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty template, got %v", err)
	}

	req = validCreate()
	req.Contacts = append(req.Contacts, ContactInput{Name: "NoPhone"})
	if _, _, err := svc.Create(ctx, testAccount, req); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for missing phone, got %v", err)
	}
}

func TestCreate_FlaggedMessageRejected(t *testing.T) {
	svc, _, _, _ := newService(t)

	req := validCreate()
	req.MessageTemplate = "call about foo now"
	req.ForbiddenWords = []string{"foo"}

	_, _, err := svc.Create(context.Background(), testAccount, req)
	if !errors.Is(err, ErrMessageFlagged) {
		t.Fatalf("expected ErrMessageFlagged, got %v", err)
	}
}

func TestCreate_BlockedNumberRejected(t *testing.T) {
	svc, _, _, bl := newService(t)
	ctx := context.Background()

	if err := bl.Add(ctx, "+15551230000"); err != nil {
		t.Fatalf("blocklist add: %v", err)
	}

	_, _, err := svc.Create(ctx, testAccount, validCreate())
	if !errors.Is(err, ErrNumberBlocked) {
		t.Fatalf("expected ErrNumberBlocked, got %v", err)
	}
}

func TestCreate_DeduplicatesContactsPerCampaign(t *testing.T) {
	svc, repo, _, _ := newService(t)

	req := validCreate()
	req.Contacts = []ContactInput{
		{Name: "Ann", Phone: "+15550000001"},
		{Name: "Ann again", Phone: "+15550000001"},
		{Name: "Bob", Phone: "+15550000002"},
	}

	c, contacts, err := svc.Create(context.Background(), testAccount, req)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(contacts) != 2 {
		t.Fatalf("expected duplicates dropped, got %d contacts", len(contacts))
	}
	stored := repo.Contacts(c.ID)
	if len(stored) != 2 || stored[0].Name != "Ann" {
		t.Fatalf("first occurrence must win, got %+v", stored)
	}
}

func TestStart_RequiresFundsForOneCall(t *testing.T) {
	svc, _, ledgerRepo, _ := newService(t)
	ctx := context.Background()

	c, _, err := svc.Create(ctx, testAccount, validCreate())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Balance below one call's cost: Start rejected, stays paused.
	ledgerRepo.Seed(testAccount, "USD", 24)
	if _, err := svc.Start(ctx, testAccount, c.ID); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	got, err := svc.Get(ctx, testAccount, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Active {
		t.Fatalf("rejected start must leave campaign paused")
	}

	// Top up and retry.
	ledgerRepo.Seed(testAccount, "USD", 25)
	started, err := svc.Start(ctx, testAccount, c.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !started.Active {
		t.Fatalf("campaign should be active after start")
	}
}

func TestPause_AlwaysAllowed(t *testing.T) {
	svc, _, ledgerRepo, _ := newService(t)
	ctx := context.Background()

	c, _, err := svc.Create(ctx, testAccount, validCreate())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ledgerRepo.Seed(testAccount, "USD", 1000)
	if _, err := svc.Start(ctx, testAccount, c.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	paused, err := svc.Pause(ctx, testAccount, c.ID)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if paused.Active {
		t.Fatalf("campaign should be paused")
	}

	// Pausing again is a no-op.
	if _, err := svc.Pause(ctx, testAccount, c.ID); err != nil {
		t.Fatalf("repeated pause: %v", err)
	}
}

func TestRecordOutcome_ForwardOnly(t *testing.T) {
	svc, repo, _, _ := newService(t)
	ctx := context.Background()

	c, contacts, err := svc.Create(ctx, testAccount, validCreate())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ct := contacts[0]

	// Pending contact cannot jump straight to answered.
	err = svc.RecordOutcome(ctx, testAccount, c.ID, ct.ID, ContactStatusAnswered)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for pending contact, got %v", err)
	}

	if _, err := repo.ClaimPending(ctx, c.ID, 1, "t1", c.CreatedAt); err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := svc.RecordOutcome(ctx, testAccount, c.ID, ct.ID, ContactStatusAnswered); err != nil {
		t.Fatalf("record outcome: %v", err)
	}

	// Terminal states never revert or change.
	err = svc.RecordOutcome(ctx, testAccount, c.ID, ct.ID, ContactStatusUnanswered)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for terminal contact, got %v", err)
	}

	// Invalid target statuses rejected outright.
	err = svc.RecordOutcome(ctx, testAccount, c.ID, ct.ID, ContactStatusPending)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestProgress_CountsByStatus(t *testing.T) {
	svc, repo, _, _ := newService(t)
	ctx := context.Background()

	c, _, err := svc.Create(ctx, testAccount, validCreate())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.ClaimPending(ctx, c.ID, 1, "t1", c.CreatedAt); err != nil {
		t.Fatalf("claim: %v", err)
	}

	counts, err := svc.Progress(ctx, testAccount, c.ID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if counts[ContactStatusPending] != 1 || counts[ContactStatusDispatched] != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}
