package numberpolicy

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryBlocklist_AddIsIdempotent(t *testing.T) {
	bl := NewMemoryBlocklist()
	ctx := context.Background()

	if err := bl.Add(ctx, "+15550001111"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := bl.Add(ctx, "+15550001111"); err != nil {
		t.Fatalf("repeated add: %v", err)
	}

	list, err := bl.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected blocklist of size 1, got %d", len(list))
	}
}

func TestMemoryBlocklist_ContainsExactMatch(t *testing.T) {
	bl := NewMemoryBlocklist()
	ctx := context.Background()

	if err := bl.Add(ctx, "+15550001111"); err != nil {
		t.Fatalf("add: %v", err)
	}

	ok, err := bl.Contains(ctx, "+15550001111")
	if err != nil || !ok {
		t.Fatalf("expected blocked, got ok=%v err=%v", ok, err)
	}
	// Exact string match only: prefixes and suffixes do not count.
	ok, err = bl.Contains(ctx, "+1555000111")
	if err != nil || ok {
		t.Fatalf("prefix must not match, got ok=%v err=%v", ok, err)
	}
}

func TestMemoryBlocklist_RemoveIsIdempotent(t *testing.T) {
	bl := NewMemoryBlocklist()
	ctx := context.Background()

	if err := bl.Add(ctx, "+15550001111"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := bl.Remove(ctx, "+15550001111"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	// Removing an absent number is a no-op.
	if err := bl.Remove(ctx, "+15550001111"); err != nil {
		t.Fatalf("repeated remove: %v", err)
	}

	ok, err := bl.Contains(ctx, "+15550001111")
	if err != nil || ok {
		t.Fatalf("expected unblocked, got ok=%v err=%v", ok, err)
	}
}

func TestMemoryBlocklist_RejectsEmptyNumber(t *testing.T) {
	bl := NewMemoryBlocklist()
	if err := bl.Add(context.Background(), ""); !errors.Is(err, ErrInvalidNumber) {
		t.Fatalf("expected ErrInvalidNumber, got %v", err)
	}
	if err := bl.Remove(context.Background(), ""); !errors.Is(err, ErrInvalidNumber) {
		t.Fatalf("expected ErrInvalidNumber, got %v", err)
	}
}
