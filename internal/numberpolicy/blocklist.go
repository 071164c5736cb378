package numberpolicy

import (
	"context"
	"sync"
)

// Blocklist is the global caller-ID blocklist. Exact string match only.
//
// Add and Remove are idempotent set operations; the set never holds
// duplicates. Implementations must use additive/subtractive updates rather
// than read-modify-write of the whole set, so concurrent admin edits are
// never lost.
type Blocklist interface {
	Add(ctx context.Context, number string) error
	Remove(ctx context.Context, number string) error
	Contains(ctx context.Context, number string) (bool, error)
	List(ctx context.Context) ([]string, error)
}

// MemoryBlocklist is an in-process blocklist useful for tests and early
// development.
type MemoryBlocklist struct {
	mu      sync.RWMutex
	numbers map[string]struct{}
}

func NewMemoryBlocklist() *MemoryBlocklist {
	return &MemoryBlocklist{numbers: make(map[string]struct{})}
}

func (b *MemoryBlocklist) Add(ctx context.Context, number string) error {
	if number == "" {
		return ErrInvalidNumber
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.numbers[number] = struct{}{}
	return nil
}

func (b *MemoryBlocklist) Remove(ctx context.Context, number string) error {
	if number == "" {
		return ErrInvalidNumber
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.numbers, number)
	return nil
}

func (b *MemoryBlocklist) Contains(ctx context.Context, number string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.numbers[number]
	return ok, nil
}

func (b *MemoryBlocklist) List(ctx context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.numbers))
	for n := range b.numbers {
		out = append(out, n)
	}
	return out, nil
}
