package ledger

import (
	"context"
	"sync"
	"time"
)

// lockTable hands out per-wallet mutation rights. Each wallet maps to a
// one-slot channel acting as a mutex that supports bounded and cancellable
// acquisition. Unrelated wallets never contend.
type lockTable struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{slots: make(map[string]chan struct{})}
}

// acquire blocks until the wallet's slot is free, the context is cancelled or
// the timeout elapses. On success it returns the release function.
func (t *lockTable) acquire(ctx context.Context, userID string, timeout time.Duration) (func(), error) {
	t.mu.Lock()
	slot, ok := t.slots[userID]
	if !ok {
		slot = make(chan struct{}, 1)
		t.slots[userID] = slot
	}
	t.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrLockTimeout
	}
}
