package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// SeedBalance is a test helper that seeds a wallet balance when using the
// in-memory store.
func SeedBalance(s Store, userID string, amount decimal.Decimal) {
	if mem, ok := s.(*memoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		w := mem.materializeLocked(userID)
		w.Balance = amount
		mem.wallets[userID] = w
	}
}

// SetClock is a test helper that pins the in-memory store's clock.
func SetClock(s Store, now func() time.Time) {
	if mem, ok := s.(*memoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.now = now
	}
}
