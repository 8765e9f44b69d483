package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mbongo-pay/mbongo_pay/internal/user"
)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, Store, []string) {
	t.Helper()
	repo := user.NewMemoryRepository()
	ctx := context.Background()

	ids := make([]string, 3)
	for i := range ids {
		u := user.User{ID: uuid.NewString(), Name: "user", CreatedAt: time.Now().UTC()}
		if err := repo.Create(ctx, u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
		ids[i] = u.ID
	}

	store := NewMemoryStore()
	return NewEngine(store, repo, opts...), store, ids
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestEngineFundCreatesWalletAndEntry(t *testing.T) {
	eng, _, ids := newTestEngine(t)
	ctx := context.Background()

	res, err := eng.Fund(ctx, ids[0], dec("100"))
	if err != nil {
		t.Fatalf("fund failed: %v", err)
	}
	if res.Wallet.UserID != ids[0] {
		t.Fatalf("unexpected wallet owner %s", res.Wallet.UserID)
	}
	if !res.Wallet.Balance.Equal(dec("100")) {
		t.Fatalf("expected balance 100, got %s", res.Wallet.Balance)
	}
	if res.Entry.FromUserID != nil {
		t.Fatalf("fund entry must have no source, got %v", *res.Entry.FromUserID)
	}
	if res.Entry.Type != TypeFund || res.Entry.ToUserID != ids[0] || !res.Entry.Amount.Equal(dec("100")) {
		t.Fatalf("unexpected entry: %+v", res.Entry)
	}

	entries, err := eng.Transactions(ctx, ids[0])
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one entry, got %d", len(entries))
	}
}

func TestEngineFundRejectsNonPositiveAmounts(t *testing.T) {
	eng, _, ids := newTestEngine(t)
	ctx := context.Background()

	for _, amount := range []string{"0", "-5"} {
		if _, err := eng.Fund(ctx, ids[0], dec(amount)); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %s: expected ErrInvalidAmount, got %v", amount, err)
		}
	}

	if entries, _ := eng.Transactions(ctx, ids[0]); len(entries) != 0 {
		t.Fatalf("rejected fund must not append entries, got %d", len(entries))
	}
}

func TestEngineFundUnknownUser(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	if _, err := eng.Fund(context.Background(), uuid.NewString(), dec("10")); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestEngineTransfer(t *testing.T) {
	eng, store, ids := newTestEngine(t)
	ctx := context.Background()
	a, b := ids[0], ids[1]

	SeedBalance(store, a, dec("50"))

	res, err := eng.Transfer(ctx, a, b, dec("30"))
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if !res.From.Balance.Equal(dec("20")) {
		t.Fatalf("expected source balance 20, got %s", res.From.Balance)
	}
	if !res.To.Balance.Equal(dec("30")) {
		t.Fatalf("expected destination balance 30, got %s", res.To.Balance)
	}
	if res.Entry.Type != TypeTransfer || res.Entry.FromUserID == nil || *res.Entry.FromUserID != a || res.Entry.ToUserID != b {
		t.Fatalf("unexpected entry: %+v", res.Entry)
	}

	entries, err := eng.Transactions(ctx, a)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one entry, got %d", len(entries))
	}
}

func TestEngineTransferInsufficientBalanceIsNoop(t *testing.T) {
	eng, store, ids := newTestEngine(t)
	ctx := context.Background()
	a, b := ids[0], ids[1]

	SeedBalance(store, a, dec("10"))

	if _, err := eng.Transfer(ctx, a, b, dec("1000")); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	wa, err := eng.Balance(ctx, a)
	if err != nil {
		t.Fatalf("balance a: %v", err)
	}
	if !wa.Balance.Equal(dec("10")) {
		t.Fatalf("source balance changed: %s", wa.Balance)
	}
	wb, err := eng.Balance(ctx, b)
	if err != nil {
		t.Fatalf("balance b: %v", err)
	}
	if !wb.Balance.IsZero() {
		t.Fatalf("destination balance changed: %s", wb.Balance)
	}

	for _, id := range []string{a, b} {
		if entries, _ := eng.Transactions(ctx, id); len(entries) != 0 {
			t.Fatalf("failed transfer must not append entries for %s", id)
		}
	}
}

func TestEngineTransferToSelf(t *testing.T) {
	eng, store, ids := newTestEngine(t)
	ctx := context.Background()

	SeedBalance(store, ids[0], dec("100"))

	if _, err := eng.Transfer(ctx, ids[0], ids[0], dec("10")); !errors.Is(err, ErrSelfTransfer) {
		t.Fatalf("expected ErrSelfTransfer, got %v", err)
	}

	w, _ := eng.Balance(ctx, ids[0])
	if !w.Balance.Equal(dec("100")) {
		t.Fatalf("self transfer changed balance: %s", w.Balance)
	}
}

func TestEngineTransferUnknownUsers(t *testing.T) {
	eng, store, ids := newTestEngine(t)
	ctx := context.Background()
	SeedBalance(store, ids[0], dec("100"))

	if _, err := eng.Transfer(ctx, ids[0], uuid.NewString(), dec("10")); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound for destination, got %v", err)
	}
	if _, err := eng.Transfer(ctx, uuid.NewString(), ids[0], dec("10")); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound for source, got %v", err)
	}
}

func TestEngineOppositeTransfersNoDeadlock(t *testing.T) {
	eng, store, ids := newTestEngine(t)
	ctx := context.Background()
	a, b := ids[0], ids[1]

	SeedBalance(store, a, dec("200"))
	SeedBalance(store, b, dec("200"))

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	start := make(chan struct{})

	for _, pair := range [][2]string{{a, b}, {b, a}} {
		wg.Add(1)
		go func(from, to string) {
			defer wg.Done()
			<-start
			_, err := eng.Transfer(ctx, from, to, dec("50"))
			errs <- err
		}(pair[0], pair[1])
	}

	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("transfer failed: %v", err)
		}
	}

	wa, _ := eng.Balance(ctx, a)
	wb, _ := eng.Balance(ctx, b)
	if !wa.Balance.Equal(dec("200")) || !wb.Balance.Equal(dec("200")) {
		t.Fatalf("balances not restored: a=%s b=%s", wa.Balance, wb.Balance)
	}

	entries, _ := eng.Transactions(ctx, a)
	if len(entries) != 2 {
		t.Fatalf("expected two entries, got %d", len(entries))
	}
}

func TestEngineConcurrentDrainNeverNegative(t *testing.T) {
	eng, store, ids := newTestEngine(t)
	ctx := context.Background()
	a, b := ids[0], ids[1]

	// 10 units of funding against 20 concurrent withdrawals of 1: exactly 10
	// must succeed and the balance must never go negative.
	SeedBalance(store, a, dec("10"))

	const attempts = 20
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Transfer(ctx, a, b, dec("1"))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var settled, refused int
	for err := range results {
		switch {
		case err == nil:
			settled++
		case errors.Is(err, ErrInsufficientBalance):
			refused++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if settled != 10 || refused != 10 {
		t.Fatalf("expected 10 settled / 10 refused, got %d/%d", settled, refused)
	}

	wa, _ := eng.Balance(ctx, a)
	wb, _ := eng.Balance(ctx, b)
	if wa.Balance.Sign() < 0 {
		t.Fatalf("source went negative: %s", wa.Balance)
	}
	if !wa.Balance.IsZero() || !wb.Balance.Equal(dec("10")) {
		t.Fatalf("unexpected final balances: a=%s b=%s", wa.Balance, wb.Balance)
	}
}

func TestEngineBalanceMatchesLog(t *testing.T) {
	eng, _, ids := newTestEngine(t)
	ctx := context.Background()
	a, b := ids[0], ids[1]

	if _, err := eng.Fund(ctx, a, dec("70")); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if _, err := eng.Fund(ctx, b, dec("5")); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if _, err := eng.Transfer(ctx, a, b, dec("25.50")); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if _, err := eng.Transfer(ctx, b, a, dec("0.50")); err != nil {
		t.Fatalf("transfer back: %v", err)
	}

	for _, id := range []string{a, b} {
		w, err := eng.Balance(ctx, id)
		if err != nil {
			t.Fatalf("balance %s: %v", id, err)
		}
		entries, err := eng.Transactions(ctx, id)
		if err != nil {
			t.Fatalf("transactions %s: %v", id, err)
		}
		net := decimal.Zero
		for _, entry := range entries {
			if entry.ToUserID == id {
				net = net.Add(entry.Amount)
			}
			if entry.FromUserID != nil && *entry.FromUserID == id {
				net = net.Sub(entry.Amount)
			}
		}
		if !w.Balance.Equal(net) {
			t.Fatalf("balance %s diverged from log: balance=%s net=%s", id, w.Balance, net)
		}
	}
}

func TestEngineTransactionsCardinality(t *testing.T) {
	eng, _, ids := newTestEngine(t)
	ctx := context.Background()
	a, b, c := ids[0], ids[1], ids[2]

	if _, err := eng.Fund(ctx, a, dec("100")); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if _, err := eng.Transfer(ctx, a, b, dec("10")); err != nil {
		t.Fatalf("transfer a->b: %v", err)
	}
	if _, err := eng.Transfer(ctx, a, c, dec("10")); err != nil {
		t.Fatalf("transfer a->c: %v", err)
	}
	if _, err := eng.Transfer(ctx, b, a, dec("5")); err != nil {
		t.Fatalf("transfer b->a: %v", err)
	}

	entries, err := eng.Transactions(ctx, a)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries for a, got %d", len(entries))
	}
	seen := make(map[string]bool, len(entries))
	for i, entry := range entries {
		if seen[entry.ID] {
			t.Fatalf("entry %s listed twice", entry.ID)
		}
		seen[entry.ID] = true
		if i > 0 && entry.CreatedAt.Before(entries[i-1].CreatedAt) {
			t.Fatalf("entries not in ascending creation order")
		}
	}

	if entriesC, _ := eng.Transactions(ctx, c); len(entriesC) != 1 {
		t.Fatalf("expected 1 entry for c, got %d", len(entriesC))
	}
}

func TestEngineLockTimeout(t *testing.T) {
	eng, store, ids := newTestEngine(t, WithLockTimeout(20*time.Millisecond))
	ctx := context.Background()
	SeedBalance(store, ids[0], dec("100"))

	// Hold the wallet's rights so the operation cannot acquire them.
	release, err := eng.locks.acquire(ctx, ids[0], time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	if _, err := eng.Fund(ctx, ids[0], dec("10")); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
	if _, err := eng.Transfer(ctx, ids[0], ids[1], dec("10")); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}

	w, _ := eng.Balance(ctx, ids[0])
	if !w.Balance.Equal(dec("100")) {
		t.Fatalf("timed-out operation left residual state: %s", w.Balance)
	}
	if entries, _ := eng.Transactions(ctx, ids[0]); len(entries) != 0 {
		t.Fatalf("timed-out operation appended entries")
	}
}

func TestEngineCancelledContext(t *testing.T) {
	eng, store, ids := newTestEngine(t)
	SeedBalance(store, ids[0], dec("100"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := eng.Transfer(ctx, ids[0], ids[1], dec("10")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	w, _ := eng.Balance(context.Background(), ids[0])
	if !w.Balance.Equal(dec("100")) {
		t.Fatalf("cancelled operation left residual state: %s", w.Balance)
	}
}

func TestEngineUnrelatedWalletsDoNotContend(t *testing.T) {
	eng, store, ids := newTestEngine(t, WithLockTimeout(100*time.Millisecond))
	ctx := context.Background()
	a, b, c := ids[0], ids[1], ids[2]

	SeedBalance(store, a, dec("100"))

	// A transfer between a and b holds their rights; funding c must proceed.
	releaseA, err := eng.locks.acquire(ctx, a, time.Second)
	if err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	defer releaseA()
	releaseB, err := eng.locks.acquire(ctx, b, time.Second)
	if err != nil {
		t.Fatalf("acquire b: %v", err)
	}
	defer releaseB()

	if _, err := eng.Fund(ctx, c, dec("10")); err != nil {
		t.Fatalf("fund of unrelated wallet blocked: %v", err)
	}
}
