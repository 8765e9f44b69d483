package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mbongo-pay/mbongo_pay/internal/user"
)

const defaultLockTimeout = 3 * time.Second

// Engine orchestrates fund and transfer operations across the wallet store
// and the user directory. It owns concurrency control: at most one in-flight
// mutation holds a wallet's rights at a time, and transfers take both wallets
// in ascending user-id order so opposite-direction transfers cannot deadlock.
// All collaborators arrive through the constructor.
type Engine struct {
	store       Store
	users       Directory
	locks       *lockTable
	lockTimeout time.Duration
}

// Option adjusts engine construction.
type Option func(*Engine)

// WithLockTimeout bounds how long an operation waits for wallet mutation
// rights before failing with ErrLockTimeout.
func WithLockTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.lockTimeout = d
		}
	}
}

// NewEngine builds a ledger engine over the given store and user directory.
func NewEngine(store Store, users Directory, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		users:       users,
		locks:       newLockTable(),
		lockTimeout: defaultLockTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fund credits the user's wallet from an external source and appends the
// matching FUND entry. The wallet is materialized lazily on first touch.
func (e *Engine) Fund(ctx context.Context, userID string, amount decimal.Decimal) (FundOutcome, error) {
	if amount.Sign() <= 0 {
		return FundOutcome{}, ErrInvalidAmount
	}
	if err := e.resolveUser(ctx, userID); err != nil {
		return FundOutcome{}, err
	}

	release, err := e.locks.acquire(ctx, userID, e.lockTimeout)
	if err != nil {
		return FundOutcome{}, err
	}
	defer release()

	if err := ctx.Err(); err != nil {
		return FundOutcome{}, err
	}

	return e.store.Fund(ctx, userID, amount)
}

// Transfer atomically moves amount from one wallet to another and appends a
// single TRANSFER entry. Partial application is never observable: the debit,
// credit and append settle in one store-level commit unit.
func (e *Engine) Transfer(ctx context.Context, fromUserID, toUserID string, amount decimal.Decimal) (TransferOutcome, error) {
	if fromUserID == toUserID {
		return TransferOutcome{}, ErrSelfTransfer
	}
	if amount.Sign() <= 0 {
		return TransferOutcome{}, ErrInvalidAmount
	}
	if err := e.resolveUser(ctx, fromUserID); err != nil {
		return TransferOutcome{}, err
	}
	if err := e.resolveUser(ctx, toUserID); err != nil {
		return TransferOutcome{}, err
	}

	// Total order on lock acquisition regardless of transfer direction.
	first, second := fromUserID, toUserID
	if second < first {
		first, second = second, first
	}

	releaseFirst, err := e.locks.acquire(ctx, first, e.lockTimeout)
	if err != nil {
		return TransferOutcome{}, err
	}
	defer releaseFirst()

	releaseSecond, err := e.locks.acquire(ctx, second, e.lockTimeout)
	if err != nil {
		return TransferOutcome{}, err
	}
	defer releaseSecond()

	if err := ctx.Err(); err != nil {
		return TransferOutcome{}, err
	}

	return e.store.Transfer(ctx, fromUserID, toUserID, amount)
}

// Balance returns the current wallet snapshot. Users without a settled
// operation report a zero balance without materializing a row.
func (e *Engine) Balance(ctx context.Context, userID string) (Wallet, error) {
	if err := e.resolveUser(ctx, userID); err != nil {
		return Wallet{}, err
	}
	w, err := e.store.Wallet(ctx, userID)
	if errors.Is(err, ErrWalletNotFound) {
		return Wallet{UserID: userID, Balance: decimal.Zero}, nil
	}
	return w, err
}

// Transactions lists the user's settled entries, oldest first.
func (e *Engine) Transactions(ctx context.Context, userID string) ([]Transaction, error) {
	if err := e.resolveUser(ctx, userID); err != nil {
		return nil, err
	}
	return e.store.TransactionsByUser(ctx, userID)
}

func (e *Engine) resolveUser(ctx context.Context, userID string) error {
	if _, err := e.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		return err
	}
	return nil
}
