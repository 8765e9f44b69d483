package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mbongo-pay/mbongo_pay/internal/user"
)

var (
	// ErrInvalidAmount occurs when an operation is requested with a zero or
	// negative amount.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrUserNotFound indicates a referenced identifier does not resolve in
	// the user directory.
	ErrUserNotFound = errors.New("user not found")

	// ErrSelfTransfer indicates source and destination of a transfer are the
	// same user.
	ErrSelfTransfer = errors.New("cannot transfer to self")

	// ErrInsufficientBalance occurs when a debit would take the source wallet
	// below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrLockTimeout indicates mutation rights on a wallet were not acquired
	// within the configured bound.
	ErrLockTimeout = errors.New("wallet lock timeout")

	// ErrStorageUnavailable wraps failures of the underlying store.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrWalletNotFound is returned by Store.Wallet for users without a
	// settled operation. Mutating paths materialize instead of failing.
	ErrWalletNotFound = errors.New("wallet not found")
)

// TransactionType discriminates the two settled operation kinds.
type TransactionType string

const (
	// TypeFund credits a wallet from an external, unmodeled source.
	TypeFund TransactionType = "FUND"
	// TypeTransfer moves funds between two wallets atomically.
	TypeTransfer TransactionType = "TRANSFER"
)

// Transaction is one immutable entry of the append-only log. A nil FromUserID
// marks an external funding source.
type Transaction struct {
	ID         string
	FromUserID *string
	ToUserID   string
	Amount     decimal.Decimal
	Type       TransactionType
	CreatedAt  time.Time
}

// FundOutcome captures the settled state of a fund operation.
type FundOutcome struct {
	Wallet Wallet
	Entry  Transaction
}

// TransferOutcome captures the settled state of a transfer.
type TransferOutcome struct {
	From  Wallet
	To    Wallet
	Entry Transaction
}

// Store is the durable half of the ledger. Fund and Transfer are atomic
// commit units: the balance mutation and the log append succeed or fail
// together, and a failed call leaves no observable effect.
type Store interface {
	// Materialize returns the user's wallet, creating a zero-balance one if
	// absent. Concurrent first-touches for the same user converge on a single
	// wallet row.
	Materialize(ctx context.Context, userID string) (Wallet, error)

	// Wallet reads current wallet state, ErrWalletNotFound if absent.
	Wallet(ctx context.Context, userID string) (Wallet, error)

	// Fund credits the wallet and appends the FUND entry in one atomic unit.
	// The entry is assigned its identifier and timestamp on append.
	Fund(ctx context.Context, userID string, amount decimal.Decimal) (FundOutcome, error)

	// Transfer debits the source, credits the destination and appends the
	// TRANSFER entry in one atomic unit. The balance check runs inside the
	// unit so no concurrent operation can act on a stale balance.
	Transfer(ctx context.Context, fromUserID, toUserID string, amount decimal.Decimal) (TransferOutcome, error)

	// TransactionsByUser returns every settled entry where the user is source
	// or destination, created-at ascending. Each call yields a fresh snapshot
	// of current log state.
	TransactionsByUser(ctx context.Context, userID string) ([]Transaction, error)
}

// Directory resolves user identifiers. The ledger never creates users.
type Directory interface {
	FindByID(ctx context.Context, id string) (user.User, error)
}
