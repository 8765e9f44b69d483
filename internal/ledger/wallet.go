package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is the balance-bearing account associated 1:1 with a user. It is
// materialized lazily on the first operation touching the user and never
// deleted. Balance stays non-negative at all observable times.
type Wallet struct {
	UserID    string
	Balance   decimal.Decimal
	UpdatedAt time.Time
}

// newWallet returns a zero-balance wallet for the user.
func newWallet(userID string, at time.Time) Wallet {
	return Wallet{UserID: userID, Balance: decimal.Zero, UpdatedAt: at}
}

// credit increases the balance. Amount must be positive.
func (w *Wallet) credit(amount decimal.Decimal, at time.Time) error {
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	w.Balance = w.Balance.Add(amount)
	w.UpdatedAt = at
	return nil
}

// debit decreases the balance, refusing to breach non-negativity.
func (w *Wallet) debit(amount decimal.Decimal, at time.Time) error {
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if w.Balance.LessThan(amount) {
		return ErrInsufficientBalance
	}
	w.Balance = w.Balance.Sub(amount)
	w.UpdatedAt = at
	return nil
}
