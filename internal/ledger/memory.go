package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type memoryStore struct {
	mu      sync.RWMutex
	wallets map[string]Wallet
	log     []Transaction
	now     func() time.Time
}

// NewMemoryStore creates a concurrency-safe in-memory ledger store useful for
// unit tests and dev mode without a database.
func NewMemoryStore() Store {
	return &memoryStore{
		wallets: make(map[string]Wallet),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *memoryStore) Materialize(_ context.Context, userID string) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.materializeLocked(userID), nil
}

func (s *memoryStore) materializeLocked(userID string) Wallet {
	if w, exists := s.wallets[userID]; exists {
		return w
	}
	w := newWallet(userID, s.now())
	s.wallets[userID] = w
	return w
}

func (s *memoryStore) Wallet(_ context.Context, userID string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, exists := s.wallets[userID]
	if !exists {
		return Wallet{}, ErrWalletNotFound
	}
	return w, nil
}

func (s *memoryStore) Fund(_ context.Context, userID string, amount decimal.Decimal) (FundOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w := s.materializeLocked(userID)
	if err := w.credit(amount, now); err != nil {
		return FundOutcome{}, err
	}

	entry := Transaction{
		ID:        uuid.New().String(),
		ToUserID:  userID,
		Amount:    amount,
		Type:      TypeFund,
		CreatedAt: now,
	}

	s.wallets[userID] = w
	s.log = append(s.log, entry)
	return FundOutcome{Wallet: w, Entry: entry}, nil
}

func (s *memoryStore) Transfer(_ context.Context, fromUserID, toUserID string, amount decimal.Decimal) (TransferOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	from := s.materializeLocked(fromUserID)
	if err := from.debit(amount, now); err != nil {
		return TransferOutcome{}, err
	}
	to := s.materializeLocked(toUserID)
	if err := to.credit(amount, now); err != nil {
		return TransferOutcome{}, err
	}

	sourceID := fromUserID
	entry := Transaction{
		ID:         uuid.New().String(),
		FromUserID: &sourceID,
		ToUserID:   toUserID,
		Amount:     amount,
		Type:       TypeTransfer,
		CreatedAt:  now,
	}

	s.wallets[fromUserID] = from
	s.wallets[toUserID] = to
	s.log = append(s.log, entry)
	return TransferOutcome{From: from, To: to, Entry: entry}, nil
}

func (s *memoryStore) TransactionsByUser(_ context.Context, userID string) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Appends happen under the write lock, so the log is already ordered by
	// creation time.
	var entries []Transaction
	for _, entry := range s.log {
		if entry.ToUserID == userID || (entry.FromUserID != nil && *entry.FromUserID == userID) {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}
