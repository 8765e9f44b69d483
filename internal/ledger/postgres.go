package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore persists wallets and the transaction log in PostgreSQL. Fund
// and Transfer run inside a database transaction with the involved wallet rows
// locked, so the balance mutation and the log append commit or roll back
// together.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Materialize creates the wallet row if absent and returns it. The conditional
// insert makes concurrent first-touches converge on a single row.
func (s *PostgresStore) Materialize(ctx context.Context, userID string) (Wallet, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return Wallet{}, fmt.Errorf("parse user id: %w", err)
	}
	_, err = s.db.Exec(ctx, `INSERT INTO wallets (user_id, balance, updated_at) VALUES ($1, 0, $2)
        ON CONFLICT (user_id) DO NOTHING`, id, time.Now().UTC())
	if err != nil {
		return Wallet{}, storageErr(err)
	}
	return s.Wallet(ctx, userID)
}

// Wallet reads the current wallet row.
func (s *PostgresStore) Wallet(ctx context.Context, userID string) (Wallet, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return Wallet{}, fmt.Errorf("parse user id: %w", err)
	}
	row := s.db.QueryRow(ctx, `SELECT user_id, balance::text, updated_at FROM wallets WHERE user_id = $1`, id)
	return scanWallet(row)
}

// Fund credits the wallet and appends the FUND entry in one database
// transaction.
func (s *PostgresStore) Fund(ctx context.Context, userID string, amount decimal.Decimal) (FundOutcome, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return FundOutcome{}, storageErr(err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	now := time.Now().UTC()
	w, err := lockWallet(ctx, tx, userID, now)
	if err != nil {
		return FundOutcome{}, err
	}
	if err := w.credit(amount, now); err != nil {
		return FundOutcome{}, err
	}
	if err := writeWallet(ctx, tx, w); err != nil {
		return FundOutcome{}, err
	}

	entry := Transaction{
		ID:        uuid.New().String(),
		ToUserID:  userID,
		Amount:    amount,
		Type:      TypeFund,
		CreatedAt: now,
	}
	if err := appendEntry(ctx, tx, entry); err != nil {
		return FundOutcome{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return FundOutcome{}, storageErr(err)
	}
	return FundOutcome{Wallet: w, Entry: entry}, nil
}

// Transfer debits the source, credits the destination and appends the
// TRANSFER entry in one database transaction. Wallet rows are locked in
// ascending user-id order so two opposite-direction transfers cannot
// deadlock inside the database either.
func (s *PostgresStore) Transfer(ctx context.Context, fromUserID, toUserID string, amount decimal.Decimal) (TransferOutcome, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TransferOutcome{}, storageErr(err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	now := time.Now().UTC()

	first, second := fromUserID, toUserID
	if second < first {
		first, second = second, first
	}
	locked := make(map[string]Wallet, 2)
	for _, id := range []string{first, second} {
		w, err := lockWallet(ctx, tx, id, now)
		if err != nil {
			return TransferOutcome{}, err
		}
		locked[id] = w
	}

	from, to := locked[fromUserID], locked[toUserID]
	if err := from.debit(amount, now); err != nil {
		return TransferOutcome{}, err
	}
	if err := to.credit(amount, now); err != nil {
		return TransferOutcome{}, err
	}
	if err := writeWallet(ctx, tx, from); err != nil {
		return TransferOutcome{}, err
	}
	if err := writeWallet(ctx, tx, to); err != nil {
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
	if err := appendEntry(ctx, tx, entry); err != nil {
		return TransferOutcome{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return TransferOutcome{}, storageErr(err)
	}
	return TransferOutcome{From: from, To: to, Entry: entry}, nil
}

// TransactionsByUser lists settled entries touching the user, oldest first.
func (s *PostgresStore) TransactionsByUser(ctx context.Context, userID string) ([]Transaction, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	rows, err := s.db.Query(ctx, `SELECT id, from_user_id, to_user_id, amount::text, type, created_at
        FROM transactions WHERE from_user_id = $1 OR to_user_id = $1
        ORDER BY created_at ASC`, id)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var entries []Transaction
	for rows.Next() {
		var (
			entry     Transaction
			entryID   uuid.UUID
			fromID    *uuid.UUID
			toID      uuid.UUID
			amountStr string
			kind      string
			createdAt time.Time
		)
		if err := rows.Scan(&entryID, &fromID, &toID, &amountStr, &kind, &createdAt); err != nil {
			return nil, storageErr(err)
		}
		entry.ID = entryID.String()
		if fromID != nil {
			src := fromID.String()
			entry.FromUserID = &src
		}
		entry.ToUserID = toID.String()
		entry.Amount, err = decimal.NewFromString(amountStr)
		if err != nil {
			return nil, storageErr(err)
		}
		entry.Type = TransactionType(kind)
		entry.CreatedAt = createdAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return entries, nil
}

// lockWallet materializes the wallet row inside the transaction and locks it
// for update.
func lockWallet(ctx context.Context, tx pgx.Tx, userID string, now time.Time) (Wallet, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return Wallet{}, fmt.Errorf("parse user id: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO wallets (user_id, balance, updated_at) VALUES ($1, 0, $2)
        ON CONFLICT (user_id) DO NOTHING`, id, now); err != nil {
		return Wallet{}, storageErr(err)
	}
	row := tx.QueryRow(ctx, `SELECT user_id, balance::text, updated_at FROM wallets WHERE user_id = $1 FOR UPDATE`, id)
	return scanWallet(row)
}

func writeWallet(ctx context.Context, tx pgx.Tx, w Wallet) error {
	id, err := uuid.Parse(w.UserID)
	if err != nil {
		return fmt.Errorf("parse user id: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE wallets SET balance = $1, updated_at = $2 WHERE user_id = $3`,
		w.Balance.String(), w.UpdatedAt, id); err != nil {
		return storageErr(err)
	}
	return nil
}

func appendEntry(ctx context.Context, tx pgx.Tx, entry Transaction) error {
	entryID, err := uuid.Parse(entry.ID)
	if err != nil {
		return fmt.Errorf("parse entry id: %w", err)
	}
	toID, err := uuid.Parse(entry.ToUserID)
	if err != nil {
		return fmt.Errorf("parse destination id: %w", err)
	}
	var fromID *uuid.UUID
	if entry.FromUserID != nil {
		parsed, err := uuid.Parse(*entry.FromUserID)
		if err != nil {
			return fmt.Errorf("parse source id: %w", err)
		}
		fromID = &parsed
	}
	if _, err := tx.Exec(ctx, `INSERT INTO transactions (id, from_user_id, to_user_id, amount, type, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		entryID, fromID, toID, entry.Amount.String(), string(entry.Type), entry.CreatedAt); err != nil {
		return storageErr(err)
	}
	return nil
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var (
		id         uuid.UUID
		balanceStr string
		updatedAt  time.Time
	)
	if err := row.Scan(&id, &balanceStr, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, storageErr(err)
	}
	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return Wallet{}, storageErr(err)
	}
	return Wallet{UserID: id.String(), Balance: balance, UpdatedAt: updatedAt.UTC()}, nil
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}
