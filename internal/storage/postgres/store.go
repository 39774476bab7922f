// Package postgres provides a durable AccountStore. The mutation scope is a
// row-level lock (SELECT ... FOR UPDATE) and the atomic unit is a single
// database transaction covering the balance update(s) and the history
// insert(s), so a crash mid-operation is indistinguishable from "never
// started". See schema.sql for the expected tables.
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/banking-ledger-core/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger-core/internal/models"
)

const uniqueViolation = "23505"

// Store is a Postgres-backed implementation of interfaces.AccountStore.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Resolve returns the account registered under handle.
func (s *Store) Resolve(ctx context.Context, handle string) (models.Account, error) {
	const query = `SELECT id, handle, balance, created_at FROM accounts WHERE handle = $1`

	var acct models.Account
	err := s.db.QueryRowContext(ctx, query, handle).
		Scan(&acct.ID, &acct.Handle, &acct.Balance, &acct.CreatedAt)
	if err == sql.ErrNoRows {
		return models.Account{}, models.ErrAccountNotFound
	}
	if err != nil {
		return models.Account{}, storageErr(err)
	}
	return acct, nil
}

// CreateAccount registers a new account under handle with zero balance.
func (s *Store) CreateAccount(ctx context.Context, handle string) (models.Account, error) {
	const query = `INSERT INTO accounts (id, handle, balance, created_at)
	VALUES ($1, $2, 0, $3)
	RETURNING id, handle, balance, created_at`

	var acct models.Account
	err := s.db.QueryRowContext(ctx, query, uuid.New(), handle, time.Now().UTC()).
		Scan(&acct.ID, &acct.Handle, &acct.Balance, &acct.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return models.Account{}, models.ErrAccountExists
		}
		return models.Account{}, storageErr(err)
	}
	return acct, nil
}

// Mutate locks the account row, applies fn and commits the new balance and
// entries in one transaction.
func (s *Store) Mutate(ctx context.Context, accountID uuid.UUID, fn interfaces.MutateFunc) (models.Account, error) {
	var updated models.Account

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		balance, err := lockRow(ctx, tx, accountID)
		if err != nil {
			return err
		}

		newBalance, entries, err := fn(balance)
		if err != nil {
			return err
		}

		updated, err = writeBalance(ctx, tx, accountID, newBalance)
		if err != nil {
			return err
		}
		return appendEntries(ctx, tx, entries)
	})
	if err != nil {
		return models.Account{}, err
	}
	return updated, nil
}

// MutatePair locks both account rows in ascending id order, applies fn and
// commits both balances and all entries in one transaction.
func (s *Store) MutatePair(ctx context.Context, firstID, secondID uuid.UUID, fn interfaces.MutatePairFunc) (models.Account, models.Account, error) {
	if firstID == secondID {
		return models.Account{}, models.Account{}, models.ErrSelfTransfer
	}

	var updatedFirst, updatedSecond models.Account

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		balances, err := lockRows(ctx, tx, firstID, secondID)
		if err != nil {
			return err
		}

		newFirst, newSecond, entries, err := fn(balances[firstID], balances[secondID])
		if err != nil {
			return err
		}

		if updatedFirst, err = writeBalance(ctx, tx, firstID, newFirst); err != nil {
			return err
		}
		if updatedSecond, err = writeBalance(ctx, tx, secondID, newSecond); err != nil {
			return err
		}
		return appendEntries(ctx, tx, entries)
	})
	if err != nil {
		return models.Account{}, models.Account{}, err
	}
	return updatedFirst, updatedSecond, nil
}

// EntriesByAccount returns the account's history in commit order, filtered
// to kinds when given.
func (s *Store) EntriesByAccount(ctx context.Context, accountID uuid.UUID, kinds ...models.EntryKind) ([]models.HistoryEntry, error) {
	query := `SELECT id, account_id, kind, amount, counterparty_id, committed_at, note
	FROM history_entries WHERE account_id = $1`
	args := []any{accountID}

	if len(kinds) > 0 {
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = string(k)
		}
		query += ` AND kind = ANY($2)`
		args = append(args, pq.Array(names))
	}
	query += ` ORDER BY id`

	return s.queryEntries(ctx, query, args...)
}

// AllEntries returns the combined history log in commit order.
func (s *Store) AllEntries(ctx context.Context) ([]models.HistoryEntry, error) {
	const query = `SELECT id, account_id, kind, amount, counterparty_id, committed_at, note
	FROM history_entries ORDER BY id`
	return s.queryEntries(ctx, query)
}

// withTx runs fn in a transaction, rolling back on any error. Domain errors
// returned by fn pass through untouched; infrastructure failures come back
// wrapped in models.ErrStorageUnavailable.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return storageErr(err)
	}
	return nil
}

// lockRow acquires the row-level lock on one account and returns its
// current balance.
func lockRow(ctx context.Context, tx *sql.Tx, accountID uuid.UUID) (decimal.Decimal, error) {
	const query = `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`

	var balance decimal.Decimal
	err := tx.QueryRowContext(ctx, query, accountID).Scan(&balance)
	if err == sql.ErrNoRows {
		return decimal.Decimal{}, models.ErrAccountNotFound
	}
	if err != nil {
		return decimal.Decimal{}, storageErr(err)
	}
	return balance, nil
}

// lockRows acquires both row-level locks in ascending id order. Postgres
// locks rows in the order the query yields them, so ORDER BY id fixes the
// global acquisition order independent of caller order.
func lockRows(ctx context.Context, tx *sql.Tx, firstID, secondID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	const query = `SELECT id, balance FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	rows, err := tx.QueryContext(ctx, query, pq.Array([]uuid.UUID{firstID, secondID}))
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	balances := make(map[uuid.UUID]decimal.Decimal, 2)
	for rows.Next() {
		var id uuid.UUID
		var balance decimal.Decimal
		if err := rows.Scan(&id, &balance); err != nil {
			return nil, storageErr(err)
		}
		balances[id] = balance
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	if len(balances) != 2 {
		return nil, models.ErrAccountNotFound
	}
	return balances, nil
}

func writeBalance(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, balance decimal.Decimal) (models.Account, error) {
	const query = `UPDATE accounts SET balance = $1 WHERE id = $2
	RETURNING id, handle, balance, created_at`

	var acct models.Account
	err := tx.QueryRowContext(ctx, query, balance, accountID).
		Scan(&acct.ID, &acct.Handle, &acct.Balance, &acct.CreatedAt)
	if err != nil {
		return models.Account{}, storageErr(err)
	}
	return acct, nil
}

// appendEntries inserts the entries with one shared commit timestamp.
func appendEntries(ctx context.Context, tx *sql.Tx, entries []models.HistoryEntry) error {
	const query = `INSERT INTO history_entries (account_id, kind, amount, counterparty_id, committed_at, note)
	VALUES ($1, $2, $3, $4, $5, $6)`

	stamp := time.Now().UTC()
	for _, entry := range entries {
		var counterparty any
		if entry.Counterparty != nil {
			counterparty = *entry.Counterparty
		}
		_, err := tx.ExecContext(ctx, query,
			entry.AccountID, string(entry.Kind), entry.Amount, counterparty, stamp, entry.Note)
		if err != nil {
			return storageErr(err)
		}
	}
	return nil
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]models.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		var entry models.HistoryEntry
		var counterparty uuid.NullUUID
		var note sql.NullString
		err := rows.Scan(
			&entry.ID,
			&entry.AccountID,
			&entry.Kind,
			&entry.Amount,
			&counterparty,
			&entry.Timestamp,
			&note,
		)
		if err != nil {
			return nil, storageErr(err)
		}
		if counterparty.Valid {
			id := counterparty.UUID
			entry.Counterparty = &id
		}
		entry.Note = note.String
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return entries, nil
}

func storageErr(err error) error {
	return errors.Wrap(models.ErrStorageUnavailable, err.Error())
}

var _ interfaces.AccountStore = (*Store)(nil)
