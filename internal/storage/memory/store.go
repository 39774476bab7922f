// Package memory provides an in-memory AccountStore. It is the reference
// implementation of the mutation-scope contract: a dedicated mutex per
// account serializes read-modify-write cycles, and a single store mutex is
// the commit point, so a reader never observes an intermediate balance or a
// half-appended transfer pair.
package memory

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/banking-ledger-core/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger-core/internal/models"
)

// Store is an in-memory implementation of interfaces.AccountStore, safe for
// concurrent use.
type Store struct {
	mu       sync.Mutex // guards all fields below
	accounts map[uuid.UUID]*models.Account
	byHandle map[string]uuid.UUID
	locks    map[uuid.UUID]*sync.Mutex // one mutation scope per account

	entries     []models.HistoryEntry
	nextEntryID int64
	lastStamp   time.Time

	now func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[uuid.UUID]*models.Account),
		byHandle: make(map[string]uuid.UUID),
		locks:    make(map[uuid.UUID]*sync.Mutex),
		now:      time.Now,
	}
}

// CreateAccount registers a new account under handle with zero balance.
func (s *Store) CreateAccount(ctx context.Context, handle string) (models.Account, error) {
	if err := ctx.Err(); err != nil {
		return models.Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byHandle[handle]; taken {
		return models.Account{}, models.ErrAccountExists
	}

	acct := &models.Account{
		ID:        uuid.New(),
		Handle:    handle,
		Balance:   decimal.Zero,
		CreatedAt: s.now().UTC(),
	}
	s.accounts[acct.ID] = acct
	s.byHandle[handle] = acct.ID
	s.locks[acct.ID] = &sync.Mutex{}

	return *acct, nil
}

// Resolve returns a snapshot of the account registered under handle.
func (s *Store) Resolve(ctx context.Context, handle string) (models.Account, error) {
	if err := ctx.Err(); err != nil {
		return models.Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byHandle[handle]
	if !ok {
		return models.Account{}, models.ErrAccountNotFound
	}
	return *s.accounts[id], nil
}

// Mutate runs fn inside the account's mutation scope and commits the new
// balance together with the returned entries.
func (s *Store) Mutate(ctx context.Context, accountID uuid.UUID, fn interfaces.MutateFunc) (models.Account, error) {
	lock, err := s.accountLock(accountID)
	if err != nil {
		return models.Account{}, err
	}
	lock.Lock()
	defer lock.Unlock()

	// Abort cleanly if the caller's deadline expired while waiting for the
	// scope. Once past this point the atomic unit runs to completion.
	if err := ctx.Err(); err != nil {
		return models.Account{}, err
	}

	balance, err := s.readBalance(accountID)
	if err != nil {
		return models.Account{}, err
	}

	newBalance, entries, err := fn(balance)
	if err != nil {
		return models.Account{}, err
	}

	return s.commit(accountID, newBalance, entries)
}

// MutatePair acquires both mutation scopes in ascending account-id byte
// order, regardless of argument order, ruling out deadlock between two
// transfers moving money in opposite directions.
func (s *Store) MutatePair(ctx context.Context, firstID, secondID uuid.UUID, fn interfaces.MutatePairFunc) (models.Account, models.Account, error) {
	if firstID == secondID {
		return models.Account{}, models.Account{}, models.ErrSelfTransfer
	}

	firstLock, err := s.accountLock(firstID)
	if err != nil {
		return models.Account{}, models.Account{}, err
	}
	secondLock, err := s.accountLock(secondID)
	if err != nil {
		return models.Account{}, models.Account{}, err
	}

	lo, hi := firstLock, secondLock
	if bytes.Compare(firstID[:], secondID[:]) > 0 {
		lo, hi = secondLock, firstLock
	}
	lo.Lock()
	defer lo.Unlock()
	hi.Lock()
	defer hi.Unlock()

	if err := ctx.Err(); err != nil {
		return models.Account{}, models.Account{}, err
	}

	firstBalance, err := s.readBalance(firstID)
	if err != nil {
		return models.Account{}, models.Account{}, err
	}
	secondBalance, err := s.readBalance(secondID)
	if err != nil {
		return models.Account{}, models.Account{}, err
	}

	newFirst, newSecond, entries, err := fn(firstBalance, secondBalance)
	if err != nil {
		return models.Account{}, models.Account{}, err
	}

	// Both balance writes and every entry land under one hold of s.mu.
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts[firstID].Balance = newFirst
	s.accounts[secondID].Balance = newSecond
	s.appendLocked(entries)

	return *s.accounts[firstID], *s.accounts[secondID], nil
}

// EntriesByAccount returns the account's history in commit order, filtered
// to kinds when given.
func (s *Store) EntriesByAccount(ctx context.Context, accountID uuid.UUID, kinds ...models.EntryKind) ([]models.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.HistoryEntry
	for _, e := range s.entries {
		if e.AccountID != accountID {
			continue
		}
		if len(kinds) > 0 && !kindIn(e.Kind, kinds) {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

// AllEntries returns a copy of the combined history log in commit order.
func (s *Store) AllEntries(ctx context.Context) ([]models.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]models.HistoryEntry, len(s.entries))
	copy(copied, s.entries)
	return copied, nil
}

// accountLock returns the mutation-scope mutex for accountID.
func (s *Store) accountLock(accountID uuid.UUID) (*sync.Mutex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[accountID]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	return lock, nil
}

// readBalance must be called while holding the account's mutation scope.
func (s *Store) readBalance(accountID uuid.UUID) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return decimal.Decimal{}, models.ErrAccountNotFound
	}
	return acct.Balance, nil
}

// commit writes the new balance and appends the entries under one hold of
// s.mu, so no reader sees one without the other. Caller holds the account's
// mutation scope.
func (s *Store) commit(accountID uuid.UUID, balance decimal.Decimal, entries []models.HistoryEntry) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts[accountID].Balance = balance
	s.appendLocked(entries)
	return *s.accounts[accountID], nil
}

// appendLocked stamps ids and a shared commit timestamp onto entries and
// appends them to the log. Timestamps never decrease, which makes the
// per-account ordering guarantee hold globally. Caller holds s.mu.
func (s *Store) appendLocked(entries []models.HistoryEntry) {
	stamp := s.now().UTC()
	if stamp.Before(s.lastStamp) {
		stamp = s.lastStamp
	}
	s.lastStamp = stamp

	for i := range entries {
		s.nextEntryID++
		entries[i].ID = s.nextEntryID
		entries[i].Timestamp = stamp
		s.entries = append(s.entries, entries[i])
	}
}

func kindIn(kind models.EntryKind, kinds []models.EntryKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

var _ interfaces.AccountStore = (*Store)(nil)
