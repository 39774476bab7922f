package interfaces

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/banking-ledger-core/internal/models"
)

// MutateFunc runs inside the exclusive mutation scope of one account. It
// receives the current balance and returns the new balance plus the history
// entries the store must append in the same atomic unit. Returning an error
// aborts the mutation with no state change. The function must be free of
// side effects beyond its return values.
type MutateFunc func(balance decimal.Decimal) (decimal.Decimal, []models.HistoryEntry, error)

// MutatePairFunc is the two-account analogue used by transfers. Balances are
// handed over, and new balances returned, in the order the accounts were
// passed to MutatePair, independent of lock order.
type MutatePairFunc func(first, second decimal.Decimal) (decimal.Decimal, decimal.Decimal, []models.HistoryEntry, error)

// AccountStore is the single shared mutable resource of the ledger: durable
// account rows plus the append-only history log. Implementations guarantee
// that no two concurrent mutations of the same account interleave their
// read-modify-write cycles, and that balance writes and history appends
// produced by one mutation commit as one atomic unit or not at all.
//
// Entry IDs and timestamps are assigned by the store at commit time.
type AccountStore interface {
	// Resolve returns the account registered under handle, or
	// models.ErrAccountNotFound.
	Resolve(ctx context.Context, handle string) (models.Account, error)

	// CreateAccount registers a new account with zero balance. Returns
	// models.ErrAccountExists if the handle is taken.
	CreateAccount(ctx context.Context, handle string) (models.Account, error)

	// Mutate acquires the mutation scope of accountID, applies fn and
	// commits the returned balance and entries atomically. Returns the
	// post-mutation account.
	Mutate(ctx context.Context, accountID uuid.UUID, fn MutateFunc) (models.Account, error)

	// MutatePair acquires both mutation scopes in a fixed identity-derived
	// order (never call order), applies fn and commits atomically. Returns
	// both post-mutation accounts in argument order.
	MutatePair(ctx context.Context, firstID, secondID uuid.UUID, fn MutatePairFunc) (models.Account, models.Account, error)

	// EntriesByAccount returns the account's history in commit order,
	// optionally restricted to the given kinds.
	EntriesByAccount(ctx context.Context, accountID uuid.UUID, kinds ...models.EntryKind) ([]models.HistoryEntry, error)

	// AllEntries returns the combined history log in commit order.
	AllEntries(ctx context.Context) ([]models.HistoryEntry, error)
}
