package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/banking-ledger-core/internal/models"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestCreateAndResolve(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	acct, err := s.CreateAccount(ctx, "alice")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, acct.ID)
	require.Equal(t, "alice", acct.Handle)
	require.True(t, acct.Balance.IsZero())
	require.False(t, acct.CreatedAt.IsZero())

	got, err := s.Resolve(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, acct.ID, got.ID)

	_, err = s.CreateAccount(ctx, "alice")
	require.ErrorIs(t, err, models.ErrAccountExists)

	_, err = s.Resolve(ctx, "ALICE") // handles are case-sensitive
	require.ErrorIs(t, err, models.ErrAccountNotFound)
}

func TestMutateUnknownAccount(t *testing.T) {
	s := NewStore()

	_, err := s.Mutate(context.Background(), uuid.New(), func(b decimal.Decimal) (decimal.Decimal, []models.HistoryEntry, error) {
		t.Fatal("fn must not run for an unknown account")
		return b, nil, nil
	})
	require.ErrorIs(t, err, models.ErrAccountNotFound)
}

func TestMutateAbortLeavesNoTrace(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	acct, err := s.CreateAccount(ctx, "alice")
	require.NoError(t, err)

	abort := errors.New("abort")
	_, err = s.Mutate(ctx, acct.ID, func(b decimal.Decimal) (decimal.Decimal, []models.HistoryEntry, error) {
		return decimal.Decimal{}, nil, abort
	})
	require.ErrorIs(t, err, abort)

	got, err := s.Resolve(ctx, "alice")
	require.NoError(t, err)
	require.True(t, got.Balance.IsZero())

	entries, err := s.AllEntries(ctx)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestMutateCancelledContext(t *testing.T) {
	s := NewStore()
	acct, err := s.CreateAccount(context.Background(), "alice")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Mutate(ctx, acct.ID, func(b decimal.Decimal) (decimal.Decimal, []models.HistoryEntry, error) {
		t.Fatal("fn must not run after cancellation")
		return b, nil, nil
	})
	require.ErrorIs(t, err, context.Canceled)

	got, err := s.Resolve(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, got.Balance.IsZero())
}

func TestMutatePairArgumentOrder(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	a, err := s.CreateAccount(ctx, "a")
	require.NoError(t, err)
	b, err := s.CreateAccount(ctx, "b")
	require.NoError(t, err)

	fund := func(id uuid.UUID, amount string) {
		_, err := s.Mutate(ctx, id, func(bal decimal.Decimal) (decimal.Decimal, []models.HistoryEntry, error) {
			return bal.Add(dec(t, amount)), nil, nil
		})
		require.NoError(t, err)
	}
	fund(a.ID, "10.00")
	fund(b.ID, "20.00")

	// Balances arrive and results return in argument order, whichever way
	// the ids sort.
	gotB, gotA, err := s.MutatePair(ctx, b.ID, a.ID, func(balB, balA decimal.Decimal) (decimal.Decimal, decimal.Decimal, []models.HistoryEntry, error) {
		require.True(t, balB.Equal(dec(t, "20.00")))
		require.True(t, balA.Equal(dec(t, "10.00")))
		return balB.Sub(dec(t, "5.00")), balA.Add(dec(t, "5.00")), nil, nil
	})
	require.NoError(t, err)
	require.True(t, gotB.Balance.Equal(dec(t, "15.00")))
	require.True(t, gotA.Balance.Equal(dec(t, "15.00")))
}

func TestMutatePairSameAccount(t *testing.T) {
	s := NewStore()
	acct, err := s.CreateAccount(context.Background(), "alice")
	require.NoError(t, err)

	_, _, err = s.MutatePair(context.Background(), acct.ID, acct.ID, nil)
	require.ErrorIs(t, err, models.ErrSelfTransfer)
}

// Hammer MutatePair from both argument orders at once. A caller-order lock
// acquisition would deadlock here; identity-ordered acquisition must not.
func TestMutatePairNoDeadlock(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	a, err := s.CreateAccount(ctx, "a")
	require.NoError(t, err)
	b, err := s.CreateAccount(ctx, "b")
	require.NoError(t, err)

	one := dec(t, "1.00")
	const n = 200
	var wg sync.WaitGroup
	wg.Add(2 * n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, _, err := s.MutatePair(ctx, a.ID, b.ID, func(x, y decimal.Decimal) (decimal.Decimal, decimal.Decimal, []models.HistoryEntry, error) {
				return x.Add(one), y.Sub(one), nil, nil
			})
			require.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, _, err := s.MutatePair(ctx, b.ID, a.ID, func(x, y decimal.Decimal) (decimal.Decimal, decimal.Decimal, []models.HistoryEntry, error) {
				return x.Add(one), y.Sub(one), nil, nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	gotA, err := s.Resolve(ctx, "a")
	require.NoError(t, err)
	gotB, err := s.Resolve(ctx, "b")
	require.NoError(t, err)
	require.True(t, gotA.Balance.Add(gotB.Balance).IsZero(), "conservation violated: %s + %s", gotA.Balance, gotB.Balance)
}

func TestEntryStamping(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	a, err := s.CreateAccount(ctx, "a")
	require.NoError(t, err)
	b, err := s.CreateAccount(ctx, "b")
	require.NoError(t, err)

	_, err = s.Mutate(ctx, a.ID, func(bal decimal.Decimal) (decimal.Decimal, []models.HistoryEntry, error) {
		return bal.Add(dec(t, "10.00")), []models.HistoryEntry{
			{AccountID: a.ID, Kind: models.EntryDeposit, Amount: dec(t, "10.00")},
		}, nil
	})
	require.NoError(t, err)

	_, _, err = s.MutatePair(ctx, a.ID, b.ID, func(x, y decimal.Decimal) (decimal.Decimal, decimal.Decimal, []models.HistoryEntry, error) {
		amount := dec(t, "4.00")
		return x.Sub(amount), y.Add(amount), []models.HistoryEntry{
			{AccountID: a.ID, Kind: models.EntryTransferSent, Amount: amount, Counterparty: &b.ID},
			{AccountID: b.ID, Kind: models.EntryTransferReceived, Amount: amount, Counterparty: &a.ID},
		}, nil
	})
	require.NoError(t, err)

	entries, err := s.AllEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// IDs are unique and monotonically increasing; timestamps never
	// decrease; a transfer pair shares one timestamp.
	for i, e := range entries {
		require.Equal(t, int64(i+1), e.ID)
		require.False(t, e.Timestamp.IsZero())
		if i > 0 {
			require.False(t, e.Timestamp.Before(entries[i-1].Timestamp))
		}
	}
	require.True(t, entries[1].Timestamp.Equal(entries[2].Timestamp))
}

func TestEntriesByAccountKindFilter(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	a, err := s.CreateAccount(ctx, "a")
	require.NoError(t, err)

	add := func(kind models.EntryKind) {
		_, err := s.Mutate(ctx, a.ID, func(bal decimal.Decimal) (decimal.Decimal, []models.HistoryEntry, error) {
			return bal, []models.HistoryEntry{{AccountID: a.ID, Kind: kind, Amount: dec(t, "1.00")}}, nil
		})
		require.NoError(t, err)
	}
	add(models.EntryDeposit)
	add(models.EntryWithdrawal)
	add(models.EntryTransferSent)

	deposits, err := s.EntriesByAccount(ctx, a.ID, models.EntryDeposit)
	require.NoError(t, err)
	require.Len(t, deposits, 1)

	transactions, err := s.EntriesByAccount(ctx, a.ID, models.TransactionKinds...)
	require.NoError(t, err)
	require.Len(t, transactions, 2)

	all, err := s.EntriesByAccount(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, all, 3)
}
