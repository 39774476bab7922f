package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/banking-ledger-core/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger-core/internal/models"
	"github.com/sheikh-saqib/banking-ledger-core/internal/models/events"
)

// Ledger is the single authority that may alter an account balance. Every
// operation validates its amount, resolves the target account(s), and runs
// its read-modify-write cycle inside the store's mutation scope so the
// sufficiency check and the balance write form one atomic unit together with
// the history append.
type Ledger struct {
	store  interfaces.AccountStore
	events interfaces.EventPublisher // optional
	logger *zap.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithEventPublisher wires a publisher for committed-operation events.
func WithEventPublisher(p interfaces.EventPublisher) Option {
	return func(l *Ledger) { l.events = p }
}

// WithLogger replaces the default no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// New creates a Ledger over the given store.
func New(store interfaces.AccountStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Credit deposits amount into the account addressed by handle and appends
// one deposit entry. Returns the post-operation account.
func (l *Ledger) Credit(ctx context.Context, handle string, amount decimal.Decimal, note string) (models.Account, error) {
	if err := ValidateAmount(amount); err != nil {
		return models.Account{}, err
	}

	acct, err := l.store.Resolve(ctx, handle)
	if err != nil {
		return models.Account{}, err
	}

	updated, err := l.store.Mutate(ctx, acct.ID, func(balance decimal.Decimal) (decimal.Decimal, []models.HistoryEntry, error) {
		entry := models.HistoryEntry{
			AccountID: acct.ID,
			Kind:      models.EntryDeposit,
			Amount:    amount,
			Note:      note,
		}
		return balance.Add(amount), []models.HistoryEntry{entry}, nil
	})
	if err != nil {
		return models.Account{}, err
	}

	l.logger.Info("credit committed",
		zap.String("handle", handle),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("balance", updated.Balance.StringFixed(2)))
	l.publish(ctx, models.EntryDeposit, handle, "", amount)

	return updated, nil
}

// Debit withdraws amount from the account addressed by handle, provided the
// balance observed inside the mutation scope covers it. The sufficiency
// check and the balance write are indivisible with respect to any other
// mutation of the same account, so two concurrent full-balance debits can
// never both succeed.
func (l *Ledger) Debit(ctx context.Context, handle string, amount decimal.Decimal, note string) (models.Account, error) {
	if err := ValidateAmount(amount); err != nil {
		return models.Account{}, err
	}

	acct, err := l.store.Resolve(ctx, handle)
	if err != nil {
		return models.Account{}, err
	}

	updated, err := l.store.Mutate(ctx, acct.ID, func(balance decimal.Decimal) (decimal.Decimal, []models.HistoryEntry, error) {
		if amount.GreaterThan(balance) {
			return decimal.Decimal{}, nil, &models.InsufficientFundsError{
				Requested: amount,
				Available: balance,
			}
		}
		entry := models.HistoryEntry{
			AccountID: acct.ID,
			Kind:      models.EntryWithdrawal,
			Amount:    amount,
			Note:      note,
		}
		return balance.Sub(amount), []models.HistoryEntry{entry}, nil
	})
	if err != nil {
		return models.Account{}, err
	}

	l.logger.Info("debit committed",
		zap.String("handle", handle),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("balance", updated.Balance.StringFixed(2)))
	l.publish(ctx, models.EntryWithdrawal, handle, "", amount)

	return updated, nil
}

// Transfer moves amount from sender to receiver as one atomic unit: both
// balance writes and both history entries (transfer-sent on the sender,
// transfer-received on the receiver, sharing one timestamp) commit together
// or not at all. Returns both post-transfer accounts, sender first.
func (l *Ledger) Transfer(ctx context.Context, senderHandle, receiverHandle string, amount decimal.Decimal, note string) (models.Account, models.Account, error) {
	if err := ValidateAmount(amount); err != nil {
		return models.Account{}, models.Account{}, err
	}

	sender, err := l.store.Resolve(ctx, senderHandle)
	if err != nil {
		return models.Account{}, models.Account{}, errors.Wrapf(err, "sender %q", senderHandle)
	}
	receiver, err := l.store.Resolve(ctx, receiverHandle)
	if err != nil {
		return models.Account{}, models.Account{}, errors.Wrapf(err, "receiver %q", receiverHandle)
	}
	// Compare identities, not handles: both must already resolve, and two
	// distinct handles can never share an account.
	if sender.ID == receiver.ID {
		return models.Account{}, models.Account{}, models.ErrSelfTransfer
	}

	updatedSender, updatedReceiver, err := l.store.MutatePair(ctx, sender.ID, receiver.ID,
		func(senderBalance, receiverBalance decimal.Decimal) (decimal.Decimal, decimal.Decimal, []models.HistoryEntry, error) {
			if amount.GreaterThan(senderBalance) {
				return decimal.Decimal{}, decimal.Decimal{}, nil, &models.InsufficientFundsError{
					Requested: amount,
					Available: senderBalance,
				}
			}
			senderID, receiverID := sender.ID, receiver.ID
			entries := []models.HistoryEntry{
				{
					AccountID:    senderID,
					Kind:         models.EntryTransferSent,
					Amount:       amount,
					Counterparty: &receiverID,
					Note:         note,
				},
				{
					AccountID:    receiverID,
					Kind:         models.EntryTransferReceived,
					Amount:       amount,
					Counterparty: &senderID,
					Note:         note,
				},
			}
			return senderBalance.Sub(amount), receiverBalance.Add(amount), entries, nil
		})
	if err != nil {
		return models.Account{}, models.Account{}, err
	}

	l.logger.Info("transfer committed",
		zap.String("sender", senderHandle),
		zap.String("receiver", receiverHandle),
		zap.String("amount", amount.StringFixed(2)))
	l.publish(ctx, models.EntryTransferSent, senderHandle, receiverHandle, amount)

	return updatedSender, updatedReceiver, nil
}

// Balance returns the current balance of the account addressed by handle.
func (l *Ledger) Balance(ctx context.Context, handle string) (decimal.Decimal, error) {
	acct, err := l.store.Resolve(ctx, handle)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return acct.Balance, nil
}

// History returns the account's full history in commit order.
func (l *Ledger) History(ctx context.Context, handle string) ([]models.HistoryEntry, error) {
	return l.entries(ctx, handle)
}

// Transactions returns the account's deposits and withdrawals only.
func (l *Ledger) Transactions(ctx context.Context, handle string) ([]models.HistoryEntry, error) {
	return l.entries(ctx, handle, models.TransactionKinds...)
}

// Transfers returns the account's sent and received transfer entries only.
func (l *Ledger) Transfers(ctx context.Context, handle string) ([]models.HistoryEntry, error) {
	return l.entries(ctx, handle, models.TransferKinds...)
}

// AllEntries returns the combined history log across all accounts.
func (l *Ledger) AllEntries(ctx context.Context) ([]models.HistoryEntry, error) {
	return l.store.AllEntries(ctx)
}

func (l *Ledger) entries(ctx context.Context, handle string, kinds ...models.EntryKind) ([]models.HistoryEntry, error) {
	acct, err := l.store.Resolve(ctx, handle)
	if err != nil {
		return nil, err
	}
	return l.store.EntriesByAccount(ctx, acct.ID, kinds...)
}

// publish emits an OperationCommitted event. The operation has already
// committed; a publish failure is logged and swallowed.
func (l *Ledger) publish(ctx context.Context, kind models.EntryKind, handle, counterparty string, amount decimal.Decimal) {
	if l.events == nil {
		return
	}
	event := events.OperationCommitted{
		OperationID:        uuid.New(),
		Kind:               string(kind),
		AccountHandle:      handle,
		CounterpartyHandle: counterparty,
		Amount:             amount,
		OccurredAt:         time.Now().UTC(),
	}
	if err := l.events.Publish(ctx, event); err != nil {
		l.logger.Warn("event publish failed",
			zap.String("kind", string(kind)),
			zap.String("handle", handle),
			zap.Error(err))
	}
}
