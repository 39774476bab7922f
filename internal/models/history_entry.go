package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryKind classifies a history entry.
type EntryKind string

const (
	EntryDeposit          EntryKind = "deposit"
	EntryWithdrawal       EntryKind = "withdrawal"
	EntryTransferSent     EntryKind = "transfer-sent"
	EntryTransferReceived EntryKind = "transfer-received"
)

// TransactionKinds are the kinds written by single-account operations.
var TransactionKinds = []EntryKind{EntryDeposit, EntryWithdrawal}

// TransferKinds are the paired kinds written by a transfer.
var TransferKinds = []EntryKind{EntryTransferSent, EntryTransferReceived}

// HistoryEntry is an immutable audit record of one balance-affecting event.
// ID and Timestamp are assigned by the store at commit time; ID is unique and
// monotonically increasing, Timestamp is non-decreasing per account. A
// transfer produces exactly two entries (one per side) sharing a timestamp,
// each naming the other account as Counterparty.
type HistoryEntry struct {
	ID           int64           `json:"id"`
	AccountID    uuid.UUID       `json:"account_id"`
	Kind         EntryKind       `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	Counterparty *uuid.UUID      `json:"counterparty,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
	Note         string          `json:"note,omitempty"`
}
