package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OperationCommitted is published after a ledger operation has committed.
// For transfers both handles are set; for deposits and withdrawals
// CounterpartyHandle is empty.
type OperationCommitted struct {
	OperationID        uuid.UUID       `json:"operation_id"`
	Kind               string          `json:"kind"`
	AccountHandle      string          `json:"account_handle"`
	CounterpartyHandle string          `json:"counterparty_handle,omitempty"`
	Amount             decimal.Decimal `json:"amount"`
	OccurredAt         time.Time       `json:"occurred_at"`
}
