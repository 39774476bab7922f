package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is a balance-holding entity addressable by a unique handle.
// Balance is the only field the ledger engine ever mutates and is
// non-negative at every commit boundary.
type Account struct {
	ID        uuid.UUID       `json:"id"`
	Handle    string          `json:"handle"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}
