package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/banking-ledger-core/internal/models"
)

// ParseAmount parses a caller-supplied monetary string and validates it as a
// ledger amount. Any parse failure is reported as ErrInvalidAmount so the
// caller sees a single correctable failure kind.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, models.ErrInvalidAmount
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Decimal{}, err
	}
	return d, nil
}

// ValidateAmount enforces the amount gate shared by Credit, Debit and
// Transfer: strictly positive and representable with at most two fractional
// digits.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return models.ErrInvalidAmount
	}
	// Truncation at two decimals must not lose information.
	if !amount.Equal(amount.Truncate(2)) {
		return models.ErrInvalidAmount
	}
	return nil
}
