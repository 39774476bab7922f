package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/banking-ledger-core/internal/models"
)

func TestParseAmount(t *testing.T) {
	valid := []string{"0.01", "1", "10.5", "99.99", "1000000.00"}
	for _, s := range valid {
		d, err := ParseAmount(s)
		require.NoError(t, err, "amount %q", s)
		require.True(t, d.IsPositive())
	}

	invalid := []string{"", "abc", "0", "0.00", "-1", "-0.01", "0.001", "1.005", "2.999"}
	for _, s := range invalid {
		_, err := ParseAmount(s)
		require.ErrorIs(t, err, models.ErrInvalidAmount, "amount %q", s)
	}
}

func TestValidateAmountTrailingZeros(t *testing.T) {
	// Extra fractional digits are fine as long as no information sits
	// beyond the second decimal place.
	d, err := ParseAmount("1.5000")
	require.NoError(t, err)
	require.Equal(t, "1.50", d.StringFixed(2))
}
