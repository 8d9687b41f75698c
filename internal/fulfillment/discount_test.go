package fulfillment

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-core/internal/money"
)

func TestSplitDiscountProportional(t *testing.T) {
	shares := SplitDiscount(money.MustParse("10", "EUR"), []money.Money{
		money.MustParse("10", "EUR"),
		money.MustParse("20", "EUR"),
	})
	require.Equal(t, "3.33", shares[0].Amount.StringFixed(2))
	require.Equal(t, "6.67", shares[1].Amount.StringFixed(2))
}

func TestSplitDiscountSkipsEmptyGroups(t *testing.T) {
	shares := SplitDiscount(money.MustParse("5", "EUR"), []money.Money{
		money.MustParse("30", "EUR"),
		money.Zero("EUR"),
	})
	require.Equal(t, "5.00", shares[0].Amount.StringFixed(2))
	require.True(t, shares[1].IsZero())
}

func TestSplitDiscountZero(t *testing.T) {
	shares := SplitDiscount(money.Zero("EUR"), []money.Money{money.MustParse("1", "EUR")})
	require.True(t, shares[0].IsZero())
}
