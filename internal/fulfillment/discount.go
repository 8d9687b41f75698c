package fulfillment

import (
	"github.com/noah-isme/storefront-core/internal/money"
)

// SplitDiscount distributes a cart-level discount across groups in
// proportion to their subtotals. Shares are rounded to currency precision
// and the last group with a positive subtotal absorbs the rounding remainder,
// so the shares always add up to the discount.
func SplitDiscount(discount money.Money, subtotals []money.Money) []money.Money {
	code := discount.CurrencyCode
	shares := make([]money.Money, len(subtotals))
	for i := range shares {
		shares[i] = money.Zero(code)
	}
	if !discount.Amount.IsPositive() || len(subtotals) == 0 {
		return shares
	}

	total := money.Zero(code).Amount
	last := -1
	for i, st := range subtotals {
		if st.Amount.IsPositive() {
			total = total.Add(st.Amount)
			last = i
		}
	}
	if last < 0 {
		shares[len(shares)-1] = discount.Round()
		return shares
	}

	remaining := discount.Round().Amount
	for i, st := range subtotals {
		if !st.Amount.IsPositive() {
			continue
		}
		if i == last {
			shares[i] = money.New(remaining, code)
			break
		}
		share := money.New(discount.Amount.Mul(st.Amount).Div(total), code).Round()
		shares[i] = share
		remaining = remaining.Sub(share.Amount)
	}
	return shares
}
