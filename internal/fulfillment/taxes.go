package fulfillment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/common"
	"github.com/noah-isme/storefront-core/internal/money"
	"github.com/noah-isme/storefront-core/internal/tax"
)

// TaxInput is the input of AddTaxesToGroup.
type TaxInput struct {
	BillingAddress *commerce.Address
	CurrencyCode   string
	DiscountTotal  money.Money
	Group          *commerce.FulfillmentGroup
}

// AddTaxesToGroup computes taxes for the group, writes the per-item tax
// figures onto its items and returns the tax total and taxable amount.
// The taxable amount is the item subtotal less the discount, floored at zero.
func (c *Calculator) AddTaxesToGroup(ctx context.Context, in TaxInput) (money.Money, money.Money, error) {
	if in.Group == nil {
		return money.Money{}, money.Money{}, common.InvalidParam("group is required")
	}
	code := in.CurrencyCode
	subtotal, err := in.Group.ItemSubtotal(code)
	if err != nil {
		return money.Money{}, money.Money{}, fmt.Errorf("fulfillment: subtotal: %w", err)
	}
	taxable, err := subtotal.Sub(in.DiscountTotal)
	if err != nil {
		return money.Money{}, money.Money{}, fmt.Errorf("fulfillment: taxable amount: %w", err)
	}
	taxable = taxable.FloorZero()

	for i := range in.Group.Items {
		in.Group.Items[i].Tax = money.Zero(code)
		in.Group.Items[i].TaxableAmount = money.Zero(code)
		in.Group.Items[i].TaxRate = decimal.Zero
	}
	if c.Tax == nil {
		return money.Zero(code), taxable, nil
	}

	res, err := c.Tax.ComputeTax(ctx, tax.Request{
		Group:          *in.Group,
		BillingAddress: in.BillingAddress,
		TaxableAmount:  taxable,
		CurrencyCode:   code,
	})
	if err != nil {
		return money.Money{}, money.Money{}, fmt.Errorf("fulfillment: compute tax: %w", err)
	}
	byID := make(map[string]tax.ItemTax, len(res.Items))
	for _, it := range res.Items {
		byID[it.ItemID] = it
	}
	for i := range in.Group.Items {
		if it, ok := byID[in.Group.Items[i].ID]; ok {
			in.Group.Items[i].Tax = it.Tax
			in.Group.Items[i].TaxableAmount = it.TaxableAmount
			in.Group.Items[i].TaxRate = it.Rate
		}
	}
	taxTotal := res.TaxTotal
	if taxTotal.CurrencyCode == "" {
		taxTotal = money.New(taxTotal.Amount, code)
	}
	return taxTotal, taxable, nil
}
