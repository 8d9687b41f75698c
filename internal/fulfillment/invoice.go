package fulfillment

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/common"
	"github.com/noah-isme/storefront-core/internal/money"
)

// InvoiceInput is the input of AddInvoiceToGroup.
type InvoiceInput struct {
	CurrencyCode        string
	Group               *commerce.FulfillmentGroup
	GroupDiscountTotal  money.Money
	GroupSurchargeTotal money.Money
	TaxableAmount       money.Money
	TaxTotal            money.Money
}

// AddInvoiceToGroup attaches an invoice where
// total = subtotal + shipping + taxes + surcharges - discounts, floored at zero.
// Every amount is rounded to the currency precision.
func AddInvoiceToGroup(in InvoiceInput) error {
	if in.Group == nil {
		return common.InvalidParam("group is required")
	}
	code := in.CurrencyCode
	subtotal, err := in.Group.ItemSubtotal(code)
	if err != nil {
		return fmt.Errorf("fulfillment: invoice subtotal: %w", err)
	}
	shippingTotal := money.Zero(code)
	if in.Group.ShipmentMethod != nil {
		shippingTotal = in.Group.ShipmentMethod.Cost
	}

	subtotal = subtotal.Round()
	shippingTotal = shippingTotal.Round()
	taxes := normalize(in.TaxTotal, code)
	surcharges := normalize(in.GroupSurchargeTotal, code)
	discounts := normalize(in.GroupDiscountTotal, code)
	taxable := normalize(in.TaxableAmount, code)

	total, err := money.Sum(code, subtotal, shippingTotal, taxes, surcharges)
	if err != nil {
		return fmt.Errorf("fulfillment: invoice total: %w", err)
	}
	if total, err = total.Sub(discounts); err != nil {
		return fmt.Errorf("fulfillment: invoice total: %w", err)
	}

	effectiveRate := decimal.Zero
	if taxable.Amount.IsPositive() {
		effectiveRate = taxes.Amount.Div(taxable.Amount).Round(4)
	}

	in.Group.Invoice = &commerce.Invoice{
		CurrencyCode:     code,
		Subtotal:         subtotal,
		Shipping:         shippingTotal,
		Taxes:            taxes,
		Discounts:        discounts,
		Surcharges:       surcharges,
		TaxableAmount:    taxable,
		EffectiveTaxRate: effectiveRate,
		Total:            total.FloorZero(),
	}
	return nil
}

func normalize(m money.Money, code string) money.Money {
	if m.CurrencyCode == "" {
		m = money.New(m.Amount, code)
	}
	return m.Round()
}
