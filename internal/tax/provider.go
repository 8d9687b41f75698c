// Package tax computes taxes for fulfillment groups.
package tax

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/money"
)

// Request describes one group to tax. TaxableAmount is the group subtotal
// less its discount, never negative.
type Request struct {
	Group          commerce.FulfillmentGroup
	BillingAddress *commerce.Address
	TaxableAmount  money.Money
	CurrencyCode   string
}

// ItemTax is the tax computed for one item of the group.
type ItemTax struct {
	ItemID        string
	Tax           money.Money
	TaxableAmount money.Money
	Rate          decimal.Decimal
}

// Result is the outcome of ComputeTax. TaxTotal equals the sum of Items[].Tax.
type Result struct {
	TaxTotal money.Money
	Items    []ItemTax
}

// Provider computes taxes.
type Provider interface {
	ComputeTax(ctx context.Context, req Request) (Result, error)
}
