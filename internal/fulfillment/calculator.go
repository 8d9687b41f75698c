// Package fulfillment computes the totals of a fulfillment group: the
// selected shipment method, surcharges, taxes and the resulting invoice.
package fulfillment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/common"
	"github.com/noah-isme/storefront-core/internal/money"
	"github.com/noah-isme/storefront-core/internal/obs"
	"github.com/noah-isme/storefront-core/internal/plugin"
	"github.com/noah-isme/storefront-core/internal/shipping"
	"github.com/noah-isme/storefront-core/internal/tax"
)

// SurchargeSource supplies the surcharge rules to evaluate.
type SurchargeSource interface {
	SurchargeRules() []plugin.SurchargeRule
}

// Calculator wires the collaborators used by UpdateGroupTotals.
type Calculator struct {
	Quoter     shipping.Quoter
	Tax        tax.Provider
	Surcharges SurchargeSource
}

// Input is the input of UpdateGroupTotals. Group is mutated in place.
type Input struct {
	BillingAddress              *commerce.Address
	CartID                      string
	OrderID                     string
	CurrencyCode                string
	DiscountTotal               money.Money
	ExpectedGroupTotal          *decimal.Decimal
	Group                       *commerce.FulfillmentGroup
	SelectedFulfillmentMethodID string
}

// Totals is what UpdateGroupTotals reports besides the attached invoice.
type Totals struct {
	GroupSurcharges     []commerce.Surcharge
	GroupSurchargeTotal money.Money
	TaxableAmount       money.Money
	TaxTotal            money.Money
}

// UpdateGroupTotals selects the shipment method, evaluates surcharges,
// computes taxes and attaches a fresh invoice to in.Group. When
// ExpectedGroupTotal is set and differs from the invoice total an "invalid"
// error is returned together with the computed totals; the invoice stays
// attached.
func (c *Calculator) UpdateGroupTotals(ctx context.Context, in Input) (Totals, error) {
	ctx, span := otel.Tracer("fulfillment.Calculator").Start(ctx, "Calculator.UpdateGroupTotals")
	defer span.End()
	span.SetAttributes(attribute.String("cart.id", in.CartID), attribute.String("order.id", in.OrderID))

	started := time.Now()
	totals, err := c.updateGroupTotals(ctx, in)
	obs.IncCounter(obs.GroupTotalsTotal, obs.ResultLabel(err))
	obs.ObserveMillis(obs.GroupTotalsLatency, float64(time.Since(started).Microseconds())/1000)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return totals, err
}

func (c *Calculator) updateGroupTotals(ctx context.Context, in Input) (Totals, error) {
	if in.Group == nil {
		return Totals{}, common.InvalidParam("group is required")
	}
	if in.CurrencyCode == "" {
		return Totals{}, common.InvalidParam("currencyCode is required")
	}
	discount := in.DiscountTotal
	if discount.CurrencyCode == "" {
		discount = money.New(discount.Amount, in.CurrencyCode)
	}
	if discount.IsNegative() {
		return Totals{}, common.InvalidParam("discountTotal must not be negative")
	}

	if err := c.AddShipmentMethodToGroup(ctx, ShipmentInput{
		CartID:                      in.CartID,
		CurrencyCode:                in.CurrencyCode,
		Group:                       in.Group,
		SelectedFulfillmentMethodID: in.SelectedFulfillmentMethodID,
	}); err != nil {
		return Totals{}, err
	}

	surcharges, surchargeTotal, err := c.GroupSurcharges(ctx, plugin.SurchargeContext{
		Group:                       *in.Group,
		BillingAddress:              in.BillingAddress,
		CartID:                      in.CartID,
		OrderID:                     in.OrderID,
		CurrencyCode:                in.CurrencyCode,
		DiscountTotal:               discount,
		SelectedFulfillmentMethodID: in.SelectedFulfillmentMethodID,
	})
	if err != nil {
		return Totals{}, err
	}

	taxTotal, taxableAmount, err := c.AddTaxesToGroup(ctx, TaxInput{
		BillingAddress: in.BillingAddress,
		CurrencyCode:   in.CurrencyCode,
		DiscountTotal:  discount,
		Group:          in.Group,
	})
	if err != nil {
		return Totals{}, err
	}

	in.Group.Surcharges = surcharges
	if err := AddInvoiceToGroup(InvoiceInput{
		CurrencyCode:        in.CurrencyCode,
		Group:               in.Group,
		GroupDiscountTotal:  discount,
		GroupSurchargeTotal: surchargeTotal,
		TaxableAmount:       taxableAmount,
		TaxTotal:            taxTotal,
	}); err != nil {
		return Totals{}, err
	}

	totals := Totals{
		GroupSurcharges:     surcharges,
		GroupSurchargeTotal: surchargeTotal,
		TaxableAmount:       taxableAmount,
		TaxTotal:            taxTotal,
	}
	if in.ExpectedGroupTotal != nil {
		if err := CompareExpectedAndActualTotals(in.Group.Invoice.Total, *in.ExpectedGroupTotal); err != nil {
			return totals, err
		}
	}
	return totals, nil
}
