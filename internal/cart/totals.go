package cart

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/common"
	"github.com/noah-isme/storefront-core/internal/events"
	"github.com/noah-isme/storefront-core/internal/fulfillment"
	"github.com/noah-isme/storefront-core/internal/money"
)

// GroupSelection carries the caller's choices for one fulfillment group.
type GroupSelection struct {
	GroupID          string           `json:"groupId" validate:"required"`
	ShipmentMethodID string           `json:"shipmentMethodId,omitempty"`
	ExpectedTotal    *decimal.Decimal `json:"expectedTotal,omitempty"`
}

// GroupTotals pairs a group id with its computed totals.
type GroupTotals struct {
	GroupID string `json:"groupId"`
	fulfillment.Totals
}

// CartTotals aggregates the invoices of all groups.
type CartTotals struct {
	Groups     []GroupTotals `json:"groups"`
	Subtotal   money.Money   `json:"subtotal"`
	Shipping   money.Money   `json:"shipping"`
	Taxes      money.Money   `json:"taxes"`
	Surcharges money.Money   `json:"surcharges"`
	Discounts  money.Money   `json:"discounts"`
	Total      money.Money   `json:"total"`
}

// RecalculateCart runs the group totals pipeline for every group of cart,
// in place. Groups without a selection keep their current shipment method.
// The cart discount is split across groups by subtotal.
func (s *Service) RecalculateCart(ctx context.Context, cart *commerce.Cart, selections []GroupSelection) (CartTotals, error) {
	if s.Totals == nil {
		return CartTotals{}, fmt.Errorf("cart: totals calculator not configured")
	}
	code := cart.CurrencyCode
	bySelection := make(map[string]GroupSelection, len(selections))
	for _, sel := range selections {
		bySelection[sel.GroupID] = sel
	}

	subtotals := make([]money.Money, len(cart.Shipping))
	for i := range cart.Shipping {
		group := &cart.Shipping[i]
		group.Items = groupItems(*cart, *group)
		st, err := group.ItemSubtotal(code)
		if err != nil {
			return CartTotals{}, err
		}
		subtotals[i] = st
	}
	discount := cart.Discount
	if discount.CurrencyCode == "" {
		discount = money.New(discount.Amount, code)
	}
	discounts := fulfillment.SplitDiscount(discount, subtotals)

	out := CartTotals{Groups: make([]GroupTotals, 0, len(cart.Shipping))}
	for i := range cart.Shipping {
		group := &cart.Shipping[i]
		sel, chosen := bySelection[group.ID]
		methodID := sel.ShipmentMethodID
		if !chosen && group.ShipmentMethod != nil {
			methodID = group.ShipmentMethod.ID
		}
		totals, err := s.Totals.UpdateGroupTotals(ctx, fulfillment.Input{
			BillingAddress:              cart.BillingAddress,
			CartID:                      cart.ID,
			CurrencyCode:                code,
			DiscountTotal:               discounts[i],
			ExpectedGroupTotal:          sel.ExpectedTotal,
			Group:                       group,
			SelectedFulfillmentMethodID: methodID,
		})
		if err != nil {
			return CartTotals{}, err
		}
		out.Groups = append(out.Groups, GroupTotals{GroupID: group.ID, Totals: totals})
	}
	return out, sumInvoices(code, cart.Shipping, &out)
}

func sumInvoices(code string, groups []commerce.FulfillmentGroup, out *CartTotals) error {
	var subtotal, shipping, taxes, surcharges, discounts, total []money.Money
	for _, g := range groups {
		if g.Invoice == nil {
			continue
		}
		subtotal = append(subtotal, g.Invoice.Subtotal)
		shipping = append(shipping, g.Invoice.Shipping)
		taxes = append(taxes, g.Invoice.Taxes)
		surcharges = append(surcharges, g.Invoice.Surcharges)
		discounts = append(discounts, g.Invoice.Discounts)
		total = append(total, g.Invoice.Total)
	}
	for _, f := range []struct {
		dst    *money.Money
		values []money.Money
	}{
		{&out.Subtotal, subtotal},
		{&out.Shipping, shipping},
		{&out.Taxes, taxes},
		{&out.Surcharges, surcharges},
		{&out.Discounts, discounts},
		{&out.Total, total},
	} {
		sum, err := money.Sum(code, f.values...)
		if err != nil {
			return err
		}
		*f.dst = sum
	}
	return nil
}

// RecalculateInput asks for fresh totals on a stored cart.
type RecalculateInput struct {
	CartID     string           `json:"cartId" validate:"required"`
	CartToken  string           `json:"cartToken,omitempty"`
	Selections []GroupSelection `json:"selections,omitempty" validate:"dive"`
}

// RecalculateResult is the saved cart with its totals.
type RecalculateResult struct {
	Cart   commerce.Cart `json:"cart"`
	Totals CartTotals    `json:"totals"`
}

// RecalculateCartTotals recalculates and persists the totals of a stored cart.
func (s *Service) RecalculateCartTotals(ctx context.Context, in RecalculateInput) (res RecalculateResult, err error) {
	ctx, span := otel.Tracer("cart.Service").Start(ctx, "Service.RecalculateCartTotals")
	defer func() {
		recordMutation(events.CartUpdateRecalculate, err)
		span.End()
	}()
	if err := common.ValidateStruct(in); err != nil {
		return RecalculateResult{}, err
	}
	cart, err := s.GetCartByID(ctx, in.CartID, GetCartOptions{CartToken: in.CartToken, ThrowIfNotFound: true})
	if err != nil {
		return RecalculateResult{}, err
	}
	totals, err := s.RecalculateCart(ctx, cart, in.Selections)
	if err != nil {
		return RecalculateResult{}, err
	}
	cart.UpdatedAt = s.now()
	saved, err := s.commit(ctx, *cart, events.CartUpdateRecalculate)
	if err != nil {
		return RecalculateResult{}, err
	}
	return RecalculateResult{Cart: saved, Totals: totals}, nil
}
