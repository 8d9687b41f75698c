package fulfillment

import (
	"context"
	"fmt"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/money"
	"github.com/noah-isme/storefront-core/internal/plugin"
)

// GroupSurcharges evaluates every registered surcharge rule for the group and
// returns the applicable surcharges with their sum.
func (c *Calculator) GroupSurcharges(ctx context.Context, in plugin.SurchargeContext) ([]commerce.Surcharge, money.Money, error) {
	total := money.Zero(in.CurrencyCode)
	surcharges := []commerce.Surcharge{}
	if c.Surcharges == nil {
		return surcharges, total, nil
	}
	for _, rule := range c.Surcharges.SurchargeRules() {
		found, err := rule.Surcharges(ctx, in)
		if err != nil {
			return nil, money.Money{}, fmt.Errorf("fulfillment: surcharge rule: %w", err)
		}
		for _, s := range found {
			if total, err = total.Add(s.Amount); err != nil {
				return nil, money.Money{}, fmt.Errorf("fulfillment: surcharge %s: %w", s.SurchargeID, err)
			}
			surcharges = append(surcharges, s)
		}
	}
	return surcharges, total, nil
}
