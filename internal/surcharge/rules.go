// Package surcharge provides the built-in surcharge rules contributed through the plugin registry.
package surcharge

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/money"
	"github.com/noah-isme/storefront-core/internal/plugin"
)

// Surcharge types.
const (
	TypeRegion    = "region"
	TypeHeavyItem = "bulkyItem"
)

// RegionRule adds a fixed fee when the group ships to one of the configured countries.
type RegionRule struct {
	Fees    map[string]decimal.Decimal
	Message string
}

// Surcharges implements plugin.SurchargeRule.
func (r RegionRule) Surcharges(_ context.Context, in plugin.SurchargeContext) ([]commerce.Surcharge, error) {
	addr := in.Group.Address
	if addr == nil || len(r.Fees) == 0 {
		return nil, nil
	}
	country := strings.ToUpper(addr.Country)
	fee, ok := r.Fees[country]
	if !ok || !fee.IsPositive() {
		return nil, nil
	}
	msg := r.Message
	if msg == "" {
		msg = "Remote destination surcharge"
	}
	return []commerce.Surcharge{{
		SurchargeID: "region-" + country,
		Type:        TypeRegion,
		Amount:      money.New(fee, in.CurrencyCode).Round(),
		Reason:      "destination " + country,
		Message:     msg,
	}}, nil
}

// HeavyItemRule charges a per-unit fee for items flagged with the bulky attribute.
type HeavyItemRule struct {
	PerUnit        decimal.Decimal
	AttributeLabel string
}

// Surcharges implements plugin.SurchargeRule.
func (r HeavyItemRule) Surcharges(_ context.Context, in plugin.SurchargeContext) ([]commerce.Surcharge, error) {
	if !r.PerUnit.IsPositive() {
		return nil, nil
	}
	label := r.AttributeLabel
	if label == "" {
		label = "bulky"
	}
	units := int64(0)
	for _, item := range in.Group.Items {
		for _, attr := range item.Attributes {
			if strings.EqualFold(attr.Label, label) && strings.EqualFold(attr.Value, "true") {
				units += int64(item.Quantity)
				break
			}
		}
	}
	if units == 0 {
		return nil, nil
	}
	return []commerce.Surcharge{{
		SurchargeID: "bulky-" + in.Group.ID,
		Type:        TypeHeavyItem,
		Amount:      money.New(r.PerUnit, in.CurrencyCode).Mul(units).Round(),
		Reason:      fmt.Sprintf("%d bulky unit(s)", units),
		Message:     "Bulky item handling",
	}}, nil
}

// ParseFees parses "IS:15.00,NO:9.90" style entries.
func ParseFees(entries []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(entries))
	for _, entry := range entries {
		country, amount, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok || strings.TrimSpace(country) == "" {
			return nil, fmt.Errorf("surcharge: invalid region fee %q", entry)
		}
		fee, err := decimal.NewFromString(strings.TrimSpace(amount))
		if err != nil {
			return nil, fmt.Errorf("surcharge: invalid amount in %q: %w", entry, err)
		}
		out[strings.ToUpper(strings.TrimSpace(country))] = fee
	}
	return out, nil
}

// Plugin bundles the configured rules for registration.
func Plugin(rules ...plugin.SurchargeRule) plugin.Plugin {
	return plugin.Plugin{Name: "surcharges", SurchargeRules: rules}
}
