package tax

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/money"
)

var bpsDivisor = decimal.NewFromInt(10000)

// RateTable taxes items at a rate in basis points chosen by the billing
// country, then the shipping country, then DefaultBps.
type RateTable struct {
	DefaultBps    int64
	Jurisdictions map[string]int64
}

// RateFor returns the rate (as a fraction) for the given addresses.
func (t RateTable) RateFor(billing, shipping *commerce.Address) decimal.Decimal {
	bps := t.DefaultBps
	for _, addr := range []*commerce.Address{billing, shipping} {
		if addr == nil || addr.Country == "" {
			continue
		}
		if v, ok := t.Jurisdictions[strings.ToUpper(addr.Country)]; ok {
			bps = v
			break
		}
	}
	return decimal.NewFromInt(bps).Div(bpsDivisor)
}

// ComputeTax implements Provider. The taxable amount is spread over all items
// proportionally to their subtotals; the last item absorbs rounding so the
// shares add up exactly. Only taxable items are charged.
func (t RateTable) ComputeTax(_ context.Context, req Request) (Result, error) {
	code := req.CurrencyCode
	rate := t.RateFor(req.BillingAddress, req.Group.Address)
	subtotal, err := req.Group.ItemSubtotal(code)
	if err != nil {
		return Result{}, fmt.Errorf("tax: %w", err)
	}

	result := Result{TaxTotal: money.Zero(code), Items: make([]ItemTax, 0, len(req.Group.Items))}
	allocated := money.Zero(code)
	last := len(req.Group.Items) - 1
	for i, item := range req.Group.Items {
		var share money.Money
		switch {
		case subtotal.IsZero():
			share = money.Zero(code)
		case i == last:
			share, err = req.TaxableAmount.Sub(allocated)
			if err != nil {
				return Result{}, fmt.Errorf("tax: %w", err)
			}
			share = share.FloorZero()
		default:
			portion := item.Subtotal.Amount.Mul(req.TaxableAmount.Amount).Div(subtotal.Amount)
			share = money.New(portion, code).Round()
		}
		if allocated, err = allocated.Add(share); err != nil {
			return Result{}, fmt.Errorf("tax: %w", err)
		}

		entry := ItemTax{ItemID: item.ID, Tax: money.Zero(code), TaxableAmount: money.Zero(code), Rate: decimal.Zero}
		if item.IsTaxable {
			entry.TaxableAmount = share
			entry.Rate = rate
			entry.Tax = money.New(share.Amount.Mul(rate), code).Round()
		}
		if result.TaxTotal, err = result.TaxTotal.Add(entry.Tax); err != nil {
			return Result{}, fmt.Errorf("tax: %w", err)
		}
		result.Items = append(result.Items, entry)
	}
	return result, nil
}

// ParseJurisdictions parses "DE:1900,AT:2000" style entries.
func ParseJurisdictions(entries []string) (map[string]int64, error) {
	out := make(map[string]int64, len(entries))
	for _, entry := range entries {
		country, bps, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok || country == "" {
			return nil, fmt.Errorf("tax: invalid jurisdiction %q", entry)
		}
		v, err := strconv.ParseInt(strings.TrimSpace(bps), 10, 64)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("tax: invalid rate in %q", entry)
		}
		out[strings.ToUpper(strings.TrimSpace(country))] = v
	}
	return out, nil
}
