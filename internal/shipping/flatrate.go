package shipping

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/money"
)

// Method is a configured flat-rate shipment method.
type Method struct {
	ID        string
	Carrier   string
	Label     string
	Cost      decimal.Decimal
	Handling  decimal.Decimal
	Countries []string
}

// FlatRateTable quotes a fixed cost per method, optionally restricted to a set of destination countries.
type FlatRateTable struct {
	Methods []Method
}

// Quote implements Quoter.
func (t FlatRateTable) Quote(_ context.Context, req QuoteRequest) (commerce.ShipmentMethod, error) {
	for _, m := range t.Methods {
		if m.ID != req.MethodID {
			continue
		}
		if !m.serves(req.Group.Address) {
			return commerce.ShipmentMethod{}, fmt.Errorf("%w: %s does not ship to destination", ErrMethodNotFound, m.ID)
		}
		return m.quote(req.CurrencyCode), nil
	}
	return commerce.ShipmentMethod{}, fmt.Errorf("%w: %s", ErrMethodNotFound, req.MethodID)
}

// Rates implements Quoter by listing every method that serves the group.
func (t FlatRateTable) Rates(_ context.Context, group commerce.FulfillmentGroup, currencyCode string) ([]commerce.ShipmentMethod, error) {
	out := make([]commerce.ShipmentMethod, 0, len(t.Methods))
	for _, m := range t.Methods {
		if m.serves(group.Address) {
			out = append(out, m.quote(currencyCode))
		}
	}
	return out, nil
}

func (m Method) serves(addr *commerce.Address) bool {
	if len(m.Countries) == 0 {
		return true
	}
	if addr == nil {
		return false
	}
	return slices.Contains(m.Countries, strings.ToUpper(addr.Country))
}

func (m Method) quote(currencyCode string) commerce.ShipmentMethod {
	label := m.Label
	if label == "" {
		label = m.Carrier + " " + m.ID
	}
	return commerce.ShipmentMethod{
		ID:       m.ID,
		Carrier:  m.Carrier,
		Label:    label,
		Name:     m.ID,
		Group:    "Ground",
		Cost:     money.New(m.Cost.Add(m.Handling), currencyCode),
		Handling: money.New(m.Handling, currencyCode),
	}
}

// ParseMethods parses "id:carrier:cost[:CC|CC]" entries, for example
// "standard:DHL:4.90:DE|AT".
func ParseMethods(entries []string) ([]Method, error) {
	methods := make([]Method, 0, len(entries))
	for _, entry := range entries {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) < 3 {
			return nil, fmt.Errorf("shipping: invalid method %q", entry)
		}
		cost, err := decimal.NewFromString(parts[2])
		if err != nil {
			return nil, fmt.Errorf("shipping: invalid cost in %q: %w", entry, err)
		}
		m := Method{ID: parts[0], Carrier: parts[1], Cost: cost}
		if len(parts) > 3 && parts[3] != "" {
			for _, c := range strings.Split(parts[3], "|") {
				m.Countries = append(m.Countries, strings.ToUpper(strings.TrimSpace(c)))
			}
		}
		methods = append(methods, m)
	}
	return methods, nil
}
