package surcharge

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/money"
	"github.com/noah-isme/storefront-core/internal/plugin"
)

func TestRegionRule(t *testing.T) {
	fees, err := ParseFees([]string{"is:15"})
	require.NoError(t, err)
	rule := RegionRule{Fees: fees}

	in := plugin.SurchargeContext{CurrencyCode: "EUR", Group: commerce.FulfillmentGroup{Address: &commerce.Address{Country: "IS"}}}
	got, err := rule.Surcharges(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.True(t, got[0].Amount.Equal(money.MustParse("15", "EUR")))

	in.Group.Address.Country = "DE"
	got, err = rule.Surcharges(context.Background(), in)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestHeavyItemRuleCountsUnits(t *testing.T) {
	rule := HeavyItemRule{PerUnit: decimal.RequireFromString("2.50")}
	in := plugin.SurchargeContext{CurrencyCode: "EUR", Group: commerce.FulfillmentGroup{ID: "g1", Items: []commerce.OrderItem{
		{ID: "a", Quantity: 3, Attributes: []commerce.Attribute{{Label: "bulky", Value: "true"}}},
		{ID: "b", Quantity: 5},
	}}}
	got, err := rule.Surcharges(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.True(t, got[0].Amount.Equal(money.MustParse("7.50", "EUR")))
	require.Equal(t, "bulky-g1", got[0].SurchargeID)
}

func TestParseFeesRejectsInvalid(t *testing.T) {
	_, err := ParseFees([]string{"IS"})
	require.Error(t, err)
	_, err = ParseFees([]string{"IS:abc"})
	require.Error(t, err)
}
