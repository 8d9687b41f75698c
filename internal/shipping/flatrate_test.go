package shipping

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/money"
	"github.com/noah-isme/storefront-core/internal/resilience"
)

func testTable(t *testing.T) FlatRateTable {
	t.Helper()
	methods, err := ParseMethods([]string{"standard:DHL:4.90", "express:UPS:12.50:DE|AT"})
	require.NoError(t, err)
	return FlatRateTable{Methods: methods}
}

func TestQuoteKnownMethod(t *testing.T) {
	method, err := testTable(t).Quote(context.Background(), QuoteRequest{MethodID: "standard", CurrencyCode: "EUR"})
	require.NoError(t, err)
	require.Equal(t, "DHL", method.Carrier)
	require.True(t, method.Cost.Equal(money.MustParse("4.90", "EUR")))
}

func TestQuoteRespectsCountries(t *testing.T) {
	table := testTable(t)
	group := commerce.FulfillmentGroup{Address: &commerce.Address{Country: "fr"}}
	_, err := table.Quote(context.Background(), QuoteRequest{MethodID: "express", Group: group, CurrencyCode: "EUR"})
	require.ErrorIs(t, err, ErrMethodNotFound)

	group.Address.Country = "at"
	_, err = table.Quote(context.Background(), QuoteRequest{MethodID: "express", Group: group, CurrencyCode: "EUR"})
	require.NoError(t, err)

	rates, err := table.Rates(context.Background(), commerce.FulfillmentGroup{}, "EUR")
	require.NoError(t, err)
	require.Len(t, rates, 1)
}

func TestQuoteUnknownMethod(t *testing.T) {
	_, err := testTable(t).Quote(context.Background(), QuoteRequest{MethodID: "drone"})
	require.True(t, errors.Is(err, ErrMethodNotFound))
}

func TestParseMethodsRejectsGarbage(t *testing.T) {
	_, err := ParseMethods([]string{"broken"})
	require.Error(t, err)
	_, err = ParseMethods([]string{"a:b:notanumber"})
	require.Error(t, err)
}

func TestGuardedQuoterDoesNotTripOnUnknownMethods(t *testing.T) {
	breaker := resilience.NewBreaker("shipping-test", 1, 0.5, time.Minute)
	q := GuardedQuoter{Next: testTable(t), Breaker: breaker}
	for i := 0; i < 3; i++ {
		_, err := q.Quote(context.Background(), QuoteRequest{MethodID: "nope"})
		require.ErrorIs(t, err, ErrMethodNotFound)
	}
	require.Equal(t, resilience.Closed, breaker.State())
}
