package shipping

import (
	"context"
	"errors"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/resilience"
)

// GuardedQuoter routes quotes through a circuit breaker. Unknown methods do
// not count as dependency failures.
type GuardedQuoter struct {
	Next    Quoter
	Breaker *resilience.Breaker
}

func isDependencyFailure(err error) bool {
	return !errors.Is(err, ErrMethodNotFound) && !errors.Is(err, context.Canceled)
}

// Quote implements Quoter.
func (g GuardedQuoter) Quote(ctx context.Context, req QuoteRequest) (commerce.ShipmentMethod, error) {
	var out commerce.ShipmentMethod
	err := g.Breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.Next.Quote(ctx, req)
		return err
	}, isDependencyFailure)
	return out, err
}

// Rates implements Quoter.
func (g GuardedQuoter) Rates(ctx context.Context, group commerce.FulfillmentGroup, currencyCode string) ([]commerce.ShipmentMethod, error) {
	var out []commerce.ShipmentMethod
	err := g.Breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.Next.Rates(ctx, group, currencyCode)
		return err
	}, isDependencyFailure)
	return out, err
}
