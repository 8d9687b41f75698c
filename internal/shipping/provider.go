package shipping

import (
	"context"
	"errors"

	"github.com/noah-isme/storefront-core/internal/commerce"
)

// ErrMethodNotFound is returned when the requested method is unknown or
// cannot serve the group's destination.
var ErrMethodNotFound = errors.New("shipping: method not found")

// QuoteRequest asks for the cost of one method for one fulfillment group.
type QuoteRequest struct {
	MethodID     string
	Group        commerce.FulfillmentGroup
	CurrencyCode string
}

// Quoter prices shipment methods.
type Quoter interface {
	Quote(ctx context.Context, req QuoteRequest) (commerce.ShipmentMethod, error)
	Rates(ctx context.Context, group commerce.FulfillmentGroup, currencyCode string) ([]commerce.ShipmentMethod, error)
}
