package fulfillment

import (
	"context"
	"errors"
	"fmt"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/common"
	"github.com/noah-isme/storefront-core/internal/shipping"
)

// ShipmentInput is the input of AddShipmentMethodToGroup.
type ShipmentInput struct {
	CartID                      string
	CurrencyCode                string
	Group                       *commerce.FulfillmentGroup
	SelectedFulfillmentMethodID string
}

// AddShipmentMethodToGroup replaces the group's shipment method with a fresh
// quote for the selected method. Without a selection, or when the method is
// unknown for this group, the method is cleared. Other quoting errors are returned.
func (c *Calculator) AddShipmentMethodToGroup(ctx context.Context, in ShipmentInput) error {
	if in.Group == nil {
		return common.InvalidParam("group is required")
	}
	in.Group.ShipmentMethod = nil
	if in.SelectedFulfillmentMethodID == "" || c.Quoter == nil {
		return nil
	}
	method, err := c.Quoter.Quote(ctx, shipping.QuoteRequest{
		MethodID:     in.SelectedFulfillmentMethodID,
		Group:        *in.Group,
		CurrencyCode: in.CurrencyCode,
	})
	if err != nil {
		if errors.Is(err, shipping.ErrMethodNotFound) {
			return nil
		}
		return fmt.Errorf("fulfillment: quote %s: %w", in.SelectedFulfillmentMethodID, err)
	}
	in.Group.ShipmentMethod = &method
	return nil
}
