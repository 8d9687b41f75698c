package cart

import "github.com/noah-isme/storefront-core/internal/commerce"

// syncFulfillmentGroups keeps the cart's groups in step with its items:
// ids of removed items are dropped, new items join the first shipping
// group, and a shipping group is created when the cart has none.
func syncFulfillmentGroups(cart *commerce.Cart, newID func() string) {
	present := make(map[string]bool, len(cart.Items))
	for _, item := range cart.Items {
		present[item.ID] = true
	}
	grouped := make(map[string]bool, len(cart.Items))
	for gi := range cart.Shipping {
		group := &cart.Shipping[gi]
		kept := group.ItemIDs[:0]
		for _, id := range group.ItemIDs {
			if present[id] && !grouped[id] {
				kept = append(kept, id)
				grouped[id] = true
			}
		}
		group.ItemIDs = kept
	}

	var ungrouped []string
	for _, item := range cart.Items {
		if !grouped[item.ID] {
			ungrouped = append(ungrouped, item.ID)
		}
	}
	if len(ungrouped) == 0 {
		return
	}
	for gi := range cart.Shipping {
		if cart.Shipping[gi].Type == commerce.FulfillmentShipping {
			cart.Shipping[gi].ItemIDs = append(cart.Shipping[gi].ItemIDs, ungrouped...)
			return
		}
	}
	cart.Shipping = append(cart.Shipping, commerce.FulfillmentGroup{
		ID:       newID(),
		Type:     commerce.FulfillmentShipping,
		ShopID:   cart.ShopID,
		ItemIDs:  ungrouped,
		Workflow: commerce.Workflow{Status: "new"},
	})
}

// groupItems resolves the cart items of a group as order items.
func groupItems(cart commerce.Cart, group commerce.FulfillmentGroup) []commerce.OrderItem {
	out := make([]commerce.OrderItem, 0, len(group.ItemIDs))
	for _, id := range group.ItemIDs {
		if item, ok := cart.ItemByID(id); ok {
			out = append(out, commerce.OrderItemFromCart(item))
		}
	}
	return out
}
