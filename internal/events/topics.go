package events

import "github.com/noah-isme/storefront-core/internal/commerce"

// Topic names a domain event.
type Topic string

// Topics emitted by the platform.
const (
	TopicAfterCartUpdate          Topic = "afterCartUpdate"
	TopicAfterInventoryUpdate     Topic = "afterInventoryUpdate"
	TopicAfterBulkInventoryUpdate Topic = "afterBulkInventoryUpdate"
	TopicAfterShopCreate          Topic = "afterShopCreate"
	TopicAfterOrderCreate         Topic = "afterOrderCreate"
)

// Cart update types carried by CartUpdated.
const (
	CartUpdateCreate             = "create"
	CartUpdateAddItem            = "addItem"
	CartUpdateSetShippingAddress = "setShippingAddress"
	CartUpdateReconcile          = "reconcile"
	CartUpdateRecalculate        = "recalculate"
)

// CartUpdated is emitted after a cart mutation has been persisted.
type CartUpdated struct {
	Cart commerce.Cart `json:"cart"`
	Type string        `json:"type"`
}

// InventoryUpdated is emitted when stock for a single variant changed.
type InventoryUpdated struct {
	ProductConfiguration commerce.ProductConfiguration `json:"productConfiguration"`
}

// BulkInventoryUpdated is emitted when stock for several variants changed at once.
type BulkInventoryUpdated struct {
	ProductConfigurations []commerce.ProductConfiguration `json:"productConfigurations"`
}

// ShopCreated is emitted after a shop has been created.
type ShopCreated struct {
	Shop commerce.Shop `json:"shop"`
}

// OrderCreated is emitted after checkout persisted an order.
type OrderCreated struct {
	Order commerce.Order `json:"order"`
}

// AllTopics returns every topic known to the bus.
func AllTopics() []Topic {
	return []Topic{
		TopicAfterCartUpdate,
		TopicAfterInventoryUpdate,
		TopicAfterBulkInventoryUpdate,
		TopicAfterShopCreate,
		TopicAfterOrderCreate,
	}
}
