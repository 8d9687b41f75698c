package commerce

import (
	"time"

	"github.com/noah-isme/storefront-core/internal/money"
)

// FulfillmentType discriminates how a group is delivered.
type FulfillmentType string

const (
	FulfillmentShipping FulfillmentType = "shipping"
	FulfillmentPickup   FulfillmentType = "pickup"
	FulfillmentDigital  FulfillmentType = "digital"
)

// Attribute is a display attribute copied from the catalog onto an item.
type Attribute struct {
	Label string `json:"label" bson:"label"`
	Value string `json:"value" bson:"value"`
}

// CartItem is one line of a cart.
type CartItem struct {
	ID             string       `json:"_id" bson:"_id"`
	ProductID      string       `json:"productId" bson:"productId"`
	VariantID      string       `json:"variantId" bson:"variantId"`
	ShopID         string       `json:"shopId" bson:"shopId"`
	Title          string       `json:"title" bson:"title"`
	OptionTitle    string       `json:"optionTitle,omitempty" bson:"optionTitle,omitempty"`
	SKU            string       `json:"sku,omitempty" bson:"sku,omitempty"`
	Quantity       int          `json:"quantity" bson:"quantity"`
	Price          money.Money  `json:"price" bson:"price"`
	PriceWhenAdded money.Money  `json:"priceWhenAdded" bson:"priceWhenAdded"`
	Subtotal       money.Money  `json:"subtotal" bson:"subtotal"`
	IsTaxable      bool         `json:"isTaxable" bson:"isTaxable"`
	TaxCode        string       `json:"taxCode,omitempty" bson:"taxCode,omitempty"`
	Attributes     []Attribute  `json:"attributes,omitempty" bson:"attributes,omitempty"`
	AddedAt        time.Time    `json:"addedAt" bson:"addedAt"`
	CreatedAt      time.Time    `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt" bson:"updatedAt"`
	Metafields     []Metafield  `json:"metafields,omitempty" bson:"metafields,omitempty"`
	CompareAtPrice *money.Money `json:"compareAtPrice,omitempty" bson:"compareAtPrice,omitempty"`
}

// Workflow records a document's workflow position.
type Workflow struct {
	Status   string   `json:"status" bson:"status"`
	Workflow []string `json:"workflow,omitempty" bson:"workflow,omitempty"`
}

// Cart is a shopper's mutable basket. Exactly one of AccountID and
// AnonymousAccessToken identifies its owner; the token is stored hashed.
type Cart struct {
	ID                   string             `json:"_id" bson:"_id"`
	ShopID               string             `json:"shopId" bson:"shopId"`
	AccountID            *string            `json:"accountId" bson:"accountId"`
	AnonymousAccessToken *string            `json:"anonymousAccessToken" bson:"anonymousAccessToken"`
	CurrencyCode         string             `json:"currencyCode" bson:"currencyCode"`
	Email                string             `json:"email,omitempty" bson:"email,omitempty"`
	Items                []CartItem         `json:"items" bson:"items"`
	Shipping             []FulfillmentGroup `json:"shipping,omitempty" bson:"shipping,omitempty"`
	BillingAddress       *Address           `json:"billingAddress,omitempty" bson:"billingAddress,omitempty"`
	Discount             money.Money        `json:"discount" bson:"discount"`
	Surcharges           []Surcharge        `json:"surcharges,omitempty" bson:"surcharges,omitempty"`
	Workflow             Workflow           `json:"workflow" bson:"workflow"`
	Language             string             `json:"language,omitempty" bson:"language,omitempty"`
	CreatedAt            time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt            time.Time          `json:"updatedAt" bson:"updatedAt"`
	Version              int64              `json:"version" bson:"version"`
}

// IsAnonymous reports whether the cart is owned through an access token.
func (c Cart) IsAnonymous() bool {
	return c.AccountID == nil || *c.AccountID == ""
}

// ItemSubtotal sums the item subtotals in the cart currency.
func (c Cart) ItemSubtotal() (money.Money, error) {
	values := make([]money.Money, 0, len(c.Items))
	for _, item := range c.Items {
		values = append(values, item.Subtotal)
	}
	return money.Sum(c.CurrencyCode, values...)
}

// ItemByID returns the item with the given id.
func (c Cart) ItemByID(id string) (CartItem, bool) {
	for _, item := range c.Items {
		if item.ID == id {
			return item, true
		}
	}
	return CartItem{}, false
}
