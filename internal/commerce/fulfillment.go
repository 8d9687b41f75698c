package commerce

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-core/internal/money"
)

// ShipmentMethod is the method chosen for a fulfillment group together with its quoted cost.
type ShipmentMethod struct {
	ID       string      `json:"_id" bson:"_id"`
	Carrier  string      `json:"carrier" bson:"carrier"`
	Label    string      `json:"label" bson:"label"`
	Name     string      `json:"name,omitempty" bson:"name,omitempty"`
	Group    string      `json:"group,omitempty" bson:"group,omitempty"`
	Cost     money.Money `json:"cost" bson:"cost"`
	Handling money.Money `json:"handling" bson:"handling"`
}

// Surcharge is an extra fee applied to a group.
type Surcharge struct {
	SurchargeID string      `json:"surchargeId" bson:"surchargeId"`
	Type        string      `json:"type" bson:"type"`
	Amount      money.Money `json:"amount" bson:"amount"`
	Reason      string      `json:"reason,omitempty" bson:"reason,omitempty"`
	Message     string      `json:"message,omitempty" bson:"message,omitempty"`
}

// Invoice is the computed breakdown for a fulfillment group.
type Invoice struct {
	CurrencyCode     string          `json:"currencyCode" bson:"currencyCode"`
	Subtotal         money.Money     `json:"subtotal" bson:"subtotal"`
	Shipping         money.Money     `json:"shipping" bson:"shipping"`
	Taxes            money.Money     `json:"taxes" bson:"taxes"`
	Discounts        money.Money     `json:"discounts" bson:"discounts"`
	Surcharges       money.Money     `json:"surcharges" bson:"surcharges"`
	TaxableAmount    money.Money     `json:"taxableAmount" bson:"taxableAmount"`
	EffectiveTaxRate decimal.Decimal `json:"effectiveTaxRate" bson:"effectiveTaxRate"`
	Total            money.Money     `json:"total" bson:"total"`
}

// OrderItem is an item inside a fulfillment group, carrying its own tax figures.
type OrderItem struct {
	ID            string          `json:"_id" bson:"_id"`
	ProductID     string          `json:"productId" bson:"productId"`
	VariantID     string          `json:"variantId" bson:"variantId"`
	ShopID        string          `json:"shopId" bson:"shopId"`
	Title         string          `json:"title" bson:"title"`
	OptionTitle   string          `json:"optionTitle,omitempty" bson:"optionTitle,omitempty"`
	SKU           string          `json:"sku,omitempty" bson:"sku,omitempty"`
	Quantity      int             `json:"quantity" bson:"quantity"`
	Price         money.Money     `json:"price" bson:"price"`
	Subtotal      money.Money     `json:"subtotal" bson:"subtotal"`
	IsTaxable     bool            `json:"isTaxable" bson:"isTaxable"`
	TaxCode       string          `json:"taxCode,omitempty" bson:"taxCode,omitempty"`
	Attributes    []Attribute     `json:"attributes,omitempty" bson:"attributes,omitempty"`
	Tax           money.Money     `json:"tax" bson:"tax"`
	TaxableAmount money.Money     `json:"taxableAmount" bson:"taxableAmount"`
	TaxRate       decimal.Decimal `json:"taxRate" bson:"taxRate"`
	Workflow      Workflow        `json:"workflow" bson:"workflow"`
}

// OrderItemFromCart copies the catalog-derived fields of a cart item.
func OrderItemFromCart(item CartItem) OrderItem {
	return OrderItem{
		ID:          item.ID,
		ProductID:   item.ProductID,
		VariantID:   item.VariantID,
		ShopID:      item.ShopID,
		Title:       item.Title,
		OptionTitle: item.OptionTitle,
		SKU:         item.SKU,
		Quantity:    item.Quantity,
		Price:       item.Price,
		Subtotal:    item.Subtotal,
		IsTaxable:   item.IsTaxable,
		TaxCode:     item.TaxCode,
		Attributes:  append([]Attribute(nil), item.Attributes...),
		Workflow:    Workflow{Status: "new"},
	}
}

// FulfillmentGroup is a subset of items delivered together.
type FulfillmentGroup struct {
	ID             string          `json:"_id" bson:"_id"`
	Type           FulfillmentType `json:"type" bson:"type"`
	ShopID         string          `json:"shopId" bson:"shopId"`
	ItemIDs        []string        `json:"itemIds,omitempty" bson:"itemIds,omitempty"`
	Items          []OrderItem     `json:"items,omitempty" bson:"items,omitempty"`
	Address        *Address        `json:"address,omitempty" bson:"address,omitempty"`
	ShipmentMethod *ShipmentMethod `json:"shipmentMethod,omitempty" bson:"shipmentMethod,omitempty"`
	Surcharges     []Surcharge     `json:"surcharges,omitempty" bson:"surcharges,omitempty"`
	Invoice        *Invoice        `json:"invoice,omitempty" bson:"invoice,omitempty"`
	Tracking       string          `json:"tracking,omitempty" bson:"tracking,omitempty"`
	Workflow       Workflow        `json:"workflow" bson:"workflow"`
}

// ItemSubtotal sums item subtotals of the group.
func (g FulfillmentGroup) ItemSubtotal(currencyCode string) (money.Money, error) {
	values := make([]money.Money, 0, len(g.Items))
	for _, item := range g.Items {
		values = append(values, item.Subtotal)
	}
	return money.Sum(currencyCode, values...)
}

// TotalQuantity returns the number of units in the group.
func (g FulfillmentGroup) TotalQuantity() int {
	n := 0
	for _, item := range g.Items {
		n += item.Quantity
	}
	return n
}
