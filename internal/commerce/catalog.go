package commerce

import (
	"time"

	"github.com/noah-isme/storefront-core/internal/money"
)

// Product types.
const (
	ProductTypeSimple  = "simple"
	ProductTypeVariant = "variant"
)

// ImageURLs lists the renditions of a product image.
type ImageURLs struct {
	Large     string `json:"large,omitempty" bson:"large,omitempty"`
	Medium    string `json:"medium,omitempty" bson:"medium,omitempty"`
	Original  string `json:"original,omitempty" bson:"original,omitempty"`
	Small     string `json:"small,omitempty" bson:"small,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty" bson:"thumbnail,omitempty"`
}

// Product is a catalog record. Variants are products of type "variant" whose
// first ancestor is the parent product.
type Product struct {
	ID               string         `json:"_id" bson:"_id"`
	Type             string         `json:"type" bson:"type"`
	ShopID           string         `json:"shopId" bson:"shopId"`
	Ancestors        []string       `json:"ancestors,omitempty" bson:"ancestors,omitempty"`
	Title            string         `json:"title" bson:"title"`
	OptionTitle      string         `json:"optionTitle,omitempty" bson:"optionTitle,omitempty"`
	SKU              string         `json:"sku,omitempty" bson:"sku,omitempty"`
	Price            *money.Money   `json:"price,omitempty" bson:"price,omitempty"`
	MinOrderQuantity int            `json:"minOrderQuantity,omitempty" bson:"minOrderQuantity,omitempty"`
	IsTaxable        bool           `json:"isTaxable" bson:"isTaxable"`
	TaxCode          string         `json:"taxCode,omitempty" bson:"taxCode,omitempty"`
	Weight           float64        `json:"weight,omitempty" bson:"weight,omitempty"`
	InventoryInStock bool           `json:"inventoryInStock" bson:"inventoryInStock"`
	Images           []ImageURLs    `json:"images,omitempty" bson:"images,omitempty"`
	Attributes       map[string]any `json:"attributes,omitempty" bson:"attributes,omitempty"`
	IsVisible        bool           `json:"isVisible" bson:"isVisible"`
	UpdatedAt        time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// ParentID returns the owning product id for variants and the own id otherwise.
func (p Product) ParentID() string {
	if p.Type == ProductTypeVariant && len(p.Ancestors) > 0 {
		return p.Ancestors[0]
	}
	return p.ID
}

// InventoryRecord tracks stock for one variant.
type InventoryRecord struct {
	ProductID        string    `json:"productId" bson:"productId"`
	VariantID        string    `json:"variantId" bson:"_id"`
	InventoryInStock bool      `json:"inventoryInStock" bson:"inventoryInStock"`
	Quantity         int       `json:"inventoryAvailableToSell" bson:"inventoryAvailableToSell"`
	UpdatedAt        time.Time `json:"updatedAt" bson:"updatedAt"`
}

// ProductConfiguration identifies a purchasable variant.
type ProductConfiguration struct {
	ProductID string `json:"productId" bson:"productId" validate:"required"`
	VariantID string `json:"productVariantId" bson:"productVariantId" validate:"required"`
}
