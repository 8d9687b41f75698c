// Package store defines the document persistence contracts and an in-memory
// implementation. mongostore and pgstore provide the production backends.
package store

import (
	"context"
	"errors"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/events"
)

var (
	// ErrNotFound is returned when no document matches.
	ErrNotFound = errors.New("store: not found")
	// ErrVersionConflict is returned when a versioned save lost a race.
	ErrVersionConflict = errors.New("store: version conflict")
)

// CartSelector filters carts. Empty fields are ignored; an entirely empty selector matches nothing.
// AnonymousAccessToken must already be hashed.
type CartSelector struct {
	ID                   string
	AccountID            string
	AnonymousAccessToken string
	ShopID               string
}

// IsEmpty reports whether no field is set.
func (s CartSelector) IsEmpty() bool {
	return s.ID == "" && s.AccountID == "" && s.AnonymousAccessToken == "" && s.ShopID == ""
}

// Matches reports whether cart satisfies every set field.
func (s CartSelector) Matches(cart commerce.Cart) bool {
	if s.IsEmpty() {
		return false
	}
	if s.ID != "" && cart.ID != s.ID {
		return false
	}
	if s.AccountID != "" && (cart.AccountID == nil || *cart.AccountID != s.AccountID) {
		return false
	}
	if s.AnonymousAccessToken != "" && (cart.AnonymousAccessToken == nil || *cart.AnonymousAccessToken != s.AnonymousAccessToken) {
		return false
	}
	if s.ShopID != "" && cart.ShopID != s.ShopID {
		return false
	}
	return true
}

// ShopSelector finds a shop by id, slug or type.
type ShopSelector struct {
	ID       string
	Slug     string
	ShopType string
}

// Matches reports whether shop satisfies every set field.
func (s ShopSelector) Matches(shop commerce.Shop) bool {
	if s.ID == "" && s.Slug == "" && s.ShopType == "" {
		return false
	}
	return (s.ID == "" || shop.ID == s.ID) &&
		(s.Slug == "" || shop.Slug == s.Slug) &&
		(s.ShopType == "" || shop.ShopType == s.ShopType)
}

// Carts persists carts. SaveCart inserts documents with version 0 and
// otherwise replaces the stored document only if its version is unchanged,
// returning the saved document with the incremented version.
type Carts interface {
	FindCart(ctx context.Context, sel CartSelector) (commerce.Cart, error)
	SaveCart(ctx context.Context, cart commerce.Cart) (commerce.Cart, error)
	DeleteCart(ctx context.Context, sel CartSelector) error
}

// Orders persists orders with the same versioning rules as carts.
type Orders interface {
	FindOrder(ctx context.Context, id string) (commerce.Order, error)
	SaveOrder(ctx context.Context, order commerce.Order) (commerce.Order, error)
	AddOrderAccessToken(ctx context.Context, orderID string, token commerce.AccessToken) error
}

// Shops persists shops.
type Shops interface {
	FindShop(ctx context.Context, sel ShopSelector) (commerce.Shop, error)
	SaveShop(ctx context.Context, shop commerce.Shop) (commerce.Shop, error)
}

// Products persists catalog records.
type Products interface {
	FindProducts(ctx context.Context, ids []string) ([]commerce.Product, error)
	SaveProduct(ctx context.Context, product commerce.Product) error
	SetInventoryInStock(ctx context.Context, productID string, inStock bool) error
}

// Inventory persists per-variant stock records.
type Inventory interface {
	FindInventory(ctx context.Context, variantID string) (commerce.InventoryRecord, error)
	SaveInventory(ctx context.Context, rec commerce.InventoryRecord) error
}

// Accounts persists accounts with versioning.
type Accounts interface {
	FindAccount(ctx context.Context, id string) (commerce.Account, error)
	SaveAccount(ctx context.Context, account commerce.Account) (commerce.Account, error)
}

// Store is the full persistence surface of the application.
type Store interface {
	Carts
	Orders
	Shops
	Products
	Inventory
	Accounts
	events.Recorder
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
