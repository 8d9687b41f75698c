package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/events"
)

// Memory is a process-local Store used in tests and for STORE_DRIVER=memory.
// Documents are deep-copied on the way in and out.
type Memory struct {
	mu        sync.RWMutex
	carts     map[string]commerce.Cart
	orders    map[string]commerce.Order
	shops     map[string]commerce.Shop
	products  map[string]commerce.Product
	inventory map[string]commerce.InventoryRecord
	accounts  map[string]commerce.Account
	records   []events.Record
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		carts:     map[string]commerce.Cart{},
		orders:    map[string]commerce.Order{},
		shops:     map[string]commerce.Shop{},
		products:  map[string]commerce.Product{},
		inventory: map[string]commerce.InventoryRecord{},
		accounts:  map[string]commerce.Account{},
	}
}

func clone[T any](v T) T {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("store: clone: %v", err))
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(fmt.Sprintf("store: clone: %v", err))
	}
	return out
}

// FindCart implements Carts.
func (m *Memory) FindCart(_ context.Context, sel CartSelector) (commerce.Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sel.ID != "" {
		cart, ok := m.carts[sel.ID]
		if ok && sel.Matches(cart) {
			return clone(cart), nil
		}
		return commerce.Cart{}, ErrNotFound
	}
	for _, cart := range m.carts {
		if sel.Matches(cart) {
			return clone(cart), nil
		}
	}
	return commerce.Cart{}, ErrNotFound
}

// SaveCart implements Carts.
func (m *Memory) SaveCart(_ context.Context, cart commerce.Cart) (commerce.Cart, error) {
	if cart.ID == "" {
		return commerce.Cart{}, fmt.Errorf("store: cart id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkVersion(m.carts, cart.ID, cart.Version, func(c commerce.Cart) int64 { return c.Version }); err != nil {
		return commerce.Cart{}, err
	}
	cart.Version++
	m.carts[cart.ID] = clone(cart)
	return clone(cart), nil
}

// DeleteCart implements Carts.
func (m *Memory) DeleteCart(_ context.Context, sel CartSelector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, cart := range m.carts {
		if sel.Matches(cart) {
			delete(m.carts, id)
			return nil
		}
	}
	return ErrNotFound
}

// FindOrder implements Orders.
func (m *Memory) FindOrder(_ context.Context, id string) (commerce.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[id]
	if !ok {
		return commerce.Order{}, ErrNotFound
	}
	return clone(order), nil
}

// SaveOrder implements Orders.
func (m *Memory) SaveOrder(_ context.Context, order commerce.Order) (commerce.Order, error) {
	if order.ID == "" {
		return commerce.Order{}, fmt.Errorf("store: order id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkVersion(m.orders, order.ID, order.Version, func(o commerce.Order) int64 { return o.Version }); err != nil {
		return commerce.Order{}, err
	}
	order.Version++
	m.orders[order.ID] = clone(order)
	return clone(order), nil
}

// AddOrderAccessToken implements Orders.
func (m *Memory) AddOrderAccessToken(_ context.Context, orderID string, token commerce.AccessToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	order.AnonymousAccessTokens = append(order.AnonymousAccessTokens, token)
	m.orders[orderID] = order
	return nil
}

// FindShop implements Shops.
func (m *Memory) FindShop(_ context.Context, sel ShopSelector) (commerce.Shop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, shop := range m.shops {
		if sel.Matches(shop) {
			return clone(shop), nil
		}
	}
	return commerce.Shop{}, ErrNotFound
}

// SaveShop implements Shops.
func (m *Memory) SaveShop(_ context.Context, shop commerce.Shop) (commerce.Shop, error) {
	if shop.ID == "" {
		return commerce.Shop{}, fmt.Errorf("store: shop id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shops[shop.ID] = clone(shop)
	return clone(shop), nil
}

// FindProducts implements Products.
func (m *Memory) FindProducts(_ context.Context, ids []string) ([]commerce.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]commerce.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, clone(p))
		}
	}
	return out, nil
}

// SaveProduct implements Products.
func (m *Memory) SaveProduct(_ context.Context, product commerce.Product) error {
	if product.ID == "" {
		return fmt.Errorf("store: product id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[product.ID] = clone(product)
	return nil
}

// SetInventoryInStock implements Products.
func (m *Memory) SetInventoryInStock(_ context.Context, productID string, inStock bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return ErrNotFound
	}
	p.InventoryInStock = inStock
	m.products[productID] = p
	return nil
}

// FindInventory implements Inventory.
func (m *Memory) FindInventory(_ context.Context, variantID string) (commerce.InventoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.inventory[variantID]
	if !ok {
		return commerce.InventoryRecord{}, ErrNotFound
	}
	return rec, nil
}

// SaveInventory implements Inventory.
func (m *Memory) SaveInventory(_ context.Context, rec commerce.InventoryRecord) error {
	if rec.VariantID == "" {
		return fmt.Errorf("store: variant id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inventory[rec.VariantID] = rec
	return nil
}

// FindAccount implements Accounts.
func (m *Memory) FindAccount(_ context.Context, id string) (commerce.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acc, ok := m.accounts[id]
	if !ok {
		return commerce.Account{}, ErrNotFound
	}
	return clone(acc), nil
}

// SaveAccount implements Accounts.
func (m *Memory) SaveAccount(_ context.Context, account commerce.Account) (commerce.Account, error) {
	if account.ID == "" {
		return commerce.Account{}, fmt.Errorf("store: account id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkVersion(m.accounts, account.ID, account.Version, func(a commerce.Account) int64 { return a.Version }); err != nil {
		return commerce.Account{}, err
	}
	account.Version++
	m.accounts[account.ID] = clone(account)
	return clone(account), nil
}

// RecordEvent implements events.Recorder.
func (m *Memory) RecordEvent(_ context.Context, rec events.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

// Records returns a copy of the recorded events.
func (m *Memory) Records() []events.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]events.Record(nil), m.records...)
}

// Ping implements Store.
func (m *Memory) Ping(context.Context) error { return nil }

// Close implements Store.
func (m *Memory) Close(context.Context) error { return nil }

func checkVersion[T any](docs map[string]T, id string, version int64, versionOf func(T) int64) error {
	existing, ok := docs[id]
	switch {
	case !ok && version == 0:
		return nil
	case !ok:
		return fmt.Errorf("%w: %s no longer exists", ErrVersionConflict, id)
	case versionOf(existing) != version:
		return fmt.Errorf("%w: %s at version %d, have %d", ErrVersionConflict, id, versionOf(existing), version)
	}
	return nil
}

var _ Store = (*Memory)(nil)
