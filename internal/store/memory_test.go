package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/money"
)

func strPtr(s string) *string { return &s }

func TestSaveCartVersioning(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	saved, err := m.SaveCart(ctx, commerce.Cart{ID: "c1", AccountID: strPtr("acc"), CurrencyCode: "EUR"})
	require.NoError(t, err)
	require.EqualValues(t, 1, saved.Version)

	_, err = m.SaveCart(ctx, commerce.Cart{ID: "c1", AccountID: strPtr("acc")})
	require.ErrorIs(t, err, ErrVersionConflict)

	saved.Items = append(saved.Items, commerce.CartItem{ID: "i1", Quantity: 1, Price: money.MustParse("1", "EUR")})
	again, err := m.SaveCart(ctx, saved)
	require.NoError(t, err)
	require.EqualValues(t, 2, again.Version)

	_, err = m.SaveCart(ctx, saved)
	require.ErrorIs(t, err, ErrVersionConflict, "stale version must be rejected")
}

func TestFindCartBySelector(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.SaveCart(ctx, commerce.Cart{ID: "anon", ShopID: "shop", AnonymousAccessToken: strPtr("hashed")})
	require.NoError(t, err)
	_, err = m.SaveCart(ctx, commerce.Cart{ID: "owned", ShopID: "shop", AccountID: strPtr("acc")})
	require.NoError(t, err)

	got, err := m.FindCart(ctx, CartSelector{ID: "anon", AnonymousAccessToken: "hashed"})
	require.NoError(t, err)
	require.Equal(t, "anon", got.ID)

	_, err = m.FindCart(ctx, CartSelector{ID: "anon", AnonymousAccessToken: "other"})
	require.ErrorIs(t, err, ErrNotFound)

	got, err = m.FindCart(ctx, CartSelector{AccountID: "acc", ShopID: "shop"})
	require.NoError(t, err)
	require.Equal(t, "owned", got.ID)

	_, err = m.FindCart(ctx, CartSelector{})
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.DeleteCart(ctx, CartSelector{ID: "owned", AccountID: "acc"}))
	require.ErrorIs(t, m.DeleteCart(ctx, CartSelector{ID: "owned"}), ErrNotFound)
}

func TestFindCartReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.SaveCart(ctx, commerce.Cart{ID: "c", AccountID: strPtr("a"), Items: []commerce.CartItem{{ID: "i", Quantity: 1}}})
	require.NoError(t, err)

	got, err := m.FindCart(ctx, CartSelector{ID: "c"})
	require.NoError(t, err)
	got.Items[0].Quantity = 99

	again, err := m.FindCart(ctx, CartSelector{ID: "c"})
	require.NoError(t, err)
	require.Equal(t, 1, again.Items[0].Quantity)
}

func TestShopSelectorAndInventory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.SaveShop(ctx, commerce.Shop{ID: "s1", Slug: "main", ShopType: commerce.ShopTypePrimary})
	require.NoError(t, err)

	shop, err := m.FindShop(ctx, ShopSelector{ShopType: commerce.ShopTypePrimary})
	require.NoError(t, err)
	require.Equal(t, "s1", shop.ID)
	_, err = m.FindShop(ctx, ShopSelector{Slug: "missing"})
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.SaveProduct(ctx, commerce.Product{ID: "p1"}))
	require.NoError(t, m.SetInventoryInStock(ctx, "p1", true))
	products, err := m.FindProducts(ctx, []string{"p1", "nope"})
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.True(t, products[0].InventoryInStock)
	require.ErrorIs(t, m.SetInventoryInStock(ctx, "nope", true), ErrNotFound)
}
