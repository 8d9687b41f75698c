package shop

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/common"
	"github.com/noah-isme/storefront-core/internal/events"
	"github.com/noah-isme/storefront-core/internal/store"
)

func newService(t *testing.T) (*Service, *[]events.ShopCreated) {
	t.Helper()
	var created []events.ShopCreated
	bus := events.NewBus(nil)
	bus.OnShopCreated(func(_ context.Context, ev events.ShopCreated) error {
		created = append(created, ev)
		return nil
	})
	n := 0
	return &Service{
		Shops: store.NewMemory(),
		Bus:   bus,
		NewID: func() string { n++; return fmt.Sprintf("shop-%d", n) },
	}, &created
}

func TestCreateShopEmitsEventAndDerivesSlug(t *testing.T) {
	svc, created := newService(t)

	shop, err := svc.CreateShop(context.Background(), CreateShopInput{
		Name:         "Grüne Möbel & Co",
		ShopType:     commerce.ShopTypePrimary,
		CurrencyCode: "eur",
		Email:        "hello@example.com",
	})
	require.NoError(t, err)
	require.Equal(t, "shop-1", shop.ID)
	require.Equal(t, "grune-mobel-co", shop.Slug)
	require.Equal(t, "EUR", shop.CurrencyCode)
	require.Equal(t, "hello@example.com", shop.PrimaryEmail())
	require.Len(t, *created, 1)
	require.Equal(t, shop.ID, (*created)[0].Shop.ID)

	_, err = svc.CreateShop(context.Background(), CreateShopInput{Name: "Grüne Möbel Co", CurrencyCode: "EUR"})
	require.True(t, common.HasCode(err, common.CodeConflict))
}

func TestCreateShopValidatesInput(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.CreateShop(context.Background(), CreateShopInput{Name: "Shop", CurrencyCode: "EURO"})
	require.True(t, common.HasCode(err, common.CodeValidationError))
	_, err = svc.CreateShop(context.Background(), CreateShopInput{Name: "!!!", CurrencyCode: "EUR"})
	require.True(t, common.HasCode(err, common.CodeInvalidParam))
}

func TestShopQueries(t *testing.T) {
	svc, _ := newService(t)
	primary, err := svc.CreateShop(context.Background(), CreateShopInput{Name: "Main", ShopType: commerce.ShopTypePrimary, CurrencyCode: "EUR"})
	require.NoError(t, err)
	other, err := svc.CreateShop(context.Background(), CreateShopInput{Name: "Outlet", CurrencyCode: "EUR"})
	require.NoError(t, err)

	got, err := svc.PrimaryShop(context.Background())
	require.NoError(t, err)
	require.Equal(t, primary.ID, got.ID)

	got, err = svc.ShopBySlug(context.Background(), "outlet")
	require.NoError(t, err)
	require.Equal(t, other.ID, got.ID)

	got, err = svc.ShopByID(context.Background(), other.ID)
	require.NoError(t, err)
	require.Equal(t, "Outlet", got.Name)

	_, err = svc.ShopBySlug(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = svc.ShopByID(context.Background(), "")
	require.True(t, common.HasCode(err, common.CodeInvalidParam))
}

func TestHandlerPrimaryShop(t *testing.T) {
	svc, _ := newService(t)
	r := chi.NewRouter()
	(&Handler{Svc: svc}).Routes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/shops/primary", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	_, err := svc.CreateShop(context.Background(), CreateShopInput{Name: "Main", ShopType: commerce.ShopTypePrimary, CurrencyCode: "EUR"})
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/shops/primary", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data commerce.Shop `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "shop-1", common.DecodeOpaqueID(common.NamespaceShop, body.Data.ID))
	require.Equal(t, "main", body.Data.Slug)
}
