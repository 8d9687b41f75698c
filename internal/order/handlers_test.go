package order

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-core/internal/common"
)

func TestHandlerPlaceThenGetOrder(t *testing.T) {
	f := newFixture(t)
	f.seedCart(t, "cart-1", anonymous("secret"))
	router := chi.NewRouter()
	(&Handler{Svc: f.svc}).Routes(router)

	body := `{"cartId":"` + common.EncodeOpaqueID(common.NamespaceCart, "cart-1") + `","email":"ada@example.com",` +
		`"fulfillmentMethods":[{"groupId":"group-1","shipmentMethodId":"standard"}],` +
		`"expectedTotal":"26.90","payment":{"method":"in_advance"}}`
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	req.Header.Set("X-Cart-Token", "secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var placed struct {
		Data struct {
			Order map[string]any `json:"order"`
			Token string         `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &placed))
	require.NotEmpty(t, placed.Data.Token)
	require.NotContains(t, placed.Data.Order, "anonymousAccessTokens")
	orderID, _ := placed.Data.Order["_id"].(string)
	require.Equal(t, "order-1", common.DecodeOpaqueID(common.NamespaceOrder, orderID))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/"+orderID+"?token="+placed.Data.Token, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/"+orderID, nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerPlaceOrderRejectsUnknownFields(t *testing.T) {
	f := newFixture(t)
	router := chi.NewRouter()
	(&Handler{Svc: f.svc}).Routes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"cartId":"x","bogus":1}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
