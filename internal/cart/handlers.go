package cart

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/common"
	"github.com/noah-isme/storefront-core/internal/obs"
)

// Handler wires cart services to HTTP.
type Handler struct {
	Svc *Service
}

// Routes mounts the cart endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/carts", h.Create)
	r.Post("/carts/reconcile", h.Reconcile)
	r.Get("/carts/{cartID}", h.Get)
	r.Post("/carts/{cartID}/items", h.AddItems)
	r.Put("/carts/{cartID}/shipping-address", h.SetShippingAddress)
	r.Post("/carts/{cartID}/totals", h.Totals)
}

// cartView is the client representation of a cart. The hashed access token
// is never exposed and item ids are opaque.
type cartView struct {
	commerce.Cart
	AnonymousAccessToken *string    `json:"anonymousAccessToken,omitempty"`
	ID                   string     `json:"_id"`
	AccountID            string     `json:"accountId,omitempty"`
	Items                []itemView `json:"items"`
}

type itemView struct {
	commerce.CartItem
	ID string `json:"_id"`
}

func viewOf(c commerce.Cart) cartView {
	v := cartView{
		Cart:  c,
		ID:    common.EncodeOpaqueID(common.NamespaceCart, c.ID),
		Items: make([]itemView, 0, len(c.Items)),
	}
	if c.AccountID != nil {
		v.AccountID = common.EncodeOpaqueID(common.NamespaceAccount, *c.AccountID)
	}
	for _, item := range c.Items {
		v.Items = append(v.Items, itemView{CartItem: item, ID: common.EncodeOpaqueID(common.NamespaceCartItem, item.ID)})
	}
	return v
}

func cartIDParam(r *http.Request) string {
	return common.DecodeOpaqueID(common.NamespaceCart, strings.TrimSpace(chi.URLParam(r, "cartID")))
}

// Create handles POST /carts.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateCartInput
	if err := common.DecodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	in.ShopID = common.DecodeOpaqueID(common.NamespaceShop, in.ShopID)
	res, err := h.Svc.CreateCart(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSONData(w, http.StatusCreated, map[string]any{
		"cart":                     viewOf(res.Cart),
		"token":                    res.Token,
		"incorrectPriceFailures":   res.IncorrectPriceFailures,
		"minOrderQuantityFailures": res.MinOrderQuantityFailures,
	})
}

// Get handles GET /carts/{cartID}. Anonymous carts require the token as
// ?token= or the X-Cart-Token header.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	cartID := cartIDParam(r)
	token := common.CartToken(r)
	if _, ok := common.AccountID(r.Context()); !ok {
		cart, err := h.Svc.AnonymousCartByCartID(r.Context(), AnonymousCartQuery{
			CartID:   cartID,
			Token:    token,
			Language: r.URL.Query().Get("language"),
		})
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		common.JSONData(w, http.StatusOK, viewOf(cart))
		return
	}
	cart, err := h.Svc.GetCartByID(r.Context(), cartID, GetCartOptions{CartToken: token, ThrowIfNotFound: true})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSONData(w, http.StatusOK, viewOf(*cart))
}

// AddItems handles POST /carts/{cartID}/items.
func (h *Handler) AddItems(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Items []ItemInput `json:"items"`
	}
	if err := common.DecodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Svc.AddCartItems(r.Context(), AddCartItemsInput{
		CartID: cartIDParam(r),
		Items:  body.Items,
		Token:  common.CartToken(r),
	}, AddCartItemsOptions{})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{
		"cart":                     viewOf(res.Cart),
		"incorrectPriceFailures":   res.IncorrectPriceFailures,
		"minOrderQuantityFailures": res.MinOrderQuantityFailures,
	})
}

// SetShippingAddress handles PUT /carts/{cartID}/shipping-address.
func (h *Handler) SetShippingAddress(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Address   commerce.Address `json:"address"`
		AddressID string           `json:"addressId,omitempty"`
	}
	if err := common.DecodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	cart, err := h.Svc.SetShippingAddressOnCart(r.Context(), SetShippingAddressInput{
		CartID:    cartIDParam(r),
		CartToken: common.CartToken(r),
		Address:   body.Address,
		AddressID: common.DecodeOpaqueID(common.NamespaceAddress, body.AddressID),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{"cart": viewOf(cart)})
}

// Reconcile handles POST /carts/reconcile.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var in ReconcileInput
	if err := common.DecodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	in.AnonymousCartID = common.DecodeOpaqueID(common.NamespaceCart, in.AnonymousCartID)
	cart, err := h.Svc.ReconcileCarts(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{"cart": viewOf(cart)})
}

// Totals handles POST /carts/{cartID}/totals.
func (h *Handler) Totals(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Selections []GroupSelection `json:"selections"`
	}
	if err := common.DecodeJSON(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Svc.RecalculateCartTotals(r.Context(), RecalculateInput{
		CartID:     cartIDParam(r),
		CartToken:  common.CartToken(r),
		Selections: body.Selections,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{"cart": viewOf(res.Cart), "totals": res.Totals})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if common.WriteAppError(w, err) {
		return
	}
	logger := obs.LoggerFromContext(r.Context(), h.Svc.Logger)
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "Cart not found", nil)
		return
	}
	logger.Error().Err(err).Str("route", r.URL.Path).Msg("cart request failed")
	common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "internal error", nil)
}
