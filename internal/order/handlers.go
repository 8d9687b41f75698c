package order

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/common"
	"github.com/noah-isme/storefront-core/internal/obs"
)

// Handler wires order services to HTTP.
type Handler struct {
	Svc *Service
}

// Routes mounts the order endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/orders", h.Place)
	r.Get("/orders/{orderID}", h.Get)
}

// orderView hides the hashed access tokens and encodes ids.
type orderView struct {
	commerce.Order
	ID                    string  `json:"_id"`
	AccountID             string  `json:"accountId,omitempty"`
	AnonymousAccessTokens *string `json:"anonymousAccessTokens,omitempty"`
}

func viewOf(o commerce.Order) orderView {
	v := orderView{Order: o, ID: common.EncodeOpaqueID(common.NamespaceOrder, o.ID)}
	if o.AccountID != nil {
		v.AccountID = common.EncodeOpaqueID(common.NamespaceAccount, *o.AccountID)
	}
	return v
}

// Place handles POST /orders.
func (h *Handler) Place(w http.ResponseWriter, r *http.Request) {
	var in PlaceOrderInput
	if err := common.DecodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	in.CartID = common.DecodeOpaqueID(common.NamespaceCart, in.CartID)
	if in.CartToken == "" {
		in.CartToken = common.CartToken(r)
	}
	in.IdempotencyKey = r.Header.Get("Idempotency-Key")
	res, err := h.Svc.PlaceOrder(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSONData(w, http.StatusCreated, map[string]any{
		"order":  viewOf(res.Order),
		"totals": res.Totals,
		"token":  res.Token,
	})
}

// Get handles GET /orders/{orderID}. Anonymous readers pass the order
// access token as ?token=.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.Svc.OrderByID(r.Context(), OrderQuery{
		OrderID: common.DecodeOpaqueID(common.NamespaceOrder, strings.TrimSpace(chi.URLParam(r, "orderID"))),
		Token:   r.URL.Query().Get("token"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSONData(w, http.StatusOK, viewOf(order))
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if common.WriteAppError(w, err) {
		return
	}
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "Order not found", nil)
		return
	}
	logger := obs.LoggerFromContext(r.Context(), h.Svc.Logger)
	logger.Error().Err(err).Str("route", r.URL.Path).Msg("order request failed")
	common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "internal error", nil)
}
