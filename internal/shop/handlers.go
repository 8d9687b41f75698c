package shop

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storefront-core/internal/common"
	"github.com/noah-isme/storefront-core/internal/obs"
)

// Handler exposes shop queries.
type Handler struct {
	Svc *Service
}

// Routes mounts the shop endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/shops/primary", h.Primary)
	r.Get("/shops/{slug}", h.BySlug)
}

// Primary handles GET /shops/primary.
func (h *Handler) Primary(w http.ResponseWriter, r *http.Request) {
	shop, err := h.Svc.PrimaryShop(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	shop.ID = common.EncodeOpaqueID(common.NamespaceShop, shop.ID)
	common.JSONData(w, http.StatusOK, shop)
}

// BySlug handles GET /shops/{slug}.
func (h *Handler) BySlug(w http.ResponseWriter, r *http.Request) {
	shop, err := h.Svc.ShopBySlug(r.Context(), strings.TrimSpace(chi.URLParam(r, "slug")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	shop.ID = common.EncodeOpaqueID(common.NamespaceShop, shop.ID)
	common.JSONData(w, http.StatusOK, shop)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if common.WriteAppError(w, err) {
		return
	}
	logger := obs.LoggerFromContext(r.Context(), h.Svc.Logger)
	logger.Error().Err(err).Msg("shop request failed")
	common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "internal error", nil)
}
