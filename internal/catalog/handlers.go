package catalog

import (
	"net/http"
	"strings"

	"github.com/noah-isme/storefront-core/internal/common"
)

// Handler exposes catalog endpoints.
type Handler struct {
	Service *Service
}

// Media handles GET /api/v1/catalog/media?productId=&variantId=.
func (h Handler) Media(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID := common.DecodeOpaqueID(common.NamespaceProduct, strings.TrimSpace(q.Get("productId")))
	variantID := common.DecodeOpaqueID(common.NamespaceProduct, strings.TrimSpace(q.Get("variantId")))
	if productID == "" || variantID == "" {
		common.WriteAppError(w, common.InvalidParam("productId and variantId are required"))
		return
	}
	media := h.Service.FindProductMedia(r.Context(), variantID, productID)
	common.JSONData(w, http.StatusOK, map[string]any{"variant": map[string]any{"media": media}})
}
