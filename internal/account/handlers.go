package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storefront-core/internal/common"
	"github.com/noah-isme/storefront-core/internal/obs"
)

// Handler exposes account endpoints.
type Handler struct {
	Svc *Service
}

// Routes mounts the account endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Patch("/accounts/{accountID}/addresses/{addressID}", h.UpdateAddress)
}

// UpdateAddress handles PATCH /accounts/{accountID}/addresses/{addressID}.
func (h *Handler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	var in UpdateAddressInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteAppError(w, err)
		return
	}
	in.AccountID = chi.URLParam(r, "accountID")
	in.AddressID = chi.URLParam(r, "addressID")
	addr, err := h.Svc.UpdateAccountAddressBookEntry(r.Context(), in)
	if err != nil {
		if common.WriteAppError(w, err) {
			return
		}
		logger := obs.LoggerFromContext(r.Context(), h.Svc.Logger)
		logger.Error().Err(err).Msg("update address failed")
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "internal error", nil)
		return
	}
	addr.ID = common.EncodeOpaqueID(common.NamespaceAddress, addr.ID)
	common.JSONData(w, http.StatusOK, map[string]any{"address": addr})
}
