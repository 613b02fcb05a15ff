package handlers

import (
	"net/http"

	"smtp-relay/internal/providers"
)

// GetProviders returns the supported OAuth2 mail providers in display order
func (h *Handlers) GetProviders(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"providers": providers.List(),
	})
}
