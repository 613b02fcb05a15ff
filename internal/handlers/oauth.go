package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"smtp-relay/internal/common/errors"
	"smtp-relay/internal/common/logging"
)

// OAuthStatus reports the connection state of the configured account
func (h *Handlers) OAuthStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.flow.Status(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

// OAuthConnect starts the authorization dance for a provider and returns
// the consent URL the admin must visit
func (h *Handlers) OAuthConnect(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]

	authURL, err := h.flow.AuthorizationURL(r.Context(), provider)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"authorization_url": authURL,
	})
}

// OAuthCallback completes the authorization dance with the code and state
// the provider redirected back with
func (h *Handlers) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	code := query.Get("code")
	state := query.Get("state")

	// Providers report user denial via an error parameter instead of a code
	if denial := query.Get("error"); denial != "" {
		h.logger.Warn("Authorization denied at the provider",
			logging.String("error", denial))
		h.writeError(w, r, errors.InvalidStateError("authorization was denied"))
		return
	}

	if err := h.flow.HandleCallback(r.Context(), code, state); err != nil {
		h.writeError(w, r, err)
		return
	}

	status, err := h.flow.Status(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"account_email": status.AccountEmail,
	})
}

// OAuthDisconnect clears the stored tokens. Safe to call when nothing is
// connected.
func (h *Handlers) OAuthDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.flow.Disconnect(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
