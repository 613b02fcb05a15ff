package handlers

import (
	"encoding/json"
	"net/http"

	"smtp-relay/internal/common/errors"
	"smtp-relay/internal/mailer"
	"smtp-relay/internal/oauth2"
)

// secretMask replaces stored secrets in API responses
const secretMask = "********"

// settingsResponse is the mail configuration as shown to the admin.
// Secrets are masked, never returned.
type settingsResponse struct {
	AuthMode       string `json:"auth_mode"`
	SMTPHost       string `json:"smtp_host"`
	SMTPPort       string `json:"smtp_port"`
	SMTPEncryption string `json:"smtp_encryption"`
	SMTPUsername   string `json:"smtp_username"`
	SMTPPassword   string `json:"smtp_password"`
	FromEmail      string `json:"from_email"`
	FromName       string `json:"from_name"`
	Provider       string `json:"provider"`
	ClientID       string `json:"client_id"`
	ClientSecret   string `json:"client_secret"`
}

// settingsRequest carries a partial settings update; absent fields are
// left untouched (merge semantics all the way down to the store)
type settingsRequest struct {
	AuthMode       *string `json:"auth_mode"`
	SMTPHost       *string `json:"smtp_host"`
	SMTPPort       *string `json:"smtp_port"`
	SMTPEncryption *string `json:"smtp_encryption"`
	SMTPUsername   *string `json:"smtp_username"`
	SMTPPassword   *string `json:"smtp_password"`
	FromEmail      *string `json:"from_email"`
	FromName       *string `json:"from_name"`
	Provider       *string `json:"provider"`
	ClientID       *string `json:"client_id"`
	ClientSecret   *string `json:"client_secret"`
}

// GetSettings returns the current mail settings with secrets masked
func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	fields, err := h.store.Load(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := settingsResponse{
		AuthMode:       fields[mailer.KeyAuthMode],
		SMTPHost:       fields[mailer.KeySMTPHost],
		SMTPPort:       fields[mailer.KeySMTPPort],
		SMTPEncryption: fields[mailer.KeySMTPEncryption],
		SMTPUsername:   fields[mailer.KeySMTPUsername],
		FromEmail:      fields[mailer.KeyFromEmail],
		FromName:       fields[mailer.KeyFromName],
		Provider:       fields[oauth2.KeyProvider],
		ClientID:       fields[oauth2.KeyClientID],
	}
	if resp.AuthMode == "" {
		resp.AuthMode = mailer.AuthModePassword
	}
	if fields[mailer.KeySMTPPassword] != "" {
		resp.SMTPPassword = secretMask
	}
	if fields[oauth2.KeyClientSecret] != "" {
		resp.ClientSecret = secretMask
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// UpdateSettings merges a partial settings update into the stored record,
// encrypting secrets at this boundary
func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, errors.ValidationError("request body is not valid JSON"))
		return
	}

	if req.AuthMode != nil &&
		*req.AuthMode != mailer.AuthModePassword && *req.AuthMode != mailer.AuthModeOAuth2 {
		h.writeError(w, r, errors.ValidationError("auth_mode must be password or oauth2"))
		return
	}

	fields := make(map[string]string)
	set := func(key string, value *string) {
		if value != nil {
			fields[key] = *value
		}
	}
	set(mailer.KeyAuthMode, req.AuthMode)
	set(mailer.KeySMTPHost, req.SMTPHost)
	set(mailer.KeySMTPPort, req.SMTPPort)
	set(mailer.KeySMTPEncryption, req.SMTPEncryption)
	set(mailer.KeySMTPUsername, req.SMTPUsername)
	set(mailer.KeyFromEmail, req.FromEmail)
	set(mailer.KeyFromName, req.FromName)
	set(oauth2.KeyProvider, req.Provider)
	set(oauth2.KeyClientID, req.ClientID)

	// A masked value echoed back by the frontend is not an update
	if req.SMTPPassword != nil && *req.SMTPPassword != secretMask {
		encrypted, err := h.codec.Encrypt(*req.SMTPPassword)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		fields[mailer.KeySMTPPassword] = encrypted
	}
	if req.ClientSecret != nil && *req.ClientSecret != secretMask {
		encrypted, err := h.codec.Encrypt(*req.ClientSecret)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		fields[oauth2.KeyClientSecret] = encrypted
	}

	if len(fields) == 0 {
		h.writeError(w, r, errors.ValidationError("no settings to update"))
		return
	}

	if err := h.store.Save(r.Context(), fields); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info("Mail settings updated")
	h.GetSettings(w, r)
}
