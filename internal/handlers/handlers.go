// Package handlers implements the admin HTTP API: provider listing, mail
// settings management, the OAuth2 connect/callback/disconnect endpoints,
// test sends and delivery statistics.
package handlers

import (
	"encoding/json"
	"net/http"

	"smtp-relay/internal/common/errors"
	"smtp-relay/internal/common/logging"
	"smtp-relay/internal/config"
	"smtp-relay/internal/crypto"
	"smtp-relay/internal/mailer"
	"smtp-relay/internal/oauth2"
	"smtp-relay/internal/settings"
	"smtp-relay/internal/stats"
)

type Handlers struct {
	config       *config.Config
	store        settings.Store
	codec        *crypto.SecretCodec
	flow         *oauth2.Flow
	configurator *mailer.Configurator
	sender       *mailer.Sender
	stats        stats.Store
	logger       logging.Logger
}

func New(cfg *config.Config, store settings.Store, codec *crypto.SecretCodec, flow *oauth2.Flow,
	configurator *mailer.Configurator, sender *mailer.Sender, statsStore stats.Store, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Handlers{
		config:       cfg,
		store:        store,
		codec:        codec,
		flow:         flow,
		configurator: configurator,
		sender:       sender,
		stats:        statsStore,
		logger:       logger,
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", err)
	}
}

// writeError maps a domain error to a status code and a user-safe JSON
// body. Full detail (including causes) goes to the operator log only.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("Request failed", err,
		logging.String("method", r.Method),
		logging.String("path", r.URL.Path))

	status := http.StatusInternalServerError
	message := "internal error"
	code := ""

	if appErr, ok := err.(*errors.AppError); ok {
		message = appErr.Message
		code = appErr.Code
		switch {
		case appErr.Code == errors.CodeUnknownProvider:
			status = http.StatusNotFound
		case appErr.Code == errors.CodeInvalidState:
			status = http.StatusBadRequest
			message = "authorization could not be verified, please try connecting again"
		case appErr.Code == errors.CodeMissingClientCredentials:
			status = http.StatusBadRequest
		case appErr.Code == errors.CodeTokenExchangeFailed:
			status = http.StatusBadGateway
			message = "the mail provider rejected the request"
		case appErr.Code == errors.CodeCredentialUnavailable:
			status = http.StatusConflict
		case appErr.Type == errors.ErrTypeValidation, appErr.Type == errors.ErrTypeConfig:
			status = http.StatusBadRequest
		case appErr.Type == errors.ErrTypeNotFound:
			status = http.StatusNotFound
		case appErr.Type == errors.ErrTypeConnection, appErr.Type == errors.ErrTypeTimeout:
			status = http.StatusBadGateway
			message = "upstream connection failed"
		default:
			message = "internal error"
		}
	}

	body := map[string]string{"error": message}
	if code != "" {
		body["code"] = code
	}
	h.writeJSON(w, status, body)
}
