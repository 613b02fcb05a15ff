package handlers

import (
	"encoding/json"
	"net/http"

	"smtp-relay/internal/common/errors"
	"smtp-relay/internal/mailer"
)

type testMailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Verbose bool   `json:"verbose"`
}

// SendTestMail sends a test email through the configured transport. With
// verbose set, the transport session log for this one send is returned.
func (h *Handlers) SendTestMail(w http.ResponseWriter, r *http.Request) {
	var req testMailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, errors.ValidationError("request body is not valid JSON"))
		return
	}
	if req.To == "" {
		h.writeError(w, r, errors.ValidationError("recipient address is required"))
		return
	}

	subject := req.Subject
	if subject == "" {
		subject = "SMTP relay test email"
	}

	if req.Verbose {
		h.configurator.RequestVerbose()
	}

	result, err := h.sender.Send(r.Context(), &mailer.Message{
		To:      []string{req.To},
		Subject: subject,
		TextBody: "This is a test email from your SMTP relay.\r\n\r\n" +
			"If you are reading it, the configured transport works.",
		HTMLBody: "<p>This is a test email from your SMTP relay.</p>" +
			"<p>If you are reading it, the configured transport works.</p>",
	})
	if err != nil {
		// A failed verbose send still returns its session log for diagnosis
		if result != nil && len(result.DebugLog) > 0 {
			h.logger.Error("Test send failed", err)
			h.writeJSON(w, http.StatusBadGateway, map[string]interface{}{
				"success":   false,
				"error":     "test send failed",
				"debug_log": result.DebugLog,
			})
			return
		}
		h.writeError(w, r, err)
		return
	}

	resp := map[string]interface{}{"success": true}
	if len(result.DebugLog) > 0 {
		resp["debug_log"] = result.DebugLog
	}
	h.writeJSON(w, http.StatusOK, resp)
}
