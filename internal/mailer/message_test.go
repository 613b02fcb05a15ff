package mailer

import (
	"strings"
	"testing"

	"smtp-relay/internal/common/errors"
)

func TestMessage_Validate(t *testing.T) {
	tests := []struct {
		name    string
		msg     *Message
		wantErr bool
	}{
		{
			name:    "valid message",
			msg:     &Message{From: "a@example.com", To: []string{"b@example.com"}},
			wantErr: false,
		},
		{
			name:    "missing from",
			msg:     &Message{To: []string{"b@example.com"}},
			wantErr: true,
		},
		{
			name:    "no recipients",
			msg:     &Message{From: "a@example.com"},
			wantErr: true,
		},
		{
			name:    "malformed recipient",
			msg:     &Message{From: "a@example.com", To: []string{"not-an-address"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.wantErr && !errors.IsType(err, errors.ErrTypeValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestMessage_BuildPlain(t *testing.T) {
	msg := &Message{
		From:     "relay@example.com",
		FromName: "Relay Admin",
		To:       []string{"user@example.com"},
		Subject:  "Test email",
		TextBody: "It works.",
	}

	raw, err := msg.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	body := string(raw)

	for _, want := range []string{
		"Relay Admin",
		"relay@example.com",
		"user@example.com",
		"Subject: Test email",
		"Message-Id:",
		"It works.",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("message missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "multipart") {
		t.Error("plain-only message must not be multipart")
	}
}

func TestMessage_BuildMultipart(t *testing.T) {
	msg := &Message{
		From:     "relay@example.com",
		To:       []string{"user@example.com"},
		Subject:  "Test email",
		TextBody: "plain version",
		HTMLBody: "<p>html version</p>",
	}

	raw, err := msg.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	body := string(raw)

	for _, want := range []string{
		"multipart/alternative",
		"text/plain",
		"text/html",
		"plain version",
		"<p>html version</p>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestMessage_UniqueMessageIDs(t *testing.T) {
	msg := &Message{From: "a@example.com", To: []string{"b@example.com"}, TextBody: "x"}

	first, err := msg.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	second, err := msg.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if extractHeader(t, string(first), "Message-Id") == extractHeader(t, string(second), "Message-Id") {
		t.Error("each build must get its own message id")
	}
}

func extractHeader(t *testing.T, body, name string) string {
	t.Helper()
	for _, line := range strings.Split(body, "\r\n") {
		if strings.HasPrefix(line, name+":") {
			return line
		}
	}
	t.Fatalf("header %s not found", name)
	return ""
}
