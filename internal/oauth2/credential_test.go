package oauth2

import (
	"testing"
	"time"
)

func TestCredential_NeedsRefresh(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		cred     *Credential
		expected bool
	}{
		{
			name:     "unknown expiry does not force a refresh",
			cred:     &Credential{AccessToken: "at"},
			expected: false,
		},
		{
			name:     "token valid for an hour does not need refresh",
			cred:     &Credential{AccessToken: "at", ExpiresAt: now.Add(time.Hour)},
			expected: false,
		},
		{
			name:     "token expiring in 2 minutes needs refresh (5 min buffer)",
			cred:     &Credential{AccessToken: "at", ExpiresAt: now.Add(2 * time.Minute)},
			expected: true,
		},
		{
			name:     "token expiring exactly at the buffer edge needs refresh",
			cred:     &Credential{AccessToken: "at", ExpiresAt: now.Add(RefreshBuffer)},
			expected: true,
		},
		{
			name:     "token expiring one second past the buffer does not need refresh",
			cred:     &Credential{AccessToken: "at", ExpiresAt: now.Add(RefreshBuffer + time.Second)},
			expected: false,
		},
		{
			name:     "already expired token needs refresh",
			cred:     &Credential{AccessToken: "at", ExpiresAt: now.Add(-time.Hour)},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cred.NeedsRefresh(now); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestCredential_IsConnected(t *testing.T) {
	tests := []struct {
		name     string
		cred     *Credential
		expected bool
	}{
		{
			name:     "zero credential is not connected",
			cred:     &Credential{},
			expected: false,
		},
		{
			name:     "provider without tokens is not connected",
			cred:     &Credential{Provider: "gmail", ClientID: "id", ClientSecret: "sec"},
			expected: false,
		},
		{
			name:     "refresh token alone is not connected",
			cred:     &Credential{Provider: "gmail", RefreshToken: "rt"},
			expected: false,
		},
		{
			name:     "access token alone is not connected",
			cred:     &Credential{Provider: "office365", AccessToken: "at"},
			expected: false,
		},
		{
			name:     "both tokens present is connected",
			cred:     &Credential{Provider: "gmail", AccessToken: "at", RefreshToken: "rt"},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cred.IsConnected(); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestUnixRoundTrip(t *testing.T) {
	if got := parseUnix(""); !got.IsZero() {
		t.Errorf("expected zero time for empty string, got %v", got)
	}
	if got := parseUnix("0"); !got.IsZero() {
		t.Errorf("expected zero time for %q, got %v", "0", got)
	}
	if got := parseUnix("not-a-number"); !got.IsZero() {
		t.Errorf("expected zero time for garbage, got %v", got)
	}
	if got := formatUnix(time.Time{}); got != "0" {
		t.Errorf("expected %q for zero time, got %q", "0", got)
	}

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if got := parseUnix(formatUnix(at)); !got.Equal(at) {
		t.Errorf("expected %v after round trip, got %v", at, got)
	}
}
