package oauth2

import (
	"context"
	"strings"
	"testing"
	"time"

	"smtp-relay/internal/crypto"
	"smtp-relay/internal/settings"
)

func newTestTokenStore(t *testing.T) (*TokenStore, settings.Store) {
	t.Helper()
	store := settings.NewMemoryStore()
	codec := crypto.NewSecretCodec("test-secret-key", testLogger())
	return NewTokenStore(store, codec, testLogger()), store
}

func TestTokenStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	tokens, _ := newTestTokenStore(t)

	saved := &Credential{
		Provider:     "gmail",
		ClientID:     "client123",
		ClientSecret: "secret123",
		AccessToken:  "ya29.access",
		RefreshToken: "1//refresh",
		ExpiresAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		AccountEmail: "admin@example.com",
		ConnectedAt:  time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	if err := tokens.Save(ctx, saved); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := tokens.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.ClientSecret != saved.ClientSecret {
		t.Errorf("client secret: expected %q, got %q", saved.ClientSecret, loaded.ClientSecret)
	}
	if loaded.AccessToken != saved.AccessToken {
		t.Errorf("access token: expected %q, got %q", saved.AccessToken, loaded.AccessToken)
	}
	if loaded.RefreshToken != saved.RefreshToken {
		t.Errorf("refresh token: expected %q, got %q", saved.RefreshToken, loaded.RefreshToken)
	}
	if !loaded.ExpiresAt.Equal(saved.ExpiresAt) {
		t.Errorf("expires at: expected %v, got %v", saved.ExpiresAt, loaded.ExpiresAt)
	}
	if loaded.AccountEmail != saved.AccountEmail {
		t.Errorf("account email: expected %q, got %q", saved.AccountEmail, loaded.AccountEmail)
	}
}

func TestTokenStore_EncryptsAtRest(t *testing.T) {
	ctx := context.Background()
	tokens, raw := newTestTokenStore(t)

	cred := &Credential{
		Provider:     "gmail",
		ClientID:     "client123",
		ClientSecret: "plain-secret",
		AccessToken:  "plain-access",
		RefreshToken: "plain-refresh",
	}
	if err := tokens.Save(ctx, cred); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	fields, err := raw.Load(ctx)
	if err != nil {
		t.Fatalf("raw load failed: %v", err)
	}

	for _, key := range []string{KeyClientSecret, KeyAccessToken, KeyRefreshToken} {
		stored := fields[key]
		if stored == "" {
			t.Errorf("%s missing from stored record", key)
			continue
		}
		if strings.Contains(stored, "plain-") {
			t.Errorf("%s stored in plaintext: %q", key, stored)
		}
	}

	// Non-secret fields stay readable
	if fields[KeyClientID] != "client123" {
		t.Errorf("client id should be stored as-is, got %q", fields[KeyClientID])
	}
}

func TestTokenStore_LoadEmptyRecord(t *testing.T) {
	ctx := context.Background()
	tokens, _ := newTestTokenStore(t)

	cred, err := tokens.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cred.IsConnected() {
		t.Error("empty record must load as a disconnected credential")
	}
	if !cred.ExpiresAt.IsZero() {
		t.Errorf("expected zero expiry, got %v", cred.ExpiresAt)
	}
}

func TestTokenStore_UndecryptableLoadsAsAbsent(t *testing.T) {
	ctx := context.Background()
	raw := settings.NewMemoryStore()

	// Write with one key, read with another: the post-key-change scenario
	writer := NewTokenStore(raw, crypto.NewSecretCodec("old-key", testLogger()), testLogger())
	if err := writer.Save(ctx, &Credential{Provider: "gmail", AccessToken: "at", RefreshToken: "rt"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	reader := NewTokenStore(raw, crypto.NewSecretCodec("new-key", testLogger()), testLogger())
	cred, err := reader.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cred.AccessToken != "" || cred.RefreshToken != "" {
		t.Errorf("tokens sealed under another key must load as empty, got %q / %q",
			cred.AccessToken, cred.RefreshToken)
	}
	if cred.IsConnected() {
		t.Error("credential must read as disconnected after a key change")
	}
}

func TestTokenStore_ClearTokensKeepsClientCredentials(t *testing.T) {
	ctx := context.Background()
	tokens, _ := newTestTokenStore(t)

	if err := tokens.Save(ctx, &Credential{
		Provider:     "gmail",
		ClientID:     "client123",
		ClientSecret: "secret123",
		AccessToken:  "at",
		RefreshToken: "rt",
		AccountEmail: "admin@example.com",
	}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if err := tokens.ClearTokens(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	cred, err := tokens.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cred.IsConnected() {
		t.Error("credential must be disconnected after clear")
	}
	if cred.AccessToken != "" || cred.RefreshToken != "" || cred.AccountEmail != "" {
		t.Error("token fields must be gone after clear")
	}
	if cred.Provider != "gmail" || cred.ClientID != "client123" || cred.ClientSecret != "secret123" {
		t.Error("provider choice and client credentials must survive a clear")
	}

	// Clearing again is a no-op, not an error
	if err := tokens.ClearTokens(ctx); err != nil {
		t.Fatalf("second clear failed: %v", err)
	}
}
