// Package oauth2 implements the OAuth2 credential lifecycle for the relay:
// building authorization URLs, exchanging callback codes, persisting and
// refreshing tokens, and handing a live access token to the mail transport.
package oauth2

import (
	"strconv"
	"time"
)

// Settings keys under which the credential is persisted
const (
	KeyProvider     = "oauth_provider"
	KeyClientID     = "oauth_client_id"
	KeyClientSecret = "oauth_client_secret"
	KeyAccessToken  = "oauth_access_token"
	KeyRefreshToken = "oauth_refresh_token"
	KeyExpiresAt    = "oauth_expires_at"
	KeyAccountEmail = "oauth_account_email"
	KeyConnectedAt  = "oauth_connected_at"
)

// RefreshBuffer is how long before expiry a token is already treated as
// expired. Refreshing early means a send started just before the deadline
// never presents a token the provider has invalidated mid-session.
const RefreshBuffer = 5 * time.Minute

// Credential is the decrypted OAuth2 state of the single configured mail
// account. A zero Credential means nothing is connected.
type Credential struct {
	Provider     string
	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string
	// ExpiresAt is the absolute expiry of AccessToken. The zero time means
	// the expiry is unknown and the token is treated as already expired.
	ExpiresAt    time.Time
	AccountEmail string
	ConnectedAt  time.Time
}

// IsConnected reports whether the credential can authenticate a send:
// both tokens are present after decryption.
func (c *Credential) IsConnected() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}

// NeedsRefresh reports whether the access token must be refreshed before
// use: now is within RefreshBuffer of a known expiry (inclusive). An
// unknown expiry does not force a refresh; some providers omit expires_in
// and validate server-side.
func (c *Credential) NeedsRefresh(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(RefreshBuffer).Before(c.ExpiresAt)
}

// HasClientCredentials reports whether an OAuth2 app is configured
func (c *Credential) HasClientCredentials() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

func parseUnix(s string) time.Time {
	if s == "" || s == "0" {
		return time.Time{}
	}
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil || sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

func formatUnix(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.Unix(), 10)
}
