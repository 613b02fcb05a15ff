package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"smtp-relay/internal/circuitbreaker"
	"smtp-relay/internal/common/errors"
	httpx "smtp-relay/internal/common/http"
	"smtp-relay/internal/common/logging"
	"smtp-relay/internal/providers"
)

// requestTimeout bounds every call to a provider's token or userinfo
// endpoint. Sends block on token refresh, so this must stay well under any
// upstream mail timeout.
const requestTimeout = 12 * time.Second

// Flow drives the OAuth2 authorization-code lifecycle against the
// configured provider. It is safe for concurrent use; refreshes are
// serialized so parallel sends trigger at most one token exchange.
type Flow struct {
	tokens      *TokenStore
	states      StateStore
	redirectURL string
	client      *http.Client
	breaker     *circuitbreaker.GoBreakerAdapter
	logger      logging.Logger

	// injection points for tests
	lookup func(string) (*providers.Config, bool)
	now    func() time.Time

	refreshMu sync.Mutex
}

// NewFlow creates a flow persisting through the given token store and
// validating callbacks against the given state store. redirectURL is the
// absolute callback URL registered with the provider.
func NewFlow(tokens *TokenStore, states StateStore, redirectURL string, logger logging.Logger) *Flow {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Flow{
		tokens:      tokens,
		states:      states,
		redirectURL: redirectURL,
		client:      httpx.NewClientWithTimeout(requestTimeout),
		breaker:     circuitbreaker.NewGoBreaker("oauth-token-endpoint", circuitbreaker.OAuthConfig, logger),
		logger:      logger,
		lookup:      providers.Get,
		now:         time.Now,
	}
}

// AuthorizationURL builds the consent URL for the given provider,
// registering a fresh single-use state token bound to that provider.
func (f *Flow) AuthorizationURL(ctx context.Context, providerKey string) (string, error) {
	provider, ok := f.lookup(providerKey)
	if !ok {
		return "", errors.UnknownProviderError(providerKey)
	}

	cred, err := f.tokens.Load(ctx)
	if err != nil {
		return "", err
	}
	if !cred.HasClientCredentials() {
		return "", errors.MissingClientCredentialsError(provider.Key)
	}

	state, err := NewState()
	if err != nil {
		return "", err
	}
	if err := f.states.Put(ctx, state, provider.Key); err != nil {
		return "", err
	}

	query := url.Values{}
	query.Set("client_id", cred.ClientID)
	query.Set("redirect_uri", f.redirectURL)
	query.Set("response_type", "code")
	query.Set("scope", strings.Join(provider.Scopes, " "))
	query.Set("state", state)
	for k, v := range provider.AuthParams {
		query.Set(k, v)
	}

	f.logger.Info("Issued authorization URL",
		logging.String("provider", provider.Key))

	return provider.AuthURL + "?" + query.Encode(), nil
}

// HandleCallback completes the authorization round-trip: it consumes the
// state token, exchanges the code for tokens and stores the connected
// credential. The state is consumed before anything else, so a replayed
// callback fails regardless of its code's validity.
func (f *Flow) HandleCallback(ctx context.Context, code, state string) error {
	if state == "" {
		return errors.InvalidStateError("missing state parameter")
	}
	providerKey, ok, err := f.states.Consume(ctx, state)
	if err != nil {
		return err
	}
	if !ok {
		return errors.InvalidStateError("state unknown, expired or already used")
	}
	if code == "" {
		return errors.InvalidStateError("missing authorization code")
	}

	provider, pok := f.lookup(providerKey)
	if !pok {
		return errors.UnknownProviderError(providerKey)
	}

	cred, err := f.tokens.Load(ctx)
	if err != nil {
		return err
	}
	if !cred.HasClientCredentials() {
		return errors.MissingClientCredentialsError(provider.Key)
	}

	token, err := f.requestToken(ctx, provider, url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {cred.ClientID},
		"client_secret": {cred.ClientSecret},
		"redirect_uri":  {f.redirectURL},
	})
	if err != nil {
		return err
	}

	now := f.now()
	cred.Provider = provider.Key
	cred.AccessToken = token.AccessToken
	cred.RefreshToken = token.RefreshToken
	cred.ExpiresAt = token.expiresAt(now)
	cred.AccountEmail = f.resolveAccountEmail(ctx, provider, token)
	cred.ConnectedAt = now

	if err := f.tokens.Save(ctx, cred); err != nil {
		return err
	}

	f.logger.Info("OAuth2 authorization completed",
		logging.String("provider", provider.Key),
		logging.String("account", cred.AccountEmail))
	return nil
}

// AccessToken returns an access token valid for at least RefreshBuffer,
// refreshing first when needed. It returns a credential-unavailable error
// when nothing is connected or the refresh fails; callers must treat that
// as fatal for the current send and not fall back to other auth.
func (f *Flow) AccessToken(ctx context.Context) (string, error) {
	cred, err := f.tokens.Load(ctx)
	if err != nil {
		return "", err
	}
	if cred.AccessToken == "" {
		return "", errors.CredentialUnavailableError("no OAuth2 access token is stored")
	}

	// Unknown expiry means the token is used as-is; a known expiry inside
	// the buffer forces a refresh and returns the refreshed token
	if cred.NeedsRefresh(f.now()) {
		if err := f.Refresh(ctx); err != nil {
			if errors.IsCode(err, errors.CodeCredentialUnavailable) {
				return "", err
			}
			return "", errors.CredentialUnavailableError("token refresh failed").
				WithContext("cause", err.Error())
		}
		if cred, err = f.tokens.Load(ctx); err != nil {
			return "", err
		}
	}

	return cred.AccessToken, nil
}

// Refresh exchanges the stored refresh token for a fresh access token and
// persists the result. On any failure the stored credential is left exactly
// as it was: a transient provider outage must not destroy a working
// refresh token.
func (f *Flow) Refresh(ctx context.Context) error {
	f.refreshMu.Lock()
	defer f.refreshMu.Unlock()

	cred, err := f.tokens.Load(ctx)
	if err != nil {
		return err
	}
	if cred.RefreshToken == "" {
		return errors.CredentialUnavailableError("no refresh token stored, re-authorization required")
	}
	provider, ok := f.lookup(cred.Provider)
	if !ok {
		return errors.UnknownProviderError(cred.Provider)
	}
	if !cred.HasClientCredentials() {
		return errors.MissingClientCredentialsError(provider.Key)
	}

	token, err := f.requestToken(ctx, provider, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {cred.RefreshToken},
		"client_id":     {cred.ClientID},
		"client_secret": {cred.ClientSecret},
	})
	if err != nil {
		f.logger.Error("Token refresh failed", err,
			logging.String("provider", provider.Key))
		return err
	}

	cred.AccessToken = token.AccessToken
	cred.ExpiresAt = token.expiresAt(f.now())
	// Providers may rotate the refresh token on each exchange or omit it
	// entirely; an omitted token means the old one is still valid.
	if token.RefreshToken != "" {
		cred.RefreshToken = token.RefreshToken
	}

	if err := f.tokens.SaveTokens(ctx, cred); err != nil {
		return err
	}

	f.logger.Info("Access token refreshed",
		logging.String("provider", provider.Key),
		logging.Time("expires_at", cred.ExpiresAt))
	return nil
}

// Disconnect removes the stored tokens and account identity, keeping the
// provider choice and client credentials. Disconnecting when nothing is
// connected succeeds.
func (f *Flow) Disconnect(ctx context.Context) error {
	if err := f.tokens.ClearTokens(ctx); err != nil {
		return err
	}
	f.logger.Info("OAuth2 account disconnected")
	return nil
}

// IsConnected reports whether a usable credential is stored
func (f *Flow) IsConnected(ctx context.Context) (bool, error) {
	cred, err := f.tokens.Load(ctx)
	if err != nil {
		return false, err
	}
	return cred.IsConnected(), nil
}

// Status describes the connection for the admin API
type Status struct {
	Connected    bool   `json:"connected"`
	Provider     string `json:"provider,omitempty"`
	AccountEmail string `json:"account_email,omitempty"`
	ConnectedAt  string `json:"connected_at,omitempty"`
	ExpiresAt    string `json:"expires_at,omitempty"`
}

// Status returns the connection state for display. Token values are never
// included.
func (f *Flow) Status(ctx context.Context) (*Status, error) {
	cred, err := f.tokens.Load(ctx)
	if err != nil {
		return nil, err
	}

	status := &Status{
		Connected: cred.IsConnected(),
		Provider:  cred.Provider,
	}
	if status.Connected {
		status.AccountEmail = cred.AccountEmail
		if !cred.ConnectedAt.IsZero() {
			status.ConnectedAt = cred.ConnectedAt.UTC().Format(time.RFC3339)
		}
		if !cred.ExpiresAt.IsZero() {
			status.ExpiresAt = cred.ExpiresAt.UTC().Format(time.RFC3339)
		}
	}
	return status, nil
}

// tokenResponse is the provider's token endpoint reply for both the code
// and refresh grants
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	IDToken      string `json:"id_token"`
	ErrorCode    string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}

// expiresAt converts the relative expires_in to an absolute deadline.
// Providers that omit expires_in yield the zero time, meaning expiry is
// unknown and the token is used as-is until a send fails.
func (t *tokenResponse) expiresAt(now time.Time) time.Time {
	if t.ExpiresIn <= 0 {
		return time.Time{}
	}
	return now.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// requestToken POSTs a form-encoded grant to the provider's token endpoint.
// The call runs inside the circuit breaker so a dead endpoint fails fast
// instead of stalling every send for the full timeout.
func (f *Flow) requestToken(ctx context.Context, provider *providers.Config, form url.Values) (*tokenResponse, error) {
	var token *tokenResponse

	err := f.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			provider.TokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return errors.InternalError("failed to build token request", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")

		resp, err := f.client.Do(req)
		if err != nil {
			// Connection-typed so the breaker counts it; the code keeps the
			// caller-facing taxonomy uniform
			return errors.ConnectionError("token endpoint unreachable", err).
				WithCode(errors.CodeTokenExchangeFailed).
				WithContext("provider", provider.Key)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return errors.TokenExchangeError("failed to read token response", err)
		}

		var parsed tokenResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return errors.TokenExchangeError(
				fmt.Sprintf("token endpoint returned malformed response (status %d)", resp.StatusCode), err)
		}

		if resp.StatusCode != http.StatusOK || parsed.ErrorCode != "" {
			msg := fmt.Sprintf("token endpoint rejected the grant (status %d)", resp.StatusCode)
			if parsed.ErrorCode != "" {
				msg = fmt.Sprintf("token endpoint returned %s: %s", parsed.ErrorCode, parsed.ErrorDesc)
			}
			return errors.TokenExchangeError(msg, nil).
				WithContext("provider", provider.Key)
		}
		if parsed.AccessToken == "" {
			return errors.TokenExchangeError("token endpoint returned no access token", nil)
		}

		token = &parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return token, nil
}

// resolveAccountEmail determines the connected account's address. Gmail
// exposes it through the userinfo API; Office 365 embeds it in the id_token.
// Failure here is cosmetic, the credential works without a display address.
func (f *Flow) resolveAccountEmail(ctx context.Context, provider *providers.Config, token *tokenResponse) string {
	if provider.UserinfoURL != "" {
		if email := f.fetchUserinfoEmail(ctx, token.AccessToken); email != "" {
			return email
		}
	}
	if token.IDToken != "" {
		if email := emailFromIDToken(token.IDToken); email != "" {
			return email
		}
	}
	f.logger.Warn("Could not determine connected account email",
		logging.String("provider", provider.Key))
	return ""
}

// bearerTransport injects the access token so the userinfo service can run
// over our own pooled client
type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.token)
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}

func (f *Flow) fetchUserinfoEmail(ctx context.Context, accessToken string) string {
	authed := &http.Client{
		Timeout:   f.client.Timeout,
		Transport: &bearerTransport{token: accessToken, base: f.client.Transport},
	}

	svc, err := goauth2.NewService(ctx, option.WithHTTPClient(authed))
	if err != nil {
		f.logger.Warn("userinfo service construction failed", logging.Err(err))
		return ""
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		f.logger.Warn("userinfo lookup failed", logging.Err(err))
		return ""
	}
	return info.Email
}

// emailFromIDToken pulls the email claim out of an OpenID Connect id_token.
// The token arrived over TLS directly from the provider's token endpoint,
// so its signature is not re-verified here.
func emailFromIDToken(idToken string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return ""
	}
	if email, ok := claims["email"].(string); ok && email != "" {
		return email
	}
	// Azure AD puts the address in preferred_username for most tenants
	if upn, ok := claims["preferred_username"].(string); ok {
		return upn
	}
	return ""
}
