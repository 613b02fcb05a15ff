package oauth2

import (
	"context"

	"smtp-relay/internal/common/logging"
	"smtp-relay/internal/crypto"
	"smtp-relay/internal/settings"
)

// tokenKeys are the fields Disconnect wipes. Client credentials survive a
// disconnect so the administrator can re-authorize without re-entering them.
var tokenKeys = []string{
	KeyAccessToken,
	KeyRefreshToken,
	KeyExpiresAt,
	KeyAccountEmail,
	KeyConnectedAt,
}

// TokenStore persists the OAuth2 credential in the settings record,
// encrypting the client secret and both tokens at this boundary. Everything
// above it works with plaintext; everything below it never sees any.
type TokenStore struct {
	store  settings.Store
	codec  *crypto.SecretCodec
	logger logging.Logger
}

// NewTokenStore creates a token store over the given settings backend
func NewTokenStore(store settings.Store, codec *crypto.SecretCodec, logger logging.Logger) *TokenStore {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &TokenStore{store: store, codec: codec, logger: logger}
}

// Load reads and decrypts the stored credential. A record with no OAuth
// fields yields a zero Credential, never an error. Fields that fail to
// decrypt load as empty, which downstream reads as "not connected".
func (s *TokenStore) Load(ctx context.Context) (*Credential, error) {
	fields, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	return &Credential{
		Provider:     fields[KeyProvider],
		ClientID:     fields[KeyClientID],
		ClientSecret: s.codec.Decrypt(fields[KeyClientSecret]),
		AccessToken:  s.codec.Decrypt(fields[KeyAccessToken]),
		RefreshToken: s.codec.Decrypt(fields[KeyRefreshToken]),
		ExpiresAt:    parseUnix(fields[KeyExpiresAt]),
		AccountEmail: fields[KeyAccountEmail],
		ConnectedAt:  parseUnix(fields[KeyConnectedAt]),
	}, nil
}

// Save encrypts and writes the full credential with merge semantics:
// settings outside the OAuth fields are untouched.
func (s *TokenStore) Save(ctx context.Context, cred *Credential) error {
	clientSecret, err := s.codec.Encrypt(cred.ClientSecret)
	if err != nil {
		return err
	}
	accessToken, err := s.codec.Encrypt(cred.AccessToken)
	if err != nil {
		return err
	}
	refreshToken, err := s.codec.Encrypt(cred.RefreshToken)
	if err != nil {
		return err
	}

	return s.store.Save(ctx, map[string]string{
		KeyProvider:     cred.Provider,
		KeyClientID:     cred.ClientID,
		KeyClientSecret: clientSecret,
		KeyAccessToken:  accessToken,
		KeyRefreshToken: refreshToken,
		KeyExpiresAt:    formatUnix(cred.ExpiresAt),
		KeyAccountEmail: cred.AccountEmail,
		KeyConnectedAt:  formatUnix(cred.ConnectedAt),
	})
}

// SaveTokens writes only the token fields of the credential, leaving the
// provider choice and client credentials as stored. Used after a refresh.
func (s *TokenStore) SaveTokens(ctx context.Context, cred *Credential) error {
	accessToken, err := s.codec.Encrypt(cred.AccessToken)
	if err != nil {
		return err
	}
	refreshToken, err := s.codec.Encrypt(cred.RefreshToken)
	if err != nil {
		return err
	}

	return s.store.Save(ctx, map[string]string{
		KeyAccessToken:  accessToken,
		KeyRefreshToken: refreshToken,
		KeyExpiresAt:    formatUnix(cred.ExpiresAt),
	})
}

// ClearTokens removes the token fields, keeping the provider choice and
// client credentials. Clearing an already-clear record succeeds.
func (s *TokenStore) ClearTokens(ctx context.Context) error {
	return s.store.Clear(ctx, tokenKeys...)
}
