package mailer

import (
	"context"
	"strconv"
	"sync"

	"smtp-relay/internal/common/errors"
	"smtp-relay/internal/common/logging"
	"smtp-relay/internal/crypto"
	"smtp-relay/internal/oauth2"
	"smtp-relay/internal/providers"
	"smtp-relay/internal/settings"
)

// Settings keys for the manual mail configuration
const (
	KeyAuthMode       = "smtp_auth_mode" // "password" or "oauth2"
	KeySMTPHost       = "smtp_host"
	KeySMTPPort       = "smtp_port"
	KeySMTPEncryption = "smtp_encryption"
	KeySMTPUsername   = "smtp_username"
	KeySMTPPassword   = "smtp_password" // encrypted at rest
	KeyFromEmail      = "mail_from_email"
	KeyFromName       = "mail_from_name"
)

// Auth mode setting values
const (
	AuthModePassword = "password"
	AuthModeOAuth2   = "oauth2"
)

// TokenSource supplies a live access token for XOAUTH2 sends
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Configurator prepares a Transport before each send from the stored mail
// settings. In OAuth2 mode it fails fast when no usable token can be
// produced, before the transport opens any connection; a token problem
// must never surface as a cryptic SMTP handshake error.
type Configurator struct {
	store  settings.Store
	codec  *crypto.SecretCodec
	tokens TokenSource
	logger logging.Logger

	lookup func(string) (*providers.Config, bool)

	mu      sync.Mutex
	verbose bool
}

// NewConfigurator creates a configurator over the stored settings
func NewConfigurator(store settings.Store, codec *crypto.SecretCodec, tokens TokenSource, logger logging.Logger) *Configurator {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Configurator{
		store:  store,
		codec:  codec,
		tokens: tokens,
		logger: logger,
		lookup: providers.Get,
	}
}

// RequestVerbose arms verbose transport logging for the next send only
func (c *Configurator) RequestVerbose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verbose = true
}

func (c *Configurator) takeVerbose() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.verbose
	c.verbose = false
	return v
}

// FromAddress returns the configured sender address and display name
func (c *Configurator) FromAddress(ctx context.Context) (email, name string, err error) {
	fields, err := c.store.Load(ctx)
	if err != nil {
		return "", "", err
	}
	return fields[KeyFromEmail], fields[KeyFromName], nil
}

// Configure resolves the stored settings into the transport. Called once
// per send attempt, before the transport connects.
func (c *Configurator) Configure(ctx context.Context, transport Transport) error {
	fields, err := c.store.Load(ctx)
	if err != nil {
		return err
	}

	if c.takeVerbose() {
		transport.SetVerbose(true)
	}

	if fields[KeyAuthMode] == AuthModeOAuth2 {
		return c.configureOAuth2(ctx, transport, fields)
	}
	return c.configurePassword(transport, fields)
}

func (c *Configurator) configurePassword(transport Transport, fields map[string]string) error {
	host := fields[KeySMTPHost]
	if host == "" {
		return errors.ConfigError("no SMTP host configured")
	}
	port, err := strconv.Atoi(fields[KeySMTPPort])
	if err != nil || port < 1 || port > 65535 {
		return errors.ConfigError("invalid SMTP port configured").
			WithContext("port", fields[KeySMTPPort])
	}

	transport.SetHost(host)
	transport.SetPort(port)
	if enc := fields[KeySMTPEncryption]; enc != "" {
		transport.SetEncryption(enc)
	}
	transport.SetAuthMode(AuthPassword)
	transport.SetCredentials(fields[KeySMTPUsername], c.codec.Decrypt(fields[KeySMTPPassword]))
	return nil
}

func (c *Configurator) configureOAuth2(ctx context.Context, transport Transport, fields map[string]string) error {
	provider, ok := c.lookup(fields[oauth2.KeyProvider])
	if !ok {
		return errors.UnknownProviderError(fields[oauth2.KeyProvider])
	}

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		if errors.IsCode(err, errors.CodeCredentialUnavailable) {
			return err
		}
		return errors.CredentialUnavailableError("could not obtain an access token for sending").
			WithContext("cause", err.Error())
	}
	if token == "" {
		return errors.CredentialUnavailableError("no OAuth2 access token available")
	}

	account := fields[oauth2.KeyAccountEmail]
	if account == "" {
		account = fields[KeyFromEmail]
	}

	// The token is only valid against its issuing provider's server, so
	// the provider's fixed endpoint overrides any manual settings
	transport.SetHost(provider.SMTPHost)
	transport.SetPort(provider.SMTPPort)
	transport.SetEncryption(provider.Encryption)
	transport.SetAuthMode(AuthXOAUTH2)
	transport.SetCredentials(account, token)
	return nil
}
