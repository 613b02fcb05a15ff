package mailer

import (
	"context"
	"testing"

	"smtp-relay/internal/common/errors"
	"smtp-relay/internal/common/logging"
	"smtp-relay/internal/crypto"
	"smtp-relay/internal/oauth2"
	"smtp-relay/internal/settings"
)

func testLogger() logging.Logger {
	return nil // constructors fall back to the global logger
}

// fakeTransport records every configuration call and send attempt
type fakeTransport struct {
	host       string
	port       int
	encryption string
	authMode   AuthMode
	username   string
	secret     string
	verbose    bool
	sendCalls  int
	sendErr    error
	debug      []string
}

func (f *fakeTransport) SetHost(host string)       { f.host = host }
func (f *fakeTransport) SetPort(port int)          { f.port = port }
func (f *fakeTransport) SetEncryption(mode string) { f.encryption = mode }
func (f *fakeTransport) SetAuthMode(mode AuthMode) { f.authMode = mode }
func (f *fakeTransport) SetVerbose(verbose bool)   { f.verbose = verbose }
func (f *fakeTransport) DebugLog() []string        { return f.debug }

func (f *fakeTransport) SetCredentials(username, secret string) {
	f.username = username
	f.secret = secret
}

func (f *fakeTransport) Send(ctx context.Context, from string, to []string, raw []byte) error {
	f.sendCalls++
	return f.sendErr
}

// fakeTokenSource stands in for the OAuth2 flow
type fakeTokenSource struct {
	token string
	err   error
	calls int
}

func (f *fakeTokenSource) AccessToken(ctx context.Context) (string, error) {
	f.calls++
	return f.token, f.err
}

func newTestConfigurator(t *testing.T, tokens TokenSource) (*Configurator, settings.Store, *crypto.SecretCodec) {
	t.Helper()
	store := settings.NewMemoryStore()
	codec := crypto.NewSecretCodec("test-secret-key", testLogger())
	return NewConfigurator(store, codec, tokens, testLogger()), store, codec
}

func TestConfigurator_PasswordMode(t *testing.T) {
	ctx := context.Background()
	configurator, store, codec := newTestConfigurator(t, &fakeTokenSource{})

	encrypted, err := codec.Encrypt("hunter2")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	store.Save(ctx, map[string]string{
		KeyAuthMode:       AuthModePassword,
		KeySMTPHost:       "mail.example.com",
		KeySMTPPort:       "465",
		KeySMTPEncryption: "ssl",
		KeySMTPUsername:   "admin@example.com",
		KeySMTPPassword:   encrypted,
	})

	transport := &fakeTransport{}
	if err := configurator.Configure(ctx, transport); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	if transport.host != "mail.example.com" || transport.port != 465 {
		t.Errorf("endpoint: got %s:%d", transport.host, transport.port)
	}
	if transport.encryption != "ssl" {
		t.Errorf("encryption: got %q", transport.encryption)
	}
	if transport.authMode != AuthPassword {
		t.Errorf("auth mode: got %q", transport.authMode)
	}
	if transport.username != "admin@example.com" || transport.secret != "hunter2" {
		t.Errorf("credentials: got %q / %q", transport.username, transport.secret)
	}
}

func TestConfigurator_PasswordMode_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing host", func(t *testing.T) {
		configurator, store, _ := newTestConfigurator(t, &fakeTokenSource{})
		store.Save(ctx, map[string]string{KeySMTPPort: "587"})
		err := configurator.Configure(ctx, &fakeTransport{})
		if !errors.IsType(err, errors.ErrTypeConfig) {
			t.Fatalf("expected config error, got %v", err)
		}
	})

	t.Run("bad port", func(t *testing.T) {
		configurator, store, _ := newTestConfigurator(t, &fakeTokenSource{})
		store.Save(ctx, map[string]string{KeySMTPHost: "mail.example.com", KeySMTPPort: "smtp"})
		err := configurator.Configure(ctx, &fakeTransport{})
		if !errors.IsType(err, errors.ErrTypeConfig) {
			t.Fatalf("expected config error, got %v", err)
		}
	})
}

func TestConfigurator_OAuth2Mode(t *testing.T) {
	ctx := context.Background()
	tokens := &fakeTokenSource{token: "ya29.live-token"}
	configurator, store, _ := newTestConfigurator(t, tokens)

	store.Save(ctx, map[string]string{
		KeyAuthMode:          AuthModeOAuth2,
		oauth2.KeyProvider:   "gmail",
		oauth2.KeyAccountEmail: "admin@example.com",
		// Manual settings present but overridden in OAuth2 mode
		KeySMTPHost: "manual.example.com",
		KeySMTPPort: "2525",
	})

	transport := &fakeTransport{}
	if err := configurator.Configure(ctx, transport); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	if transport.host != "smtp.gmail.com" || transport.port != 587 {
		t.Errorf("provider endpoint must override manual settings, got %s:%d",
			transport.host, transport.port)
	}
	if transport.encryption != "tls" {
		t.Errorf("encryption: got %q", transport.encryption)
	}
	if transport.authMode != AuthXOAUTH2 {
		t.Errorf("auth mode: got %q", transport.authMode)
	}
	if transport.username != "admin@example.com" || transport.secret != "ya29.live-token" {
		t.Errorf("credentials: got %q / %q", transport.username, transport.secret)
	}
}

func TestConfigurator_OAuth2Mode_FailsFastWithoutToken(t *testing.T) {
	ctx := context.Background()
	tokens := &fakeTokenSource{err: errors.CredentialUnavailableError("no token")}
	configurator, store, _ := newTestConfigurator(t, tokens)

	store.Save(ctx, map[string]string{
		KeyAuthMode:        AuthModeOAuth2,
		oauth2.KeyProvider: "gmail",
	})

	transport := &fakeTransport{}
	err := configurator.Configure(ctx, transport)
	if !errors.IsCode(err, errors.CodeCredentialUnavailable) {
		t.Fatalf("expected oauth_credential_unavailable, got %v", err)
	}
	if transport.sendCalls != 0 {
		t.Error("transport must not be used when no credential is available")
	}
	if transport.host != "" {
		t.Error("transport must stay unconfigured on failure")
	}
}

func TestConfigurator_OAuth2Mode_UnknownProvider(t *testing.T) {
	ctx := context.Background()
	configurator, store, _ := newTestConfigurator(t, &fakeTokenSource{token: "t"})

	store.Save(ctx, map[string]string{
		KeyAuthMode:        AuthModeOAuth2,
		oauth2.KeyProvider: "yahoo",
	})

	err := configurator.Configure(ctx, &fakeTransport{})
	if !errors.IsCode(err, errors.CodeUnknownProvider) {
		t.Fatalf("expected unknown_provider, got %v", err)
	}
}

func TestConfigurator_VerboseIsOneShot(t *testing.T) {
	ctx := context.Background()
	configurator, store, _ := newTestConfigurator(t, &fakeTokenSource{})

	store.Save(ctx, map[string]string{
		KeySMTPHost: "mail.example.com",
		KeySMTPPort: "587",
	})

	configurator.RequestVerbose()

	first := &fakeTransport{}
	if err := configurator.Configure(ctx, first); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if !first.verbose {
		t.Error("first send after RequestVerbose must be verbose")
	}

	second := &fakeTransport{}
	if err := configurator.Configure(ctx, second); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if second.verbose {
		t.Error("verbose flag must clear after one send")
	}
}
