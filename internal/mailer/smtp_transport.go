package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"sync"
	"time"

	"smtp-relay/internal/common/errors"
	"smtp-relay/internal/common/logging"
	"smtp-relay/internal/providers"
)

// dialTimeout bounds connection setup; the context deadline bounds the
// rest of the session
const dialTimeout = 10 * time.Second

// SMTPTransport implements Transport over net/smtp. It supports plain
// connections, STARTTLS upgrade and implicit TLS, with PLAIN or XOAUTH2
// authentication. Not safe for concurrent Sends; the sender creates one
// transport per send.
type SMTPTransport struct {
	host       string
	port       int
	encryption string
	authMode   AuthMode
	username   string
	secret     string
	logger     logging.Logger

	mu       sync.Mutex
	verbose  bool
	debugLog []string
}

// NewSMTPTransport creates an unconfigured transport
func NewSMTPTransport(logger logging.Logger) *SMTPTransport {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &SMTPTransport{
		encryption: providers.EncryptionStartTLS,
		authMode:   AuthPassword,
		logger:     logger,
	}
}

func (t *SMTPTransport) SetHost(host string)       { t.host = host }
func (t *SMTPTransport) SetPort(port int)          { t.port = port }
func (t *SMTPTransport) SetEncryption(mode string) { t.encryption = mode }
func (t *SMTPTransport) SetAuthMode(mode AuthMode) { t.authMode = mode }

func (t *SMTPTransport) SetCredentials(username, secret string) {
	t.username = username
	t.secret = secret
}

func (t *SMTPTransport) SetVerbose(verbose bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.verbose = verbose
}

// DebugLog returns the session log captured during the last verbose send
func (t *SMTPTransport) DebugLog() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.debugLog))
	copy(out, t.debugLog)
	return out
}

func (t *SMTPTransport) debugf(format string, args ...interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.verbose {
		return
	}
	line := time.Now().UTC().Format("15:04:05.000") + " " + fmt.Sprintf(format, args...)
	t.debugLog = append(t.debugLog, line)
}

// Send opens the connection, authenticates and delivers the message. The
// verbose flag is cleared on the way out so the next send is quiet again.
func (t *SMTPTransport) Send(ctx context.Context, from string, to []string, raw []byte) error {
	t.mu.Lock()
	t.debugLog = nil
	t.mu.Unlock()
	defer t.SetVerbose(false)

	if t.host == "" || t.port == 0 {
		return errors.ConfigError("smtp transport has no host or port configured")
	}

	addr := net.JoinHostPort(t.host, strconv.Itoa(t.port))
	t.debugf("connecting to %s (encryption=%s)", addr, t.encryption)

	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errors.ConnectionError("failed to connect to SMTP server", err).
			WithContext("address", addr)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if t.encryption == providers.EncryptionSSL {
		conn = tls.Client(conn, &tls.Config{ServerName: t.host})
		t.debugf("implicit TLS negotiated")
	}

	client, err := smtp.NewClient(conn, t.host)
	if err != nil {
		conn.Close()
		return errors.ConnectionError("SMTP handshake failed", err)
	}
	defer client.Close()
	t.debugf("server greeting accepted")

	if t.encryption == providers.EncryptionStartTLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			return errors.ConnectionError("server does not support STARTTLS", nil).
				WithContext("address", addr)
		}
		if err := client.StartTLS(&tls.Config{ServerName: t.host}); err != nil {
			return errors.ConnectionError("STARTTLS failed", err)
		}
		t.debugf("connection upgraded via STARTTLS")
	}

	if auth := t.buildAuth(); auth != nil {
		if err := client.Auth(auth); err != nil {
			t.debugf("authentication rejected: %v", err)
			return errors.AuthError("SMTP authentication failed").
				WithContext("mode", string(t.authMode))
		}
		t.debugf("authenticated as %s (%s)", t.username, t.authMode)
	}

	if err := client.Mail(from); err != nil {
		return errors.ConnectionError("MAIL FROM rejected", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return errors.ConnectionError("RCPT TO rejected", err).
				WithContext("recipient", rcpt)
		}
	}

	w, err := client.Data()
	if err != nil {
		return errors.ConnectionError("DATA rejected", err)
	}
	if _, err := w.Write(raw); err != nil {
		return errors.ConnectionError("failed to write message body", err)
	}
	if err := w.Close(); err != nil {
		return errors.ConnectionError("message not accepted", err)
	}
	t.debugf("message accepted for %d recipient(s)", len(to))

	return client.Quit()
}

func (t *SMTPTransport) buildAuth() smtp.Auth {
	switch t.authMode {
	case AuthXOAUTH2:
		return NewSMTPAuth(NewXOAUTH2Client(t.username, t.secret))
	case AuthPassword:
		if t.username == "" {
			return nil
		}
		return smtp.PlainAuth("", t.username, t.secret, t.host)
	default:
		return nil
	}
}
