// Package mailer configures and drives the outbound SMTP transport:
// password or XOAUTH2 authentication, message composition, and the
// per-send configuration step that bridges stored settings and the OAuth2
// flow into a ready-to-connect transport.
package mailer

import "context"

// AuthMode selects how the transport authenticates
type AuthMode string

const (
	// AuthPassword uses classic username/password (PLAIN)
	AuthPassword AuthMode = "password"
	// AuthXOAUTH2 uses an OAuth2 access token via the XOAUTH2 mechanism
	AuthXOAUTH2 AuthMode = "xoauth2"
)

// Transport is the generic SMTP client the configurator prepares before
// each send. Setters are called by the configurator only; Send opens the
// connection, authenticates and delivers in one step.
type Transport interface {
	SetHost(host string)
	SetPort(port int)
	// SetEncryption takes one of the providers encryption modes
	// ("none", "tls" for STARTTLS, "ssl" for implicit TLS)
	SetEncryption(mode string)
	SetAuthMode(mode AuthMode)
	// SetCredentials sets the username and its secret: the password in
	// password mode, the access token in XOAUTH2 mode
	SetCredentials(username, secret string)
	// SetVerbose raises the transport's internal logging for the next Send
	SetVerbose(verbose bool)
	// Send delivers one composed message
	Send(ctx context.Context, from string, to []string, raw []byte) error
	// DebugLog returns the log captured during the last verbose Send
	DebugLog() []string
}
