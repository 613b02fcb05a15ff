// Package providers holds the static configuration of the supported OAuth2
// mail providers. Provider behavior never diverges in this service, only
// configuration data does, so each provider is a Config value rather than
// its own client type.
package providers

// Provider keys
const (
	Gmail     = "gmail"
	Office365 = "office365"
)

// SMTP connection encryption modes
const (
	EncryptionNone     = "none"
	EncryptionStartTLS = "tls" // STARTTLS upgrade on a plain connection
	EncryptionSSL      = "ssl" // implicit TLS from the first byte
)

// Config describes one OAuth2 mail provider. Values are defined at process
// start and never mutated.
type Config struct {
	// Key is the registry key ("gmail", "office365")
	Key string
	// Name is the display name shown to the administrator
	Name string
	// AuthURL is the OAuth2 authorization endpoint
	AuthURL string
	// TokenURL is the OAuth2 token endpoint
	TokenURL string
	// UserinfoURL resolves the authenticated account's email (empty when unsupported)
	UserinfoURL string
	// SMTPHost is the provider's fixed SMTP server
	SMTPHost string
	// SMTPPort is the provider's fixed SMTP port
	SMTPPort int
	// Encryption is the connection mode required by the provider
	Encryption string
	// Scopes are the OAuth scopes to request, in the order the provider expects
	Scopes []string
	// AuthParams are extra authorization-URL query parameters. Gmail needs
	// access_type=offline and prompt=consent or no refresh token is issued
	// on repeat authorizations.
	AuthParams map[string]string
}

var configs = map[string]*Config{
	Gmail: {
		Key:         Gmail,
		Name:        "Gmail / Google Workspace",
		AuthURL:     "https://accounts.google.com/o/oauth2/auth",
		TokenURL:    "https://oauth2.googleapis.com/token",
		UserinfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		SMTPHost:    "smtp.gmail.com",
		SMTPPort:    587,
		Encryption:  EncryptionStartTLS,
		Scopes: []string{
			"https://mail.google.com/",
			"https://www.googleapis.com/auth/userinfo.email",
		},
		AuthParams: map[string]string{
			"access_type": "offline",
			"prompt":      "consent",
		},
	},
	Office365: {
		Key:      Office365,
		Name:     "Office 365 / Outlook",
		AuthURL:  "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
		TokenURL: "https://login.microsoftonline.com/common/oauth2/v2.0/token",
		SMTPHost: "smtp.office365.com",
		SMTPPort: 587,
		Encryption: EncryptionStartTLS,
		Scopes: []string{
			"https://outlook.office.com/SMTP.Send",
			"offline_access",
			"openid",
			"email",
		},
	},
}

// order fixes the listing order shown to administrators
var order = []string{Gmail, Office365}

// Entry pairs a provider key with its display name for listings
type Entry struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// List returns the supported providers in display order
func List() []Entry {
	entries := make([]Entry, 0, len(order))
	for _, key := range order {
		entries = append(entries, Entry{Key: key, Name: configs[key].Name})
	}
	return entries
}

// Get returns the configuration for a provider key.
// Unknown keys return (nil, false); there are no other failure modes.
func Get(key string) (*Config, bool) {
	cfg, ok := configs[key]
	return cfg, ok
}
