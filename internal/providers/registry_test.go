package providers

import "testing"

func TestList_Order(t *testing.T) {
	entries := List()

	if len(entries) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(entries))
	}
	if entries[0].Key != Gmail {
		t.Errorf("expected gmail first, got %s", entries[0].Key)
	}
	if entries[1].Key != Office365 {
		t.Errorf("expected office365 second, got %s", entries[1].Key)
	}
	for _, e := range entries {
		if e.Name == "" {
			t.Errorf("provider %s has empty display name", e.Key)
		}
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{Gmail, true},
		{Office365, true},
		{"yahoo", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cfg, ok := Get(tt.key)
			if ok != tt.want {
				t.Fatalf("Get(%q) ok = %v, want %v", tt.key, ok, tt.want)
			}
			if ok && cfg.Key != tt.key {
				t.Errorf("Get(%q) returned config for %q", tt.key, cfg.Key)
			}
		})
	}
}

func TestGet_GmailConfig(t *testing.T) {
	cfg, ok := Get(Gmail)
	if !ok {
		t.Fatal("gmail must be registered")
	}

	if cfg.SMTPHost != "smtp.gmail.com" || cfg.SMTPPort != 587 {
		t.Errorf("unexpected SMTP endpoint %s:%d", cfg.SMTPHost, cfg.SMTPPort)
	}
	if cfg.Encryption != EncryptionStartTLS {
		t.Errorf("gmail should require STARTTLS, got %s", cfg.Encryption)
	}
	// Without these two params Google only issues a refresh token on the
	// very first consent, which breaks reconnects
	if cfg.AuthParams["access_type"] != "offline" {
		t.Error("gmail must request offline access")
	}
	if cfg.AuthParams["prompt"] != "consent" {
		t.Error("gmail must force the consent screen")
	}
	if cfg.UserinfoURL == "" {
		t.Error("gmail must have a userinfo endpoint for email resolution")
	}
}

func TestGet_Office365Config(t *testing.T) {
	cfg, ok := Get(Office365)
	if !ok {
		t.Fatal("office365 must be registered")
	}

	if cfg.SMTPHost != "smtp.office365.com" || cfg.SMTPPort != 587 {
		t.Errorf("unexpected SMTP endpoint %s:%d", cfg.SMTPHost, cfg.SMTPPort)
	}

	// offline_access is what makes Microsoft return a refresh token
	found := false
	for _, s := range cfg.Scopes {
		if s == "offline_access" {
			found = true
		}
	}
	if !found {
		t.Error("office365 scopes must include offline_access")
	}
}
