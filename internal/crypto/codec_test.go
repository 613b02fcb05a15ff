package crypto

import (
	"encoding/base64"
	"strings"
	"testing"
)

func newTestCodec(t *testing.T) *SecretCodec {
	t.Helper()
	return NewSecretCodec("test-secret-key-for-codec-tests", nil)
}

func TestSecretCodec_RoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	testCases := []string{
		"simple secret",
		"",
		"password123!@#",
		`{"client_secret": "GOCSPX-abcdef"}`,
		"unicode: こんにちは世界 🌍",
		strings.Repeat("long refresh token ", 100),
		"newlines\nand\ttabs\rhere",
		"!@#$%^&*()_+-=[]{}|;':\",./<>?",
	}

	for _, plaintext := range testCases {
		ciphertext, err := codec.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt(%q) error = %v", plaintext, err)
		}

		if got := codec.Decrypt(ciphertext); got != plaintext {
			t.Errorf("round trip failed: got %q, want %q", got, plaintext)
		}
	}
}

func TestSecretCodec_EmptyString(t *testing.T) {
	codec := newTestCodec(t)

	ciphertext, err := codec.Encrypt("")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if ciphertext != "" {
		t.Errorf("Encrypt(\"\") = %q, want empty", ciphertext)
	}
	if got := codec.Decrypt(""); got != "" {
		t.Errorf("Decrypt(\"\") = %q, want empty", got)
	}
}

func TestSecretCodec_EncryptionIsRandom(t *testing.T) {
	codec := newTestCodec(t)

	first, err := codec.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	second, err := codec.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	if first == second {
		t.Error("two encryptions of the same plaintext should differ (random nonce)")
	}
}

func TestSecretCodec_DecryptMalformed(t *testing.T) {
	codec := newTestCodec(t)

	tests := []struct {
		name       string
		ciphertext string
	}{
		{"not base64", "not-base64!@#$"},
		{"valid base64 but garbage", base64.StdEncoding.EncodeToString([]byte("garbage"))},
		{"shorter than nonce", base64.StdEncoding.EncodeToString([]byte("abc"))},
		{"random bytes", base64.StdEncoding.EncodeToString(make([]byte, 50))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Decryption failure must surface as "credential absent", never panic or error
			if got := codec.Decrypt(tt.ciphertext); got != "" {
				t.Errorf("Decrypt(%q) = %q, want empty sentinel", tt.ciphertext, got)
			}
		})
	}
}

func TestSecretCodec_WrongKey(t *testing.T) {
	codecA := NewSecretCodec("key-a-for-encryption", nil)
	codecB := NewSecretCodec("key-b-for-decryption", nil)

	ciphertext, err := codecA.Encrypt("secret data")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	if got := codecB.Decrypt(ciphertext); got != "" {
		t.Errorf("Decrypt with wrong key = %q, want empty sentinel", got)
	}

	// The original key still works
	if got := codecA.Decrypt(ciphertext); got != "secret data" {
		t.Errorf("Decrypt with original key = %q, want %q", got, "secret data")
	}
}

func TestSecretCodec_IdentityMode(t *testing.T) {
	codec := NewSecretCodec("", nil)

	if codec.Enabled() {
		t.Error("codec without key should not report encryption enabled")
	}

	ciphertext, err := codec.Encrypt("plain secret")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if ciphertext != "plain secret" {
		t.Errorf("identity mode Encrypt() = %q, want input unchanged", ciphertext)
	}
	if got := codec.Decrypt("plain secret"); got != "plain secret" {
		t.Errorf("identity mode Decrypt() = %q, want input unchanged", got)
	}
}

func TestSecretCodec_Enabled(t *testing.T) {
	if !newTestCodec(t).Enabled() {
		t.Error("codec with key should report encryption enabled")
	}
}
