// Package crypto provides AES-256-GCM encryption and decryption for
// credentials stored at rest: the OAuth2 client secret, access token,
// refresh token and the SMTP password.
//
// The codec is keyed once at startup from the site-wide secret. Two
// deliberate deviations from a general-purpose encryptor:
//
//   - When no key is configured the codec degrades to identity (input is
//     returned unchanged). Availability wins over confidentiality here,
//     but the downgrade is logged as a security warning, never silent.
//   - Decrypt never returns an error. Malformed or wrong-key ciphertext
//     yields "" so callers treat the credential as absent and force a
//     re-authorization instead of crashing a send.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"smtp-relay/internal/common/errors"
	"smtp-relay/internal/common/logging"
)

// Static salt for deterministic key derivation across restarts
var kdfSalt = []byte("smtp-relay-secret-salt")

// SecretCodec encrypts and decrypts sensitive settings fields.
// It is safe for concurrent use by multiple goroutines.
type SecretCodec struct {
	key    []byte // 32-byte AES-256 key, nil in identity mode
	logger logging.Logger
}

// NewSecretCodec creates a codec keyed by the site-wide secret.
//
// An empty key puts the codec into identity mode: Encrypt and Decrypt
// return their input unchanged. This keeps the relay usable on installs
// without a configured secret, at the cost of plaintext credentials at
// rest, so it is logged as a security warning.
func NewSecretCodec(key string, logger logging.Logger) *SecretCodec {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	if key == "" {
		logger.Warn("SECURITY: no secret key configured, credentials will be stored unencrypted",
			logging.String("component", "crypto"))
		return &SecretCodec{logger: logger}
	}

	derivedKey := pbkdf2.Key([]byte(key), kdfSalt, 10000, 32, sha256.New)
	return &SecretCodec{key: derivedKey, logger: logger}
}

// Enabled reports whether real encryption is active (a key is configured)
func (c *SecretCodec) Enabled() bool {
	return c.key != nil
}

// Encrypt encrypts a plaintext string using AES-256-GCM and returns the
// result base64-encoded. Empty input returns empty output. In identity
// mode the plaintext is returned unchanged.
//
// Each call uses a fresh random nonce, so encrypting the same plaintext
// twice produces different ciphertexts.
func (c *SecretCodec) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	if c.key == nil {
		return plaintext, nil
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", errors.InternalError("failed to create cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", errors.InternalError("failed to create GCM", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.InternalError("failed to create nonce", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts a base64-encoded ciphertext produced by Encrypt.
//
// Decrypt never fails to the caller: malformed input, truncated data or a
// ciphertext sealed under a different key all return "". The failure is
// logged so an operator can see that stored credentials became unreadable
// (typically after a key change), which surfaces to the admin as a
// disconnected credential requiring re-authorization.
func (c *SecretCodec) Decrypt(ciphertext string) string {
	if ciphertext == "" {
		return ""
	}
	if c.key == nil {
		return ciphertext
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		c.logger.Warn("stored secret is not valid ciphertext, treating as absent",
			logging.Err(err))
		return ""
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		c.logger.Warn("cipher construction failed during decrypt", logging.Err(err))
		return ""
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		c.logger.Warn("GCM construction failed during decrypt", logging.Err(err))
		return ""
	}

	if len(data) < gcm.NonceSize() {
		c.logger.Warn("stored secret shorter than nonce, treating as absent")
		return ""
	}

	nonce, sealed := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		c.logger.Warn("stored secret failed authentication, treating as absent",
			logging.Err(err))
		return ""
	}

	return string(plaintext)
}
