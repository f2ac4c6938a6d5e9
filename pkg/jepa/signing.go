package jepa

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

// Signer HMAC-SHA-256 signs and verifies model artifact bytes against a
// data-scoped signing key, generated on first use and persisted
// hex-encoded beside the models it signs.
type Signer struct {
	keyPath string
}

// NewSigner returns a Signer whose key lives at keyPath, generating and
// persisting a fresh 32-byte key the first time it is used.
func NewSigner(keyPath string) *Signer {
	return &Signer{keyPath: keyPath}
}

// Sign returns the hex-encoded HMAC-SHA-256 of payload under the signing
// key.
func (s *Signer) Sign(payload []byte) (string, error) {
	key, err := s.loadOrCreateKey()
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify reports whether signature is a valid HMAC-SHA-256 of payload
// under the signing key, using a constant-time comparison.
func (s *Signer) Verify(payload []byte, signature string) (bool, error) {
	expected, err := s.Sign(payload)
	if err != nil {
		return false, err
	}
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature))), nil
}

func (s *Signer) loadOrCreateKey() ([]byte, error) {
	if data, err := os.ReadFile(s.keyPath); err == nil {
		text := strings.TrimSpace(string(data))
		if key, decodeErr := hex.DecodeString(text); decodeErr == nil {
			return key, nil
		}
		return data, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("jepa: read signing key: %w", err)
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("jepa: generate signing key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.keyPath), 0o755); err != nil {
		return nil, fmt.Errorf("jepa: create key dir: %w", err)
	}
	if err := renameio.WriteFile(s.keyPath, []byte(hex.EncodeToString(key)), 0o600); err != nil {
		return nil, fmt.Errorf("jepa: persist signing key: %w", err)
	}
	return key, nil
}
