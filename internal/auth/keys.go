// Package auth guards the MCP endpoint with bearer API keys. Keys are
// stored as bcrypt hashes and bound to a user id used in logs.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const (
	// APIKeyPrefix distinguishes API keys from other bearer tokens.
	APIKeyPrefix = "ws_"

	// apiKeyBytes is the random entropy in a generated key.
	apiKeyBytes = 32

	// maxCachedKeys bounds the validated-key cache.
	maxCachedKeys = 256
)

// APIKey is a hashed key and the user it authenticates.
type APIKey struct {
	UserID string
	Hash   string
}

// Keyring validates presented API keys against bcrypt hashes. A
// successful validation is cached by the SHA-256 of the key so repeat
// requests skip the bcrypt comparison.
type Keyring struct {
	keys []APIKey

	mu    sync.Mutex
	valid map[string]string
}

// NewKeyring creates a keyring from hashed keys.
func NewKeyring(keys []APIKey) *Keyring {
	return &Keyring{
		keys:  keys,
		valid: make(map[string]string),
	}
}

// Len returns the number of configured keys.
func (k *Keyring) Len() int {
	return len(k.keys)
}

// Validate returns the user id of the key, or "" when it matches no
// configured hash.
func (k *Keyring) Validate(token string) string {
	if !strings.HasPrefix(token, APIKeyPrefix) {
		return ""
	}

	sum := sha256.Sum256([]byte(token))
	digest := hex.EncodeToString(sum[:])

	k.mu.Lock()
	userID, ok := k.valid[digest]
	k.mu.Unlock()

	if ok {
		return userID
	}

	for _, key := range k.keys {
		if bcrypt.CompareHashAndPassword([]byte(key.Hash), []byte(token)) == nil {
			k.mu.Lock()
			if len(k.valid) >= maxCachedKeys {
				clear(k.valid)
			}
			k.valid[digest] = key.UserID
			k.mu.Unlock()

			return key.UserID
		}
	}

	return ""
}

// GenerateAPIKey returns a new random key and its bcrypt hash.
func GenerateAPIKey() (key, hash string, err error) {
	key = APIKeyPrefix + RandomHex(apiKeyBytes)

	h, err := HashAPIKey(key)
	if err != nil {
		return "", "", err
	}

	return key, h, nil
}

// HashAPIKey bcrypt-hashes a key for MCP_API_KEYS.
func HashAPIKey(key string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(h), nil
}

// RandomHex generates a cryptographically random hex string of the given byte length.
func RandomHex(byteLen int) string {
	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}

	return hex.EncodeToString(b)
}
