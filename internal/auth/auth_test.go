package auth

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testKey returns a key and a low-cost hash so tests stay fast.
func testKey(t *testing.T) (string, string) {
	t.Helper()
	key := APIKeyPrefix + RandomHex(16)
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	require.NoError(t, err)
	return key, string(h)
}

// --- RandomHex ---

func TestRandomHex_Length(t *testing.T) {
	assert.Len(t, RandomHex(16), 32)
}

func TestRandomHex_Unique(t *testing.T) {
	assert.NotEqual(t, RandomHex(16), RandomHex(16))
}

// --- Keyring ---

func TestKeyring_Validate(t *testing.T) {
	key1, hash1 := testKey(t)
	key2, hash2 := testKey(t)

	kr := NewKeyring([]APIKey{{UserID: "alice", Hash: hash1}, {UserID: "bob", Hash: hash2}})
	assert.Equal(t, 2, kr.Len())

	assert.Equal(t, "alice", kr.Validate(key1))
	assert.Equal(t, "bob", kr.Validate(key2))

	// Cached path returns the same answer.
	assert.Equal(t, "alice", kr.Validate(key1))
}

func TestKeyring_RejectsUnknownAndUnprefixed(t *testing.T) {
	key, hash := testKey(t)
	kr := NewKeyring([]APIKey{{UserID: "alice", Hash: hash}})

	assert.Equal(t, "", kr.Validate(APIKeyPrefix+"wrong"))
	assert.Equal(t, "", kr.Validate(strings.TrimPrefix(key, APIKeyPrefix)))
	assert.Equal(t, "", kr.Validate(""))
}

func TestGenerateAPIKey(t *testing.T) {
	key, hash, err := GenerateAPIKey()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, APIKeyPrefix))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)))
}

// --- Middleware ---

func protected(t *testing.T, kr *Keyring) http.Handler {
	t.Helper()

	return Middleware(kr, testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(RequestUserID(r.Context()) + "@" + RequestRemoteIP(r.Context())))
	}))
}

func TestMiddleware_ValidKey(t *testing.T) {
	key, hash := testKey(t)
	h := protected(t, NewKeyring([]APIKey{{UserID: "alice", Hash: hash}}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer "+key)
	req.RemoteAddr = "10.0.0.1:5555"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice@10.0.0.1", rec.Body.String())
}

func TestMiddleware_MissingToken(t *testing.T) {
	h := protected(t, NewKeyring(nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotContains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")
}

func TestMiddleware_NonBearerAuth(t *testing.T) {
	h := protected(t, NewKeyring(nil))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_InvalidKey(t *testing.T) {
	_, hash := testKey(t)
	h := protected(t, NewKeyring([]APIKey{{UserID: "alice", Hash: hash}}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer ws_nope")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), `error="invalid_token"`)
}
