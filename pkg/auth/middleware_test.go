package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/persys-dev/persys-agent/pkg/identity"
)

func alwaysValid(body []byte, sig, key string) bool { return true }
func alwaysInvalid(body []byte, sig, key string) bool { return false }

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func newRequest(method, path, sig, key, secret string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader("body"))
	if sig != "" {
		req.Header.Set(headerSignature, sig)
	}
	if key != "" {
		req.Header.Set(headerPublicKey, key)
	}
	if secret != "" {
		req.Header.Set(headerSecret, secret)
	}
	return req
}

func TestMiddleware_MetricsAlwaysAllowed(t *testing.T) {
	m := New(identity.NewStore(t.TempDir()), "", alwaysInvalid)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	m.Wrap(okHandler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_NotInitialized(t *testing.T) {
	m := New(nil, "", alwaysValid)
	req := newRequest(http.MethodGet, "/docker/list", "sig", "key", "")
	rec := httptest.NewRecorder()

	m.Wrap(okHandler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMiddleware_MissingHeaders(t *testing.T) {
	m := New(identity.NewStore(t.TempDir()), "", alwaysValid)
	req := newRequest(http.MethodGet, "/docker/list", "", "", "")
	rec := httptest.NewRecorder()

	m.Wrap(okHandler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_HandshakePinsKeyOnValidSignature(t *testing.T) {
	store := identity.NewStore(t.TempDir())
	m := New(store, "", alwaysValid)
	req := newRequest(http.MethodPost, "/api/v1/handshake", "sig", "keyA", "")
	rec := httptest.NewRecorder()

	m.Wrap(okHandler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	key, err := store.LoadKey()
	require.NoError(t, err)
	require.Equal(t, "keyA", key)
}

func TestMiddleware_FirstSuccessfulUseAllowedWithoutPinningOnNonHandshake(t *testing.T) {
	store := identity.NewStore(t.TempDir())
	m := New(store, "", alwaysValid)
	req := newRequest(http.MethodGet, "/docker/list", "sig", "keyA", "")
	rec := httptest.NewRecorder()

	m.Wrap(okHandler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	key, err := store.LoadKey()
	require.NoError(t, err)
	require.Empty(t, key, "non-handshake routes must never pin the key")
}

func TestMiddleware_KeyMismatchRejectedWithoutSecret(t *testing.T) {
	store := identity.NewStore(t.TempDir())
	require.NoError(t, store.SaveKey("keyA"))
	m := New(store, "", alwaysValid)
	req := newRequest(http.MethodGet, "/docker/list", "sig", "keyB", "")
	rec := httptest.NewRecorder()

	m.Wrap(okHandler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	key, err := store.LoadKey()
	require.NoError(t, err)
	require.Equal(t, "keyA", key, "mismatched key must not overwrite the pin")
}

func TestMiddleware_KeyMismatchAcceptedWithSecret(t *testing.T) {
	store := identity.NewStore(t.TempDir())
	require.NoError(t, store.SaveKey("keyA"))
	m := New(store, "s3cret", alwaysValid)
	req := newRequest(http.MethodGet, "/docker/list", "sig", "keyB", "s3cret")
	rec := httptest.NewRecorder()

	m.Wrap(okHandler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_InvalidSignatureAcceptedWithSecret(t *testing.T) {
	store := identity.NewStore(t.TempDir())
	m := New(store, "s3cret", alwaysInvalid)
	req := newRequest(http.MethodGet, "/docker/list", "sig", "keyB", "s3cret")
	rec := httptest.NewRecorder()

	m.Wrap(okHandler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_InvalidSignatureRejectedWithoutSecret(t *testing.T) {
	store := identity.NewStore(t.TempDir())
	m := New(store, "s3cret", alwaysInvalid)
	req := newRequest(http.MethodGet, "/docker/list", "sig", "keyB", "")
	rec := httptest.NewRecorder()

	m.Wrap(okHandler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_KeyMatchesPinAllowed(t *testing.T) {
	store := identity.NewStore(t.TempDir())
	require.NoError(t, store.SaveKey("keyA"))
	m := New(store, "", alwaysValid)
	req := newRequest(http.MethodGet, "/docker/list", "sig", "keyA", "")
	rec := httptest.NewRecorder()

	m.Wrap(okHandler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
