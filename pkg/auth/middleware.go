// Package auth implements the per-request signature authentication
// policy: a TOFU public-key pin verified against every request, with an
// optional shared-secret override.
package auth

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/persys-dev/persys-agent/pkg/identity"
	"github.com/persys-dev/persys-agent/pkg/log"
	"github.com/persys-dev/persys-agent/pkg/security"
)

const (
	headerSignature = "X-Scheduler-Signature"
	headerPublicKey = "X-Scheduler-PublicKey"
	headerSecret    = "X-Shared-Secret"

	handshakePath = "/api/v1/handshake"
	metricsPath   = "/metrics"
)

// Verifier abstracts the RSA verification call so tests can stub it.
type Verifier func(body []byte, sigB64, pubKeyHex string) bool

// Middleware enforces the authentication policy in front of an
// http.Handler. A nil Store means the middleware was never wired, which
// fails every request except /metrics with 500 per the NotInitialized
// error kind.
type Middleware struct {
	Store        *identity.Store
	SharedSecret string
	Verify       Verifier
}

// New builds a Middleware. verify defaults to security.VerifySignature
// when nil.
func New(store *identity.Store, sharedSecret string, verify Verifier) *Middleware {
	if verify == nil {
		verify = security.VerifySignature
	}
	return &Middleware{Store: store, SharedSecret: sharedSecret, Verify: verify}
}

// Wrap returns an http.Handler implementing the decision table: first
// matching row wins.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == metricsPath {
			next.ServeHTTP(w, r)
			return
		}

		if m == nil || m.Store == nil {
			writeError(w, http.StatusInternalServerError, "not initialized")
			return
		}

		sigB64 := r.Header.Get(headerSignature)
		pubKeyHex := r.Header.Get(headerPublicKey)
		if sigB64 == "" || pubKeyHex == "" {
			writeError(w, http.StatusUnauthorized, "missing headers")
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		sigValid := m.Verify(body, sigB64, pubKeyHex)
		secretMatches := m.SharedSecret != "" && r.Header.Get(headerSecret) == m.SharedSecret

		isHandshake := r.URL.Path == handshakePath

		if sigValid && isHandshake {
			if err := m.Store.SaveKey(pubKeyHex); err != nil {
				log.Logger.Error().Err(err).Msg("auth: failed to pin public key on handshake")
			}
			next.ServeHTTP(w, r)
			return
		}

		if sigValid {
			trusted, err := m.Store.LoadKey()
			if err != nil {
				log.Logger.Error().Err(err).Msg("auth: failed to load trusted key")
				writeError(w, http.StatusInternalServerError, "not initialized")
				return
			}

			if trusted == "" || trusted == pubKeyHex {
				next.ServeHTTP(w, r)
				return
			}

			if secretMatches {
				log.Logger.Warn().Msg("auth: signature key mismatch, shared secret override accepted")
				next.ServeHTTP(w, r)
				return
			}

			writeError(w, http.StatusUnauthorized, "Public key does not match trusted key")
			return
		}

		if secretMatches {
			log.Logger.Warn().Msg("auth: signature verification failed, shared secret override accepted")
			next.ServeHTTP(w, r)
			return
		}

		writeError(w, http.StatusUnauthorized, "signature verification failed")
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
