package security

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"

	"github.com/persys-dev/persys-agent/pkg/log"
)

// VerifySignature checks sig (base64) against body using the RSA public
// key encoded as hex-PEM in pubKeyHex. Any decoding, parsing, or
// verification failure returns false with a diagnostic log line; it
// never returns an error to the caller because the auth middleware only
// ever needs a yes/no answer.
func VerifySignature(body []byte, sigB64 string, pubKeyHex string) bool {
	sigBytes, err := decodeLenientBase64(sigB64)
	if err != nil {
		log.Logger.Warn().Err(err).Msg("signature: failed to decode signature base64")
		return false
	}

	keyPEM, err := decodeHex(pubKeyHex)
	if err != nil {
		log.Logger.Warn().Err(err).Msg("signature: failed to decode public key hex")
		return false
	}

	pub, err := parsePublicKey(keyPEM)
	if err != nil {
		log.Logger.Warn().Err(err).Msg("signature: failed to parse public key")
		return false
	}

	digest := sha256.Sum256(body)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sigBytes); err != nil {
		log.Logger.Warn().Err(err).Msg("signature: verification failed")
		return false
	}
	return true
}

// decodeLenientBase64 strips any byte outside the base64 alphabet
// (logging what it stripped), then requires the cleaned string's length
// to be a multiple of 4 before delegating to the standard decoder. This
// mirrors the scheduler's own lenient encoder, which occasionally emits
// stray whitespace or control bytes around the payload.
func decodeLenientBase64(s string) ([]byte, error) {
	cleaned := make([]byte, 0, len(s))
	var stripped []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '+', c == '/', c == '=':
			cleaned = append(cleaned, c)
		default:
			stripped = append(stripped, c)
		}
	}
	if len(stripped) > 0 {
		log.Logger.Debug().Str("stripped", string(stripped)).Msg("signature: stripped invalid base64 characters")
	}
	if len(cleaned)%4 != 0 {
		return nil, fmt.Errorf("base64 input length %d is not a multiple of 4 after stripping", len(cleaned))
	}
	return base64.StdEncoding.DecodeString(string(cleaned))
}

// decodeHex decodes a hex string two characters per byte, big-endian
// nibbles. encoding/hex already matches this description exactly.
func decodeHex(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("hex input length %d is not even", len(s))
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		hi, err := hexNibble(s[i*2])
		if err != nil {
			return nil, err
		}
		lo, err := hexNibble(s[i*2+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexNibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("invalid hex character %q", c)
	}
}

func parsePublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	if pub, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return pub, nil
	}

	iface, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	pub, ok := iface.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not RSA")
	}
	return pub, nil
}
