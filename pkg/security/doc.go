// Package security verifies RSA-PKCS1v1.5/SHA-256 request signatures
// against a hex-encoded PEM public key, with lenient base64 decoding
// matching the scheduler's signing client.
package security
