// Package identity is the agent's on-disk identity: a minted node UUID
// and a TOFU-pinned scheduler public key, each a single-line file.
package identity
