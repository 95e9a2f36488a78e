// Package identity persists and loads the node's stable UUID and the
// TOFU-pinned scheduler public key, both as single-line files in the
// agent's working directory.
package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/persys-dev/persys-agent/pkg/log"
)

const (
	nodeIDFileName     = "node_id.txt"
	trustedKeyFileName = "trusted_key.txt"
)

// Store reads and writes the identity files rooted at Dir.
type Store struct {
	Dir string

	mu sync.Mutex
}

// NewStore returns a Store rooted at dir. An empty dir means the process's
// current working directory.
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

func (s *Store) path(name string) string {
	if s.Dir == "" {
		return name
	}
	return filepath.Join(s.Dir, name)
}

// LoadOrCreateNodeID loads node_id.txt, minting and persisting a new UUID
// on first run. A write failure here is fatal: the agent has no stable
// identity without it.
func (s *Store) LoadOrCreateNodeID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(nodeIDFileName)
	data, err := os.ReadFile(path)
	if err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" {
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("read node id file: %w", err)
	}

	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("persist node id: %w", err)
	}
	log.Logger.Info().Str("node_id", id).Msg("identity: minted new node id")
	return id, nil
}

// LoadKey returns the pinned trusted key, or "" if no pin has been
// established yet.
func (s *Store) LoadKey() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(trustedKeyFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read trusted key file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// SaveKey overwrites the pinned trusted key. Callers must only invoke this
// from an authenticated handshake: it is the sole rotation point.
func (s *Store) SaveKey(keyHex string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.path(trustedKeyFileName), []byte(keyHex+"\n"), 0o644); err != nil {
		return fmt.Errorf("persist trusted key: %w", err)
	}
	return nil
}
