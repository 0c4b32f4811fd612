package registry

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// KeyPackages stores one opaque key-exchange blob per client. Entries are
// overwritten by newer stores and live for the process lifetime; nothing
// deletes them.
type KeyPackages struct {
	mu       sync.RWMutex
	packages map[string][]byte
}

func NewKeyPackages() *KeyPackages {
	return &KeyPackages{packages: make(map[string][]byte)}
}

// Store inserts or overwrites the blob for clientID. It always succeeds.
func (s *KeyPackages) Store(clientID string, payload []byte) {
	cp := append([]byte(nil), payload...)
	s.mu.Lock()
	s.packages[clientID] = cp
	s.mu.Unlock()
}

// Fetch returns the stored blob for clientID, or ErrNotFound.
func (s *KeyPackages) Fetch(clientID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.packages[clientID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), payload...), nil
}

// List returns the client identifiers with a stored blob, sorted for a
// stable view; the snapshot is not stable across concurrent stores.
func (s *KeyPackages) List() []string {
	s.mu.RLock()
	clients := lo.Keys(s.packages)
	s.mu.RUnlock()
	sort.Strings(clients)
	return clients
}

// Len returns the number of stored blobs.
func (s *KeyPackages) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.packages)
}
