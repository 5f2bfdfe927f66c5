package auth

import "sync"

// Store persists the credential pair. Save must be atomic with respect to
// Load: no reader observes a half-written pair. Load returns (nil, nil)
// when no credential is stored.
type Store interface {
	Load() (*Credential, error)
	Save(cred *Credential) error
	Clear() error
}

// MemoryStore is an in-process Store for tests and short-lived tools.
type MemoryStore struct {
	mu   sync.RWMutex
	cred *Credential
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil {
		return nil, nil
	}
	cp := *s.cred
	return &cp, nil
}

func (s *MemoryStore) Save(cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *cred
	s.cred = &cp
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = nil
	return nil
}
