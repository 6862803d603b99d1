package credentials

import (
	"context"
	"sync"
)

// Credential is an opaque bearer token. The empty value means "no credential".
type Credential string

// Reader exposes read access to the stored credential.
type Reader interface {
	// Get returns the current credential and whether one is present.
	Get(ctx context.Context) (Credential, bool)
}

// Store holds at most one credential. Set with an empty Credential clears it;
// any other value supersedes the previous one.
type Store interface {
	Reader
	Set(ctx context.Context, c Credential)
}

// MemoryStore is a volatile Store.
type MemoryStore struct {
	mu sync.RWMutex
	c  Credential
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(_ context.Context) (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c, s.c != ""
}

func (s *MemoryStore) Set(_ context.Context, c Credential) {
	s.mu.Lock()
	s.c = c
	s.mu.Unlock()
}
