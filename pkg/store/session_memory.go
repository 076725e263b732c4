package store

import (
	"sync"
	"time"

	"feedbackhub/pkg/domain"
)

type sessionEntry struct {
	ident  domain.Identity
	expiry time.Time
}

// MemorySessionStore keeps sessions in-process with explicit expiry
// timestamps. Eviction is lazy: expired entries are dropped on Resolve.
type MemorySessionStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	sess map[string]sessionEntry
	now  func() time.Time
}

// NewMemorySessionStore constructs an in-memory session store.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		ttl:  ttl,
		sess: make(map[string]sessionEntry),
		now:  time.Now,
	}
}

// Start binds a fresh token to the identity snapshot.
func (s *MemorySessionStore) Start(ident domain.Identity) (string, error) {
	token, err := newSessionToken()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.sess[token] = sessionEntry{ident: ident, expiry: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return token, nil
}

// Resolve returns the snapshot bound to the token; expired entries are
// treated as absent and evicted.
func (s *MemorySessionStore) Resolve(token string) (domain.Identity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sess[token]
	if !ok {
		return domain.Identity{}, false, nil
	}
	if s.now().After(entry.expiry) {
		delete(s.sess, token)
		return domain.Identity{}, false, nil
	}
	return entry.ident, true, nil
}

// Destroy removes a token. Unknown tokens are not an error.
func (s *MemorySessionStore) Destroy(token string) error {
	s.mu.Lock()
	delete(s.sess, token)
	s.mu.Unlock()
	return nil
}
