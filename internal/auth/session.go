package auth

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/scribehq/scribe/internal/cache"
)

// Sessions are held in memory: fine for a single-instance deployment, lost on
// restart. A multi-instance deployment would need a shared store behind the
// same interface.
type sessionEntry struct {
	token     string
	expiresAt time.Time
}

type SessionStore struct {
	sessions *cache.Cache[string, sessionEntry]
	ttl      time.Duration
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: cache.NewCache[string, sessionEntry](),
		ttl:      ttl,
	}
}

func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

// Create stores the token under a fresh session id and returns the id.
func (s *SessionStore) Create(token string) string {
	id := randomToken()
	s.sessions.Set(id, sessionEntry{
		token:     token,
		expiresAt: time.Now().Add(s.ttl),
	})
	return id
}

// Token resolves a session id; expired sessions are dropped on access.
func (s *SessionStore) Token(id string) (string, bool) {
	entry, ok := s.sessions.Get(id)
	if !ok {
		return "", false
	}
	if time.Now().After(entry.expiresAt) {
		s.sessions.Delete(id)
		return "", false
	}
	return entry.token, true
}

func (s *SessionStore) Delete(id string) {
	s.sessions.Delete(id)
}

func randomToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err) // crypto/rand failing is unrecoverable
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
