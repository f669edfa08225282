package auth

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/shishobooks/shisho/pkg/models"
)

// SessionCookieName carries the interactive-session id. Distinct from
// CookieName, which carries the issued bearer JWT once the session holder
// requests one via GET /auth/token.
const SessionCookieName = "mbs4_session"

// sessionTTL bounds how long an unused interactive session (and any
// pending OIDC flow it's mid-way through) stays alive, per §5's "Session
// storage: in-memory, per-process; session lifetime 3600s idle".
const sessionTTL = time.Hour

// OIDCSecrets is the per-flow state for a single pending OIDC login: one
// login in flight per session, per §4.9.
type OIDCSecrets struct {
	Provider     string
	CSRFToken    string
	Nonce        string
	PKCEVerifier string
}

// Session is what the in-memory store keys by session id: either an
// authenticated user, a pending OIDC flow, or both in transition.
type Session struct {
	User        *models.User
	OIDC        *OIDCSecrets
	lastTouched time.Time
}

// SessionStore is a plain map under a lock, matching the spec's "keep the
// in-memory store for single-node deployments" resolution (§9). Entries
// expire lazily on access; there is no background reaper since session
// cardinality tracks active browser tabs, not catalog size.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// Create mints a new empty session id.
func (s *SessionStore) Create() (string, *Session) {
	id := randomID()
	sess := &Session{lastTouched: time.Now()}
	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	return id, sess
}

// Get returns the session for id, or (nil, false) if absent or expired.
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Since(sess.lastTouched) > sessionTTL {
		s.Delete(id)
		return nil, false
	}
	s.mu.Lock()
	sess.lastTouched = time.Now()
	s.mu.Unlock()
	return sess, true
}

// Delete removes a session, used on logout.
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func randomID() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err) // crypto/rand failing means the system entropy source is broken
	}
	return hex.EncodeToString(b)
}
