package api

import (
	"log"
	"sync"
	"time"

	"github.com/abkawan/atm-teller/internal/service"
	"github.com/google/uuid"
)

// DefaultSessionIdleTimeout is how long a token survives without requests
const DefaultSessionIdleTimeout = 5 * time.Minute

type registeredSession struct {
	session  *service.Session
	lastSeen time.Time
}

// sessionRegistry maps API tokens to live teller sessions. A session unused
// for longer than idle is logged out and forgotten; idle <= 0 disables expiry.
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*registeredSession
	idle     time.Duration
	now      func() time.Time
}

func newSessionRegistry(idle time.Duration) *sessionRegistry {
	return &sessionRegistry{
		sessions: make(map[string]*registeredSession),
		idle:     idle,
		now:      time.Now,
	}
}

func (r *sessionRegistry) add(s *service.Session) string {
	token := uuid.New().String()

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.pruneLocked(now)
	r.sessions[token] = &registeredSession{session: s, lastSeen: now}
	return token
}

// lookup returns the session for token and marks it used. Unknown and idle
// tokens behave like a logged out session.
func (r *sessionRegistry) lookup(token string) (*service.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[token]
	if !ok {
		return nil, false
	}

	now := r.now()
	if r.expired(entry, now) {
		r.expireLocked(token, entry)
		return nil, false
	}

	entry.lastSeen = now
	return entry.session, true
}

// remove logs the session out and forgets the token
func (r *sessionRegistry) remove(token string) {
	r.mu.Lock()
	entry, ok := r.sessions[token]
	delete(r.sessions, token)
	r.mu.Unlock()

	if ok {
		entry.session.Logout()
	}
}

func (r *sessionRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *sessionRegistry) expired(entry *registeredSession, now time.Time) bool {
	return r.idle > 0 && now.Sub(entry.lastSeen) > r.idle
}

func (r *sessionRegistry) pruneLocked(now time.Time) {
	for token, entry := range r.sessions {
		if r.expired(entry, now) {
			r.expireLocked(token, entry)
		}
	}
}

func (r *sessionRegistry) expireLocked(token string, entry *registeredSession) {
	delete(r.sessions, token)
	number, _ := entry.session.AccountNumber()
	entry.session.Logout()
	log.Printf("Session for account %s expired after %s idle", number, r.idle)
}
