package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ScopeChat is the scope under which chat turns are deduplicated. API requests
// use their literal route path as the scope so unrelated resources never
// cancel each other.
const ScopeChat = "@chat"

// slot tracks the one live request for a (session, scope) pair.
type slot struct {
	token     string
	cancelled bool
	createdAt time.Time
}

// Registry guarantees at most one live request per (session, scope) and lets
// superseded requests detect their own staleness.
//
// Cancellation here is cooperative and observational: a long-running request
// is never preempted. It runs to completion, and its result is discarded if
// IsStale reports true at the check point just before the reply is persisted.
type Registry struct {
	mu    sync.Mutex
	slots map[string]map[string]*slot // session ID -> scope -> slot
	now   func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		slots: make(map[string]map[string]*slot),
		now:   time.Now,
	}
}

// IssueToken atomically replaces the slot for (sessionID, scope) with a fresh
// token and returns it. Any previously issued token for the pair becomes
// stale immediately. Never fails.
func (r *Registry) IssueToken(sessionID, scope string) string {
	token := uuid.NewString()

	r.mu.Lock()
	defer r.mu.Unlock()

	scopes, ok := r.slots[sessionID]
	if !ok {
		scopes = make(map[string]*slot)
		r.slots[sessionID] = scopes
	}
	scopes[scope] = &slot{token: token, createdAt: r.now()}

	return token
}

// IssueChatToken issues a token under the shared chat scope.
func (r *Registry) IssueChatToken(sessionID string) string {
	return r.IssueToken(sessionID, ScopeChat)
}

// IsStale reports whether the given token is no longer the current one for
// (sessionID, scope). A missing session or scope is stale (fail-safe), as is
// a slot that was explicitly cancelled.
func (r *Registry) IsStale(sessionID, scope, token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	scopes, ok := r.slots[sessionID]
	if !ok {
		return true
	}
	s, ok := scopes[scope]
	if !ok {
		return true
	}
	if s.token != token {
		return true
	}
	return s.cancelled
}

// IsChatStale is IsStale under the shared chat scope.
func (r *Registry) IsChatStale(sessionID, token string) bool {
	return r.IsStale(sessionID, ScopeChat, token)
}

// Cancel marks the current slot for (sessionID, scope) cancelled without
// replacing its token. Used for explicit abort, distinct from supersession.
// Returns false if no slot exists.
func (r *Registry) Cancel(sessionID, scope string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if scopes, ok := r.slots[sessionID]; ok {
		if s, ok := scopes[scope]; ok {
			s.cancelled = true
			return true
		}
	}
	return false
}

// ActiveToken returns the current non-cancelled token for (sessionID, scope),
// or "" if there is none.
func (r *Registry) ActiveToken(sessionID, scope string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if scopes, ok := r.slots[sessionID]; ok {
		if s, ok := scopes[scope]; ok && !s.cancelled {
			return s.token
		}
	}
	return ""
}

// ClearSession drops all request slots for a session.
func (r *Registry) ClearSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.slots, sessionID)
}

// ClearScope drops the slot for one (sessionID, scope) pair.
func (r *Registry) ClearScope(sessionID, scope string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if scopes, ok := r.slots[sessionID]; ok {
		delete(scopes, scope)
		if len(scopes) == 0 {
			delete(r.slots, sessionID)
		}
	}
}

// EvictExpired removes slots older than maxAge and returns how many sessions
// were dropped entirely.
func (r *Registry) EvictExpired(maxAge time.Duration) int {
	cutoff := r.now().Add(-maxAge)
	evicted := 0

	r.mu.Lock()
	defer r.mu.Unlock()

	for sessionID, scopes := range r.slots {
		for scope, s := range scopes {
			if s.createdAt.Before(cutoff) {
				delete(scopes, scope)
			}
		}
		if len(scopes) == 0 {
			delete(r.slots, sessionID)
			evicted++
		}
	}
	return evicted
}

// Stats reports current registry occupancy.
func (r *Registry) Stats() (sessions, requests int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions = len(r.slots)
	for _, scopes := range r.slots {
		requests += len(scopes)
	}
	return sessions, requests
}
