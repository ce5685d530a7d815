package autofill

import (
	"sync"
	"time"

	"github.com/credvault/credvault/internal/match"
)

// SessionTTL bounds how long a fill session survives between the
// initial request and the authenticated follow-up. The OS may re-invoke
// fill after authentication with different field references, so the
// classification from the first pass is kept around briefly.
const SessionTTL = 3 * time.Minute

type session struct {
	classification match.Classification
	domain         string
	created        time.Time
}

// sessionCache correlates the two halves of an authenticated fill by
// request id. Purely in memory: persisting it anywhere would let other
// processes read which surfaces the user is logging into.
type sessionCache struct {
	mu       sync.Mutex
	sessions map[string]session
	ttl      time.Duration
	now      func() time.Time
}

func newSessionCache(ttl time.Duration) *sessionCache {
	return &sessionCache{
		sessions: make(map[string]session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (c *sessionCache) put(requestID string, s session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked()
	s.created = c.now()
	c.sessions[requestID] = s
}

// take returns the session for requestID and removes it. Sessions are
// single use.
func (c *sessionCache) take(requestID string) (session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked()
	s, ok := c.sessions[requestID]
	if ok {
		delete(c.sessions, requestID)
	}
	return s, ok
}

// purge drops one session without using it.
func (c *sessionCache) purge(requestID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, requestID)
}

// purgeAll empties the cache. Called on vault lock so nothing about an
// in-flight login outlives the unlocked state.
func (c *sessionCache) purgeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions = make(map[string]session)
}

func (c *sessionCache) sweepLocked() {
	cutoff := c.now().Add(-c.ttl)
	for id, s := range c.sessions {
		if s.created.Before(cutoff) {
			delete(c.sessions, id)
		}
	}
}
