package main

import (
	"sync"
	"time"
)

const stateTTL = 600 * time.Second

// StateData is what a consumed state entry hands back to the flow
// controller: the OIDC nonce bound to the round trip and the optional
// client nonce supplied at start.
type StateData struct {
	Nonce       string
	ClientNonce string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// StateStore issues and redeems single-use anti-CSRF state tokens binding
// an OAuth redirect round trip to the request that initiated it. Entries
// expire after a fixed TTL; expired entries are pruned lazily on Create and
// rejected by timestamp on read, so pruning is an optimization rather than
// the source of truth.
type StateStore struct {
	mu     sync.Mutex
	states map[string]StateData
	ttl    time.Duration
	now    func() time.Time
}

func NewStateStore() *StateStore {
	return &StateStore{
		states: make(map[string]StateData),
		ttl:    stateTTL,
		now:    time.Now,
	}
}

// Create generates a fresh state token and OIDC nonce. clientNonce is an
// opaque value from the client used to bind its session; it may be empty.
func (s *StateStore) Create(clientNonce string) (string, StateData, error) {
	state, err := randomToken(32)
	if err != nil {
		return "", StateData{}, err
	}
	nonce, err := randomToken(32)
	if err != nil {
		return "", StateData{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)

	data := StateData{
		Nonce:       nonce,
		ClientNonce: clientNonce,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}
	s.states[state] = data
	return state, data, nil
}

// VerifyAndConsume atomically pops the entry for the given state token.
// Returns false for a token never issued, already consumed, or expired.
// The pop under the lock is the at-most-once redemption boundary.
func (s *StateStore) VerifyAndConsume(state string) (StateData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.states[state]
	if !ok {
		return StateData{}, false
	}
	delete(s.states, state)

	if s.now().After(data.ExpiresAt) {
		return StateData{}, false
	}
	return data, true
}

func (s *StateStore) pruneLocked(now time.Time) {
	for k, v := range s.states {
		if now.After(v.ExpiresAt) {
			delete(s.states, k)
		}
	}
}
