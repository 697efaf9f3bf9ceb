// Package dialogue keeps the per-operator state of the quantity prompt.
//
// An operator is either idle (no entry) or awaiting a quantity for exactly one
// pending inventory change. Entries live in process memory only and are keyed
// by operator id, so no operator can see or change another one's prompt.
package dialogue

import (
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"coffee-fleet-backend/internal/model"
)

// State is the pending change of an operator awaiting a quantity.
type State struct {
	Mode      model.Action `json:"mode"`
	MachineID int64        `json:"machine_id"`
	Item      model.Item   `json:"item"`
	StartedAt time.Time    `json:"started_at"`
}

// Manager owns the dialogue states of all operators. mu makes read-then-delete
// sequences atomic; single reads go straight to the cache.
type Manager struct {
	mu     sync.Mutex
	states *cache.Cache
	ttl    time.Duration
}

// NewManager creates a manager. A ttl of zero keeps a prompt until it is
// resolved or cancelled; a positive ttl evicts abandoned prompts.
func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		return &Manager{states: cache.New(cache.NoExpiration, 0), ttl: cache.NoExpiration}
	}
	return &Manager{states: cache.New(ttl, ttl), ttl: ttl}
}

func key(operatorID int64) string {
	return strconv.FormatInt(operatorID, 10)
}

// Begin moves the operator to awaiting a quantity, replacing any earlier prompt.
func (m *Manager) Begin(operatorID int64, st State) {
	if st.StartedAt.IsZero() {
		st.StartedAt = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states.Set(key(operatorID), st, m.ttl)
}

// Pending returns the operator's pending state, if any.
func (m *Manager) Pending(operatorID int64) (State, bool) {
	v, ok := m.states.Get(key(operatorID))
	if !ok {
		return State{}, false
	}
	return v.(State), true
}

// Take consumes the operator's pending state: it is returned and removed in
// one step, so concurrent callers never both receive the same prompt.
func (m *Manager) Take(operatorID int64) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(operatorID)
	v, ok := m.states.Get(k)
	if !ok {
		return State{}, false
	}
	m.states.Delete(k)
	return v.(State), true
}

// Cancel returns the operator to idle and reports whether a prompt was pending.
func (m *Manager) Cancel(operatorID int64) bool {
	_, ok := m.Take(operatorID)
	return ok
}

// Active returns the number of operators awaiting a quantity. Expired prompts
// the janitor has not collected yet are not counted.
func (m *Manager) Active() int {
	return len(m.states.Items())
}
