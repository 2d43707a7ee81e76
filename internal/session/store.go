package session

import (
	"strconv"
	"sync"

	"github.com/ashureev/wsdeck/internal/domain"
)

// Store owns the session registry and the active-session pointer.
// Sessions are never removed; they live as long as the Store.
type Store struct {
	cfg storeConfig

	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string
	activeID string
}

// NewStore creates an empty store with no active session.
func NewStore(opts ...Option) *Store {
	cfg := defaultStoreConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Store{
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// CreateSession registers a disconnected session for endpoint and returns its id.
// An empty name becomes "Connection N", N being the registry size plus one.
func (st *Store) CreateSession(endpoint, name string) string {
	id := st.cfg.newID()

	st.mu.Lock()
	if name == "" {
		name = "Connection " + strconv.Itoa(len(st.sessions)+1)
	}
	s := &Session{
		id:        id,
		endpoint:  endpoint,
		createdAt: st.cfg.now(),
		name:      name,
		status:    domain.StatusDisconnected,
	}
	st.sessions[id] = s
	st.order = append(st.order, id)
	st.mu.Unlock()

	s.mu.Lock()
	st.cfg.recorder.RecordSession(s.infoLocked())
	s.mu.Unlock()

	st.cfg.logger.Info("Session created", "session_id", id, "endpoint", endpoint, "name", name)
	return id
}

// RenameSession sets the display name. It returns false if id is unknown.
func (st *Store) RenameSession(id, name string) bool {
	s, ok := st.Get(id)
	if !ok {
		return false
	}

	s.mu.Lock()
	s.name = name
	st.cfg.recorder.RecordSession(s.infoLocked())
	s.mu.Unlock()
	return true
}

// All returns every session record in creation order.
func (st *Store) All() []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]*Session, 0, len(st.order))
	for _, id := range st.order {
		out = append(out, st.sessions[id])
	}
	return out
}

// size returns the number of registered sessions.
func (st *Store) size() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Get returns the session with the given id.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s, ok
}

// Active resolves the active pointer. It returns false when the pointer is
// unset or names an unknown session.
func (st *Store) Active() (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.activeID == "" {
		return nil, false
	}
	s, ok := st.sessions[st.activeID]
	return s, ok
}

// ActiveID returns the raw active pointer; empty means none.
func (st *Store) ActiveID() string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.activeID
}

// SetActive points the active pointer at id. An empty id clears it.
// The id is not checked against the registry.
func (st *Store) SetActive(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.activeID = id
}

// clearActiveIf clears the active pointer if it currently names id.
func (st *Store) clearActiveIf(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.activeID != id {
		return false
	}
	st.activeID = ""
	return true
}
