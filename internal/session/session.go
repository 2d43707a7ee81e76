// Package session tracks WebSocket client sessions: the registry of session
// records, the active-session pointer, and the controller that drives each
// session's connection lifecycle and message log.
package session

import (
	"slices"
	"sync"
	"time"

	"github.com/ashureev/wsdeck/internal/domain"
	"github.com/ashureev/wsdeck/internal/transport"
)

// Session is a live session record. Accessors always reflect the latest state.
// Only the Controller changes status, log and transport handle; only the Store
// changes the name.
type Session struct {
	id        string
	endpoint  string
	createdAt time.Time

	mu       sync.Mutex
	name     string
	status   domain.Status
	messages []domain.Message
	link     *link
	closedAt *time.Time
}

// link ties a transport connection to the Connect attempt that opened it.
// Event callbacks compare their link with Session.link to tell whether they
// still belong to the current connection.
type link struct {
	conn    transport.Conn
	attempt *Attempt
	opened  bool
	closed  chan struct{} // closed once the transport reports its close
}

func newLink() *link {
	return &link{attempt: newAttempt(), closed: make(chan struct{})}
}

// markClosed closes l.closed. Callers hold the owning session's mu.
func (l *link) markClosed() {
	select {
	case <-l.closed:
	default:
		close(l.closed)
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Endpoint returns the remote address the session connects to.
func (s *Session) Endpoint() string {
	return s.endpoint
}

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Name returns the display name.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// Status returns the connection status.
func (s *Session) Status() domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// ClosedAt returns when the session last disconnected, or nil.
func (s *Session) ClosedAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closedAt == nil {
		return nil
	}
	t := *s.closedAt
	return &t
}

// Messages returns a copy of the message log in append order.
func (s *Session) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

// connected reports whether the session holds a live, opened transport handle.
func (s *Session) connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.link != nil && s.status == domain.StatusConnected
}

// Snapshot copies the record, including its log.
func (s *Session) Snapshot() domain.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := s.infoLocked()
	info.Messages = slices.Clone(s.messages)
	return info
}

// infoLocked copies everything but the log. Callers hold s.mu.
func (s *Session) infoLocked() domain.SessionInfo {
	info := domain.SessionInfo{
		ID:        s.id,
		Endpoint:  s.endpoint,
		Name:      s.name,
		Status:    s.status,
		CreatedAt: s.createdAt,
	}
	if s.closedAt != nil {
		t := *s.closedAt
		info.ClosedAt = &t
	}
	return info
}

// appendLocked stamps seq and appends msg. Callers hold s.mu.
func (s *Session) appendLocked(msg domain.Message) domain.Message {
	msg.Seq = len(s.messages)
	s.messages = append(s.messages, msg)
	return msg
}
