package domain

import (
	"time"
)

// Kind tags the variant of a Message.
type Kind string

const (
	KindSent     Kind = "sent"
	KindReceived Kind = "received"
	KindSystem   Kind = "system"
)

// SystemKind qualifies a KindSystem message. It is empty for every other kind.
type SystemKind string

const (
	SystemConnection    SystemKind = "connection"
	SystemDisconnection SystemKind = "disconnection"
	SystemError         SystemKind = "error"
)

// Message is one immutable entry in a session log.
// Build values with NewSent, NewReceived or NewSystem so System is only
// ever set on system messages.
type Message struct {
	ID        string     `json:"id"`
	SessionID string     `json:"sessionId"`
	Seq       int        `json:"seq"`
	Kind      Kind       `json:"type"`
	System    SystemKind `json:"systemType,omitempty"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewSent returns a message the local side transmitted.
func NewSent(id, sessionID, content string, ts time.Time) Message {
	return Message{ID: id, SessionID: sessionID, Kind: KindSent, Content: content, Timestamp: ts}
}

// NewReceived returns a message delivered by the remote endpoint.
func NewReceived(id, sessionID, content string, ts time.Time) Message {
	return Message{ID: id, SessionID: sessionID, Kind: KindReceived, Content: content, Timestamp: ts}
}

// NewSystem returns a lifecycle marker generated locally.
func NewSystem(id, sessionID string, sub SystemKind, content string, ts time.Time) Message {
	return Message{ID: id, SessionID: sessionID, Kind: KindSystem, System: sub, Content: content, Timestamp: ts}
}

// IsSystem reports whether m is a system message of the given subkind.
func (m Message) IsSystem(sub SystemKind) bool {
	return m.Kind == KindSystem && m.System == sub
}
