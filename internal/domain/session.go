// Package domain contains core domain types for wsdeck.
package domain

import (
	"time"
)

// Status is the externally visible connection state of a session.
// A handshake in progress is reported as StatusDisconnected.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnected    Status = "connected"
)

// SessionInfo is a point-in-time copy of a session record.
type SessionInfo struct {
	ID        string     `json:"id"`
	Endpoint  string     `json:"url"`
	Name      string     `json:"name"`
	Status    Status     `json:"status"`
	Messages  []Message  `json:"messages,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	ClosedAt  *time.Time `json:"closedAt"`
}
