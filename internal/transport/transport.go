// Package transport defines the connection contract sessions are driven by
// and provides a WebSocket client implementation of it.
package transport

import (
	"context"
	"errors"
)

// ErrNotOpen is returned by Send before the handshake completes or after Close.
var ErrNotOpen = errors.New("connection is not open")

// Events receives the lifecycle of a single connection.
// Callbacks for one connection are invoked sequentially, never concurrently,
// and never from inside Dialer.Open. Nil callbacks are skipped.
type Events struct {
	OnOpen    func()
	OnMessage func(data string)
	OnError   func(err error)
	OnClose   func()
}

func (e Events) open() {
	if e.OnOpen != nil {
		e.OnOpen()
	}
}

func (e Events) message(data string) {
	if e.OnMessage != nil {
		e.OnMessage(data)
	}
}

func (e Events) fail(err error) {
	if e.OnError != nil {
		e.OnError(err)
	}
}

func (e Events) close() {
	if e.OnClose != nil {
		e.OnClose()
	}
}

// Conn is a handle to one opened connection.
type Conn interface {
	// Send transmits data as a single text message.
	Send(ctx context.Context, data string) error
	// Close starts a normal closure. OnClose still fires afterwards.
	Close() error
}

// Dialer opens connections to remote endpoints.
type Dialer interface {
	// Open starts connecting to endpoint and returns immediately.
	// A returned error means the connection could not even be constructed
	// and no events will follow.
	Open(endpoint string, events Events) (Conn, error)
}
