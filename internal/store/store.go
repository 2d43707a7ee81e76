// Package store provides the transcript journal: an append-only archive of
// session metadata and message logs.
package store

import (
	"context"

	"github.com/ashureev/wsdeck/internal/domain"
)

// Journal defines the interface for archiving session transcripts.
// It is write-mostly; nothing in the running service reads state back from it.
type Journal interface {
	// RecordSession creates or updates the metadata row for a session.
	RecordSession(ctx context.Context, info domain.SessionInfo) error

	// RecordMessage appends a log entry. Re-recording the same message id is a no-op.
	RecordMessage(ctx context.Context, msg domain.Message) error

	// ListSessions returns archived session metadata, oldest first.
	ListSessions(ctx context.Context) ([]domain.SessionInfo, error)

	// ListMessages returns the archived log for a session in log order.
	ListMessages(ctx context.Context, sessionID string) ([]domain.Message, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
