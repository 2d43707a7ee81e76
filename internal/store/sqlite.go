package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/wsdeck/internal/domain"
	"github.com/ashureev/wsdeck/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Journal using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed journal.
func NewSQLite(dbPath string) (Journal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		endpoint TEXT NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		closed_at INTEGER,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		message_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		kind TEXT NOT NULL,
		system_kind TEXT,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_session_seq ON messages(session_id, seq);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RecordSession creates or updates session metadata.
func (s *SQLiteStore) RecordSession(ctx context.Context, info domain.SessionInfo) error {
	query := `
	INSERT INTO sessions (session_id, endpoint, name, status, created_at, closed_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		name = excluded.name,
		status = excluded.status,
		closed_at = excluded.closed_at,
		updated_at = excluded.updated_at`

	var closedAt interface{}
	if info.ClosedAt != nil {
		closedAt = info.ClosedAt.UnixMilli()
	}

	return withRetry(ctx, "record session", info.ID, func() error {
		_, err := s.db.ExecContext(ctx, query,
			info.ID, info.Endpoint, info.Name, string(info.Status),
			info.CreatedAt.UnixMilli(), closedAt, time.Now().UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("upsert session: %w", err)
		}
		return nil
	})
}

// RecordMessage appends a message to the archive.
func (s *SQLiteStore) RecordMessage(ctx context.Context, msg domain.Message) error {
	query := `
	INSERT INTO messages (message_id, session_id, seq, kind, system_kind, content, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(message_id) DO NOTHING`

	var systemKind interface{}
	if msg.Kind == domain.KindSystem {
		systemKind = string(msg.System)
	}

	return withRetry(ctx, "record message", msg.SessionID, func() error {
		_, err := s.db.ExecContext(ctx, query,
			msg.ID, msg.SessionID, msg.Seq, string(msg.Kind), systemKind,
			msg.Content, msg.Timestamp.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		return nil
	})
}

// ListSessions returns archived session metadata, oldest first.
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]domain.SessionInfo, error) {
	query := `
		SELECT session_id, endpoint, name, status, created_at, closed_at
		FROM sessions ORDER BY created_at, session_id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close session rows", "error", closeErr)
		}
	}()

	var sessions []domain.SessionInfo
	for rows.Next() {
		var info domain.SessionInfo
		var status string
		var createdAt int64
		var closedAt sql.NullInt64

		if err := rows.Scan(&info.ID, &info.Endpoint, &info.Name, &status, &createdAt, &closedAt); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}

		info.Status = domain.Status(status)
		info.CreatedAt = time.UnixMilli(createdAt)
		if closedAt.Valid {
			ts := time.UnixMilli(closedAt.Int64)
			info.ClosedAt = &ts
		}
		sessions = append(sessions, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// ListMessages returns the archived log for a session in log order.
func (s *SQLiteStore) ListMessages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	query := `
		SELECT message_id, session_id, seq, kind, system_kind, content, created_at
		FROM messages WHERE session_id = ? ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close message rows", "error", closeErr)
		}
	}()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		var kind string
		var systemKind sql.NullString
		var createdAt int64

		if err := rows.Scan(
			&msg.ID, &msg.SessionID, &msg.Seq, &kind, &systemKind,
			&msg.Content, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}

		msg.Kind = domain.Kind(kind)
		msg.System = domain.SystemKind(systemKind.String)
		msg.Timestamp = time.UnixMilli(createdAt)
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// withRetry runs fn, retrying with exponential backoff while SQLite reports
// SQLITE_BUSY or a locked database.
func withRetry(ctx context.Context, op, sessionID string, fn func() error) error {
	maxRetries := 3
	baseDelay := 50 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !shared.IsSQLiteConflictError(err) || i == maxRetries-1 {
			break
		}

		delay := baseDelay * time.Duration(1<<i) // 50ms, 100ms
		slog.Debug("Journal write hit SQLITE_BUSY, retrying",
			"op", op,
			"session_id", sessionID,
			"attempt", i+1,
			"delay", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s for %s: %w", op, sessionID, ctx.Err())
		}
	}

	return fmt.Errorf("%s for %s: %w", op, sessionID, err)
}
