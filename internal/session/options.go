package session

import (
	"log/slog"
	"time"

	"github.com/ashureev/wsdeck/internal/domain"
	"github.com/google/uuid"
)

// Recorder receives session metadata and log entries as they change.
// Calls are fire-and-forget and must not block for long.
type Recorder interface {
	RecordSession(info domain.SessionInfo)
	RecordMessage(msg domain.Message)
}

type nopRecorder struct{}

func (nopRecorder) RecordSession(domain.SessionInfo) {}
func (nopRecorder) RecordMessage(domain.Message)     {}

type storeConfig struct {
	newID    func() string
	now      func() time.Time
	recorder Recorder
	logger   *slog.Logger
}

func defaultStoreConfig() storeConfig {
	return storeConfig{
		newID:    newUUID,
		now:      time.Now,
		recorder: nopRecorder{},
		logger:   slog.Default(),
	}
}

func newUUID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Option configures a Store.
type Option func(*storeConfig)

// WithIDFunc replaces the identifier generator used for sessions and messages.
func WithIDFunc(fn func() string) Option {
	return func(c *storeConfig) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// WithClock replaces the timestamp source.
func WithClock(fn func() time.Time) Option {
	return func(c *storeConfig) {
		if fn != nil {
			c.now = fn
		}
	}
}

// WithRecorder mirrors session changes and log entries to r.
func WithRecorder(r Recorder) Option {
	return func(c *storeConfig) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *storeConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}
