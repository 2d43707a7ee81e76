package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/wsdeck/internal/domain"
)

// entry is one queued journal write; exactly one field is set.
type entry struct {
	session *domain.SessionInfo
	message *domain.Message
}

// Queue feeds a Journal from a bounded buffer drained by a single worker.
// Enqueueing never blocks: when the buffer is full the entry is dropped and
// a warning is logged. A single worker keeps writes in enqueue order.
type Queue struct {
	journal      Journal
	entries      chan entry
	writeTimeout time.Duration
	logger       *slog.Logger
	wg           sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewQueue starts a queue of the given capacity in front of journal.
func NewQueue(journal Journal, size int, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	if size <= 0 {
		size = 1000
	}

	q := &Queue{
		journal:      journal,
		entries:      make(chan entry, size),
		writeTimeout: 5 * time.Second,
		logger:       logger,
	}

	q.wg.Add(1)
	go q.run()
	return q
}

// RecordSession queues a session metadata write.
func (q *Queue) RecordSession(info domain.SessionInfo) {
	info.Messages = nil
	q.enqueue(entry{session: &info}, info.ID)
}

// RecordMessage queues a message write.
func (q *Queue) RecordMessage(msg domain.Message) {
	q.enqueue(entry{message: &msg}, msg.SessionID)
}

func (q *Queue) enqueue(e entry, sessionID string) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.logger.Debug("Journal queue closed, dropping entry", "session_id", sessionID)
		return
	}

	select {
	case q.entries <- e:
	default:
		q.logger.Warn("Journal queue full, dropping entry",
			"session_id", sessionID,
			"queue_len", len(q.entries),
		)
	}
}

func (q *Queue) run() {
	defer q.wg.Done()

	for e := range q.entries {
		ctx, cancel := context.WithTimeout(context.Background(), q.writeTimeout)
		var err error
		var sessionID string
		switch {
		case e.session != nil:
			sessionID = e.session.ID
			err = q.journal.RecordSession(ctx, *e.session)
		case e.message != nil:
			sessionID = e.message.SessionID
			err = q.journal.RecordMessage(ctx, *e.message)
		}
		cancel()

		if err != nil {
			q.logger.Warn("Failed to write journal entry", "session_id", sessionID, "error", err)
		}
	}
}

// Close stops accepting entries and waits for queued ones to be written.
// It does not close the underlying journal.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.entries)
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}
