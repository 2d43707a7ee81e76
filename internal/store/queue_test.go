package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/wsdeck/internal/domain"
)

// blockingJournal records writes and can be paused to fill the queue.
type blockingJournal struct {
	Journal
	gate chan struct{}

	mu       sync.Mutex
	sessions []string
	messages []string
}

func (b *blockingJournal) RecordSession(_ context.Context, info domain.SessionInfo) error {
	<-b.gate
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions = append(b.sessions, info.ID)
	return nil
}

func (b *blockingJournal) RecordMessage(_ context.Context, msg domain.Message) error {
	<-b.gate
	b.mu.Lock()
	defer b.mu.Unlock()
	if msg.Content == "fail" {
		return errors.New("write failed")
	}
	b.messages = append(b.messages, msg.Content)
	return nil
}

func TestQueueWritesInOrderAndDrainsOnClose(t *testing.T) {
	t.Parallel()

	j := &blockingJournal{gate: make(chan struct{})}
	close(j.gate)
	q := NewQueue(j, 16, slog.Default())

	q.RecordSession(domain.SessionInfo{ID: "s1"})
	for _, content := range []string{"a", "fail", "b", "c"} {
		q.RecordMessage(domain.NewSent("", "s1", content, time.Now()))
	}
	if err := q.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.sessions) != 1 || j.sessions[0] != "s1" {
		t.Errorf("unexpected sessions %v", j.sessions)
	}
	want := []string{"a", "b", "c"}
	if len(j.messages) != len(want) {
		t.Fatalf("expected %v, got %v", want, j.messages)
	}
	for i := range want {
		if j.messages[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], j.messages[i])
		}
	}
}

func TestQueueDropsWhenFull(t *testing.T) {
	t.Parallel()

	j := &blockingJournal{gate: make(chan struct{})}
	q := NewQueue(j, 1, slog.Default())

	// Worker holds at most one entry, the buffer one more; the rest are dropped.
	for i := 0; i < 10; i++ {
		q.RecordMessage(domain.NewSent("", "s1", "x", time.Now()))
	}
	close(j.gate)
	_ = q.Close()

	j.mu.Lock()
	defer j.mu.Unlock()
	if n := len(j.messages); n == 0 || n > 2 {
		t.Errorf("expected 1 or 2 writes, got %d", n)
	}
}

func TestQueueIgnoresEntriesAfterClose(t *testing.T) {
	t.Parallel()

	j := &blockingJournal{gate: make(chan struct{})}
	close(j.gate)
	q := NewQueue(j, 4, nil)
	_ = q.Close()
	_ = q.Close()

	q.RecordMessage(domain.NewSent("", "s1", "late", time.Now()))

	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.messages) != 0 {
		t.Errorf("expected no writes after close, got %v", j.messages)
	}
}

func TestQueueAgainstSQLite(t *testing.T) {
	t.Parallel()

	j := newTestJournal(t)
	q := NewQueue(j, 8, nil)

	q.RecordSession(domain.SessionInfo{ID: "s1", Endpoint: "ws://x", Name: "A", Status: domain.StatusDisconnected, CreatedAt: time.Now()})
	for i, content := range []string{"one", "two"} {
		msg := domain.NewSent("m"+content, "s1", content, time.Now())
		msg.Seq = i
		q.RecordMessage(msg)
	}
	_ = q.Close()

	got, err := j.ListMessages(context.Background(), "s1")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(got) != 2 || got[0].Content != "one" || got[1].Content != "two" {
		t.Errorf("unexpected archive %+v", got)
	}
}
