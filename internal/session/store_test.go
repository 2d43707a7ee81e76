package session

import (
	"strconv"
	"testing"
	"time"

	"github.com/ashureev/wsdeck/internal/domain"
)

func TestStore_CreateSession(t *testing.T) {
	st := NewStore()

	id := st.CreateSession("ws://x", "A")
	s, ok := st.Get(id)
	if !ok {
		t.Fatalf("expected session %s to exist", id)
	}

	if s.Status() != domain.StatusDisconnected {
		t.Errorf("expected status disconnected, got %s", s.Status())
	}
	if len(s.Messages()) != 0 {
		t.Errorf("expected empty log, got %d entries", len(s.Messages()))
	}
	if s.Endpoint() != "ws://x" {
		t.Errorf("expected endpoint ws://x, got %s", s.Endpoint())
	}
	if s.Name() != "A" {
		t.Errorf("expected name A, got %s", s.Name())
	}
	if s.ClosedAt() != nil {
		t.Errorf("expected nil closedAt, got %v", s.ClosedAt())
	}
	if s.connected() {
		t.Error("new session must not hold a live connection")
	}
}

func TestStore_CreateSessionDerivesName(t *testing.T) {
	st := NewStore()

	first := st.CreateSession("ws://a", "")
	st.CreateSession("ws://b", "named")
	third := st.CreateSession("ws://c", "")

	if got, _ := st.Get(first); got.Name() != "Connection 1" {
		t.Errorf("expected Connection 1, got %s", got.Name())
	}
	if got, _ := st.Get(third); got.Name() != "Connection 3" {
		t.Errorf("expected Connection 3, got %s", got.Name())
	}
}

func TestStore_CreateSessionUsesInjectedServices(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := NewStore(
		WithIDFunc(func() string { return "fixed" }),
		WithClock(func() time.Time { return created }),
	)

	id := st.CreateSession("ws://x", "")
	if id != "fixed" {
		t.Fatalf("expected id fixed, got %s", id)
	}
	s, _ := st.Get(id)
	if !s.CreatedAt().Equal(created) {
		t.Errorf("expected createdAt %v, got %v", created, s.CreatedAt())
	}
}

func TestStore_RenameSession(t *testing.T) {
	rec := &recordingRecorder{}
	st := NewStore(WithIDFunc(sequentialIDs()), WithRecorder(rec))
	id := st.CreateSession("ws://x", "old")

	if !st.RenameSession(id, "new") {
		t.Fatal("expected rename to succeed")
	}
	if s, _ := st.Get(id); s.Name() != "new" {
		t.Errorf("expected name new, got %s", s.Name())
	}

	if st.RenameSession("missing", "x") {
		t.Error("expected rename of unknown id to return false")
	}

	sessions, _ := rec.snapshot()
	want := []string{"id-1:old:disconnected", "id-1:new:disconnected"}
	if len(sessions) != len(want) {
		t.Fatalf("expected %d session records, got %v", len(want), sessions)
	}
	for i := range want {
		if sessions[i] != want[i] {
			t.Errorf("record %d: expected %s, got %s", i, want[i], sessions[i])
		}
	}
}

// lockCheckingRecorder reports whether each session record arrived while the
// session's lock was held.
type lockCheckingRecorder struct {
	nopRecorder
	st       *Store
	unlocked []string
}

func (r *lockCheckingRecorder) RecordSession(info domain.SessionInfo) {
	s, ok := r.st.Get(info.ID)
	if ok && s.mu.TryLock() {
		s.mu.Unlock()
		r.unlocked = append(r.unlocked, info.Name)
	}
}

func TestStore_RecordsUnderSessionLock(t *testing.T) {
	rec := &lockCheckingRecorder{}
	st := NewStore(WithRecorder(rec))
	rec.st = st

	id := st.CreateSession("ws://x", "created")
	st.RenameSession(id, "renamed")

	if len(rec.unlocked) != 0 {
		t.Errorf("expected every session record under the lock, unlocked: %v", rec.unlocked)
	}
}

func TestStore_AllIsLiveAndOrdered(t *testing.T) {
	st := NewStore()
	ids := []string{
		st.CreateSession("ws://a", ""),
		st.CreateSession("ws://b", ""),
		st.CreateSession("ws://c", ""),
	}

	all := st.All()
	if len(all) != len(ids) {
		t.Fatalf("expected %d sessions, got %d", len(ids), len(all))
	}
	for i, s := range all {
		if s.ID() != ids[i] {
			t.Errorf("position %d: expected %s, got %s", i, ids[i], s.ID())
		}
	}

	st.RenameSession(ids[1], "renamed")
	if all[1].Name() != "renamed" {
		t.Errorf("expected earlier All() result to observe rename, got %s", all[1].Name())
	}
}

func TestStore_Active(t *testing.T) {
	st := NewStore()

	if _, ok := st.Active(); ok {
		t.Error("expected no active session initially")
	}

	id := st.CreateSession("ws://x", "")
	st.SetActive(id)
	s, ok := st.Active()
	if !ok || s.ID() != id {
		t.Fatalf("expected active session %s", id)
	}

	st.SetActive("dangling")
	if _, ok := st.Active(); ok {
		t.Error("expected dangling pointer to resolve to absent")
	}
	if st.ActiveID() != "dangling" {
		t.Errorf("expected raw pointer to be kept, got %q", st.ActiveID())
	}

	st.SetActive("")
	if _, ok := st.Active(); ok {
		t.Error("expected cleared pointer to resolve to absent")
	}
}

func TestStore_ClearActiveIf(t *testing.T) {
	st := NewStore()
	a := st.CreateSession("ws://a", "")
	b := st.CreateSession("ws://b", "")

	st.SetActive(a)
	if st.clearActiveIf(b) {
		t.Error("expected no clear for a different id")
	}
	if st.ActiveID() != a {
		t.Errorf("expected active %s, got %s", a, st.ActiveID())
	}
	if !st.clearActiveIf(a) {
		t.Error("expected clear for matching id")
	}
	if st.ActiveID() != "" {
		t.Errorf("expected cleared pointer, got %s", st.ActiveID())
	}
}

func TestStore_ConcurrentCreate(t *testing.T) {
	t.Parallel()

	st := NewStore()
	const workers = 8
	const perWorker = 50

	done := make(chan []string, workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			ids := make([]string, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				ids = append(ids, st.CreateSession("ws://host/"+strconv.Itoa(w), ""))
				st.All()
			}
			done <- ids
		}(w)
	}

	seen := make(map[string]bool)
	for w := 0; w < workers; w++ {
		for _, id := range <-done {
			if seen[id] {
				t.Fatalf("duplicate id %s", id)
			}
			seen[id] = true
		}
	}
	if st.size() != workers*perWorker {
		t.Errorf("expected %d sessions, got %d", workers*perWorker, st.size())
	}
}
