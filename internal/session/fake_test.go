package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/wsdeck/internal/domain"
	"github.com/ashureev/wsdeck/internal/transport"
)

// fakeDialer hands out scriptable connections. Tests fire events on them directly.
type fakeDialer struct {
	mu      sync.Mutex
	conns   []*fakeConn
	openErr error
}

func (d *fakeDialer) Open(endpoint string, events transport.Events) (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	c := &fakeConn{endpoint: endpoint, events: events, closed: make(chan struct{})}
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) last(t *testing.T) *fakeConn {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		t.Fatal("no connection was opened")
	}
	return d.conns[len(d.conns)-1]
}

type fakeConn struct {
	endpoint string
	events   transport.Events

	mu      sync.Mutex
	sent    []string
	sendErr error
	echo    bool

	closeOnce sync.Once
	closed    chan struct{}
}

func (c *fakeConn) Send(_ context.Context, data string) error {
	c.mu.Lock()
	if c.sendErr != nil {
		c.mu.Unlock()
		return c.sendErr
	}
	c.sent = append(c.sent, data)
	echo := c.echo
	c.mu.Unlock()

	if echo {
		// Delivered from another goroutine, like a real read loop.
		go c.events.OnMessage(data)
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) sentMessages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

func (c *fakeConn) waitClosed(t *testing.T) {
	t.Helper()
	select {
	case <-c.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connection close")
	}
}

var errHandshake = errors.New("handshake refused")

// sequentialIDs returns an id function producing id-1, id-2, ...
func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

// fixedClock advances one second per call from a fixed origin.
func fixedClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func newTestController(opts ...Option) (*Store, *Controller, *fakeDialer) {
	opts = append([]Option{WithIDFunc(sequentialIDs()), WithClock(fixedClock())}, opts...)
	st := NewStore(opts...)
	d := &fakeDialer{}
	return st, NewController(st, d), d
}

func waitSettled(t *testing.T, a *Attempt) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := a.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("attempt did not settle")
	}
	return err
}

// recordingRecorder captures everything a Store or Controller records.
type recordingRecorder struct {
	mu       sync.Mutex
	sessions []string
	messages []string
}

func (r *recordingRecorder) RecordSession(info domain.SessionInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, info.ID+":"+info.Name+":"+string(info.Status))
}

func (r *recordingRecorder) RecordMessage(msg domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, fmt.Sprintf("%d:%s:%s", msg.Seq, msg.Kind, msg.Content))
}

func (r *recordingRecorder) snapshot() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sessions...), append([]string(nil), r.messages...)
}
