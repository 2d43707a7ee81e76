package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/wsdeck/internal/domain"
	"github.com/ashureev/wsdeck/internal/transport"
	"github.com/containerd/errdefs"
)

// ErrConnectionClosed settles a Connect attempt whose connection closed
// before it either opened or reported an error.
var ErrConnectionClosed = errors.New("connection closed before it opened")

// Controller drives session connections and turns transport events into
// log entries on the owning session.
type Controller struct {
	store       *Store
	dialer      transport.Dialer
	sendTimeout time.Duration
	logger      *slog.Logger
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithSendTimeout bounds each SendMessage write (default: 10s).
func WithSendTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d > 0 {
			c.sendTimeout = d
		}
	}
}

// NewController creates a controller that opens connections with dialer and
// records state in store.
func NewController(store *Store, dialer transport.Dialer, opts ...ControllerOption) *Controller {
	c := &Controller{
		store:       store,
		dialer:      dialer,
		sendTimeout: 10 * time.Second,
		logger:      store.cfg.logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect starts connecting session id and returns without blocking.
// The attempt resolves when the transport opens and rejects on a transport
// error. Connecting an unknown session rejects immediately; connecting a
// connected session resolves immediately; connecting while a handshake is
// still unsettled returns the pending attempt. A handshake that already
// failed is released and a new transport is opened.
func (c *Controller) Connect(id string) *Attempt {
	s, ok := c.store.Get(id)
	if !ok {
		return settledAttempt(fmt.Errorf("session %s: %w", id, errdefs.ErrNotFound))
	}

	s.mu.Lock()
	if s.status == domain.StatusConnected {
		s.mu.Unlock()
		return settledAttempt(nil)
	}
	var failed *link
	if s.link != nil && !s.link.opened {
		if !s.link.attempt.settled() {
			pending := s.link.attempt
			s.mu.Unlock()
			return pending
		}
		// Errored but not yet closed. Release it and dial again.
		failed = s.link
		s.link = nil
	}

	l := newLink()
	conn, err := c.dialer.Open(s.endpoint, c.events(s, l))
	if err != nil {
		c.appendLocked(s, c.system(s, domain.SystemError, "Failed to connect to: "+s.endpoint))
		s.mu.Unlock()

		c.closeConn(id, failed)
		c.logger.Warn("Failed to open connection", "session_id", id, "endpoint", s.endpoint, "error", err)
		l.attempt.settle(fmt.Errorf("open %s: %w", s.endpoint, err))
		return l.attempt
	}
	l.conn = conn
	s.link = l
	s.mu.Unlock()

	c.closeConn(id, failed)
	c.logger.Info("Session connecting", "session_id", id, "endpoint", s.endpoint)
	return l.attempt
}

// Disconnect closes the session's connection, if it holds one, and clears
// the active pointer when it names this session. The close event that
// follows is still logged.
func (c *Controller) Disconnect(id string) {
	s, ok := c.store.Get(id)
	if !ok {
		return
	}
	c.release(s)
}

// Close disconnects every session and waits until each released connection
// has reported its close, so the final disconnection entries reach the
// recorder. It returns ctx.Err() if ctx ends first.
func (c *Controller) Close(ctx context.Context) error {
	var released []*link
	for _, s := range c.store.All() {
		if l := c.release(s); l != nil {
			released = append(released, l)
		}
	}

	for _, l := range released {
		select {
		case <-l.closed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// release detaches the session's link and closes its transport in the
// background. It returns the released link, or nil if there was none.
func (c *Controller) release(s *Session) *link {
	s.mu.Lock()
	l := s.link
	if l == nil {
		s.mu.Unlock()
		return nil
	}
	now := c.store.cfg.now()
	s.link = nil
	s.status = domain.StatusDisconnected
	s.closedAt = &now
	c.store.cfg.recorder.RecordSession(s.infoLocked())
	s.mu.Unlock()

	if c.store.clearActiveIf(s.id) {
		c.logger.Debug("Active session cleared", "session_id", s.id)
	}
	c.logger.Info("Session disconnected", "session_id", s.id, "endpoint", s.endpoint)

	c.closeConn(s.id, l)
	return l
}

func (c *Controller) closeConn(id string, l *link) {
	if l == nil {
		return
	}
	go func() {
		if err := l.conn.Close(); err != nil {
			c.logger.Debug("Failed to close connection", "session_id", id, "error", err)
		}
	}()
}

// SendMessage transmits content on a connected session and logs it.
// It returns false, logging nothing, when the session is unknown, not
// connected, or the write fails.
//
// The session lock is held for the whole write, which is bounded by the
// send timeout. Readers of the same session such as Status and Snapshot
// wait behind a slow peer for at most that long.
func (c *Controller) SendMessage(id, content string) bool {
	s, ok := c.store.Get(id)
	if !ok {
		return false
	}

	s.mu.Lock()
	if s.link == nil || s.status != domain.StatusConnected {
		s.mu.Unlock()
		return false
	}

	// The lock is held across the write so an echo cannot be logged ahead of it.
	ctx, cancel := context.WithTimeout(context.Background(), c.sendTimeout)
	err := s.link.conn.Send(ctx, content)
	cancel()
	if err != nil {
		s.mu.Unlock()
		c.logger.Warn("Failed to send message", "session_id", id, "error", err)
		return false
	}
	c.appendLocked(s, domain.NewSent(c.store.cfg.newID(), s.id, content, c.store.cfg.now()))
	s.mu.Unlock()
	return true
}

func (c *Controller) events(s *Session, l *link) transport.Events {
	return transport.Events{
		OnOpen:    func() { c.handleOpen(s, l) },
		OnMessage: func(data string) { c.handleMessage(s, data) },
		OnError:   func(err error) { c.handleError(s, l, err) },
		OnClose:   func() { c.handleClose(s, l) },
	}
}

func (c *Controller) handleOpen(s *Session, l *link) {
	s.mu.Lock()
	if s.link != l {
		s.mu.Unlock()
		// Released before the handshake finished; the attempt still follows the transport.
		c.logger.Debug("Open event on released connection", "session_id", s.id)
		l.attempt.settle(nil)
		return
	}
	l.opened = true
	s.status = domain.StatusConnected
	c.appendLocked(s, c.system(s, domain.SystemConnection, "Connected to: "+s.endpoint))
	c.store.cfg.recorder.RecordSession(s.infoLocked())
	s.mu.Unlock()

	c.logger.Info("Session connected", "session_id", s.id, "endpoint", s.endpoint)
	l.attempt.settle(nil)
}

func (c *Controller) handleMessage(s *Session, data string) {
	s.mu.Lock()
	c.appendLocked(s, domain.NewReceived(c.store.cfg.newID(), s.id, data, c.store.cfg.now()))
	s.mu.Unlock()
}

func (c *Controller) handleError(s *Session, l *link, err error) {
	s.mu.Lock()
	c.appendLocked(s, c.system(s, domain.SystemError, "Failed to connect to: "+s.endpoint))
	s.mu.Unlock()

	c.logger.Warn("Session transport error", "session_id", s.id, "endpoint", s.endpoint, "error", err)
	l.attempt.settle(fmt.Errorf("websocket connection error: %w: %w", errdefs.ErrUnavailable, err))
}

func (c *Controller) handleClose(s *Session, l *link) {
	s.mu.Lock()
	// A close from a superseded connection must not touch the newer one.
	current := s.link == l || s.link == nil
	if current {
		now := c.store.cfg.now()
		s.link = nil
		s.status = domain.StatusDisconnected
		s.closedAt = &now
	}
	c.appendLocked(s, c.system(s, domain.SystemDisconnection, "Disconnected from: "+s.endpoint))
	if current {
		c.store.cfg.recorder.RecordSession(s.infoLocked())
	}
	l.markClosed()
	s.mu.Unlock()

	c.logger.Info("Session closed", "session_id", s.id, "endpoint", s.endpoint, "current", current)
	l.attempt.settle(ErrConnectionClosed)
}

// appendLocked appends msg to s and hands it to the recorder while s.mu is
// still held, so the recorder sees each session's entries in log order.
func (c *Controller) appendLocked(s *Session, msg domain.Message) {
	c.store.cfg.recorder.RecordMessage(s.appendLocked(msg))
}

func (c *Controller) system(s *Session, sub domain.SystemKind, content string) domain.Message {
	return domain.NewSystem(c.store.cfg.newID(), s.id, sub, content, c.store.cfg.now())
}
