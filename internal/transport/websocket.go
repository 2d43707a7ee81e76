package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/containerd/errdefs"
)

// DialerConfig holds configuration for WebSocket connections.
type DialerConfig struct {
	// DialTimeout bounds the opening handshake (default: 15s)
	DialTimeout time.Duration
	// ReadLimit is the largest inbound message accepted, in bytes (default: 1MiB)
	ReadLimit int64
}

// DefaultDialerConfig returns sensible defaults for interactive sessions.
func DefaultDialerConfig() DialerConfig {
	return DialerConfig{
		DialTimeout: 15 * time.Second,
		ReadLimit:   1 << 20,
	}
}

// WebSocketDialer opens client connections with github.com/coder/websocket.
type WebSocketDialer struct {
	config DialerConfig
	logger *slog.Logger
}

// NewWebSocketDialer creates a new WebSocket dialer.
func NewWebSocketDialer(config DialerConfig, logger *slog.Logger) *WebSocketDialer {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultDialerConfig()
	if config.DialTimeout <= 0 {
		config.DialTimeout = defaults.DialTimeout
	}
	if config.ReadLimit <= 0 {
		config.ReadLimit = defaults.ReadLimit
	}
	return &WebSocketDialer{config: config, logger: logger}
}

// Open validates endpoint and starts the handshake in the background.
func (d *WebSocketDialer) Open(endpoint string, events Events) (Conn, error) {
	if err := validateEndpoint(endpoint); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &wsConn{
		endpoint: endpoint,
		cancel:   cancel,
		logger:   d.logger,
	}
	go c.run(ctx, d.config, events)
	return c, nil
}

func validateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("parse endpoint %q: %v: %w", endpoint, err, errdefs.ErrInvalidArgument)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return fmt.Errorf("endpoint %q: unsupported scheme %q: %w", endpoint, u.Scheme, errdefs.ErrInvalidArgument)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint %q: missing host: %w", endpoint, errdefs.ErrInvalidArgument)
	}
	return nil
}

// wsConn is one client connection. conn is nil until the handshake completes.
type wsConn struct {
	endpoint string
	cancel   context.CancelFunc
	logger   *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func (c *wsConn) run(ctx context.Context, config DialerConfig, events Events) {
	defer c.cancel()

	dialCtx, dialCancel := context.WithTimeout(ctx, config.DialTimeout)
	conn, _, err := websocket.Dial(dialCtx, c.endpoint, nil)
	dialCancel()
	if err != nil {
		// Closing during the handshake is not a failure of the endpoint.
		if ctx.Err() == nil {
			c.logger.Debug("WebSocket dial failed", "endpoint", c.endpoint, "error", err)
			events.fail(fmt.Errorf("dial %s: %v: %w", c.endpoint, err, errdefs.ErrUnavailable))
		}
		events.close()
		return
	}
	conn.SetReadLimit(config.ReadLimit)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.CloseNow()
		events.close()
		return
	}
	c.conn = conn
	c.mu.Unlock()

	events.open()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			c.mu.Lock()
			closing := c.closed
			c.closed = true
			c.mu.Unlock()

			if closing || websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				c.logger.Debug("WebSocket closed", "endpoint", c.endpoint, "status", websocket.CloseStatus(err))
			} else {
				c.logger.Warn("WebSocket read error", "endpoint", c.endpoint, "error", err)
				events.fail(fmt.Errorf("read %s: %v: %w", c.endpoint, err, errdefs.ErrUnavailable))
			}
			if !closing {
				_ = conn.CloseNow()
			}
			events.close()
			return
		}
		events.message(string(data))
	}
}

// Send writes data as a text message.
func (c *wsConn) Send(ctx context.Context, data string) error {
	c.mu.Lock()
	conn := c.conn
	closed := c.closed
	c.mu.Unlock()

	if conn == nil || closed {
		return ErrNotOpen
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(data)); err != nil {
		return fmt.Errorf("write %s: %w", c.endpoint, err)
	}
	return nil
}

// Close performs a normal closure, or abandons the handshake if it has not finished.
func (c *wsConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		c.cancel()
		return nil
	}
	err := conn.Close(websocket.StatusNormalClosure, "session closed")
	c.cancel()
	if err != nil {
		return fmt.Errorf("close %s: %w", c.endpoint, err)
	}
	return nil
}
