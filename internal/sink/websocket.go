package sink

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/pulseprobe/pulse/internal/beat"
	"github.com/pulseprobe/pulse/internal/errors"
)

const (
	// wsHandshakeTimeout bounds the WebSocket handshake.
	wsHandshakeTimeout = 10 * time.Second

	// wsWriteTimeout bounds a single frame write.
	wsWriteTimeout = 10 * time.Second

	// wsDialInitialDelay and wsDialMaxAttempts bound the connect
	// backoff during Open. Heartbeat writes themselves are never
	// retried.
	wsDialInitialDelay = 1 * time.Second
	wsDialMaxAttempts  = 5
)

// WebSocketSink streams heartbeat messages as JSON text frames to a
// remote observer, typically a supervisor dashboard or collector. The
// connection is established once during Open with bounded exponential
// backoff; after that, a failed write is an ordinary per-tick sink
// error and the connection is not re-established.
type WebSocketSink struct {
	serverURL string

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// NewWebSocketSink creates a WebSocket sink for a ws:// or wss:// URL.
// No connection is made until Open.
func NewWebSocketSink(serverURL string) *WebSocketSink {
	return &WebSocketSink{serverURL: serverURL}
}

// Name returns "websocket:<url>".
func (s *WebSocketSink) Name() string {
	return "websocket:" + s.serverURL
}

// Open dials the server, retrying transient failures with exponential
// backoff up to wsDialMaxAttempts.
func (s *WebSocketSink) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return nil
	}

	u, err := url.Parse(s.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL %q: %w", s.serverURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = wsDialInitialDelay
	bo.MaxElapsedTime = 0 // No time limit, only attempt limit
	bo.RandomizationFactor = 0.1

	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}

	operation := func() error {
		conn, _, err := dialer.Dial(u.String(), nil)
		if err != nil {
			return err
		}
		s.conn = conn
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithMaxRetries(bo, wsDialMaxAttempts)); err != nil {
		return errors.NetworkError("CONNECTION_FAILED", "failed to connect to server", err)
	}

	s.closed = false
	return nil
}

// Write sends one message as a JSON frame. Payload blocks are excluded
// from the frame; the marker line and timestamp are enough for a
// remote observer.
func (s *WebSocketSink) Write(m *beat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.conn == nil {
		return errors.ErrSinkClosed
	}

	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return s.conn.WriteJSON(m)
}

// Flush is a no-op; frames are not buffered by the sink.
func (s *WebSocketSink) Flush() error {
	return nil
}

// Close sends a close frame and tears down the connection.
func (s *WebSocketSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.conn == nil {
		s.closed = true
		return nil
	}
	s.closed = true

	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	err := s.conn.Close()
	s.conn = nil
	return err
}
