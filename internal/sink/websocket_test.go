package sink

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseprobe/pulse/internal/beat"
	"github.com/pulseprobe/pulse/internal/errors"
)

// wsTestServer collects JSON frames received from the sink.
type wsTestServer struct {
	server   *httptest.Server
	received chan beat.Message
}

func newWSTestServer(t *testing.T) *wsTestServer {
	t.Helper()

	ts := &wsTestServer{
		received: make(chan beat.Message, 64),
	}

	upgrader := websocket.Upgrader{}
	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var m beat.Message
			if err := conn.ReadJSON(&m); err != nil {
				return
			}
			ts.received <- m
		}
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *wsTestServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.server.URL, "http")
}

func (ts *wsTestServer) next(t *testing.T) beat.Message {
	t.Helper()
	select {
	case m := <-ts.received:
		return m
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for frame")
		return beat.Message{}
	}
}

func TestWebSocketSink_OpenAndWrite(t *testing.T) {
	ts := newWSTestServer(t)

	s := NewWebSocketSink(ts.wsURL())
	require.NoError(t, s.Open())
	defer s.Close()

	assert.Equal(t, "websocket:"+ts.wsURL(), s.Name())

	require.NoError(t, s.Write(beat.New("Hello, World!")))

	m := ts.next(t)
	assert.Equal(t, "Hello, World!", m.Text)
	assert.Equal(t, beat.LevelInfo, m.Level)
	assert.False(t, m.Timestamp.IsZero())
}

func TestWebSocketSink_PayloadExcludedFromFrame(t *testing.T) {
	ts := newWSTestServer(t)

	s := NewWebSocketSink(ts.wsURL())
	require.NoError(t, s.Open())
	defer s.Close()

	require.NoError(t, s.Write(beat.NewPayload(1024*1024, 'a', "Wrote 1MB to stdout")))

	m := ts.next(t)
	assert.Equal(t, "Wrote 1MB to stdout", m.Text)
	assert.Empty(t, m.Payload, "payload blocks must not be shipped over the wire")
}

func TestWebSocketSink_OpenInvalidURL(t *testing.T) {
	s := NewWebSocketSink("http://example.com")
	assert.Error(t, s.Open())

	s = NewWebSocketSink("://bad")
	assert.Error(t, s.Open())
}

func TestWebSocketSink_WriteBeforeOpen(t *testing.T) {
	s := NewWebSocketSink("ws://localhost:1")
	err := s.Write(beat.New("early"))
	assert.True(t, errors.IsCode(err, errors.CodeSinkClosed))
}

func TestWebSocketSink_WriteAfterClose(t *testing.T) {
	ts := newWSTestServer(t)

	s := NewWebSocketSink(ts.wsURL())
	require.NoError(t, s.Open())
	require.NoError(t, s.Close())

	err := s.Write(beat.New("late"))
	assert.True(t, errors.IsCode(err, errors.CodeSinkClosed))
}

func TestWebSocketSink_CloseTwice(t *testing.T) {
	ts := newWSTestServer(t)

	s := NewWebSocketSink(ts.wsURL())
	require.NoError(t, s.Open())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
