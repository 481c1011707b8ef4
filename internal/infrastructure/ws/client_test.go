package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lumenchat/lumen/internal/infrastructure/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveClient upgrades incoming connections and runs the full client
// lifecycle against the hub, like the connect handler does.
func serveClient(t *testing.T, hub *Hub, pongTimeout time.Duration) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewClient(conn, "U1", 8, pongTimeout, logging.NewNopLogger())
		hub.Register(c)
		go c.WritePump()
		c.ReadPump(hub)
	}))
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestWritePumpPingsWithinPongTimeout(t *testing.T) {
	hub := NewHub(logging.NewNopLogger())
	srv := serveClient(t, hub, 200*time.Millisecond)
	defer srv.Close()

	conn := dialWS(t, srv)
	defer conn.Close()

	pinged := make(chan struct{}, 1)
	conn.SetPingHandler(func(appData string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return conn.WriteControl(websocket.PongMessage, nil, time.Now().Add(time.Second))
	})

	// The read loop is what processes incoming control frames.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pinged:
	case <-time.After(time.Second):
		t.Fatal("no ping received within the keepalive interval")
	}
}

// A peer that never answers pings must be disconnected once the pong
// deadline lapses, so dead sockets cannot pile up in the registry.
func TestSilentPeerIsDisconnected(t *testing.T) {
	hub := NewHub(logging.NewNopLogger())
	srv := serveClient(t, hub, 100*time.Millisecond)
	defer srv.Close()

	conn := dialWS(t, srv)
	defer conn.Close()

	assert.Eventually(t, func() bool {
		return hub.ConnectionCount() == 1
	}, time.Second, 5*time.Millisecond)

	// No reads on the client side means no pong replies ever go out.
	assert.Eventually(t, func() bool {
		return hub.ConnectionCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
