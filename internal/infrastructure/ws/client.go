package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lumenchat/lumen/internal/domain"
	"github.com/lumenchat/lumen/internal/infrastructure/logging"
)

// Client is one websocket connection with a verified identity.
type Client struct {
	conn   *websocket.Conn
	send   chan *Message
	logger logging.Logger

	ID     string
	UserID string

	// rooms is guarded by the owning hub's mutex.
	rooms map[string]struct{}

	// pongTimeout bounds how long a silent peer stays connected; zero
	// disables the keepalive entirely.
	pongTimeout time.Duration

	// mu guards closed and the send channel's lifetime: a late trySend
	// racing the hub's shutdown must see the flag, never a closed channel.
	mu     sync.Mutex
	closed bool
}

func NewClient(conn *websocket.Conn, userID string, sendBuffer int, pongTimeout time.Duration, logger logging.Logger) *Client {
	return &Client{
		conn:        conn,
		send:        make(chan *Message, sendBuffer), // buffered to avoid dead-locks on slow clients
		logger:      logger,
		ID:          uuid.NewString(),
		UserID:      userID,
		rooms:       make(map[string]struct{}),
		pongTimeout: pongTimeout,
	}
}

// ReadPump processes join/leave requests until the connection drops, then
// unregisters the client. Membership cleanup on disconnect is local-only.
func (c *Client) ReadPump(hub *Hub) {
	defer func() {
		hub.Unregister(c)
		_ = c.conn.Close()
	}()

	if c.pongTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
		})
	}

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn(logging.WebSocket, logging.Connection, "ws read error", map[logging.ExtraKey]any{
					logging.UserID:       c.UserID,
					logging.ErrorMessage: err.Error(),
				})
			}
			break
		}

		var req clientRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			c.trySend(NewError("BAD_REQUEST", "malformed request"))
			continue
		}

		c.handleRequest(hub, req)
	}
}

func (c *Client) handleRequest(hub *Hub, req clientRequest) {
	switch req.Action {
	case ActionJoinWorkspace:
		if req.WorkspaceID == "" {
			c.trySend(NewError("BAD_REQUEST", "workspaceId is required"))
			return
		}
		hub.Join(c, domain.WorkspaceRoom(req.WorkspaceID))

	case ActionLeaveWorkspace:
		if req.WorkspaceID == "" {
			c.trySend(NewError("BAD_REQUEST", "workspaceId is required"))
			return
		}
		hub.Leave(c, domain.WorkspaceRoom(req.WorkspaceID))

	case ActionJoinChannel:
		if req.WorkspaceID == "" || req.ChannelID == "" {
			c.trySend(NewError("BAD_REQUEST", "workspaceId and channelId are required"))
			return
		}
		hub.Join(c, domain.ChannelRoom(req.WorkspaceID, req.ChannelID))

	case ActionLeaveChannel:
		if req.WorkspaceID == "" || req.ChannelID == "" {
			c.trySend(NewError("BAD_REQUEST", "workspaceId and channelId are required"))
			return
		}
		hub.Leave(c, domain.ChannelRoom(req.WorkspaceID, req.ChannelID))

	default:
		c.trySend(NewError("UNKNOWN_ACTION", "unknown action: "+req.Action))
	}
}

// WritePump drains the send buffer to the socket until it is closed, pinging
// the peer often enough to keep the read deadline alive.
func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	var pings <-chan time.Time
	if c.pongTimeout > 0 {
		ticker := time.NewTicker(c.pongTimeout * 9 / 10)
		defer ticker.Stop()
		pings = ticker.C
	}

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn(logging.WebSocket, logging.Connection, "ws write error", map[logging.ExtraKey]any{
					logging.UserID:       c.UserID,
					logging.ErrorMessage: err.Error(),
				})
				return
			}
		case <-pings:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

// PendingSends reports outbound messages queued but not yet written to
// the socket.
func (c *Client) PendingSends() int {
	return len(c.send)
}

// trySend enqueues without blocking; a full buffer drops the message, and a
// closed client drops it silently.
func (c *Client) trySend(msg *Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
