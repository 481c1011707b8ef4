package ws

import (
	"testing"

	"github.com/lumenchat/lumen/internal/infrastructure/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(userID string, buffer int) *Client {
	return NewClient(nil, userID, buffer, 0, logging.NewNopLogger())
}

func drain(c *Client) []*Message {
	var out []*Message
	for {
		select {
		case msg := <-c.send:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestRegisterAutoJoinsUserRoom(t *testing.T) {
	hub := NewHub(logging.NewNopLogger())
	c := newTestClient("U1", 8)

	hub.Register(c)

	assert.Equal(t, 1, hub.ConnectionCount())
	assert.Equal(t, 1, hub.RoomSize("user:U1"))
}

func TestJoinAndLeaveRoom(t *testing.T) {
	hub := NewHub(logging.NewNopLogger())
	c := newTestClient("U1", 8)
	hub.Register(c)

	hub.Join(c, "workspace:W1")
	assert.Equal(t, 1, hub.RoomSize("workspace:W1"))

	hub.Leave(c, "workspace:W1")
	assert.Equal(t, 0, hub.RoomSize("workspace:W1"))
}

func TestBroadcastLocalReachesOnlyRoomMembers(t *testing.T) {
	hub := NewHub(logging.NewNopLogger())
	inRoom := newTestClient("U1", 8)
	outOfRoom := newTestClient("U2", 8)
	hub.Register(inRoom)
	hub.Register(outOfRoom)
	hub.Join(inRoom, "workspace:W1:channel:C1")

	hub.BroadcastLocal("workspace:W1:channel:C1", &Message{Type: MessageCreated})

	require.Len(t, drain(inRoom), 1)
	assert.Empty(t, drain(outOfRoom))
}

// A client whose send buffer is full misses the broadcast instead of
// blocking delivery to everyone else.
func TestBroadcastSkipsSlowClient(t *testing.T) {
	hub := NewHub(logging.NewNopLogger())
	slow := newTestClient("U1", 1)
	fast := newTestClient("U2", 8)
	hub.Register(slow)
	hub.Register(fast)
	hub.Join(slow, "workspace:W1")
	hub.Join(fast, "workspace:W1")

	slow.trySend(&Message{Type: MessageCreated}) // fill the buffer

	hub.BroadcastLocal("workspace:W1", &Message{Type: ChannelCreated})

	assert.Len(t, drain(slow), 1)
	assert.Len(t, drain(fast), 1)
}

func TestUnregisterCleansAllMemberships(t *testing.T) {
	hub := NewHub(logging.NewNopLogger())
	c := newTestClient("U1", 8)
	hub.Register(c)
	hub.Join(c, "workspace:W1")
	hub.Join(c, "workspace:W1:channel:C1")

	hub.Unregister(c)

	assert.Equal(t, 0, hub.ConnectionCount())
	assert.Equal(t, 0, hub.RoomSize("user:U1"))
	assert.Equal(t, 0, hub.RoomSize("workspace:W1"))
	assert.Equal(t, 0, hub.RoomSize("workspace:W1:channel:C1"))
}

func TestUnregisterIsIdempotent(t *testing.T) {
	hub := NewHub(logging.NewNopLogger())
	c := newTestClient("U1", 8)
	hub.Register(c)

	hub.Unregister(c)
	hub.Unregister(c)

	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestEvictRoomRemovesEveryMember(t *testing.T) {
	hub := NewHub(logging.NewNopLogger())
	c1 := newTestClient("U1", 8)
	c2 := newTestClient("U2", 8)
	hub.Register(c1)
	hub.Register(c2)
	hub.Join(c1, "workspace:W1:channel:C1")
	hub.Join(c2, "workspace:W1:channel:C1")

	hub.EvictRoom("workspace:W1:channel:C1")

	assert.Equal(t, 0, hub.RoomSize("workspace:W1:channel:C1"))
	// Connections survive eviction; only the membership is gone.
	assert.Equal(t, 2, hub.ConnectionCount())
	assert.Equal(t, 1, hub.RoomSize("user:U1"))
}

func TestShutdownDisconnectsEveryone(t *testing.T) {
	hub := NewHub(logging.NewNopLogger())
	for _, id := range []string{"U1", "U2", "U3"} {
		hub.Register(newTestClient(id, 8))
	}

	hub.Shutdown()

	assert.Equal(t, 0, hub.ConnectionCount())
}

// A read pump mid-request when the hub shuts down replies into an already
// closed client; that reply must be dropped, not panic the process.
func TestTrySendAfterShutdownIsDropped(t *testing.T) {
	hub := NewHub(logging.NewNopLogger())
	c := newTestClient("U1", 8)
	hub.Register(c)

	hub.Shutdown()

	c.trySend(NewError("BAD_REQUEST", "late reply"))
	c.handleRequest(hub, clientRequest{Action: "selfDestruct"})

	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestClientCloseIsIdempotent(t *testing.T) {
	c := newTestClient("U1", 8)

	c.close()
	c.close()
	c.trySend(&Message{Type: MessageCreated})

	assert.Equal(t, 0, c.PendingSends())
}

func TestHandleRequestJoinsAndLeaves(t *testing.T) {
	hub := NewHub(logging.NewNopLogger())
	c := newTestClient("U1", 8)
	hub.Register(c)

	c.handleRequest(hub, clientRequest{Action: ActionJoinWorkspace, WorkspaceID: "W1"})
	assert.Equal(t, 1, hub.RoomSize("workspace:W1"))

	c.handleRequest(hub, clientRequest{Action: ActionJoinChannel, WorkspaceID: "W1", ChannelID: "C1"})
	assert.Equal(t, 1, hub.RoomSize("workspace:W1:channel:C1"))

	c.handleRequest(hub, clientRequest{Action: ActionLeaveChannel, WorkspaceID: "W1", ChannelID: "C1"})
	assert.Equal(t, 0, hub.RoomSize("workspace:W1:channel:C1"))

	c.handleRequest(hub, clientRequest{Action: ActionLeaveWorkspace, WorkspaceID: "W1"})
	assert.Equal(t, 0, hub.RoomSize("workspace:W1"))

	assert.Empty(t, drain(c))
}

func TestHandleRequestValidation(t *testing.T) {
	hub := NewHub(logging.NewNopLogger())
	c := newTestClient("U1", 8)
	hub.Register(c)

	c.handleRequest(hub, clientRequest{Action: ActionJoinWorkspace})
	c.handleRequest(hub, clientRequest{Action: ActionJoinChannel, WorkspaceID: "W1"})
	c.handleRequest(hub, clientRequest{Action: "selfDestruct"})

	msgs := drain(c)
	require.Len(t, msgs, 3)
	for _, msg := range msgs {
		assert.Equal(t, ErrorEvent, msg.Type)
	}
	assert.Equal(t, 0, hub.RoomSize("workspace:W1"))
}
