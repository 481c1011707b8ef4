package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/lumenchat/lumen/internal/domain"
	"github.com/lumenchat/lumen/internal/infrastructure/logging"
	"github.com/lumenchat/lumen/internal/infrastructure/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emitted struct {
	room string
	msg  *ws.Message
}

type fakeBroadcaster struct {
	emits  []emitted
	evicts []string
	err    error
}

func (f *fakeBroadcaster) Emit(_ context.Context, room string, msg *ws.Message) error {
	if f.err != nil {
		return f.err
	}
	f.emits = append(f.emits, emitted{room: room, msg: msg})
	return nil
}

func (f *fakeBroadcaster) Evict(_ context.Context, room string) error {
	f.evicts = append(f.evicts, room)
	return nil
}

func eventFor(t *testing.T, eventType string, payload any) domain.Event {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	return domain.Event{Type: eventType, Payload: raw}
}

func TestMessageCreatedTargetsChannelRoom(t *testing.T) {
	bc := &fakeBroadcaster{}
	r := NewRouter(bc, logging.NewNopLogger())

	evt := eventFor(t, "message.created", domain.MessageCreated{
		ID: "M1", WorkspaceID: "W1", ChannelID: "C1", UserID: "U1", Content: "hi",
	})
	require.NoError(t, r.HandleMessageCreated(context.Background(), evt))

	require.Len(t, bc.emits, 1)
	assert.Equal(t, "workspace:W1:channel:C1", bc.emits[0].room)
	assert.Equal(t, ws.MessageCreated, bc.emits[0].msg.Type)
}

func TestWorkspaceMemberEventsTargetWorkspaceRoom(t *testing.T) {
	bc := &fakeBroadcaster{}
	r := NewRouter(bc, logging.NewNopLogger())

	payload := domain.WorkspaceMember{WorkspaceID: "W1", UserID: "U2", Username: "ada"}

	require.NoError(t, r.HandleWorkspaceMemberJoined(context.Background(), eventFor(t, "workspace.member.joined", payload)))
	require.NoError(t, r.HandleWorkspaceMemberLeft(context.Background(), eventFor(t, "workspace.member.left", payload)))

	require.Len(t, bc.emits, 2)
	assert.Equal(t, "workspace:W1", bc.emits[0].room)
	assert.Equal(t, ws.WorkspaceMemberJoined, bc.emits[0].msg.Type)
	assert.Equal(t, "workspace:W1", bc.emits[1].room)
	assert.Equal(t, ws.WorkspaceMemberLeft, bc.emits[1].msg.Type)
}

func TestChannelMemberEventsTargetChannelRoom(t *testing.T) {
	bc := &fakeBroadcaster{}
	r := NewRouter(bc, logging.NewNopLogger())

	payload := domain.ChannelMember{WorkspaceID: "W1", ChannelID: "C3", UserID: "U2"}

	require.NoError(t, r.HandleChannelMemberJoined(context.Background(), eventFor(t, "channel.member.joined", payload)))

	require.Len(t, bc.emits, 1)
	assert.Equal(t, "workspace:W1:channel:C3", bc.emits[0].room)
	assert.Equal(t, ws.ChannelMemberJoined, bc.emits[0].msg.Type)
}

func TestPublicChannelCreatedTargetsWorkspaceRoom(t *testing.T) {
	bc := &fakeBroadcaster{}
	r := NewRouter(bc, logging.NewNopLogger())

	evt := eventFor(t, "channel.created", domain.ChannelCreated{
		WorkspaceID: "W1", ChannelID: "C1", ChannelName: "general", IsPrivate: false,
	})
	require.NoError(t, r.HandleChannelCreated(context.Background(), evt))

	require.Len(t, bc.emits, 1)
	assert.Equal(t, "workspace:W1", bc.emits[0].room)
}

// Private channels must never touch the workspace room; only each invited
// member's own room hears about them.
func TestPrivateChannelCreatedTargetsMemberRoomsOnly(t *testing.T) {
	bc := &fakeBroadcaster{}
	r := NewRouter(bc, logging.NewNopLogger())

	evt := eventFor(t, "channel.created", domain.ChannelCreated{
		WorkspaceID: "W1", ChannelID: "C9", ChannelName: "secret",
		IsPrivate: true, Members: []string{"U1", "U2", "U3"},
	})
	require.NoError(t, r.HandleChannelCreated(context.Background(), evt))

	require.Len(t, bc.emits, 3)
	rooms := make([]string, 0, len(bc.emits))
	for _, e := range bc.emits {
		rooms = append(rooms, e.room)
		assert.NotEqual(t, "workspace:W1", e.room)
	}
	assert.ElementsMatch(t, []string{"user:U1", "user:U2", "user:U3"}, rooms)
}

func TestPrivateChannelCreatedWithNoMembersEmitsNothing(t *testing.T) {
	bc := &fakeBroadcaster{}
	r := NewRouter(bc, logging.NewNopLogger())

	evt := eventFor(t, "channel.created", domain.ChannelCreated{
		WorkspaceID: "W1", ChannelID: "C9", IsPrivate: true,
	})
	require.NoError(t, r.HandleChannelCreated(context.Background(), evt))

	assert.Empty(t, bc.emits)
}

func TestChannelDeletedNotifiesThenEvicts(t *testing.T) {
	bc := &fakeBroadcaster{}
	r := NewRouter(bc, logging.NewNopLogger())

	evt := eventFor(t, "channel.deleted", domain.ChannelDeleted{
		WorkspaceID: "W1", ChannelID: "C1", ChannelName: "general",
	})
	require.NoError(t, r.HandleChannelDeleted(context.Background(), evt))

	require.Len(t, bc.emits, 1)
	assert.Equal(t, "workspace:W1:channel:C1", bc.emits[0].room)
	assert.Equal(t, ws.ChannelDeleted, bc.emits[0].msg.Type)
	assert.Equal(t, []string{"workspace:W1:channel:C1"}, bc.evicts)
}

func TestWorkspaceDeletedEvictsChannelsBeforeWorkspace(t *testing.T) {
	bc := &fakeBroadcaster{}
	r := NewRouter(bc, logging.NewNopLogger())

	evt := eventFor(t, "workspace.deleted", domain.WorkspaceDeleted{
		WorkspaceID: "W1", WorkspaceName: "acme", ChannelIDs: []string{"C1", "C2"},
	})
	require.NoError(t, r.HandleWorkspaceDeleted(context.Background(), evt))

	require.Len(t, bc.emits, 1)
	assert.Equal(t, "workspace:W1", bc.emits[0].room)
	assert.Equal(t, []string{
		"workspace:W1:channel:C1",
		"workspace:W1:channel:C2",
		"workspace:W1",
	}, bc.evicts)
}

func TestPasswordResetTargetsUserRoomOnly(t *testing.T) {
	bc := &fakeBroadcaster{}
	r := NewRouter(bc, logging.NewNopLogger())

	evt := eventFor(t, "user.password.reset", domain.PasswordReset{UserID: "U7"})
	require.NoError(t, r.HandlePasswordReset(context.Background(), evt))

	require.Len(t, bc.emits, 1)
	assert.Equal(t, "user:U7", bc.emits[0].room)
	assert.Equal(t, ws.PasswordReset, bc.emits[0].msg.Type)
}

func TestReadReceiptUpdatedTargetsOwnUserRoom(t *testing.T) {
	bc := &fakeBroadcaster{}
	r := NewRouter(bc, logging.NewNopLogger())

	evt := eventFor(t, "read.receipt.updated", domain.ReadReceiptUpdated{
		WorkspaceID: "W1", ChannelID: "C1", UserID: "U4", LastReadMessageNo: 42,
	})
	require.NoError(t, r.HandleReadReceiptUpdated(context.Background(), evt))

	require.Len(t, bc.emits, 1)
	assert.Equal(t, "user:U4", bc.emits[0].room)
	assert.Equal(t, ws.ReadReceiptUpdated, bc.emits[0].msg.Type)
}

func TestRouterRejectsMalformedPayload(t *testing.T) {
	bc := &fakeBroadcaster{}
	r := NewRouter(bc, logging.NewNopLogger())

	evt := domain.Event{Type: "message.created", Payload: json.RawMessage(`"not an object"`)}
	assert.Error(t, r.HandleMessageCreated(context.Background(), evt))
	assert.Empty(t, bc.emits)
}

func TestDispatchTablesCoverBoundKeys(t *testing.T) {
	r := NewRouter(&fakeBroadcaster{}, logging.NewNopLogger())

	realtime := r.RealtimeHandlers()
	for _, key := range []string{
		"message.created",
		"workspace.member.joined",
		"workspace.member.left",
		"channel.member.joined",
		"channel.member.left",
		"channel.created",
		"read.receipt.updated",
	} {
		assert.Contains(t, realtime, key)
	}

	critical := r.CriticalHandlers()
	for _, key := range []string{
		"channel.deleted",
		"workspace.deleted",
		"user.password.reset",
	} {
		assert.Contains(t, critical, key)
	}
}
