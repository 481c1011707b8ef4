package events

import (
	"context"
	"fmt"

	"github.com/lumenchat/lumen/internal/domain"
	"github.com/lumenchat/lumen/internal/infrastructure/contracts"
	"github.com/lumenchat/lumen/internal/infrastructure/logging"
	"github.com/lumenchat/lumen/internal/infrastructure/ws"
)

// Broadcaster fans a room broadcast out across every edge instance.
// Implemented by the backplane; substituted with a double in tests.
type Broadcaster interface {
	Emit(ctx context.Context, room string, msg *ws.Message) error
	Evict(ctx context.Context, room string) error
}

// Router holds one handler per event family. Each handler is a pure
// translation from a decoded event to target rooms and outbound payloads;
// the dispatch tables below are the deployment-time binding between
// routing keys and handlers.
type Router struct {
	broadcaster Broadcaster
	logger      logging.Logger
}

func NewRouter(broadcaster Broadcaster, logger logging.Logger) *Router {
	return &Router{
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// RealtimeHandlers is the dispatch table for the ephemeral consumer group.
func (r *Router) RealtimeHandlers() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		contracts.EventMessageCreated:        r.HandleMessageCreated,
		contracts.EventWorkspaceMemberJoined: r.HandleWorkspaceMemberJoined,
		contracts.EventWorkspaceMemberLeft:   r.HandleWorkspaceMemberLeft,
		contracts.EventChannelMemberJoined:   r.HandleChannelMemberJoined,
		contracts.EventChannelMemberLeft:     r.HandleChannelMemberLeft,
		contracts.EventChannelCreated:        r.HandleChannelCreated,
		contracts.EventReadReceiptUpdated:    r.HandleReadReceiptUpdated,
	}
}

// CriticalHandlers is the dispatch table for the durable consumer group.
func (r *Router) CriticalHandlers() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		contracts.EventChannelDeleted:   r.HandleChannelDeleted,
		contracts.EventWorkspaceDeleted: r.HandleWorkspaceDeleted,
		contracts.EventPasswordReset:    r.HandlePasswordReset,
	}
}

func (r *Router) HandleMessageCreated(ctx context.Context, evt domain.Event) error {
	var payload domain.MessageCreated
	if err := evt.DecodePayload(&payload); err != nil {
		return err
	}

	room := domain.ChannelRoom(payload.WorkspaceID, payload.ChannelID)
	return r.broadcaster.Emit(ctx, room, ws.NewMessageCreated(room, payload))
}

func (r *Router) HandleWorkspaceMemberJoined(ctx context.Context, evt domain.Event) error {
	return r.workspaceMember(ctx, evt, ws.WorkspaceMemberJoined)
}

func (r *Router) HandleWorkspaceMemberLeft(ctx context.Context, evt domain.Event) error {
	return r.workspaceMember(ctx, evt, ws.WorkspaceMemberLeft)
}

func (r *Router) workspaceMember(ctx context.Context, evt domain.Event, eventType string) error {
	var payload domain.WorkspaceMember
	if err := evt.DecodePayload(&payload); err != nil {
		return err
	}

	room := domain.WorkspaceRoom(payload.WorkspaceID)
	return r.broadcaster.Emit(ctx, room, ws.NewWorkspaceMember(eventType, room, payload))
}

func (r *Router) HandleChannelMemberJoined(ctx context.Context, evt domain.Event) error {
	return r.channelMember(ctx, evt, ws.ChannelMemberJoined)
}

func (r *Router) HandleChannelMemberLeft(ctx context.Context, evt domain.Event) error {
	return r.channelMember(ctx, evt, ws.ChannelMemberLeft)
}

func (r *Router) channelMember(ctx context.Context, evt domain.Event, eventType string) error {
	var payload domain.ChannelMember
	if err := evt.DecodePayload(&payload); err != nil {
		return err
	}

	room := domain.ChannelRoom(payload.WorkspaceID, payload.ChannelID)
	return r.broadcaster.Emit(ctx, room, ws.NewChannelMember(eventType, room, payload))
}

// HandleChannelCreated notifies the workspace for public channels. Private
// channels go individually to each invited member's user room and never to
// the workspace room, so non-members cannot learn the channel exists.
func (r *Router) HandleChannelCreated(ctx context.Context, evt domain.Event) error {
	var payload domain.ChannelCreated
	if err := evt.DecodePayload(&payload); err != nil {
		return err
	}

	if !payload.IsPrivate {
		room := domain.WorkspaceRoom(payload.WorkspaceID)
		return r.broadcaster.Emit(ctx, room, ws.NewChannelCreated(room, payload))
	}

	for _, member := range payload.Members {
		room := domain.UserRoom(member)
		if err := r.broadcaster.Emit(ctx, room, ws.NewChannelCreated(room, payload)); err != nil {
			return fmt.Errorf("failed to notify member %s: %w", member, err)
		}
	}
	return nil
}

// HandleChannelDeleted broadcasts the deletion notice, then evicts every
// socket from the channel room on all instances.
func (r *Router) HandleChannelDeleted(ctx context.Context, evt domain.Event) error {
	var payload domain.ChannelDeleted
	if err := evt.DecodePayload(&payload); err != nil {
		return err
	}

	room := domain.ChannelRoom(payload.WorkspaceID, payload.ChannelID)
	if err := r.broadcaster.Emit(ctx, room, ws.NewChannelDeleted(room, payload)); err != nil {
		return err
	}
	return r.broadcaster.Evict(ctx, room)
}

// HandleWorkspaceDeleted cascades: notice to the workspace room, then every
// descendant channel room is evicted before the workspace room itself.
func (r *Router) HandleWorkspaceDeleted(ctx context.Context, evt domain.Event) error {
	var payload domain.WorkspaceDeleted
	if err := evt.DecodePayload(&payload); err != nil {
		return err
	}

	room := domain.WorkspaceRoom(payload.WorkspaceID)
	if err := r.broadcaster.Emit(ctx, room, ws.NewWorkspaceDeleted(room, payload)); err != nil {
		return err
	}

	for _, channelID := range payload.ChannelIDs {
		if err := r.broadcaster.Evict(ctx, domain.ChannelRoom(payload.WorkspaceID, channelID)); err != nil {
			return fmt.Errorf("failed to evict channel %s: %w", channelID, err)
		}
	}

	return r.broadcaster.Evict(ctx, room)
}

// HandlePasswordReset sends the forced-logout signal to the acting user's
// private room only.
func (r *Router) HandlePasswordReset(ctx context.Context, evt domain.Event) error {
	var payload domain.PasswordReset
	if err := evt.DecodePayload(&payload); err != nil {
		return err
	}

	room := domain.UserRoom(payload.UserID)
	return r.broadcaster.Emit(ctx, room,
		ws.NewPasswordReset(room, payload.UserID, "Your password was reset. Please sign in again."))
}

// HandleReadReceiptUpdated syncs read state to the initiating user's other
// devices; nothing is broadcast to other members.
func (r *Router) HandleReadReceiptUpdated(ctx context.Context, evt domain.Event) error {
	var payload domain.ReadReceiptUpdated
	if err := evt.DecodePayload(&payload); err != nil {
		return err
	}

	room := domain.UserRoom(payload.UserID)
	return r.broadcaster.Emit(ctx, room, ws.NewReadReceiptUpdated(room, payload))
}
