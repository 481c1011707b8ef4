package ws

import "github.com/lumenchat/lumen/internal/domain"

// Message is the wire frame for server→client notifications. Data keeps the
// upstream payload shape so clients see the fields the services published.
type Message struct {
	Type string `json:"type"`
	Room string `json:"room,omitempty"`
	Data any    `json:"data,omitempty"`
}

// clientRequest is the client→server frame for room membership changes.
type clientRequest struct {
	Action      string `json:"action"`
	WorkspaceID string `json:"workspaceId,omitempty"`
	ChannelID   string `json:"channelId,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type PasswordResetPayload struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

func NewMessageCreated(room string, payload domain.MessageCreated) *Message {
	return &Message{
		Type: MessageCreated,
		Room: room,
		Data: payload,
	}
}

func NewChannelCreated(room string, payload domain.ChannelCreated) *Message {
	return &Message{
		Type: ChannelCreated,
		Room: room,
		Data: payload,
	}
}

func NewChannelDeleted(room string, payload domain.ChannelDeleted) *Message {
	return &Message{
		Type: ChannelDeleted,
		Room: room,
		Data: payload,
	}
}

func NewWorkspaceDeleted(room string, payload domain.WorkspaceDeleted) *Message {
	return &Message{
		Type: WorkspaceDeleted,
		Room: room,
		Data: payload,
	}
}

func NewWorkspaceMember(eventType, room string, payload domain.WorkspaceMember) *Message {
	return &Message{
		Type: eventType,
		Room: room,
		Data: payload,
	}
}

func NewChannelMember(eventType, room string, payload domain.ChannelMember) *Message {
	return &Message{
		Type: eventType,
		Room: room,
		Data: payload,
	}
}

func NewPasswordReset(room, userID, text string) *Message {
	return &Message{
		Type: PasswordReset,
		Room: room,
		Data: PasswordResetPayload{
			UserID:  userID,
			Message: text,
		},
	}
}

func NewReadReceiptUpdated(room string, payload domain.ReadReceiptUpdated) *Message {
	return &Message{
		Type: ReadReceiptUpdated,
		Room: room,
		Data: payload,
	}
}

func NewError(code, text string) *Message {
	return &Message{
		Type: ErrorEvent,
		Data: ErrorPayload{
			Code:    code,
			Message: text,
		},
	}
}
