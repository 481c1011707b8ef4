package ws

// Server→client notification names.
const (
	MessageCreated        = "message:created"
	ChannelCreated        = "channel:created"
	ChannelDeleted        = "channel:deleted"
	WorkspaceDeleted      = "workspace:deleted"
	WorkspaceMemberJoined = "workspace:member:joined"
	WorkspaceMemberLeft   = "workspace:member:left"
	ChannelMemberJoined   = "channel:member:joined"
	ChannelMemberLeft     = "channel:member:left"
	PasswordReset         = "password:reset"
	ReadReceiptUpdated    = "read-receipt:updated"

	ErrorEvent = "error"
)

// Client→server request actions.
const (
	ActionJoinWorkspace  = "joinWorkspace"
	ActionLeaveWorkspace = "leaveWorkspace"
	ActionJoinChannel    = "joinChannel"
	ActionLeaveChannel   = "leaveChannel"
)
