package contracts

// Routing keys published by the upstream services on the domain topic
// exchange. The key doubles as the normalized event type.
const (
	EventMessageCreated        = "message.created"
	EventWorkspaceMemberJoined = "workspace.member.joined"
	EventWorkspaceMemberLeft   = "workspace.member.left"
	EventChannelMemberJoined   = "channel.member.joined"
	EventChannelMemberLeft     = "channel.member.left"
	EventChannelCreated        = "channel.created"
	EventChannelDeleted        = "channel.deleted"
	EventWorkspaceDeleted      = "workspace.deleted"
	EventPasswordReset         = "user.password.reset"
	EventReadReceiptUpdated    = "read.receipt.updated"
)

// RealtimeKeys are best-effort notifications. Freshness beats completeness
// for these, so they ride an ephemeral queue and are dropped on failure.
func RealtimeKeys() []string {
	return []string{
		EventMessageCreated,
		EventWorkspaceMemberJoined,
		EventWorkspaceMemberLeft,
		EventChannelMemberJoined,
		EventChannelMemberLeft,
		EventChannelCreated,
		EventReadReceiptUpdated,
	}
}

// CriticalKeys must survive transient handler failure. They ride the durable
// retry topology and land in the parking lot once retries are exhausted.
func CriticalKeys() []string {
	return []string{
		EventChannelDeleted,
		EventWorkspaceDeleted,
		EventPasswordReset,
	}
}
