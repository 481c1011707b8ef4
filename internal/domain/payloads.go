package domain

// Payload structs, one per event family. Field names follow the JSON the
// upstream services publish.

type MessageCreated struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspaceId"`
	ChannelID   string `json:"channelId"`
	UserID      string `json:"userId"`
	Content     string `json:"content"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

type WorkspaceMember struct {
	WorkspaceID string `json:"workspaceId"`
	UserID      string `json:"userId"`
	Username    string `json:"username,omitempty"`
}

type ChannelMember struct {
	WorkspaceID string `json:"workspaceId"`
	ChannelID   string `json:"channelId"`
	UserID      string `json:"userId"`
	Username    string `json:"username,omitempty"`
}

type ChannelCreated struct {
	WorkspaceID string   `json:"workspaceId"`
	ChannelID   string   `json:"channelId"`
	ChannelName string   `json:"channelName"`
	IsPrivate   bool     `json:"isPrivate"`
	CreatedBy   string   `json:"createdBy"`
	Members     []string `json:"members,omitempty"`
}

type ChannelDeleted struct {
	WorkspaceID string `json:"workspaceId"`
	ChannelID   string `json:"channelId"`
	ChannelName string `json:"channelName"`
	DeletedBy   string `json:"deletedBy"`
}

type WorkspaceDeleted struct {
	WorkspaceID   string   `json:"workspaceId"`
	WorkspaceName string   `json:"workspaceName"`
	DeletedBy     string   `json:"deletedBy"`
	ChannelIDs    []string `json:"channelIds"`
}

type PasswordReset struct {
	UserID string `json:"userId"`
}

type ReadReceiptUpdated struct {
	WorkspaceID       string `json:"workspaceId"`
	ChannelID         string `json:"channelId"`
	UserID            string `json:"userId"`
	LastReadMessageNo int64  `json:"lastReadMessageNo"`
	LastReadMessageID string `json:"lastReadMessageId"`
	LastReadAt        string `json:"lastReadAt"`
}
