package domain

import "fmt"

// Rooms are opaque string keys with scope semantics. They carry no state of
// their own; membership lives in each edge instance's registry and broadcast
// goes through the backplane.
const (
	userRoomFormat      = "user:%s"
	workspaceRoomFormat = "workspace:%s"
	channelRoomFormat   = "workspace:%s:channel:%s"
)

// UserRoom is the private per-user room every connection is auto-joined to.
func UserRoom(userID string) string {
	return fmt.Sprintf(userRoomFormat, userID)
}

func WorkspaceRoom(workspaceID string) string {
	return fmt.Sprintf(workspaceRoomFormat, workspaceID)
}

func ChannelRoom(workspaceID, channelID string) string {
	return fmt.Sprintf(channelRoomFormat, workspaceID, channelID)
}
