package hub

import "fmt"

// Event is one frame delivered to a connection. For deleted tasks the Task
// payload carries only the id.
type Event struct {
	Event string `json:"event"`
	Task  any    `json:"task"`
}

const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// AdminsGroup is the single broadcast group every admin connection joins.
const AdminsGroup = "admins"

// UserGroup names the per-user broadcast group.
func UserGroup(userID int64) string {
	return fmt.Sprintf("user_%d", userID)
}
