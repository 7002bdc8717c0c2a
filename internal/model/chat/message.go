package chat

import "time"

// Role identifies who produced a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleOperator  Role = "operator"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleOperator:
		return true
	}
	return false
}

// Turn is one chat message in a conversation history.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// CloneTurns returns a copy of turns that shares no backing array with the input.
func CloneTurns(turns []Turn) []Turn {
	if turns == nil {
		return nil
	}
	copied := make([]Turn, len(turns))
	copy(copied, turns)
	return copied
}
