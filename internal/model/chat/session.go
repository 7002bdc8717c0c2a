package chat

// SessionInfo is the public view of a connected session used in listings.
type SessionInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	IsOperator bool   `json:"isOperator"`
	PairedWith string `json:"connectedTo,omitempty"`
	ClientID   string `json:"clientId,omitempty"`
}

// Snapshot is a read-only copy of a session handed to observers and recorders.
type Snapshot struct {
	SessionInfo
	History []Turn `json:"chatHistory"`
}
