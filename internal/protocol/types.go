package protocol

// Type is the discriminator carried in every envelope's "type" field.
type Type string

// Inbound envelope types.
const (
	TypeAuth            Type = "auth"
	TypeConnect         Type = "connect"
	TypeDisconnect      Type = "disconnect"
	TypeMessage         Type = "message"
	TypeSetName         Type = "set-name"
	TypeListUsers       Type = "list-users"
	TypeListOperators   Type = "list-operators"
	TypeRequestClientID Type = "request-client-id"
	TypeImportHistory   Type = "import-history"
)

// Outbound envelope types. message, set-name and list-operators are shared
// with the inbound set.
const (
	TypeLoginResponse  Type = "login-response"
	TypeConnected      Type = "connected"
	TypeMessageSent    Type = "message-sent"
	TypeStreamStart    Type = "stream-start"
	TypeStreamChunk    Type = "stream-chunk"
	TypeStreamEnd      Type = "stream-end"
	TypeUsersList      Type = "users-list"
	TypeConversationID Type = "conversation-id"
	TypeClientID       Type = "client-id"
	TypeError          Type = "error"
)

// Subtype refines message and stream-end frames.
type Subtype string

const (
	SubtypeOperatorConnected    Subtype = "operatorConnected"
	SubtypeOperatorDisconnected Subtype = "operatorDisconnected"
	SubtypeStreamEndError       Subtype = "streamEndError"
)
