package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/zhouzirui/z-relay/backend/internal/model/chat"
)

// StreamErrorMessage is the generic text sent when a provider stream fails.
const StreamErrorMessage = "Error generating response"

// Outbound is a server frame.
type Outbound interface {
	OutboundType() Type
}

type LoginResponse struct {
	Success bool `json:"success"`
}

type Connected struct {
	TargetID string `json:"targetId"`
}

// MessageFrame carries a relayed turn or a pairing notice.
type MessageFrame struct {
	Message        *chat.Turn `json:"message,omitempty"`
	ConversationID string     `json:"conversationId,omitempty"`
	SubType        Subtype    `json:"subType,omitempty"`
}

type MessageSent struct{}

type StreamStart struct {
	Message chat.Turn `json:"message"`
}

type StreamChunk struct {
	Chunk string `json:"chunk"`
}

// StreamEnd terminates a stream. Message is the assistant turn on success and
// a plain string when SubType is streamEndError.
type StreamEnd struct {
	Message any     `json:"message"`
	SubType Subtype `json:"subType,omitempty"`
}

type UsersList struct {
	Users []chat.SessionInfo `json:"users"`
}

type OperatorsList struct {
	Operators []chat.SessionInfo `json:"operators"`
}

type NameSet struct {
	ConversationID string `json:"conversationId"`
	Name           string `json:"name"`
}

type ConversationID struct {
	ConversationID string `json:"conversationId"`
}

type ClientID struct {
	ClientID       string `json:"clientId"`
	ConversationID string `json:"conversationId"`
}

type Error struct {
	Message string `json:"message"`
}

func (LoginResponse) OutboundType() Type  { return TypeLoginResponse }
func (Connected) OutboundType() Type      { return TypeConnected }
func (MessageFrame) OutboundType() Type   { return TypeMessage }
func (MessageSent) OutboundType() Type    { return TypeMessageSent }
func (StreamStart) OutboundType() Type    { return TypeStreamStart }
func (StreamChunk) OutboundType() Type    { return TypeStreamChunk }
func (StreamEnd) OutboundType() Type      { return TypeStreamEnd }
func (UsersList) OutboundType() Type      { return TypeUsersList }
func (OperatorsList) OutboundType() Type  { return TypeListOperators }
func (NameSet) OutboundType() Type        { return TypeSetName }
func (ConversationID) OutboundType() Type { return TypeConversationID }
func (ClientID) OutboundType() Type       { return TypeClientID }
func (Error) OutboundType() Type          { return TypeError }

// StreamEndOK builds the terminal frame for a completed reply.
func StreamEndOK(reply chat.Turn) StreamEnd {
	return StreamEnd{Message: reply}
}

// StreamEndFailed builds the single terminal frame sent after a provider failure.
func StreamEndFailed() StreamEnd {
	return StreamEnd{Message: StreamErrorMessage, SubType: SubtypeStreamEndError}
}

// Encode serializes a server frame with its type tag.
func Encode(frame Outbound) ([]byte, error) {
	body, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", frame.OutboundType(), err)
	}
	return withType(frame.OutboundType(), body)
}

// Frame is the flattened union of every server frame, for clients that only
// need to switch on Type.
type Frame struct {
	Type           Type               `json:"type"`
	Success        bool               `json:"success,omitempty"`
	TargetID       string             `json:"targetId,omitempty"`
	Message        json.RawMessage    `json:"message,omitempty"`
	ConversationID string             `json:"conversationId,omitempty"`
	SubType        Subtype            `json:"subType,omitempty"`
	Chunk          string             `json:"chunk,omitempty"`
	Users          []chat.SessionInfo `json:"users,omitempty"`
	Operators      []chat.SessionInfo `json:"operators,omitempty"`
	Name           string             `json:"name,omitempty"`
	ClientID       string             `json:"clientId,omitempty"`
}

// DecodeFrame parses any server frame.
func DecodeFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return f, nil
}

// Turn decodes Message as a chat turn. ok is false when Message is absent or a
// plain string.
func (f Frame) Turn() (chat.Turn, bool) {
	if len(f.Message) == 0 || f.Message[0] != '{' {
		return chat.Turn{}, false
	}
	var t chat.Turn
	if err := json.Unmarshal(f.Message, &t); err != nil {
		return chat.Turn{}, false
	}
	return t, true
}

// Text decodes Message as a plain string.
func (f Frame) Text() string {
	var s string
	if err := json.Unmarshal(f.Message, &s); err != nil {
		return ""
	}
	return s
}
