package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zhouzirui/z-relay/backend/internal/model/chat"
)

var (
	ErrMalformed       = errors.New("malformed envelope")
	ErrUnsupportedType = errors.New("unsupported message type")
)

// Inbound is a decoded client command.
type Inbound interface {
	InboundType() Type
}

type Auth struct {
	Password string `json:"password"`
}

type Connect struct {
	TargetID string `json:"targetId"`
}

type Disconnect struct{}

type Message struct {
	Content  string `json:"content"`
	ClientID string `json:"clientId,omitempty"`
}

type SetName struct {
	Name string `json:"name"`
}

type ListUsers struct{}

type ListOperators struct{}

type RequestClientID struct{}

type ImportHistory struct {
	History []chat.Turn `json:"history"`
}

func (Auth) InboundType() Type            { return TypeAuth }
func (Connect) InboundType() Type         { return TypeConnect }
func (Disconnect) InboundType() Type      { return TypeDisconnect }
func (Message) InboundType() Type         { return TypeMessage }
func (SetName) InboundType() Type         { return TypeSetName }
func (ListUsers) InboundType() Type       { return TypeListUsers }
func (ListOperators) InboundType() Type   { return TypeListOperators }
func (RequestClientID) InboundType() Type { return TypeRequestClientID }
func (ImportHistory) InboundType() Type   { return TypeImportHistory }

type envelopeHeader struct {
	Type Type `json:"type"`
}

// Decode parses a raw frame into its typed command. Errors wrap ErrMalformed
// or ErrUnsupportedType.
func Decode(raw []byte) (Inbound, error) {
	var header envelopeHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var cmd Inbound
	switch header.Type {
	case TypeAuth:
		cmd = &Auth{}
	case TypeConnect:
		cmd = &Connect{}
	case TypeDisconnect:
		return Disconnect{}, nil
	case TypeMessage:
		cmd = &Message{}
	case TypeSetName:
		cmd = &SetName{}
	case TypeListUsers:
		return ListUsers{}, nil
	case TypeListOperators:
		return ListOperators{}, nil
	case TypeRequestClientID:
		return RequestClientID{}, nil
	case TypeImportHistory:
		cmd = &ImportHistory{}
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, header.Type)
	}

	if err := json.Unmarshal(raw, cmd); err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", ErrMalformed, header.Type, err)
	}
	return deref(cmd), nil
}

func deref(cmd Inbound) Inbound {
	switch c := cmd.(type) {
	case *Auth:
		return *c
	case *Connect:
		return *c
	case *Message:
		return *c
	case *SetName:
		return *c
	case *ImportHistory:
		return *c
	}
	return cmd
}

// EncodeInbound serializes a client command with its type tag. Used by clients.
func EncodeInbound(cmd Inbound) ([]byte, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}
	return withType(cmd.InboundType(), body)
}

func withType(t Type, body []byte) ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	tag, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	fields["type"] = tag
	return json.Marshal(fields)
}
