// Package router turns decoded client frames into session state changes and
// outbound frames: authentication, operator pairing, peer relay, and the
// LLM path for unpaired users.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	model "github.com/zhouzirui/z-relay/backend/internal/model/chat"
	"github.com/zhouzirui/z-relay/backend/internal/protocol"
	"github.com/zhouzirui/z-relay/backend/internal/service/ai"
	"github.com/zhouzirui/z-relay/backend/internal/service/callback"
	"github.com/zhouzirui/z-relay/backend/internal/service/chat"
)

// User-facing routing errors.
const (
	msgUserNotFound      = "User not found."
	msgAlreadyConnected  = "You are already connected to a user."
	msgNotConnected      = "You are not connected to any user."
	msgNotOperator       = "Only operators can connect to users."
	msgTargetBusy        = "User is already connected to another operator."
	msgSelfConnect       = "You cannot connect to yourself."
	msgImportWhilePaired = "Cannot import history while connected."
	msgInvalidHistory    = "Invalid chat history."
)

// Provider is the LLM surface the relay needs.
type Provider interface {
	StreamingEnabled() bool
	Generate(ctx context.Context, turns []model.Turn) (string, error)
	Stream(ctx context.Context, turns []model.Turn) (ai.ChunkReader, error)
}

// Options wires a Router.
type Options struct {
	OperatorPassword string
	// SliceSize bounds the prompt sent to the provider. Zero disables it.
	SliceSize   int
	Pipeline    *callback.Pipeline
	Provider    Provider
	NewClientID func() string
	Logger      *slog.Logger
}

// Router dispatches inbound frames for every session in a registry.
type Router struct {
	registry    *chat.Registry
	password    string
	sliceSize   int
	pipeline    *callback.Pipeline
	provider    Provider
	newClientID func() string
	logger      *slog.Logger
}

// New creates a Router over registry.
func New(registry *chat.Registry, opts Options) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	newClientID := opts.NewClientID
	if newClientID == nil {
		newClientID = func() string { return uuid.NewString() }
	}
	return &Router{
		registry:    registry,
		password:    opts.OperatorPassword,
		sliceSize:   opts.SliceSize,
		pipeline:    opts.Pipeline,
		provider:    opts.Provider,
		newClientID: newClientID,
		logger:      logger.With("component", "router"),
	}
}

// Registry exposes the session registry the router works on.
func (r *Router) Registry() *chat.Registry {
	return r.registry
}

// Open registers a new session for conn and tells the client its conversation id.
func (r *Router) Open(conn chat.Conn) *chat.Session {
	s := r.registry.Create(conn)
	r.send(s, protocol.ConversationID{ConversationID: s.ID()})
	r.logger.Info("session opened", "session_id", s.ID())
	return s
}

// Close tears the session down. A paired peer is unpaired first and told the
// operator left; the closing side gets no frame.
func (r *Router) Close(s *chat.Session) {
	peer := r.registry.Remove(s.ID())
	if peer != nil {
		r.send(peer, protocol.MessageFrame{SubType: protocol.SubtypeOperatorDisconnected})
	}
	r.logger.Info("session closed", "session_id", s.ID())
}

// HandleRaw decodes one client frame and dispatches it. Protocol errors are
// reported to the client and never close the connection.
func (r *Router) HandleRaw(ctx context.Context, s *chat.Session, raw []byte) {
	cmd, err := protocol.Decode(raw)
	if err != nil {
		r.logger.Debug("rejecting frame", "session_id", s.ID(), "error", err)
		r.sendError(s, protocolErrorMessage(err))
		return
	}
	r.Handle(ctx, s, cmd)
}

// Handle dispatches a decoded command.
func (r *Router) Handle(ctx context.Context, s *chat.Session, cmd protocol.Inbound) {
	switch c := cmd.(type) {
	case protocol.Auth:
		r.handleAuth(s, c)
	case protocol.Connect:
		r.handleConnect(s, c)
	case protocol.Disconnect:
		r.handleDisconnect(s)
	case protocol.Message:
		r.handleMessage(ctx, s, c)
	case protocol.SetName:
		r.handleSetName(s, c)
	case protocol.ListUsers:
		r.send(s, protocol.UsersList{Users: r.listSessions(false)})
	case protocol.ListOperators:
		r.send(s, protocol.OperatorsList{Operators: r.listSessions(true)})
	case protocol.RequestClientID:
		id := s.EnsureClientID(r.newClientID)
		r.send(s, protocol.ClientID{ClientID: id, ConversationID: s.ID()})
	case protocol.ImportHistory:
		r.handleImportHistory(s, c)
	default:
		r.sendError(s, fmt.Sprintf("Unsupported message type: %s", cmd.InboundType()))
	}
}

func (r *Router) send(s *chat.Session, frame protocol.Outbound) {
	if err := s.Send(frame); err != nil {
		// The connection is usually already gone; the read loop cleans up.
		r.logger.Debug("send failed", "session_id", s.ID(), "type", frame.OutboundType(), "error", err)
	}
}

func (r *Router) sendError(s *chat.Session, message string) {
	r.send(s, protocol.Error{Message: message})
}

func (r *Router) listSessions(operators bool) []model.SessionInfo {
	sessions := r.registry.List()
	out := make([]model.SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		info := s.Info()
		if info.IsOperator == operators {
			out = append(out, info)
		}
	}
	return out
}

func protocolErrorMessage(err error) string {
	switch {
	case errors.Is(err, protocol.ErrUnsupportedType):
		return "Unsupported message type."
	default:
		return "Invalid message format."
	}
}
