package router

import (
	"context"
	"strings"

	model "github.com/zhouzirui/z-relay/backend/internal/model/chat"
	"github.com/zhouzirui/z-relay/backend/internal/protocol"
	"github.com/zhouzirui/z-relay/backend/internal/service/callback"
	"github.com/zhouzirui/z-relay/backend/internal/service/chat"
)

// handleMessage appends the turn, slices history, runs the pre hooks, routes
// the message and finally runs the post hooks. A failing pre hook stops the
// message after its turn has been stored.
func (r *Router) handleMessage(ctx context.Context, s *chat.Session, c protocol.Message) {
	if strings.TrimSpace(c.Content) == "" {
		return
	}
	if c.ClientID != "" {
		s.SetClientID(c.ClientID)
	}

	role := model.RoleUser
	if s.IsOperator() {
		role = model.RoleOperator
	}
	s.Append(model.Turn{Role: role, Content: c.Content})
	if s.Slice(r.registry.Retention()) {
		r.logger.Debug("history sliced", "session_id", s.ID())
	}

	if err := r.pipeline.Run(ctx, s, callback.PhasePre); err != nil {
		r.logger.Debug("message dropped after pre hook failure", "session_id", s.ID(), "error", err)
		return
	}

	r.route(ctx, s)

	if err := r.pipeline.Run(ctx, s, callback.PhasePost); err != nil {
		r.logger.Debug("post hooks aborted", "session_id", s.ID(), "error", err)
	}
}

// route delivers the session's latest turn: to the paired peer when there is
// one, otherwise to the scripted prompts or the model for users.
func (r *Router) route(ctx context.Context, s *chat.Session) {
	if peerID := s.PairedWith(); peerID != "" {
		if peer, ok := r.registry.Get(peerID); ok {
			r.forward(s, peer)
			return
		}
	}

	if s.IsOperator() {
		r.sendError(s, msgNotConnected)
		return
	}
	r.relay(ctx, s)
}

func (r *Router) forward(s, peer *chat.Session) {
	turn, ok := s.LastTurn()
	if !ok {
		return
	}
	peer.Append(turn)
	r.send(peer, protocol.MessageFrame{Message: &turn, ConversationID: s.ID()})
	r.send(s, protocol.MessageSent{})
}
