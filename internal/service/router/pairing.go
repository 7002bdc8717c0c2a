package router

import (
	"errors"

	model "github.com/zhouzirui/z-relay/backend/internal/model/chat"
	"github.com/zhouzirui/z-relay/backend/internal/protocol"
	"github.com/zhouzirui/z-relay/backend/internal/service/chat"
)

func (r *Router) handleAuth(s *chat.Session, c protocol.Auth) {
	ok := r.password != "" && c.Password == r.password
	if ok {
		s.SetOperator(true)
		r.logger.Info("operator authenticated", "session_id", s.ID())
	} else {
		r.logger.Warn("operator authentication failed", "session_id", s.ID())
	}
	r.send(s, protocol.LoginResponse{Success: ok})
}

func (r *Router) handleConnect(s *chat.Session, c protocol.Connect) {
	_, target, err := r.registry.Connect(s.ID(), c.TargetID)
	if err != nil {
		r.logger.Debug("connect rejected", "session_id", s.ID(), "peer_id", c.TargetID, "error", err)
		r.sendError(s, pairingErrorMessage(err))
		return
	}

	r.send(s, protocol.Connected{TargetID: target.ID()})
	r.send(target, protocol.MessageFrame{
		ConversationID: s.ID(),
		SubType:        protocol.SubtypeOperatorConnected,
	})
}

func (r *Router) handleDisconnect(s *chat.Session) {
	peer, err := r.registry.Disconnect(s.ID())
	if err != nil || peer == nil {
		return
	}
	notice := protocol.MessageFrame{SubType: protocol.SubtypeOperatorDisconnected}
	r.send(peer, notice)
	r.send(s, notice)
}

func (r *Router) handleSetName(s *chat.Session, c protocol.SetName) {
	s.SetName(c.Name)
	r.send(s, protocol.NameSet{ConversationID: s.ID(), Name: c.Name})
}

func (r *Router) handleImportHistory(s *chat.Session, c protocol.ImportHistory) {
	if s.PairedWith() != "" {
		r.sendError(s, msgImportWhilePaired)
		return
	}
	for _, turn := range c.History {
		if !turn.Role.Valid() {
			r.sendError(s, msgInvalidHistory)
			return
		}
	}
	s.ImportHistory(model.CloneTurns(c.History))
	r.logger.Info("history imported", "session_id", s.ID(), "turns", len(c.History))
}

func pairingErrorMessage(err error) string {
	switch {
	case errors.Is(err, chat.ErrNotOperator):
		return msgNotOperator
	case errors.Is(err, chat.ErrAlreadyPaired):
		return msgAlreadyConnected
	case errors.Is(err, chat.ErrSelfPairing):
		return msgSelfConnect
	case errors.Is(err, chat.ErrTargetPaired):
		return msgTargetBusy
	default:
		return msgUserNotFound
	}
}
