package router

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	model "github.com/zhouzirui/z-relay/backend/internal/model/chat"
	"github.com/zhouzirui/z-relay/backend/internal/protocol"
	"github.com/zhouzirui/z-relay/backend/internal/service/chat"
)

var errNoProvider = errors.New("no LLM provider configured")

// relay answers an unpaired user. Pending scripted prompts are sent as plain
// messages; otherwise the model reply is streamed and closed by exactly one
// stream-end frame.
func (r *Router) relay(ctx context.Context, s *chat.Session) {
	if question, ok := s.PopScriptedPrompt(); ok {
		turn := model.Turn{Role: model.RoleAssistant, Content: question, Timestamp: time.Now().UTC()}
		s.Append(turn)
		r.send(s, protocol.MessageFrame{Message: &turn})
		return
	}

	// The reply is committed even if the client goes away mid-stream.
	ctx = context.WithoutCancel(ctx)

	r.send(s, protocol.StreamStart{Message: model.Turn{Role: model.RoleAssistant}})

	prompt := chat.TrimPrompt(s.History(), r.sliceSize)
	reply, err := r.complete(ctx, s, prompt)
	if err != nil {
		r.logger.Warn("failed to generate reply", "session_id", s.ID(), "error", err)
		r.send(s, protocol.StreamEndFailed())
		return
	}

	turn := model.Turn{Role: model.RoleAssistant, Content: reply, Timestamp: time.Now().UTC()}
	s.Append(turn)
	r.send(s, protocol.StreamEndOK(turn))
}

// complete obtains the reply, sending a chunk frame for every non-empty piece.
func (r *Router) complete(ctx context.Context, s *chat.Session, prompt []model.Turn) (string, error) {
	if r.provider == nil {
		return "", errNoProvider
	}

	if !r.provider.StreamingEnabled() {
		reply, err := r.provider.Generate(ctx, prompt)
		if err != nil {
			return "", err
		}
		if reply != "" {
			r.send(s, protocol.StreamChunk{Chunk: reply})
		}
		return reply, nil
	}

	stream, err := r.provider.Stream(ctx, prompt)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var reply strings.Builder
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", recvErr
		}
		if chunk == "" {
			continue
		}
		reply.WriteString(chunk)
		r.send(s, protocol.StreamChunk{Chunk: chunk})
	}
	return reply.String(), nil
}
