package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/z-relay/backend/internal/config"
	"github.com/zhouzirui/z-relay/backend/internal/model/chat"
)

var (
	ErrEmptyPrompt       = errors.New("prompt has no turns")
	ErrStreamingDisabled = errors.New("streaming disabled in configuration")
)

// ChunkReader is a finite, non-restartable sequence of reply fragments. Recv
// returns io.EOF once the reply is complete.
type ChunkReader interface {
	Recv() (string, error)
	Close()
}

// Options tunes how turns are presented to the chat model.
type Options struct {
	Name string
	// SystemRole is false for models that reject a system message; system
	// turns are then sent as user turns.
	SystemRole bool
	Streaming  bool
	Logger     *slog.Logger
}

// Service adapts an eino chat model to the relay's provider contract.
type Service struct {
	chatModel model.BaseChatModel
	opts      Options
	logger    *slog.Logger
}

// NewService creates the provider selected by cfg.
func NewService(ctx context.Context, cfg config.AIConfig, logger *slog.Logger) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	return NewWithModel(chatModel, Options{
		Name:       cfg.Provider,
		SystemRole: cfg.SystemRole,
		Streaming:  cfg.StreamResponse,
		Logger:     logger,
	}), nil
}

// NewWithModel wraps an already constructed chat model.
func NewWithModel(chatModel model.BaseChatModel, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		chatModel: chatModel,
		opts:      opts,
		logger:    logger.With("component", "ai", "provider", opts.Name),
	}
}

// StreamingEnabled reports whether replies should be streamed.
func (s *Service) StreamingEnabled() bool {
	return s.opts.Streaming
}

// Generate returns the whole reply for turns.
func (s *Service) Generate(ctx context.Context, turns []chat.Turn) (string, error) {
	if len(turns) == 0 {
		return "", ErrEmptyPrompt
	}

	resp, err := s.chatModel.Generate(ctx, s.toMessages(turns))
	if err != nil {
		return "", fmt.Errorf("failed to generate reply: %w", err)
	}
	if resp == nil {
		return "", nil
	}

	s.logger.Debug("generated reply", "turns", len(turns), "length", len(resp.Content))
	return resp.Content, nil
}

// Stream starts an incremental reply for turns.
func (s *Service) Stream(ctx context.Context, turns []chat.Turn) (ChunkReader, error) {
	if !s.StreamingEnabled() {
		return nil, ErrStreamingDisabled
	}
	if len(turns) == 0 {
		return nil, ErrEmptyPrompt
	}

	stream, err := s.chatModel.Stream(ctx, s.toMessages(turns))
	if err != nil {
		return nil, fmt.Errorf("failed to stream reply: %w", err)
	}
	return &chunkReader{stream: stream}, nil
}

// toMessages maps stored roles onto the roles the model accepts: operator
// turns become user turns, and so do system turns when the model has no
// system role.
func (s *Service) toMessages(turns []chat.Turn) []*schema.Message {
	out := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case chat.RoleAssistant:
			out = append(out, schema.AssistantMessage(turn.Content, nil))
		case chat.RoleSystem:
			if s.opts.SystemRole {
				out = append(out, schema.SystemMessage(turn.Content))
			} else {
				out = append(out, schema.UserMessage(turn.Content))
			}
		default:
			out = append(out, schema.UserMessage(turn.Content))
		}
	}
	return out
}

type chunkReader struct {
	stream *schema.StreamReader[*schema.Message]
}

func (r *chunkReader) Recv() (string, error) {
	for {
		chunk, err := r.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", err
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		return chunk.Content, nil
	}
}

func (r *chunkReader) Close() {
	r.stream.Close()
}
