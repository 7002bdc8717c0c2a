package callback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zhouzirui/z-relay/backend/internal/model/chat"
)

var (
	ErrInvalidRegistration = errors.New("invalid callback registration")
	ErrDuplicateID         = errors.New("duplicate callback id")
)

// Target is the session surface the pipeline needs.
type Target interface {
	ID() string
	PairedWith() string
	TransformHistory(fn func([]chat.Turn) ([]chat.Turn, error)) error
	Snapshot() chat.Snapshot
}

// Pipeline is the ordered, immutable list of hooks shared by every session.
type Pipeline struct {
	regs   []Registration
	logger *slog.Logger
}

// NewPipeline validates regs and freezes them in registration order.
func NewPipeline(logger *slog.Logger, regs ...Registration) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	seen := make(map[string]struct{}, len(regs))
	for _, reg := range regs {
		if err := reg.validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[reg.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, reg.ID)
		}
		seen[reg.ID] = struct{}{}
	}

	return &Pipeline{
		regs:   append([]Registration(nil), regs...),
		logger: logger.With("component", "callbacks"),
	}, nil
}

// Registrations returns a copy of the registered hooks in order.
func (p *Pipeline) Registrations() []Registration {
	return append([]Registration(nil), p.regs...)
}

// Run executes the hooks for phase against session, one after another. The
// first failing hook stops the phase and its error is returned; changes made
// by earlier hooks, and the turn that triggered the run, are kept.
func (p *Pipeline) Run(ctx context.Context, session Target, phase Phase) error {
	if p == nil || len(p.regs) == 0 {
		return nil
	}
	paired := session.PairedWith() != ""

	for _, reg := range p.regs {
		if !reg.appliesTo(phase, paired) {
			continue
		}

		var err error
		switch reg.kind {
		case KindHistoryTransform:
			err = session.TransformHistory(func(history []chat.Turn) ([]chat.Turn, error) {
				return reg.transform(ctx, history)
			})
		case KindSessionObserver:
			err = reg.observe(ctx, session.Snapshot())
		}
		if err != nil {
			p.logger.Warn("callback failed, skipping remaining hooks",
				"callback_id", reg.ID,
				"phase", phase,
				"session_id", session.ID(),
				"error", err)
			return fmt.Errorf("callback %s: %w", reg.ID, err)
		}
	}
	return nil
}
