package callback

import (
	"context"
	"fmt"

	"github.com/zhouzirui/z-relay/backend/internal/model/chat"
)

// Phase selects when a hook runs relative to routing.
type Phase string

const (
	PhasePre  Phase = "pre"
	PhasePost Phase = "post"
)

// Audience selects which sessions a hook applies to.
type Audience string

const (
	// AudienceAll hooks run for every message.
	AudienceAll Audience = "all"
	// AudienceOperatorOnly hooks run only while the session is NOT paired with
	// a peer. The name is kept for compatibility with existing hook
	// configurations; the session's operator flag is never consulted. In
	// effect these hooks stay off peer-to-peer relayed traffic.
	AudienceOperatorOnly Audience = "operator-only"
)

// Kind tags which action a registration carries.
type Kind string

const (
	KindHistoryTransform Kind = "history-transform"
	KindSessionObserver  Kind = "session-observer"
)

// TransformFunc receives a copy of the history and returns the history that
// replaces it. It may rewrite the content of the last (current) turn.
type TransformFunc func(ctx context.Context, history []chat.Turn) ([]chat.Turn, error)

// ObserverFunc inspects a snapshot of the session for side effects.
type ObserverFunc func(ctx context.Context, session chat.Snapshot) error

// Registration is one pipeline step. Build it with HistoryTransform or
// SessionObserver; the zero value is invalid.
type Registration struct {
	ID       string
	Phase    Phase
	Audience Audience

	kind      Kind
	transform TransformFunc
	observe   ObserverFunc
}

// HistoryTransform registers fn as a history-transform hook.
func HistoryTransform(id string, phase Phase, audience Audience, fn TransformFunc) Registration {
	return Registration{ID: id, Phase: phase, Audience: audience, kind: KindHistoryTransform, transform: fn}
}

// SessionObserver registers fn as a session-observer hook.
func SessionObserver(id string, phase Phase, audience Audience, fn ObserverFunc) Registration {
	return Registration{ID: id, Phase: phase, Audience: audience, kind: KindSessionObserver, observe: fn}
}

// Kind reports the registration's variant.
func (r Registration) Kind() Kind {
	return r.kind
}

func (r Registration) validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidRegistration)
	}
	switch r.Phase {
	case PhasePre, PhasePost:
	default:
		return fmt.Errorf("%w: %s: unknown phase %q", ErrInvalidRegistration, r.ID, r.Phase)
	}
	switch r.Audience {
	case AudienceAll, AudienceOperatorOnly:
	default:
		return fmt.Errorf("%w: %s: unknown audience %q", ErrInvalidRegistration, r.ID, r.Audience)
	}
	switch r.kind {
	case KindHistoryTransform:
		if r.transform == nil {
			return fmt.Errorf("%w: %s: nil transform", ErrInvalidRegistration, r.ID)
		}
	case KindSessionObserver:
		if r.observe == nil {
			return fmt.Errorf("%w: %s: nil observer", ErrInvalidRegistration, r.ID)
		}
	default:
		return fmt.Errorf("%w: %s: unknown kind", ErrInvalidRegistration, r.ID)
	}
	return nil
}

// appliesTo implements the audience gate. See AudienceOperatorOnly.
func (r Registration) appliesTo(phase Phase, paired bool) bool {
	if r.Phase != phase {
		return false
	}
	return r.Audience == AudienceAll || !paired
}
