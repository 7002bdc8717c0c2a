package chat

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/zhouzirui/z-relay/backend/internal/model/chat"
	"github.com/zhouzirui/z-relay/backend/internal/protocol"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNotOperator     = errors.New("session is not an operator")
	ErrAlreadyPaired   = errors.New("session already paired")
	ErrTargetPaired    = errors.New("target already paired")
	ErrSelfPairing     = errors.New("cannot pair a session with itself")
)

// Conn delivers frames to the connection that owns a session. Implementations
// must be safe for concurrent use: peers send to each other's connections.
type Conn interface {
	Send(frame protocol.Outbound) error
}

// Options configures how new sessions are seeded.
type Options struct {
	SystemMessage   string
	ScriptedPrompts []string
	Retention       RetentionPolicy
	Logger          *slog.Logger
}

// Registry is the authoritative map from session id to session state. It also
// guards every session's pairing field, so pairing changes are atomic with
// respect to lookups and removals.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	systemMessage string
	prompts       []string
	retention     RetentionPolicy
	newID         func() string
	logger        *slog.Logger
}

// NewRegistry bootstraps an empty in-memory registry.
func NewRegistry(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions:      make(map[string]*Session),
		systemMessage: opts.SystemMessage,
		prompts:       append([]string(nil), opts.ScriptedPrompts...),
		retention:     opts.Retention,
		newID:         func() string { return uuid.Must(uuid.NewV7()).String() },
		logger:        logger.With("component", "registry"),
	}
}

// Retention returns the process-wide retention policy.
func (r *Registry) Retention() RetentionPolicy {
	return r.retention
}

// SystemMessage returns the turn content every new session is seeded with.
func (r *Registry) SystemMessage() string {
	return r.systemMessage
}

// Create allocates a session for conn, seeds its history with the system turn,
// attaches the scripted prompt queue and registers it.
func (r *Registry) Create(conn Conn) *Session {
	s := &Session{
		id:       r.newID(),
		conn:     conn,
		registry: r,
		history:  make([]chat.Turn, 0, 16),
		prompts:  append([]string(nil), r.prompts...),
	}
	s.history = append(s.history, seedTurn(r.systemMessage))

	r.mu.Lock()
	r.sessions[s.id] = s
	count := len(r.sessions)
	r.mu.Unlock()

	r.logger.Debug("session created", "session_id", s.id, "sessions", count)
	return s
}

// Get retrieves a session by identifier.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// List returns every registered session ordered by id, which is creation order.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CheckPairingSymmetry verifies that every pairing references a live session
// that points back. It returns the first violation found.
func (r *Registry) CheckPairingSymmetry() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, s := range r.sessions {
		if s.pairedWith == "" {
			continue
		}
		peer, ok := r.sessions[s.pairedWith]
		if !ok {
			return fmt.Errorf("session %s paired with missing session %s", id, s.pairedWith)
		}
		if peer.pairedWith != id {
			return fmt.Errorf("session %s paired with %s, which points to %q", id, s.pairedWith, peer.pairedWith)
		}
	}
	return nil
}
