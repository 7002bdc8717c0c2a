package chat

import (
	"sync"
	"time"

	"github.com/zhouzirui/z-relay/backend/internal/model/chat"
	"github.com/zhouzirui/z-relay/backend/internal/protocol"
)

// Session is the per-connection conversation state. Fields under mu belong to
// the connection's own task; pairedWith is guarded by the owning registry.
type Session struct {
	id       string
	conn     Conn
	registry *Registry

	mu         sync.Mutex
	history    []chat.Turn
	isOperator bool
	name       string
	prompts    []string
	clientID   string

	pairedWith string
}

func seedTurn(content string) chat.Turn {
	return chat.Turn{Role: chat.RoleSystem, Content: content, Timestamp: time.Now().UTC()}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Send writes a frame to the session's connection.
func (s *Session) Send(frame protocol.Outbound) error {
	return s.conn.Send(frame)
}

// PairedWith returns the id of the paired peer, or "" when unpaired.
func (s *Session) PairedWith() string {
	s.registry.mu.RLock()
	defer s.registry.mu.RUnlock()
	return s.pairedWith
}

func (s *Session) IsOperator() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isOperator
}

// SetOperator marks the session as authenticated (or not) as an operator.
func (s *Session) SetOperator(v bool) {
	s.mu.Lock()
	s.isOperator = v
	s.mu.Unlock()
}

func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func (s *Session) SetName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

func (s *Session) ClientID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientID
}

func (s *Session) SetClientID(id string) {
	s.mu.Lock()
	s.clientID = id
	s.mu.Unlock()
}

// EnsureClientID returns the external client id, assigning one from generate
// when none is set yet.
func (s *Session) EnsureClientID(generate func() string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clientID == "" {
		s.clientID = generate()
	}
	return s.clientID
}

// History returns a copy of the conversation history.
func (s *Session) History() []chat.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return chat.CloneTurns(s.history)
}

// Append adds a turn to the end of the history, stamping it when needed.
func (s *Session) Append(turn chat.Turn) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}
	s.mu.Lock()
	s.history = append(s.history, turn)
	s.mu.Unlock()
}

// LastTurn returns the most recent turn.
func (s *Session) LastTurn() (chat.Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 {
		return chat.Turn{}, false
	}
	return s.history[len(s.history)-1], true
}

// Slice applies the retention policy to the history. It reports whether the
// history was truncated.
func (s *Session) Slice(policy RetentionPolicy) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.history)
	s.history = policy.Apply(s.history, s.isOperator)
	return len(s.history) != before
}

// TransformHistory replaces the history with fn's result. fn runs on a copy
// without the session lock held, so it may block on I/O. Turns appended by a
// peer while fn runs are kept after the transformed history.
func (s *Session) TransformHistory(fn func([]chat.Turn) ([]chat.Turn, error)) error {
	s.mu.Lock()
	base := len(s.history)
	working := chat.CloneTurns(s.history)
	s.mu.Unlock()

	next, err := fn(working)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) > base {
		next = append(next, s.history[base:]...)
	}
	s.history = next
	return nil
}

// ImportHistory replaces the history with turns supplied by a reconnecting
// client. The seeded system turn is restored at index 0 when missing and any
// pending scripted prompts are dropped.
func (s *Session) ImportHistory(turns []chat.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var seed chat.Turn
	if len(s.history) > 0 {
		seed = s.history[0]
	} else {
		seed = seedTurn(s.registry.systemMessage)
	}

	next := make([]chat.Turn, 0, len(turns)+1)
	if len(turns) == 0 || turns[0].Role != chat.RoleSystem {
		next = append(next, seed)
	}
	next = append(next, turns...)

	s.history = next
	s.prompts = nil
}

// PopScriptedPrompt removes and returns the next pending scripted prompt.
func (s *Session) PopScriptedPrompt() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.prompts) == 0 {
		return "", false
	}
	next := s.prompts[0]
	s.prompts = s.prompts[1:]
	return next, true
}

// PendingScriptedPrompts reports how many scripted prompts remain.
func (s *Session) PendingScriptedPrompts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

// Info returns the public listing view of the session.
func (s *Session) Info() chat.SessionInfo {
	paired := s.PairedWith()

	s.mu.Lock()
	defer s.mu.Unlock()
	return chat.SessionInfo{
		ID:         s.id,
		Name:       s.name,
		IsOperator: s.isOperator,
		PairedWith: paired,
		ClientID:   s.clientID,
	}
}

// Snapshot returns a read-only copy of the whole session.
func (s *Session) Snapshot() chat.Snapshot {
	info := s.Info()

	s.mu.Lock()
	defer s.mu.Unlock()
	return chat.Snapshot{SessionInfo: info, History: chat.CloneTurns(s.history)}
}
