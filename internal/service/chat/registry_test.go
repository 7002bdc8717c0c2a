package chat_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-relay/backend/internal/protocol"
	chat "github.com/zhouzirui/z-relay/backend/internal/service/chat"
)

type nopConn struct{}

func (nopConn) Send(protocol.Outbound) error { return nil }

func newRegistry(prompts ...string) *chat.Registry {
	return chat.NewRegistry(chat.Options{
		SystemMessage:   "You are a helpful assistant.",
		ScriptedPrompts: prompts,
		Retention:       chat.NewRetentionPolicy(len(prompts), 10),
	})
}

func TestRegistryCreateSeedsSession(t *testing.T) {
	reg := newRegistry("What is your name?", "Where are you from?")

	s := reg.Create(nopConn{})

	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, "system", string(history[0].Role))
	assert.Equal(t, "You are a helpful assistant.", history[0].Content)
	assert.Equal(t, 2, s.PendingScriptedPrompts())
	assert.False(t, s.IsOperator())
	assert.Empty(t, s.PairedWith())

	parsed, err := uuid.Parse(s.ID())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	got, ok := reg.Get(s.ID())
	require.True(t, ok)
	assert.Same(t, s, got)
}

func TestRegistryScriptedPromptQueuesAreIndependent(t *testing.T) {
	reg := newRegistry("first", "second")

	a := reg.Create(nopConn{})
	b := reg.Create(nopConn{})

	next, ok := a.PopScriptedPrompt()
	require.True(t, ok)
	assert.Equal(t, "first", next)
	assert.Equal(t, 1, a.PendingScriptedPrompts())
	assert.Equal(t, 2, b.PendingScriptedPrompts())
}

func TestRegistryGetMissing(t *testing.T) {
	reg := newRegistry()

	_, ok := reg.Get("missing")
	assert.False(t, ok)
}

func TestRegistryListIsCreationOrdered(t *testing.T) {
	reg := newRegistry()

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, reg.Create(nopConn{}).ID())
	}

	var listed []string
	for _, s := range reg.List() {
		listed = append(listed, s.ID())
	}
	assert.Equal(t, ids, listed)
	assert.Equal(t, 5, reg.Len())
}

func TestRegistryConcurrentCreateRemove(t *testing.T) {
	reg := newRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := reg.Create(nopConn{})
			_, ok := reg.Get(s.ID())
			assert.True(t, ok)
			reg.Remove(s.ID())
		}()
	}
	wg.Wait()

	assert.Zero(t, reg.Len())
}

func TestSessionImportHistoryReseedsSystemTurn(t *testing.T) {
	reg := newRegistry("q1")
	s := reg.Create(nopConn{})

	s.ImportHistory(importTurns(3))

	history := s.History()
	require.Len(t, history, 4)
	assert.Equal(t, "system", string(history[0].Role))
	assert.Equal(t, "turn 0", history[1].Content)
	assert.Zero(t, s.PendingScriptedPrompts())
}

func TestSessionEnsureClientIDIsStable(t *testing.T) {
	reg := newRegistry()
	s := reg.Create(nopConn{})

	calls := 0
	gen := func() string {
		calls++
		return fmt.Sprintf("client-%d", calls)
	}

	assert.Equal(t, "client-1", s.EnsureClientID(gen))
	assert.Equal(t, "client-1", s.EnsureClientID(gen))
	assert.Equal(t, 1, calls)
}
