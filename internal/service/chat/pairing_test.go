package chat_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chat "github.com/zhouzirui/z-relay/backend/internal/service/chat"
)

func requireSymmetric(t *testing.T, reg *chat.Registry) {
	t.Helper()
	require.NoError(t, reg.CheckPairingSymmetry())
}

func newOperator(reg *chat.Registry) *chat.Session {
	s := reg.Create(nopConn{})
	s.SetOperator(true)
	return s
}

func TestConnectPairsBothSides(t *testing.T) {
	reg := newRegistry()
	op := newOperator(reg)
	user := reg.Create(nopConn{})

	caller, target, err := reg.Connect(op.ID(), user.ID())
	require.NoError(t, err)
	assert.Same(t, op, caller)
	assert.Same(t, user, target)

	assert.Equal(t, user.ID(), op.PairedWith())
	assert.Equal(t, op.ID(), user.PairedWith())
	requireSymmetric(t, reg)
}

func TestConnectRejectsConflicts(t *testing.T) {
	reg := newRegistry()
	op := newOperator(reg)
	other := newOperator(reg)
	user := reg.Create(nopConn{})
	plain := reg.Create(nopConn{})

	_, _, err := reg.Connect(plain.ID(), user.ID())
	assert.True(t, errors.Is(err, chat.ErrNotOperator))

	_, _, err = reg.Connect(op.ID(), "missing")
	assert.True(t, errors.Is(err, chat.ErrSessionNotFound))

	_, _, err = reg.Connect(op.ID(), op.ID())
	assert.True(t, errors.Is(err, chat.ErrSelfPairing))

	_, _, err = reg.Connect(op.ID(), user.ID())
	require.NoError(t, err)

	_, _, err = reg.Connect(op.ID(), plain.ID())
	assert.True(t, errors.Is(err, chat.ErrAlreadyPaired))
	assert.Empty(t, plain.PairedWith())

	_, _, err = reg.Connect(other.ID(), user.ID())
	assert.True(t, errors.Is(err, chat.ErrTargetPaired))
	assert.Empty(t, other.PairedWith())
	assert.Equal(t, op.ID(), user.PairedWith())

	requireSymmetric(t, reg)
}

func TestDisconnectClearsBothSidesAndIsIdempotent(t *testing.T) {
	reg := newRegistry()
	op := newOperator(reg)
	user := reg.Create(nopConn{})
	_, _, err := reg.Connect(op.ID(), user.ID())
	require.NoError(t, err)

	peer, err := reg.Disconnect(user.ID())
	require.NoError(t, err)
	assert.Same(t, op, peer)
	assert.Empty(t, op.PairedWith())
	assert.Empty(t, user.PairedWith())
	requireSymmetric(t, reg)

	peer, err = reg.Disconnect(user.ID())
	require.NoError(t, err)
	assert.Nil(t, peer)
	requireSymmetric(t, reg)
}

func TestRemoveUnpairsPeerBeforeDeletion(t *testing.T) {
	reg := newRegistry()
	op := newOperator(reg)
	user := reg.Create(nopConn{})
	_, _, err := reg.Connect(op.ID(), user.ID())
	require.NoError(t, err)

	peer := reg.Remove(op.ID())
	assert.Same(t, user, peer)

	_, ok := reg.Get(op.ID())
	assert.False(t, ok)
	assert.Empty(t, user.PairedWith())
	requireSymmetric(t, reg)

	assert.Nil(t, reg.Remove(op.ID()))
}

func TestOperatorCanPairAgainAfterDisconnect(t *testing.T) {
	reg := newRegistry()
	op := newOperator(reg)
	first := reg.Create(nopConn{})
	second := reg.Create(nopConn{})

	_, _, err := reg.Connect(op.ID(), first.ID())
	require.NoError(t, err)
	_, err = reg.Disconnect(op.ID())
	require.NoError(t, err)

	_, _, err = reg.Connect(op.ID(), second.ID())
	require.NoError(t, err)
	assert.Empty(t, first.PairedWith())
	assert.Equal(t, op.ID(), second.PairedWith())
	requireSymmetric(t, reg)
}
