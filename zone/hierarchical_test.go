package zone

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemberRefSnapshotAndReset(t *testing.T) {
	var firedCount int
	m := NewMemberRef[int](42, func() { firedCount++ })

	v, ok := m.Snapshot()
	require.True(t, ok)
	require.Equal(t, 42, v)
	require.True(t, m.Present())

	m.Reset()
	require.False(t, m.Present())
	require.Equal(t, 1, firedCount)

	_, ok = m.Snapshot()
	require.False(t, ok)
}

func TestMemberRefOnEmptyFiresOnlyOnce(t *testing.T) {
	var firedCount int
	m := NewMemberRef[string]("x", func() { firedCount++ })
	m.Reset()
	m.Reset()
	m.Reset()
	require.Equal(t, 1, firedCount)
}

func TestMemberRefSnapshotSurvivesConcurrentReset(t *testing.T) {
	m := NewMemberRef[int](7, func() {})
	v, ok := m.Snapshot()
	require.True(t, ok)
	m.Reset()
	// the already-taken snapshot value is still valid to use.
	require.Equal(t, 7, v)
}

func TestHierarchicalLinkDisconnectClearsBothHalves(t *testing.T) {
	var childFired, parentFired bool
	child := NewMemberRef[Transport](newFakeTransport(), func() { childFired = true })
	parent := NewMemberRef[Transport](newFakeTransport(), func() { parentFired = true })
	link := &HierarchicalLink{Child: child, Parent: parent}

	link.Disconnect()

	require.False(t, child.Present())
	require.False(t, parent.Present())
	require.True(t, childFired)
	require.True(t, parentFired)
}
