package zone

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestZeroValuesAreNone(t *testing.T) {
	require.True(t, Zone(0).IsNone())
	require.True(t, DestinationZone(0).IsNone())
	require.True(t, CallerZone(0).IsNone())
	require.True(t, KnownDirectionZone(0).IsNone())
	require.True(t, Object(0).IsNone())
	require.False(t, Zone(1).IsNone())
}

func TestRefAxisString(t *testing.T) {
	require.Equal(t, "shared", SharedRef.String())
	require.Equal(t, "optimistic", OptimisticRef.String())
}

func TestMakeUnorderedZonePairIsOrderIndependent(t *testing.T) {
	a, b := Zone(3), Zone(7)
	require.Equal(t, MakeUnorderedZonePair(a, b), MakeUnorderedZonePair(b, a))
	require.Equal(t, UnorderedZonePair{Lo: 3, Hi: 7}, MakeUnorderedZonePair(a, b))
}

func TestUnorderedZonePairUsableAsMapKey(t *testing.T) {
	m := map[UnorderedZonePair]string{}
	m[MakeUnorderedZonePair(1, 2)] = "first"
	got, ok := m[MakeUnorderedZonePair(2, 1)]
	require.True(t, ok)
	require.Equal(t, "first", got)
}
