package zonetransport

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAuth(t *testing.T) {
	name, pass := ParseAuth("alice:secret")
	require.Equal(t, "alice", name)
	require.Equal(t, "secret", pass)

	name, pass = ParseAuth("no-colon-here")
	require.Equal(t, "", name)
	require.Equal(t, "", pass)
}

func TestParseAuthSplitsOnlyFirstColon(t *testing.T) {
	name, pass := ParseAuth("alice:pass:with:colons")
	require.Equal(t, "alice", name)
	require.Equal(t, "pass:with:colons", pass)
}

func TestUserHasAccess(t *testing.T) {
	u := &User{Name: "alice", Zones: []*regexp.Regexp{regexp.MustCompile("^peer-")}}
	require.True(t, u.HasAccess("peer-1"))
	require.False(t, u.HasAccess("other"))
}

func TestUserHasAccessAllowAll(t *testing.T) {
	u := &User{Name: "alice", Zones: []*regexp.Regexp{ZoneAllowAll}}
	require.True(t, u.HasAccess("anything"))
}

func TestUserIndexAuthenticate(t *testing.T) {
	idx := NewUserIndex([]*User{{Name: "alice", Pass: "secret"}})

	require.NotNil(t, idx.Authenticate("alice", "secret"))
	require.Nil(t, idx.Authenticate("alice", "wrong"))
	require.Nil(t, idx.Authenticate("bob", "secret"))
}
