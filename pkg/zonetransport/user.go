package zonetransport

import (
	"regexp"
	"strings"

	"github.com/sammck-go/zonerpc/zone"
)

// AuthenticationFailed is a vendor-range error code (the core's
// ErrorCode enum has no notion of networked-transport authentication,
// so this package defines its own above zone.VendorErrorBase).
const AuthenticationFailed = zone.VendorErrorBase + 1

// ZoneAllowAll matches any destination zone name.
var ZoneAllowAll = regexp.MustCompile("")

// ParseAuth splits a ":"-delimited "name:password" pair, returning two
// empty strings if auth contains no ":".
func ParseAuth(auth string) (string, string) {
	if strings.Contains(auth, ":") {
		pair := strings.SplitN(auth, ":", 2)
		return pair[0], pair[1]
	}
	return "", ""
}

// User describes one networked-transport peer's credentials: its
// name/password pair and a set of destination zone name patterns that
// HasAccess matches against. The SSH server checks only the
// name/password pair; it does not call HasAccess, so Zones does not
// restrict which zones an authenticated connection reaches.
type User struct {
	Name  string
	Pass  string
	Zones []*regexp.Regexp
}

// HasAccess reports whether zoneName matches one of u's allowed zone
// name patterns.
func (u *User) HasAccess(zoneName string) bool {
	for _, r := range u.Zones {
		if r.MatchString(zoneName) {
			return true
		}
	}
	return false
}

// UserIndex is a simple by-name lookup of the users a networked
// transport's server side will authenticate.
type UserIndex struct {
	byName map[string]*User
}

// NewUserIndex builds a UserIndex from users.
func NewUserIndex(users []*User) *UserIndex {
	idx := &UserIndex{byName: make(map[string]*User, len(users))}
	for _, u := range users {
		idx.byName[u.Name] = u
	}
	return idx
}

// Authenticate returns the user named name if pass matches, else nil.
func (idx *UserIndex) Authenticate(name, pass string) *User {
	u, ok := idx.byName[name]
	if !ok || u.Pass != pass {
		return nil
	}
	return u
}
