// Package zone implements the transport-agnostic RPC runtime core: the
// zone service, the service-proxy layer, the object proxy/stub pair, the
// pass-through router, and the hierarchical parent/child transport pattern.
//
// The concrete wire codecs and transports that carry this runtime's
// messages between processes, enclaves, or hosts are not part of this
// package -- see pkg/zonetransport and pkg/zonecodec. This package only
// consumes them through the Transport contract (transport.go) and an
// opaque EncodingTag (envelope.go).
package zone

import "fmt"

// Zone identifies a unit of isolation -- a process, an enclave, a loaded
// module, a thread bound to a lock-free queue, or a remote host. Zone ids
// are unique within a deployment. The zero value means "none".
type Zone uint64

// NoZone is the reserved "none" value for Zone and its role-specific aliases.
const NoZone Zone = 0

func (z Zone) String() string {
	if z == NoZone {
		return "zone:none"
	}
	return fmt.Sprintf("zone:%d", uint64(z))
}

// IsNone reports whether z is the reserved zero value.
func (z Zone) IsNone() bool {
	return z == NoZone
}

// DestinationZone names the final recipient zone of a message. It is
// distinct from Zone so that "where this service lives" and "where a
// message is ultimately headed" can never be silently confused.
type DestinationZone Zone

func (z DestinationZone) String() string {
	return fmt.Sprintf("dest:%d", uint64(z))
}

// IsNone reports whether z is the reserved zero value.
func (z DestinationZone) IsNone() bool {
	return z == DestinationZone(NoZone)
}

// CallerZone names the zone that originated a call.
type CallerZone Zone

func (z CallerZone) String() string {
	return fmt.Sprintf("caller:%d", uint64(z))
}

// IsNone reports whether z is the reserved zero value.
func (z CallerZone) IsNone() bool {
	return z == CallerZone(NoZone)
}

// KnownDirectionZone is a routing hint naming the next hop towards a
// destination in a multi-hop topology. A zero value means "no hint".
type KnownDirectionZone Zone

func (z KnownDirectionZone) String() string {
	return fmt.Sprintf("direction:%d", uint64(z))
}

// IsNone reports whether z is the reserved zero value.
func (z KnownDirectionZone) IsNone() bool {
	return z == KnownDirectionZone(NoZone)
}

// Object identifies a stub-addressable target within its home zone. Object
// ids are allocated monotonically by the home zone's Service and are
// unique within that zone for the zone's lifetime -- never reused. An
// object is anonymous outside its home zone; peers address it only as the
// pair (DestinationZone, Object).
type Object uint64

// NoObject is the reserved "none" value for Object.
const NoObject Object = 0

func (o Object) String() string {
	if o == NoObject {
		return "object:none"
	}
	return fmt.Sprintf("object:%d", uint64(o))
}

// IsNone reports whether o is the reserved zero value.
func (o Object) IsNone() bool {
	return o == NoObject
}

// InterfaceOrdinal identifies one callable facet of one object. In a full
// system the ordinal is derived from a fingerprint of an IDL interface
// definition plus a protocol version; the core treats it as an opaque,
// comparable key.
type InterfaceOrdinal uint64

func (i InterfaceOrdinal) String() string {
	return fmt.Sprintf("iface:%#x", uint64(i))
}

// Method identifies one operation within an interface.
type Method uint32

func (m Method) String() string {
	return fmt.Sprintf("method:%d", uint32(m))
}

// TransactionID correlates a request with its response on a single
// transport. It is allocated monotonically per ObjectProxy, so two object
// proxies sharing one service proxy can issue the same id; the add_ref
// a ServiceProxy sends itself carries id 0.
type TransactionID uint64

func (t TransactionID) String() string {
	return fmt.Sprintf("txn:%d", uint64(t))
}

// RefAxis distinguishes the two reference-counting axes a stub, object
// proxy or pass-through tracks per peer: Shared keeps the target alive,
// Optimistic observes without extending its lifetime.
type RefAxis int

const (
	// SharedRef keeps the referenced object alive.
	SharedRef RefAxis = iota
	// OptimisticRef observes the referenced object without keeping it alive.
	OptimisticRef
)

func (a RefAxis) String() string {
	if a == OptimisticRef {
		return "optimistic"
	}
	return "shared"
}

// UnorderedZonePair is an unordered key for a pair of zones, used to
// identify the single pass-through serving a given {A, D} relay route
// (spec invariant: exactly one pass-through per unordered pair).
type UnorderedZonePair struct {
	Lo, Hi Zone
}

// MakeUnorderedZonePair builds the canonical (order-independent) key for a and b.
func MakeUnorderedZonePair(a, b Zone) UnorderedZonePair {
	if a <= b {
		return UnorderedZonePair{Lo: a, Hi: b}
	}
	return UnorderedZonePair{Lo: b, Hi: a}
}

func (p UnorderedZonePair) String() string {
	return fmt.Sprintf("{%d,%d}", uint64(p.Lo), uint64(p.Hi))
}
