package zone

// AddRefOption is the two-bit options word carried on every add_ref and
// release wire operation (§4.5/§4.6). Reserved bits above bit 1 must be
// zero on the core's own wire but are preserved as-is for vendor
// extensions (e.g. a vendor-defined optimistic-axis bit).
type AddRefOption uint8

const (
	// Plain is a simple bump/decrement of the peer stub's shared count
	// attributed to the calling zone; no route is built.
	Plain AddRefOption = 0

	// BuildDestinationRoute creates or refreshes the peer's knowledge
	// that the caller zone can reach the destination zone via this link.
	BuildDestinationRoute AddRefOption = 1 << 0

	// BuildCallerRoute creates or refreshes the peer's knowledge that
	// the destination zone can reply to the caller zone via this link.
	BuildCallerRoute AddRefOption = 1 << 1

	// Relay is BuildDestinationRoute|BuildCallerRoute together -- the
	// value that triggers pass-through creation in an intermediary
	// zone per §4.6.
	Relay = BuildDestinationRoute | BuildCallerRoute
)

// IsRelay reports whether both route-building bits are set, i.e. this
// options value is the §4.6 relay encoding.
func (o AddRefOption) IsRelay() bool {
	return o&Relay == Relay
}

// HasDestinationRoute reports whether bit 0 is set.
func (o AddRefOption) HasDestinationRoute() bool {
	return o&BuildDestinationRoute != 0
}

// HasCallerRoute reports whether bit 1 is set.
func (o AddRefOption) HasCallerRoute() bool {
	return o&BuildCallerRoute != 0
}

func (o AddRefOption) String() string {
	switch o {
	case Plain:
		return "plain"
	case BuildDestinationRoute:
		return "build_destination_route"
	case BuildCallerRoute:
		return "build_caller_route"
	case Relay:
		return "relay"
	default:
		return "reserved"
	}
}
