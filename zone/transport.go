package zone

import "context"

// TransportStatus is the state machine every Transport instance moves
// through exactly once: CONNECTING leads to CONNECTED, which may cycle
// through RECONNECTING back to CONNECTED any number of times, but
// Disconnected is terminal for the instance.
type TransportStatus int

const (
	TransportConnecting TransportStatus = iota
	TransportConnected
	TransportReconnecting
	TransportDisconnected
)

func (s TransportStatus) String() string {
	switch s {
	case TransportConnecting:
		return "CONNECTING"
	case TransportConnected:
		return "CONNECTED"
	case TransportReconnecting:
		return "RECONNECTING"
	case TransportDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// TransportUpcalls is how a Transport reports events to the Service that
// owns it. The service never calls back into the transport from inside
// an upcall.
type TransportUpcalls interface {
	// OnObjectReleased notifies the service that the peer has dropped
	// its last reference to the given local object via this transport,
	// independent of any in-flight release() call.
	OnObjectReleased(object Object)

	// OnTransportDown notifies the service that the transport has
	// failed irrecoverably; the service proxy (or pass-through side)
	// backed by this transport becomes non-operational.
	OnTransportDown(err error)

	// OnZoneTerminating notifies the service that the peer zone is
	// broadcasting zone_terminating.
	OnZoneTerminating(peerZone Zone)
}

// Transport is the contract every concrete transport (local in-process,
// a single-producer/single-consumer queue, TCP, WebSocket, an enclave
// entry/exit gate) implements. The core consumes these methods and
// never inspects the wire bytes a transport moves; callers supply an
// EncodingTag identifying the codec the transport should use for
// whatever control messages it must itself marshal.
type Transport interface {
	// Connect dials or accepts, driving the transport to CONNECTED or
	// returning an error. It may only be called once per instance.
	Connect(ctx context.Context) error

	// Status reports the transport's current state.
	Status() TransportStatus

	// Send issues a request/response exchange and suspends until the
	// peer replies or the transport fails.
	Send(ctx context.Context, encoding EncodingTag, txn TransactionID, input []byte) (response []byte, err error)

	// Post is fire-and-forget: it returns as soon as input is handed to
	// the underlying I/O primitive, with no delivery guarantee beyond
	// local enqueue.
	Post(ctx context.Context, encoding EncodingTag, input []byte) error

	// TryCast asks the peer whether object supports ordinal, or a
	// fallback ordinal it supports instead.
	TryCast(ctx context.Context, txn TransactionID, object Object, ordinal InterfaceOrdinal) (InterfaceOrdinal, error)

	// AddRef bumps the peer stub's reference count for object,
	// attributed to caller, per the semantics of opts, and returns the
	// peer's new count.
	AddRef(ctx context.Context, txn TransactionID, object Object, caller CallerZone, opts AddRefOption, knownDirection KnownDirectionZone) (uint64, error)

	// Release is AddRef's symmetric decrement.
	Release(ctx context.Context, txn TransactionID, object Object, caller CallerZone, opts AddRefOption) (uint64, error)

	// Close begins this transport's terminal DISCONNECTED transition.
	Close() error
}
