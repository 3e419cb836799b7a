package zonetransport

import (
	"context"

	"github.com/sammck-go/zonerpc/zone"
)

// ServiceHandler bridges a zone.Service to the InboundHandler every
// concrete transport in this package expects, translating each
// wireMessage kind into the matching zone.Service/zone.Stub call so a
// transport constructor never has to hand-roll wire-level dispatch
// against the core itself.
type ServiceHandler struct {
	svc  *zone.Service
	peer zone.Zone
}

// NewServiceHandler builds a handler that attributes every inbound
// request arriving over the connection it is bound to as coming from
// peer.
func NewServiceHandler(svc *zone.Service, peer zone.Zone) *ServiceHandler {
	return &ServiceHandler{svc: svc, peer: peer}
}

// Handle implements InboundHandler.
func (h *ServiceHandler) Handle(ctx context.Context, kind requestKind, msg *wireMessage) (*wireMessage, error) {
	switch kind {
	case kindApplication:
		return h.handleApplication(ctx, msg)
	case kindPost:
		h.handlePost(msg)
		return &wireMessage{Kind: kind}, nil
	case kindTryCast:
		return h.handleTryCast(msg)
	case kindAddRef:
		return h.handleAddRef(msg)
	case kindRelease:
		return h.handleRelease(msg)
	default:
		return nil, zone.NewError(zone.StubDeserialisationError, "unrecognised wire request kind %d", kind)
	}
}

func (h *ServiceHandler) handleApplication(ctx context.Context, msg *wireMessage) (*wireMessage, error) {
	object, ordinal, method, input, err := zone.DecodeApplicationRequest(msg.Data)
	if err != nil {
		return nil, zone.WrapError(zone.StubDeserialisationError, err, "decoding application request")
	}
	out, err := h.svc.DispatchInbound(ctx, zone.CallerZone(h.peer), zone.DestinationZone(h.svc.ZoneID), object, ordinal, method, input)
	if err != nil {
		return nil, err
	}
	return &wireMessage{Kind: kindApplication, Data: encodeResponsePayload(out)}, nil
}

// handlePost logs a zone_terminating notification; this package carries
// no exported Service API for looking a peer's ServiceProxy up by zone
// name, so a received zone_terminating is observed here only as a log
// line, not yet plumbed through to the matching ServiceProxy.
func (h *ServiceHandler) handlePost(msg *wireMessage) {
	h.svc.Logger.ILogf("zone %s received a post from %s: %q", h.svc.ZoneID, h.peer, msg.Data)
}

func (h *ServiceHandler) handleTryCast(msg *wireMessage) (*wireMessage, error) {
	stub, err := h.svc.LookupStub(msg.Object)
	if err != nil {
		return nil, err
	}
	resolved, err := stub.TryCast(context.Background(), msg.Ordinal)
	if err != nil {
		return nil, err
	}
	return &wireMessage{Kind: kindTryCast, Ordinal: resolved}, nil
}

// handleAddRef and handleRelease track the shared axis: per
// AddRefOption's Plain doc comment, a wire add_ref/release is "a simple
// bump/decrement of the peer stub's shared count" -- the optimistic axis
// is a PassThrough-local bookkeeping concept, not something a direct
// stub/proxy pair negotiates over the wire.
func (h *ServiceHandler) handleAddRef(msg *wireMessage) (*wireMessage, error) {
	stub, err := h.svc.LookupStub(msg.Object)
	if err != nil {
		return nil, err
	}
	return &wireMessage{Kind: kindAddRef, Count: stub.AddShared(msg.Caller)}, nil
}

func (h *ServiceHandler) handleRelease(msg *wireMessage) (*wireMessage, error) {
	stub, err := h.svc.LookupStub(msg.Object)
	if err != nil {
		return nil, err
	}
	return &wireMessage{Kind: kindRelease, Count: stub.ReleaseShared(msg.Caller)}, nil
}

// encodeResponsePayload matches zone's own EnvelopePayload wire format
// (an 8-byte little-endian fingerprint, always zero for a plain
// application response, followed by data), since ObjectProxy.Invoke
// decodes a Send response the same way it decodes any other envelope
// payload.
func encodeResponsePayload(data []byte) []byte {
	buf := make([]byte, 8+len(data))
	copy(buf[8:], data)
	return buf
}
