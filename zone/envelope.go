package zone

import (
	"encoding/binary"
	"fmt"
)

// encodeEnvelopePayload renders an EnvelopePayload as
// fingerprint(8 bytes, little-endian) followed by Data. This is the
// stdlib binary framing the envelope header itself always uses,
// independent of whichever EncodingTag a transport negotiates for its
// own control-message bodies.
func encodeEnvelopePayload(p *EnvelopePayload) ([]byte, error) {
	buf := make([]byte, 8+len(p.Data))
	binary.LittleEndian.PutUint64(buf[:8], p.PayloadFingerprint)
	copy(buf[8:], p.Data)
	return buf, nil
}

// decodeEnvelopePayload is encodeEnvelopePayload's inverse.
func decodeEnvelopePayload(buf []byte) (*EnvelopePayload, error) {
	if len(buf) < 8 {
		return nil, NewError(ProxyDeserialisationError, "envelope payload shorter than fingerprint (%d bytes)", len(buf))
	}
	fingerprint := binary.LittleEndian.Uint64(buf[:8])
	data := make([]byte, len(buf)-8)
	copy(data, buf[8:])
	return &EnvelopePayload{PayloadFingerprint: fingerprint, Data: data}, nil
}

// EncodeApplicationRequest packs the addressing a concrete Transport
// needs to route an inbound application call -- object, interface
// ordinal and method -- alongside the already-marshalled method input,
// into the bytes an ObjectProxy hands its Transport's Send/Post. The
// core's own EnvelopePayload only names {fingerprint, data} (§6); this
// is the application-level convention this module's transports agree
// on for what goes in that opaque data span.
func EncodeApplicationRequest(object Object, ordinal InterfaceOrdinal, method Method, input []byte) []byte {
	buf := make([]byte, 8+len(input))
	binary.LittleEndian.PutUint64(buf[:8], uint64(object))
	copy(buf[8:], input)
	payload := &EnvelopePayload{PayloadFingerprint: uint64(ordinal)<<32 | uint64(method), Data: buf}
	wire, _ := encodeEnvelopePayload(payload)
	return wire
}

// DecodeApplicationRequest is EncodeApplicationRequest's inverse; a
// Transport's inbound handler calls this after unwrapping the outer
// Envelope to recover the addressing needed for
// Service.DispatchInbound.
func DecodeApplicationRequest(wire []byte) (object Object, ordinal InterfaceOrdinal, method Method, input []byte, err error) {
	payload, err := decodeEnvelopePayload(wire)
	if err != nil {
		return 0, 0, 0, nil, err
	}
	if len(payload.Data) < 8 {
		return 0, 0, 0, nil, NewError(StubDeserialisationError, "application request shorter than object id (%d bytes)", len(payload.Data))
	}
	object = Object(binary.LittleEndian.Uint64(payload.Data[:8]))
	ordinal = InterfaceOrdinal(payload.PayloadFingerprint >> 32)
	method = Method(payload.PayloadFingerprint & 0xffffffff)
	input = payload.Data[8:]
	return object, ordinal, method, input, nil
}

// Direction is the envelope's top-level message kind.
type Direction uint8

const (
	DirectionSendRequest Direction = iota
	DirectionSendResponse
	DirectionPost
	DirectionClose
)

func (d Direction) String() string {
	switch d {
	case DirectionSendRequest:
		return "send_req"
	case DirectionSendResponse:
		return "send_resp"
	case DirectionPost:
		return "post"
	case DirectionClose:
		return "close"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// EncodingTag names the payload codec an envelope's payload was encoded
// with. The core stores and compares this tag but never decodes the
// bytes itself -- concrete codecs live in pkg/zonecodec and register
// against a tag.
type EncodingTag uint8

const (
	EncodingYasBinary EncodingTag = iota
	EncodingYasCompressedBinary
	EncodingYasJSON
	EncodingProtocolBuffers
)

func (e EncodingTag) String() string {
	switch e {
	case EncodingYasBinary:
		return "yas_binary"
	case EncodingYasCompressedBinary:
		return "yas_compressed_binary"
	case EncodingYasJSON:
		return "yas_json"
	case EncodingProtocolBuffers:
		return "protocol_buffers"
	default:
		return fmt.Sprintf("encoding(%d)", uint8(e))
	}
}

// EnvelopeHeaderSize is the fixed, bit-exact size in bytes of everything
// in an Envelope ahead of the variable-length payload.
const EnvelopeHeaderSize = 16

// EnvelopeVersion is the only wire version this module emits or accepts.
const EnvelopeVersion uint8 = 1

// Envelope is the bit-exact wire frame every Transport carries.
// Marshal/Unmarshal handle exactly the fixed header; the payload itself
// (an encoded EnvelopePayload) is opaque to this type and is the
// concern of pkg/zonecodec.
type Envelope struct {
	Version     uint8
	Direction   Direction
	Sequence    uint64
	PayloadSize uint32
	Payload     []byte
}

// EnvelopePayload is what an Envelope's Payload decodes to under the
// negotiated EncodingTag. For application requests,
// EncodeApplicationRequest packs the interface ordinal and method into
// PayloadFingerprint; no code compares it against an expected value.
// The core never interprets Data.
type EnvelopePayload struct {
	PayloadFingerprint uint64
	Data               []byte
}

// NewEnvelope builds an Envelope with EnvelopeVersion and the supplied
// direction/sequence, computing PayloadSize from payload.
func NewEnvelope(direction Direction, sequence uint64, payload []byte) *Envelope {
	return &Envelope{
		Version:     EnvelopeVersion,
		Direction:   direction,
		Sequence:    sequence,
		PayloadSize: uint32(len(payload)),
		Payload:     payload,
	}
}

// Marshal renders e as its bit-exact wire bytes: the fixed 16-byte
// header (version, direction, reserved, little-endian sequence,
// little-endian payload_size) followed by the payload.
func (e *Envelope) Marshal() []byte {
	buf := make([]byte, EnvelopeHeaderSize+len(e.Payload))
	buf[0] = e.Version
	buf[1] = uint8(e.Direction)
	// bytes[2:4] reserved, left zero.
	binary.LittleEndian.PutUint64(buf[4:12], e.Sequence)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(e.Payload)))
	copy(buf[EnvelopeHeaderSize:], e.Payload)
	return buf
}

// UnmarshalEnvelope parses the fixed header plus payload from buf. It
// returns a *zone.Error with code ProxyDeserialisationError on any
// framing violation -- truncated header, payload_size that disagrees
// with the bytes actually present, or a version this module doesn't
// speak.
func UnmarshalEnvelope(buf []byte) (*Envelope, error) {
	if len(buf) < EnvelopeHeaderSize {
		return nil, NewError(ProxyDeserialisationError, "envelope shorter than header (%d bytes)", len(buf))
	}
	version := buf[0]
	if version != EnvelopeVersion {
		return nil, NewError(ProxyDeserialisationError, "unsupported envelope version %d", version)
	}
	direction := Direction(buf[1])
	sequence := binary.LittleEndian.Uint64(buf[4:12])
	payloadSize := binary.LittleEndian.Uint32(buf[12:16])
	rest := buf[EnvelopeHeaderSize:]
	if uint32(len(rest)) != payloadSize {
		return nil, NewError(ProxyDeserialisationError, "payload_size %d does not match %d bytes present", payloadSize, len(rest))
	}
	payload := make([]byte, len(rest))
	copy(payload, rest)
	return &Envelope{
		Version:     version,
		Direction:   direction,
		Sequence:    sequence,
		PayloadSize: payloadSize,
		Payload:     payload,
	}, nil
}
