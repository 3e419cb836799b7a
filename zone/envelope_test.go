package zone

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvelopeMarshalRoundTrip(t *testing.T) {
	env := NewEnvelope(DirectionSendRequest, 42, []byte("hello"))
	wire := env.Marshal()
	require.Len(t, wire, EnvelopeHeaderSize+5)

	got, err := UnmarshalEnvelope(wire)
	require.NoError(t, err)
	require.Equal(t, EnvelopeVersion, got.Version)
	require.Equal(t, DirectionSendRequest, got.Direction)
	require.Equal(t, uint64(42), got.Sequence)
	require.Equal(t, []byte("hello"), got.Payload)
}

func TestUnmarshalEnvelopeRejectsTruncatedHeader(t *testing.T) {
	_, err := UnmarshalEnvelope([]byte{1, 2, 3})
	require.Error(t, err)
	require.Equal(t, ProxyDeserialisationError, CodeOf(err))
}

func TestUnmarshalEnvelopeRejectsWrongVersion(t *testing.T) {
	env := NewEnvelope(DirectionPost, 0, nil)
	wire := env.Marshal()
	wire[0] = EnvelopeVersion + 1
	_, err := UnmarshalEnvelope(wire)
	require.Error(t, err)
}

func TestUnmarshalEnvelopeRejectsSizeMismatch(t *testing.T) {
	env := NewEnvelope(DirectionPost, 0, []byte("abc"))
	wire := env.Marshal()
	truncated := wire[:len(wire)-1]
	_, err := UnmarshalEnvelope(truncated)
	require.Error(t, err)
}

func TestEncodeDecodeApplicationRequestRoundTrip(t *testing.T) {
	wire := EncodeApplicationRequest(Object(7), InterfaceOrdinal(3), Method(9), []byte("payload"))
	object, ordinal, method, input, err := DecodeApplicationRequest(wire)
	require.NoError(t, err)
	require.Equal(t, Object(7), object)
	require.Equal(t, InterfaceOrdinal(3), ordinal)
	require.Equal(t, Method(9), method)
	require.Equal(t, []byte("payload"), input)
}

func TestDecodeApplicationRequestRejectsShortPayload(t *testing.T) {
	_, _, _, _, err := DecodeApplicationRequest([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestDirectionAndEncodingTagStrings(t *testing.T) {
	require.Equal(t, "send_req", DirectionSendRequest.String())
	require.Equal(t, "yas_binary", EncodingYasBinary.String())
	require.Contains(t, Direction(99).String(), "direction")
}
