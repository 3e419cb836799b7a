package zone

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, name string, zoneID Zone) *Service {
	return NewService(name, zoneID, NewScheduler(context.Background(), 8, newTestLogger(t)), newTestLogger(t))
}

func TestServiceGenerateNewObjectIDIsMonotonicAndNeverNone(t *testing.T) {
	svc := newTestService(t, "a", Zone(1))
	first := svc.GenerateNewObjectID()
	second := svc.GenerateNewObjectID()
	require.False(t, first.IsNone())
	require.NotEqual(t, first, second)
}

func TestServiceRegisterStubRejectsDuplicate(t *testing.T) {
	svc := newTestService(t, "a", Zone(1))
	id := svc.GenerateNewObjectID()
	_, err := svc.RegisterStub(id, newEchoObject())
	require.NoError(t, err)

	_, err = svc.RegisterStub(id, newEchoObject())
	require.Error(t, err)
	require.Equal(t, DuplicateObject, CodeOf(err))
}

func TestServiceLookupStubNotFound(t *testing.T) {
	svc := newTestService(t, "a", Zone(1))
	_, err := svc.LookupStub(Object(999))
	require.Error(t, err)
	require.Equal(t, ObjectNotFound, CodeOf(err))
}

func TestServiceDispatchInboundLocalDelivery(t *testing.T) {
	svc := newTestService(t, "a", Zone(1))
	id := svc.GenerateNewObjectID()
	_, err := svc.RegisterStub(id, newEchoObject())
	require.NoError(t, err)

	out, err := svc.DispatchInbound(context.Background(), CallerZone(2), DestinationZone(1), id, InterfaceOrdinal(1), Method(1), []byte("ping"))
	require.NoError(t, err)
	require.Equal(t, "ping", string(out))
}

func TestServiceDispatchInboundNoRoute(t *testing.T) {
	svc := newTestService(t, "a", Zone(1))
	_, err := svc.DispatchInbound(context.Background(), CallerZone(2), DestinationZone(9), Object(1), InterfaceOrdinal(1), Method(1), nil)
	require.Error(t, err)
	require.Equal(t, NoRoute, CodeOf(err))
}

func TestServiceDispatchInboundViaServiceProxy(t *testing.T) {
	svc := newTestService(t, "a", Zone(1))
	ft := newFakeTransport()
	ft.SendFunc = func(ctx context.Context, encoding EncodingTag, txn TransactionID, input []byte) ([]byte, error) {
		_, _, _, reqInput, err := DecodeApplicationRequest(input)
		require.NoError(t, err)
		wire, _ := encodeEnvelopePayload(&EnvelopePayload{Data: append([]byte("remote:"), reqInput...)})
		return wire, nil
	}
	proxy, err := svc.ConnectToZone(context.Background(), Zone(2), ft)
	require.NoError(t, err)
	require.True(t, proxy.IsOperational())

	out, err := svc.DispatchInbound(context.Background(), CallerZone(1), DestinationZone(2), Object(5), InterfaceOrdinal(1), Method(1), []byte("hi"))
	require.NoError(t, err)
	require.Equal(t, "remote:hi", string(out))
}

func TestServiceDispatchInboundViaPassThrough(t *testing.T) {
	svc := newTestService(t, "b", Zone(2))
	forward, reverse := newFakeTransport(), newFakeTransport()
	forward.SendFunc = func(ctx context.Context, encoding EncodingTag, txn TransactionID, input []byte) ([]byte, error) {
		return []byte("forwarded"), nil
	}

	_, err := svc.RelayAddRef(context.Background(), 1, 3, SharedRef, forward, reverse)
	require.NoError(t, err)

	out, err := svc.DispatchInbound(context.Background(), CallerZone(1), DestinationZone(3), Object(5), InterfaceOrdinal(1), Method(1), []byte("hi"))
	require.NoError(t, err)
	require.Equal(t, "forwarded", string(out))
}

func TestServiceRelayAddRefReusesExistingPassThrough(t *testing.T) {
	svc := newTestService(t, "b", Zone(2))
	forward, reverse := newFakeTransport(), newFakeTransport()

	pt1, err := svc.RelayAddRef(context.Background(), 1, 3, SharedRef, forward, reverse)
	require.NoError(t, err)
	pt2, err := svc.RelayAddRef(context.Background(), 3, 1, SharedRef, forward, reverse)
	require.NoError(t, err)
	require.Same(t, pt1, pt2, "relay add_ref for the same unordered pair must reuse one pass-through")
}

func TestServiceSetDirectionHintUsedWhenNoDirectProxy(t *testing.T) {
	svc := newTestService(t, "a", Zone(1))
	ft := newFakeTransport()
	ft.SendFunc = func(ctx context.Context, encoding EncodingTag, txn TransactionID, input []byte) ([]byte, error) {
		wire, _ := encodeEnvelopePayload(&EnvelopePayload{Data: []byte("hop-reply")})
		return wire, nil
	}
	_, err := svc.ConnectToZone(context.Background(), Zone(2), ft)
	require.NoError(t, err)
	svc.SetDirectionHint(Zone(9), KnownDirectionZone(2))

	out, err := svc.DispatchInbound(context.Background(), CallerZone(1), DestinationZone(9), Object(1), InterfaceOrdinal(1), Method(1), nil)
	require.NoError(t, err)
	require.Equal(t, "hop-reply", string(out))
}

func TestServiceBroadcastZoneTerminatingNotifiesPeersAndDisconnectsHierarchy(t *testing.T) {
	svc := newTestService(t, "a", Zone(1))
	ft := newFakeTransport()
	_, err := svc.ConnectToZone(context.Background(), Zone(2), ft)
	require.NoError(t, err)

	var childFired bool
	child := NewMemberRef[Transport](newFakeTransport(), func() { childFired = true })
	svc.SetHierarchy(&HierarchicalLink{Child: child})

	require.NoError(t, svc.BroadcastZoneTerminating(context.Background()))
	require.True(t, childFired, "BroadcastZoneTerminating should disconnect this zone's hierarchical link")
}
