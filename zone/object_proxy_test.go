package zone

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestObjectProxy(t *testing.T, transport Transport) *ObjectProxy {
	sp := newServiceProxy(Zone(1), DestinationZone(2), transport, newTestLogger(t))
	op := newObjectProxy(sp, DestinationZone(2), Object(5), newTestLogger(t))
	return op
}

func TestObjectProxyQueryInterfaceCachesPositiveResult(t *testing.T) {
	ft := newFakeTransport()
	calls := 0
	ft.TryCastFunc = func(ctx context.Context, txn TransactionID, object Object, ordinal InterfaceOrdinal) (InterfaceOrdinal, error) {
		calls++
		return ordinal, nil
	}
	op := newTestObjectProxy(t, ft)

	_, err := op.QueryInterface(context.Background(), InterfaceOrdinal(1))
	require.NoError(t, err)
	_, err = op.QueryInterface(context.Background(), InterfaceOrdinal(1))
	require.NoError(t, err)
	require.Equal(t, 1, calls, "second QueryInterface should have hit the cache")
}

func TestObjectProxyInvokeRoundTripsThroughTransport(t *testing.T) {
	ft := newFakeTransport()
	ft.SendFunc = func(ctx context.Context, encoding EncodingTag, txn TransactionID, input []byte) ([]byte, error) {
		object, ordinal, method, reqInput, err := DecodeApplicationRequest(input)
		require.NoError(t, err)
		require.Equal(t, Object(5), object)
		require.Equal(t, InterfaceOrdinal(1), ordinal)
		require.Equal(t, Method(2), method)
		wire, _ := encodeEnvelopePayload(&EnvelopePayload{Data: append([]byte("echo:"), reqInput...)})
		return wire, nil
	}
	op := newTestObjectProxy(t, ft)

	out, err := op.Invoke(context.Background(), InterfaceOrdinal(1), Method(2), []byte("hi"))
	require.NoError(t, err)
	require.Equal(t, "echo:hi", string(out))
}

func TestObjectProxyInvalidatedAfterTransportDown(t *testing.T) {
	ft := newFakeTransport()
	op := newTestObjectProxy(t, ft)
	op.invalidate()

	_, err := op.Invoke(context.Background(), InterfaceOrdinal(1), Method(1), nil)
	require.Error(t, err)
	require.Equal(t, TransportDown, CodeOf(err))

	_, err = op.QueryInterface(context.Background(), InterfaceOrdinal(99))
	require.Error(t, err)
}

func TestObjectProxyReleaseTearsDownAtZeroLocalRefs(t *testing.T) {
	ft := newFakeTransport()
	op := newTestObjectProxy(t, ft)
	op.AddLocalRef() // localRefs now 2

	op.Release(context.Background(), Plain)
	select {
	case <-op.DoneChan():
		t.Fatal("object proxy tore down before its last local ref was released")
	case <-time.After(20 * time.Millisecond):
	}

	op.Release(context.Background(), Plain)
	select {
	case <-op.DoneChan():
	case <-time.After(time.Second):
		t.Fatal("object proxy did not tear down after its last local ref was released")
	}
	require.Len(t, ft.releaseCalls, 1)
}
