package zonetransport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sammck-go/zonerpc/zone"
)

func newTestLogger(t *testing.T) zone.Logger {
	t.Helper()
	return zone.NewLogger("test", zone.LogLevelTrace)
}

type noopUpcalls struct {
	downErr chan error
}

func newNoopUpcalls() *noopUpcalls {
	return &noopUpcalls{downErr: make(chan error, 1)}
}

func (u *noopUpcalls) OnObjectReleased(object zone.Object) {}

func (u *noopUpcalls) OnZoneTerminating(peerZone zone.Zone) {}

func (u *noopUpcalls) OnTransportDown(err error) {
	select {
	case u.downErr <- err:
	default:
	}
}

func echoHandler(ctx context.Context, kind requestKind, msg *wireMessage) (*wireMessage, error) {
	switch kind {
	case kindApplication:
		return &wireMessage{Kind: kind, Data: append([]byte("echo:"), msg.Data...)}, nil
	case kindTryCast:
		return &wireMessage{Kind: kind, Ordinal: msg.Ordinal}, nil
	case kindAddRef:
		return &wireMessage{Kind: kind, Count: 1}, nil
	case kindRelease:
		return &wireMessage{Kind: kind, Count: 0}, nil
	default:
		return &wireMessage{Kind: kind}, nil
	}
}

func TestLocalPairSendRoundTrip(t *testing.T) {
	logger := newTestLogger(t)
	parent, child, err := ConnectLocalPair(context.Background(), echoHandler, echoHandler, newNoopUpcalls(), newNoopUpcalls(), logger)
	require.NoError(t, err)
	defer parent.Close()
	defer child.Close()

	out, err := parent.Send(context.Background(), zone.EncodingYasBinary, 0, []byte("hi"))
	require.NoError(t, err)
	require.Equal(t, "echo:hi", string(out))
}

func TestLocalPairTryCastAddRefRelease(t *testing.T) {
	logger := newTestLogger(t)
	parent, child, err := ConnectLocalPair(context.Background(), echoHandler, echoHandler, newNoopUpcalls(), newNoopUpcalls(), logger)
	require.NoError(t, err)
	defer parent.Close()
	defer child.Close()

	ordinal, err := parent.TryCast(context.Background(), 0, zone.Object(1), zone.InterfaceOrdinal(3))
	require.NoError(t, err)
	require.Equal(t, zone.InterfaceOrdinal(3), ordinal)

	count, err := parent.AddRef(context.Background(), 0, zone.Object(1), zone.CallerZone(2), zone.Plain, zone.KnownDirectionZone(0))
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)

	count, err = parent.Release(context.Background(), 0, zone.Object(1), zone.CallerZone(2), zone.Plain)
	require.NoError(t, err)
	require.Equal(t, uint64(0), count)
}

func TestLocalPairCloseNotifiesPeerTransportDown(t *testing.T) {
	logger := newTestLogger(t)
	parentUp, childUp := newNoopUpcalls(), newNoopUpcalls()
	parent, child, err := ConnectLocalPair(context.Background(), echoHandler, echoHandler, parentUp, childUp, logger)
	require.NoError(t, err)
	defer child.Close()

	require.NoError(t, parent.Close())

	select {
	case <-childUp.downErr:
	case <-time.After(time.Second):
		t.Fatal("child transport was not notified after parent closed")
	}
	require.Equal(t, zone.TransportDisconnected, child.Status())
}
