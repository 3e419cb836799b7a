package zonetransport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sammck-go/zonerpc/zone"
)

type greeterObject struct{}

func (greeterObject) Facets() []*zone.InterfaceFacet {
	facet := zone.NewInterfaceFacet(zone.InterfaceOrdinal(1))
	facet.On(zone.Method(1), func(ctx context.Context, caller zone.CallerZone, input []byte) ([]byte, error) {
		return append([]byte("hello, "), input...), nil
	})
	return []*zone.InterfaceFacet{facet}
}

func newTestServiceForHandler(t *testing.T, name string, zoneID zone.Zone) *zone.Service {
	return zone.NewService(name, zoneID, zone.NewScheduler(context.Background(), 4, newTestLogger(t)), newTestLogger(t))
}

func TestServiceHandlerRoundTripsApplicationCall(t *testing.T) {
	serverZone, clientZone := zone.Zone(1), zone.Zone(2)
	server := newTestServiceForHandler(t, "server", serverZone)
	client := newTestServiceForHandler(t, "client", clientZone)

	objectID := server.GenerateNewObjectID()
	_, err := server.RegisterStub(objectID, greeterObject{})
	require.NoError(t, err)

	logger := newTestLogger(t)
	serverHandler := NewServiceHandler(server, clientZone)
	clientHandler := NewServiceHandler(client, serverZone)

	// Only the server end is connected here: ConnectToZone below runs
	// Connect on the client end, and a transport is connected only once.
	clientTransport, serverTransport, err := NewLocalPair(
		clientHandler.Handle, serverHandler.Handle,
		newNoopUpcalls(), newNoopUpcalls(),
		logger,
	)
	require.NoError(t, err)
	require.NoError(t, serverTransport.Connect(context.Background()))
	defer clientTransport.Close()
	defer serverTransport.Close()

	proxy, err := client.ConnectToZone(context.Background(), serverZone, clientTransport)
	require.NoError(t, err)

	op, err := proxy.ObjectProxyFor(context.Background(), objectID)
	require.NoError(t, err)

	out, err := op.Invoke(context.Background(), zone.InterfaceOrdinal(1), zone.Method(1), []byte("world"))
	require.NoError(t, err)
	require.Equal(t, "hello, world", string(out))
}

func TestServiceHandlerTryCastAndRefCountRoundTrip(t *testing.T) {
	serverZone, clientZone := zone.Zone(1), zone.Zone(2)
	server := newTestServiceForHandler(t, "server", serverZone)
	client := newTestServiceForHandler(t, "client", clientZone)

	objectID := server.GenerateNewObjectID()
	stub, err := server.RegisterStub(objectID, greeterObject{})
	require.NoError(t, err)

	logger := newTestLogger(t)
	serverHandler := NewServiceHandler(server, clientZone)
	clientHandler := NewServiceHandler(client, serverZone)

	// Only the server end is connected here: ConnectToZone below runs
	// Connect on the client end, and a transport is connected only once.
	clientTransport, serverTransport, err := NewLocalPair(
		clientHandler.Handle, serverHandler.Handle,
		newNoopUpcalls(), newNoopUpcalls(),
		logger,
	)
	require.NoError(t, err)
	require.NoError(t, serverTransport.Connect(context.Background()))
	defer clientTransport.Close()
	defer serverTransport.Close()

	proxy, err := client.ConnectToZone(context.Background(), serverZone, clientTransport)
	require.NoError(t, err)

	op, err := proxy.ObjectProxyFor(context.Background(), objectID)
	require.NoError(t, err)
	// ObjectProxyFor's first reference already issued one add_ref.
	require.Equal(t, uint64(1), stub.SharedCountFor(zone.CallerZone(clientZone)))

	resolved, err := op.QueryInterface(context.Background(), zone.InterfaceOrdinal(1))
	require.NoError(t, err)
	require.Equal(t, zone.InterfaceOrdinal(1), resolved)

	op.Release(context.Background(), zone.Plain)
	require.Eventually(t, func() bool {
		return stub.SharedCountFor(zone.CallerZone(clientZone)) == 0
	}, time.Second, 10*time.Millisecond)
}
