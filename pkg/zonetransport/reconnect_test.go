package zonetransport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sammck-go/zonerpc/zone"
)

func TestReconnectorSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	dial := func(ctx context.Context) (zone.Transport, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("dial failed")
		}
		return newFakeTransportStub(), nil
	}
	r := NewReconnector(dial, ReconnectPolicy{MaxRetryInterval: 10 * time.Millisecond, MaxRetryCount: -1}, newTestLogger(t))

	var reconnectingCalls int
	tr, err := r.Run(context.Background(), func(attempt int, delay time.Duration) {
		reconnectingCalls++
	})
	require.NoError(t, err)
	require.NotNil(t, tr)
	require.Equal(t, 3, attempts)
	require.Equal(t, 2, reconnectingCalls)
}

func TestReconnectorGivesUpAfterMaxRetryCount(t *testing.T) {
	dial := func(ctx context.Context) (zone.Transport, error) {
		return nil, errors.New("always fails")
	}
	r := NewReconnector(dial, ReconnectPolicy{MaxRetryInterval: 5 * time.Millisecond, MaxRetryCount: 2}, newTestLogger(t))

	_, err := r.Run(context.Background(), nil)
	require.Error(t, err)
	require.Equal(t, zone.TransportDown, zone.CodeOf(err))
}

func TestReconnectorHonorsContextCancellation(t *testing.T) {
	dial := func(ctx context.Context) (zone.Transport, error) {
		return nil, errors.New("always fails")
	}
	r := NewReconnector(dial, ReconnectPolicy{MaxRetryInterval: time.Second, MaxRetryCount: -1}, newTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Run(ctx, nil)
	require.Error(t, err)
	require.Equal(t, zone.Cancelled, zone.CodeOf(err))
}

// newFakeTransportStub returns a minimal zone.Transport for reconnector
// tests that only care whether Run returned a non-nil transport.
func newFakeTransportStub() zone.Transport {
	return &stubTransport{}
}

type stubTransport struct{}

func (s *stubTransport) Connect(ctx context.Context) error { return nil }
func (s *stubTransport) Status() zone.TransportStatus       { return zone.TransportConnected }
func (s *stubTransport) Send(ctx context.Context, encoding zone.EncodingTag, txn zone.TransactionID, input []byte) ([]byte, error) {
	return nil, nil
}
func (s *stubTransport) Post(ctx context.Context, encoding zone.EncodingTag, input []byte) error {
	return nil
}
func (s *stubTransport) TryCast(ctx context.Context, txn zone.TransactionID, object zone.Object, ordinal zone.InterfaceOrdinal) (zone.InterfaceOrdinal, error) {
	return 0, nil
}
func (s *stubTransport) AddRef(ctx context.Context, txn zone.TransactionID, object zone.Object, caller zone.CallerZone, opts zone.AddRefOption, knownDirection zone.KnownDirectionZone) (uint64, error) {
	return 0, nil
}
func (s *stubTransport) Release(ctx context.Context, txn zone.TransactionID, object zone.Object, caller zone.CallerZone, opts zone.AddRefOption) (uint64, error) {
	return 0, nil
}
func (s *stubTransport) Close() error { return nil }
