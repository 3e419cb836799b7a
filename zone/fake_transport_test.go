package zone

import (
	"context"
	"sync"
)

// fakeTransport is a minimal, entirely in-memory Transport double used
// across the zone package's own tests -- it never touches a real
// socket or goroutine loop, only records calls and returns whatever
// the test configured.
type fakeTransport struct {
	mu     sync.Mutex
	status TransportStatus

	SendFunc    func(ctx context.Context, encoding EncodingTag, txn TransactionID, input []byte) ([]byte, error)
	TryCastFunc func(ctx context.Context, txn TransactionID, object Object, ordinal InterfaceOrdinal) (InterfaceOrdinal, error)

	addRefCalls  []AddRefOption
	releaseCalls []AddRefOption
	closed       bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{status: TransportConnecting}
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.status = TransportConnected
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Status() TransportStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeTransport) Send(ctx context.Context, encoding EncodingTag, txn TransactionID, input []byte) ([]byte, error) {
	if f.SendFunc != nil {
		return f.SendFunc(ctx, encoding, txn, input)
	}
	return nil, nil
}

func (f *fakeTransport) Post(ctx context.Context, encoding EncodingTag, input []byte) error {
	return nil
}

func (f *fakeTransport) TryCast(ctx context.Context, txn TransactionID, object Object, ordinal InterfaceOrdinal) (InterfaceOrdinal, error) {
	if f.TryCastFunc != nil {
		return f.TryCastFunc(ctx, txn, object, ordinal)
	}
	return ordinal, nil
}

func (f *fakeTransport) AddRef(ctx context.Context, txn TransactionID, object Object, caller CallerZone, opts AddRefOption, knownDirection KnownDirectionZone) (uint64, error) {
	f.mu.Lock()
	f.addRefCalls = append(f.addRefCalls, opts)
	f.mu.Unlock()
	return 1, nil
}

func (f *fakeTransport) Release(ctx context.Context, txn TransactionID, object Object, caller CallerZone, opts AddRefOption) (uint64, error) {
	f.mu.Lock()
	f.releaseCalls = append(f.releaseCalls, opts)
	f.mu.Unlock()
	return 0, nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closed = true
	f.status = TransportDisconnected
	f.mu.Unlock()
	return nil
}

// testLogger builds a Logger writing to t.Log via a MinLogger adapter,
// so test output interleaves with go test's own reporting.
type testLogSink struct {
	t interface{ Log(args ...interface{}) }
}

func (s *testLogSink) Print(args ...interface{}) {
	s.t.Log(args...)
}

func newTestLogger(t interface{ Log(args ...interface{}) }) Logger {
	return NewLoggerWithSink("test", LogLevelTrace, &testLogSink{t: t}, false)
}
