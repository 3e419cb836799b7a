// Package zonetransport implements the concrete Transport
// implementations consumed by the zone package's core: an in-process
// pair sharing a real OS socketpair (local.go), a length-framed TCP
// transport (tcp.go), and an SSH-over-WebSocket networked transport
// adapted from the teacher's chisel session machinery
// (websocket.go/ssh_session.go/ssh_conn.go).
//
// Every one of these is built on streamTransport, which multiplexes the
// zone package's request/response, post, try_cast, add_ref and release
// operations over one ordered byte stream using the core's own
// Envelope framing (zone.Envelope already self-frames via its
// payload_size field, so no extra length prefix is needed).
package zonetransport

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/sammck-go/zonerpc/zone"
)

// InboundHandler is how a streamTransport delivers every inbound
// request, of any requestKind, to whatever owns it -- ordinarily a
// ServiceHandler's Handle, bound to the caller zone this transport's
// connection represents.
type InboundHandler func(ctx context.Context, method requestKind, msg *wireMessage) (*wireMessage, error)

// requestKind distinguishes the five operations streamTransport
// multiplexes over a single connection.
type requestKind uint8

const (
	kindApplication requestKind = iota
	kindPost
	kindTryCast
	kindAddRef
	kindRelease
)

// wireMessage is streamTransport's own internal envelope for whatever
// goes inside a zone.Envelope's payload; it is deliberately not part of
// the zone package itself; since the core only sees payloads as opaque
// bytes, how a concrete transport multiplexes operations is entirely
// its own affair.
type wireMessage struct {
	Kind           requestKind
	Object         zone.Object
	Caller         zone.CallerZone
	Ordinal        zone.InterfaceOrdinal
	Opts           zone.AddRefOption
	KnownDirection zone.KnownDirectionZone
	Count          uint64
	ErrorCode      zone.ErrorCode
	ErrorMessage   string
	Data           []byte
}

func (m *wireMessage) asError() error {
	if m.ErrorCode == zone.OK {
		return nil
	}
	return zone.NewError(m.ErrorCode, "%s", m.ErrorMessage)
}

// streamTransport implements zone.Transport over any net.Conn by
// running a single reader goroutine that demultiplexes inbound frames
// by sequence number to whichever goroutine is waiting in roundTrip,
// and hands inbound requests to handler.
type streamTransport struct {
	conn    net.Conn
	logger  zone.Logger
	handler InboundHandler
	upcalls zone.TransportUpcalls

	writeMu sync.Mutex

	status int32 // zone.TransportStatus, accessed atomically

	nextSeq uint64 // accessed atomically

	pendingMu sync.Mutex
	pending   map[uint64]chan *zone.Envelope

	closeOnce sync.Once
	doneChan  chan struct{}
}

func newStreamTransport(conn net.Conn, handler InboundHandler, upcalls zone.TransportUpcalls, logger zone.Logger) *streamTransport {
	return &streamTransport{
		conn:     conn,
		logger:   logger,
		handler:  handler,
		upcalls:  upcalls,
		status:   int32(zone.TransportConnecting),
		pending:  make(map[uint64]chan *zone.Envelope),
		doneChan: make(chan struct{}),
	}
}

// Connect starts the reader loop and reports CONNECTED; the underlying
// conn is assumed already dialed or accepted by the caller (local.go
// and tcp.go's listener both hand streamTransport an already-live
// net.Conn).
func (t *streamTransport) Connect(ctx context.Context) error {
	atomic.StoreInt32(&t.status, int32(zone.TransportConnected))
	go t.readLoop()
	return nil
}

func (t *streamTransport) Status() zone.TransportStatus {
	return zone.TransportStatus(atomic.LoadInt32(&t.status))
}

func (t *streamTransport) setDown(err error) {
	atomic.StoreInt32(&t.status, int32(zone.TransportDisconnected))
	if t.upcalls != nil {
		t.upcalls.OnTransportDown(err)
	}
}

func (t *streamTransport) readLoop() {
	defer close(t.doneChan)
	for {
		header := make([]byte, zone.EnvelopeHeaderSize)
		if _, err := io.ReadFull(t.conn, header); err != nil {
			t.setDown(err)
			return
		}
		payloadSize := int(binary.LittleEndian.Uint32(header[12:16]))
		full := make([]byte, zone.EnvelopeHeaderSize+payloadSize)
		copy(full, header)
		if payloadSize > 0 {
			if _, err := io.ReadFull(t.conn, full[zone.EnvelopeHeaderSize:]); err != nil {
				t.setDown(err)
				return
			}
		}
		env, err := zone.UnmarshalEnvelope(full)
		if err != nil {
			t.logger.WLogf("dropping malformed envelope: %s", err)
			continue
		}
		t.dispatch(env)
	}
}

func (t *streamTransport) dispatch(env *zone.Envelope) {
	switch env.Direction {
	case zone.DirectionSendResponse:
		t.pendingMu.Lock()
		ch, ok := t.pending[env.Sequence]
		if ok {
			delete(t.pending, env.Sequence)
		}
		t.pendingMu.Unlock()
		if ok {
			ch <- env
		}
	case zone.DirectionSendRequest:
		go t.handleRequest(env)
	case zone.DirectionPost:
		go t.handlePost(env)
	case zone.DirectionClose:
		t.setDown(zone.NewError(zone.TransportDown, "peer sent close"))
	}
}

func decodeWireMessage(data []byte) (*wireMessage, error) {
	var m wireMessage
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

func encodeWireMessage(m *wireMessage) []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(m)
	return buf.Bytes()
}

func (t *streamTransport) handleRequest(env *zone.Envelope) {
	msg, err := decodeWireMessage(env.Payload)
	if err != nil {
		t.logger.WLogf("malformed request: %s", err)
		return
	}
	ctx := context.Background()
	resp, err := t.handler(ctx, msg.Kind, msg)
	if resp == nil {
		resp = &wireMessage{Kind: msg.Kind}
	}
	if err != nil {
		resp.ErrorCode = zone.CodeOf(err)
		resp.ErrorMessage = err.Error()
	}
	t.writeEnvelope(zone.NewEnvelope(zone.DirectionSendResponse, env.Sequence, encodeWireMessage(resp)))
}

func (t *streamTransport) handlePost(env *zone.Envelope) {
	msg, err := decodeWireMessage(env.Payload)
	if err != nil {
		t.logger.WLogf("malformed post: %s", err)
		return
	}
	if _, err := t.handler(context.Background(), msg.Kind, msg); err != nil {
		t.logger.WLogf("post handler failed: %s", err)
	}
}

func (t *streamTransport) writeEnvelope(env *zone.Envelope) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, err := t.conn.Write(env.Marshal())
	return err
}

// roundTrip sends msg as a SendRequest and blocks for the matching
// SendResponse, or for ctx to be done.
func (t *streamTransport) roundTrip(ctx context.Context, msg *wireMessage) (*wireMessage, error) {
	if t.Status() != zone.TransportConnected {
		return nil, zone.NewError(zone.TransportDown, "transport is not connected")
	}
	seq := atomic.AddUint64(&t.nextSeq, 1)
	ch := make(chan *zone.Envelope, 1)
	t.pendingMu.Lock()
	t.pending[seq] = ch
	t.pendingMu.Unlock()

	if err := t.writeEnvelope(zone.NewEnvelope(zone.DirectionSendRequest, seq, encodeWireMessage(msg))); err != nil {
		t.pendingMu.Lock()
		delete(t.pending, seq)
		t.pendingMu.Unlock()
		t.setDown(err)
		return nil, zone.WrapError(zone.TransportDown, err, "writing request")
	}

	select {
	case env := <-ch:
		resp, err := decodeWireMessage(env.Payload)
		if err != nil {
			return nil, zone.WrapError(zone.StubDeserialisationError, err, "decoding response")
		}
		return resp, resp.asError()
	case <-ctx.Done():
		t.pendingMu.Lock()
		delete(t.pending, seq)
		t.pendingMu.Unlock()
		return nil, zone.NewError(zone.Cancelled, "request cancelled")
	}
}

func (t *streamTransport) Send(ctx context.Context, encoding zone.EncodingTag, txn zone.TransactionID, input []byte) ([]byte, error) {
	resp, err := t.roundTrip(ctx, &wireMessage{Kind: kindApplication, Data: input})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (t *streamTransport) Post(ctx context.Context, encoding zone.EncodingTag, input []byte) error {
	if t.Status() != zone.TransportConnected {
		return zone.NewError(zone.TransportDown, "transport is not connected")
	}
	return t.writeEnvelope(zone.NewEnvelope(zone.DirectionPost, 0, encodeWireMessage(&wireMessage{Kind: kindPost, Data: input})))
}

func (t *streamTransport) TryCast(ctx context.Context, txn zone.TransactionID, object zone.Object, ordinal zone.InterfaceOrdinal) (zone.InterfaceOrdinal, error) {
	resp, err := t.roundTrip(ctx, &wireMessage{Kind: kindTryCast, Object: object, Ordinal: ordinal})
	if err != nil {
		return 0, err
	}
	return resp.Ordinal, nil
}

func (t *streamTransport) AddRef(ctx context.Context, txn zone.TransactionID, object zone.Object, caller zone.CallerZone, opts zone.AddRefOption, knownDirection zone.KnownDirectionZone) (uint64, error) {
	resp, err := t.roundTrip(ctx, &wireMessage{Kind: kindAddRef, Object: object, Caller: caller, Opts: opts, KnownDirection: knownDirection})
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (t *streamTransport) Release(ctx context.Context, txn zone.TransactionID, object zone.Object, caller zone.CallerZone, opts zone.AddRefOption) (uint64, error) {
	resp, err := t.roundTrip(ctx, &wireMessage{Kind: kindRelease, Object: object, Caller: caller, Opts: opts})
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (t *streamTransport) Close() error {
	t.closeOnce.Do(func() {
		t.writeEnvelope(zone.NewEnvelope(zone.DirectionClose, 0, nil))
		atomic.StoreInt32(&t.status, int32(zone.TransportDisconnected))
		t.conn.Close()
	})
	return nil
}
