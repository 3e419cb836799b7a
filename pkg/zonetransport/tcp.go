package zonetransport

import (
	"context"
	"net"

	"github.com/sammck-go/zonerpc/zone"
)

// TCPTransport is a length-framed TCP transport carrying zone.Envelope
// frames, grounded on the teacher's tcp_stub_endpoint.go/
// tcp_skeleton_endpoint.go client/server pairing but simplified to a
// single multiplexed connection per peer zone rather than one
// connection per channel.
type TCPTransport struct {
	*streamTransport
}

// DialTCP connects to addr and returns a Transport ready for Connect.
func DialTCP(ctx context.Context, addr string, handler InboundHandler, upcalls zone.TransportUpcalls, logger zone.Logger) (*TCPTransport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, zone.WrapError(zone.TransportDown, err, "dialing %s", addr)
	}
	return &TCPTransport{streamTransport: newStreamTransport(conn, handler, upcalls, logger.Fork("tcp:"+addr))}, nil
}

// TCPListener accepts inbound TCP connections; Accept returns each one
// as a TCPTransport that still needs Bind and then Connect.
type TCPListener struct {
	ln     net.Listener
	logger zone.Logger
}

// ListenTCP starts listening on addr.
func ListenTCP(addr string, logger zone.Logger) (*TCPListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, zone.WrapError(zone.TransportDown, err, "listening on %s", addr)
	}
	return &TCPListener{ln: ln, logger: logger}, nil
}

// Addr returns the listener's bound address.
func (l *TCPListener) Addr() net.Addr { return l.ln.Addr() }

// Accept blocks for the next inbound connection and wraps it as a
// Transport with no handler or upcalls attached; the caller is
// responsible for calling Bind and then Connect on the result.
func (l *TCPListener) Accept() (*TCPTransport, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	return &TCPTransport{streamTransport: newStreamTransport(conn, nil, nil, l.logger.Fork("tcp-accepted:"+conn.RemoteAddr().String()))}, nil
}

// Close stops accepting new connections.
func (l *TCPListener) Close() error {
	return l.ln.Close()
}

// Bind attaches the handler and upcalls an accepted transport needs
// before Connect is called, since Accept itself doesn't yet know which
// zone the new connection will turn out to represent.
func (t *TCPTransport) Bind(handler InboundHandler, upcalls zone.TransportUpcalls) {
	t.handler = handler
	t.upcalls = upcalls
}
