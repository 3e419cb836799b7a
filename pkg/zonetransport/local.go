package zonetransport

import (
	"context"
	"fmt"

	"github.com/prep/socketpair"
	"github.com/sammck-go/zonerpc/zone"
)

// NewLocalPair builds two connected streamTransport instances sharing a
// real OS socketpair, for the §4.7 hierarchical pattern's in-process
// parent/child link: the parent zone's service treats one end as its
// child_transport, the child's as its parent_transport. A genuine
// socketpair (rather than net.Pipe) gives CloseWrite half-close
// semantics that match the networked transports, exactly as the
// teacher's loop endpoint uses socketpair.New to bridge caller and
// callee connections identically to its TCP/unix paths.
func NewLocalPair(parentHandler, childHandler InboundHandler, parentUpcalls, childUpcalls zone.TransportUpcalls, logger zone.Logger) (parent zone.Transport, child zone.Transport, err error) {
	parentConn, childConn, err := socketpair.New("unix")
	if err != nil {
		return nil, nil, fmt.Errorf("zonetransport: creating socketpair: %w", err)
	}

	parentT := newStreamTransport(parentConn, parentHandler, parentUpcalls, logger.Fork("local-parent"))
	childT := newStreamTransport(childConn, childHandler, childUpcalls, logger.Fork("local-child"))
	return parentT, childT, nil
}

// ConnectLocalPair is a convenience wrapper that also runs Connect on
// both ends.
func ConnectLocalPair(ctx context.Context, parentHandler, childHandler InboundHandler, parentUpcalls, childUpcalls zone.TransportUpcalls, logger zone.Logger) (parent zone.Transport, child zone.Transport, err error) {
	parent, child, err = NewLocalPair(parentHandler, childHandler, parentUpcalls, childUpcalls, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := parent.Connect(ctx); err != nil {
		return nil, nil, err
	}
	if err := child.Connect(ctx); err != nil {
		return nil, nil, err
	}
	return parent, child, nil
}
