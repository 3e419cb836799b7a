package zonetransport

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/crypto/ssh"

	"github.com/sammck-go/zonerpc/zone"
)

// zonerpcChannelType is the single SSH channel type a networked
// transport opens per connection; streamTransport's own wireMessage
// multiplexing happens inside that one channel, so unlike the
// teacher's per-forwarded-port channels, a zonerpc SSH connection only
// ever carries exactly one channel.
const zonerpcChannelType = "zonerpc"

// openZoneChannel is the client side: it opens the single zonerpc
// channel on an already-handshaked ssh.Conn and wraps it as a net.Conn.
func openZoneChannel(sshConn ssh.Conn) (net.Conn, error) {
	ch, reqs, err := sshConn.OpenChannel(zonerpcChannelType, nil)
	if err != nil {
		return nil, fmt.Errorf("zonetransport: opening %s channel: %w", zonerpcChannelType, err)
	}
	go ssh.DiscardRequests(reqs)
	return newSSHChannelConn(ch, sshConn.RemoteAddr().String()), nil
}

// acceptZoneChannel is the server side: it waits for the client's
// single zonerpc channel request, accepts it, and wraps it as a
// net.Conn. Any further channel request on the same connection is
// rejected, since one zonerpc connection carries exactly one channel.
func acceptZoneChannel(ctx context.Context, sshConn ssh.Conn, newChannels <-chan ssh.NewChannel, logger zone.Logger) (net.Conn, error) {
	for {
		select {
		case nc, ok := <-newChannels:
			if !ok {
				return nil, fmt.Errorf("zonetransport: ssh connection closed before zonerpc channel request")
			}
			if nc.ChannelType() != zonerpcChannelType {
				nc.Reject(ssh.UnknownChannelType, "only the zonerpc channel type is supported")
				continue
			}
			ch, reqs, err := nc.Accept()
			if err != nil {
				return nil, fmt.Errorf("zonetransport: accepting zonerpc channel: %w", err)
			}
			go ssh.DiscardRequests(reqs)
			go rejectFurtherChannels(newChannels, logger)
			return newSSHChannelConn(ch, sshConn.RemoteAddr().String()), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// rejectFurtherChannels politely rejects any channel request beyond
// the first, for the lifetime of the underlying SSH connection.
func rejectFurtherChannels(newChannels <-chan ssh.NewChannel, logger zone.Logger) {
	for nc := range newChannels {
		logger.WLogf("rejecting unexpected additional SSH channel %q", nc.ChannelType())
		nc.Reject(ssh.Prohibited, "zonerpc connections carry a single channel")
	}
}
