package zonetransport

import (
	"errors"
	"net"
	"time"

	"golang.org/x/crypto/ssh"
)

// sshAddr is a placeholder net.Addr for endpoints that have no
// meaningful address of their own, such as an SSH channel multiplexed
// inside an already-addressed WebSocket connection.
type sshAddr string

func (a sshAddr) Network() string { return "ssh-channel" }
func (a sshAddr) String() string  { return string(a) }

// sshChannelConn wraps an ssh.Channel to satisfy net.Conn, so a
// zonerpc channel opened inside one multiplexed SSH connection can
// feed a streamTransport exactly like a raw TCP or socketpair
// connection does.
type sshChannelConn struct {
	ch   ssh.Channel
	addr sshAddr
}

// newSSHChannelConn wraps ch, grounded on the teacher's SSHConn
// wrapper turning an ssh.Channel into a ChannelConn.
func newSSHChannelConn(ch ssh.Channel, addr string) net.Conn {
	return &sshChannelConn{ch: ch, addr: sshAddr(addr)}
}

func (c *sshChannelConn) Read(p []byte) (int, error)  { return c.ch.Read(p) }
func (c *sshChannelConn) Write(p []byte) (int, error) { return c.ch.Write(p) }

// Close shuts down both directions of the channel. CloseWrite is used
// by the caller when only a half-close is needed.
func (c *sshChannelConn) Close() error { return c.ch.Close() }

func (c *sshChannelConn) CloseWrite() error { return c.ch.CloseWrite() }

func (c *sshChannelConn) LocalAddr() net.Addr  { return c.addr }
func (c *sshChannelConn) RemoteAddr() net.Addr { return c.addr }

// SetDeadline and its halves are not meaningful for an ssh.Channel;
// streamTransport never calls them, so report unsupported rather than
// silently ignoring.
func (c *sshChannelConn) SetDeadline(t time.Time) error  { return errors.New("zonetransport: ssh channel has no deadline support") }
func (c *sshChannelConn) SetReadDeadline(t time.Time) error { return c.SetDeadline(t) }
func (c *sshChannelConn) SetWriteDeadline(t time.Time) error { return c.SetDeadline(t) }
