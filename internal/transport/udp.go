// Package transport adapts a connected UDP socket to the PacketSender/
// PacketReceiver capabilities the framing core consumes, and demultiplexes
// inbound datagrams between the video and liveness channels when they
// share one socket.
package transport

import (
	"net"
	"time"

	"github.com/pion/logging"
	"golang.org/x/net/ipv4"
)

// dscpExpeditedForwarding is DSCP class EF (RFC 3246), shifted into the
// top 6 bits of the IPv4 ToS byte. Low-latency interactive video traffic
// is marked this way so intermediate routers can prioritize it ahead of
// bulk traffic; it has no effect on loopback/local testing.
const dscpExpeditedForwarding = 0xB8

// PacketSender sends one datagram at a time on a connected transport.
type PacketSender interface {
	Send(packet []byte) (int, error)
}

// PacketReceiver receives one datagram at a time from a connected
// transport into a caller-supplied buffer.
type PacketReceiver interface {
	Receive(buffer []byte) (int, error)
}

// UDPTransport is a PacketSender/PacketReceiver backed by a connected
// *net.UDPConn, matching the original `UdpTransport::bind().connect()`
// adaptor: a single socket, no retransmission, no framing beyond one
// read/write per datagram.
type UDPTransport struct {
	conn  *net.UDPConn
	ipv4c *ipv4.PacketConn
	log   logging.LeveledLogger
}

// Dial binds localAddr and connects to remoteAddr, returning a transport
// ready for Send/Receive. Passing a nil localAddr lets the kernel choose
// an ephemeral port.
func Dial(localAddr, remoteAddr *net.UDPAddr, loggerFactory logging.LoggerFactory) (*UDPTransport, error) {
	conn, err := net.DialUDP("udp", localAddr, remoteAddr)
	if err != nil {
		return nil, err
	}

	ipv4c := ipv4.NewPacketConn(conn)
	if err := ipv4c.SetTOS(dscpExpeditedForwarding); err != nil {
		// Best-effort: not all platforms/sockets support ToS marking
		// (notably IPv6-mapped sockets); continue without it.
		loggerFactory.NewLogger("transport").Warnf("failed to set DSCP marking: %s", err)
	}

	return &UDPTransport{
		conn:  conn,
		ipv4c: ipv4c,
		log:   loggerFactory.NewLogger("transport"),
	}, nil
}

// Send implements PacketSender.
func (t *UDPTransport) Send(packet []byte) (int, error) {
	return t.conn.Write(packet)
}

// Receive implements PacketReceiver.
func (t *UDPTransport) Receive(buffer []byte) (int, error) {
	return t.conn.Read(buffer)
}

// SetReadTimeout sets a read deadline timeout from now; a zero or negative
// timeout clears it. The deadline is absolute: every Receive after it has
// passed fails with a timeout error until SetReadTimeout is called again,
// so a receive loop that treats the timeout as "no datagram yet" calls it
// before each Receive.
func (t *UDPTransport) SetReadTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return t.conn.SetReadDeadline(time.Time{})
	}
	return t.conn.SetReadDeadline(time.Now().Add(timeout))
}

// LocalAddr reports the socket's bound local address.
func (t *UDPTransport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// Close releases the underlying socket.
func (t *UDPTransport) Close() error {
	return t.conn.Close()
}
