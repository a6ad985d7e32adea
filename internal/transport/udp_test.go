package transport

import (
	"net"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/stretchr/testify/require"
)

func ephemeralAddr(t *testing.T) *net.UDPAddr {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	addr := conn.LocalAddr().(*net.UDPAddr)
	require.NoError(t, conn.Close())
	return addr
}

func TestUDPTransportRoundTrip(t *testing.T) {
	loggerFactory := logging.NewDefaultLoggerFactory()

	senderAddr := ephemeralAddr(t)
	receiverAddr := ephemeralAddr(t)

	receiver, err := Dial(receiverAddr, senderAddr, loggerFactory)
	require.NoError(t, err)
	defer receiver.Close()

	sender, err := Dial(senderAddr, receiverAddr, loggerFactory)
	require.NoError(t, err)
	defer sender.Close()

	require.NoError(t, receiver.SetReadTimeout(2*time.Second))

	payload := []byte("hello")
	_, err = sender.Send(payload)
	require.NoError(t, err)

	buffer := make([]byte, 64)
	n, err := receiver.Receive(buffer)
	require.NoError(t, err)
	require.Equal(t, payload, buffer[:n])
}
