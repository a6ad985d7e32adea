package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nimbus-stream/videolink/pkg/liveness"
	"github.com/pion/logging"
	"github.com/stretchr/testify/require"
)

// fakeReceiver replays a fixed list of datagrams, one per Receive call,
// then blocks until done is closed.
type fakeReceiver struct {
	mu       sync.Mutex
	datagram [][]byte
	index    int
	done     chan struct{}
}

func (f *fakeReceiver) Receive(buffer []byte) (int, error) {
	f.mu.Lock()
	if f.index < len(f.datagram) {
		n := copy(buffer, f.datagram[f.index])
		f.index++
		f.mu.Unlock()
		return n, nil
	}
	f.mu.Unlock()

	<-f.done
	return 0, context.Canceled
}

func TestDemuxerRoutesByMagic(t *testing.T) {
	ping := liveness.HealthcheckPacket{Kind: liveness.Ping, TimestampNanos: 42}.Encode()
	video := []byte{0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 1, 0, 0, 1, 'x'}

	receiver := &fakeReceiver{datagram: [][]byte{ping[:], video}, done: make(chan struct{})}
	defer close(receiver.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	demuxer := NewDemuxer(ctx, receiver, 1500, logging.NewDefaultLoggerFactory())

	livenessEndpoint := demuxer.NewEndpoint(liveness.IsHealthcheckPacket)
	videoEndpoint := demuxer.NewEndpoint(func([]byte) bool { return true })

	buf := make([]byte, 1500)

	n, err := livenessEndpoint.Receive(buf)
	require.NoError(t, err)
	decoded, err := liveness.Decode(buf[:n])
	require.NoError(t, err)
	require.Equal(t, liveness.Ping, decoded.Kind)
	require.Equal(t, uint64(42), decoded.TimestampNanos)

	n, err = videoEndpoint.Receive(buf)
	require.NoError(t, err)
	require.Equal(t, video, buf[:n])
}

func TestDemuxerDropsUnmatchedDatagram(t *testing.T) {
	receiver := &fakeReceiver{datagram: [][]byte{[]byte("no endpoint wants this")}, done: make(chan struct{})}
	defer close(receiver.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	demuxer := NewDemuxer(ctx, receiver, 1500, logging.NewDefaultLoggerFactory())
	endpoint := demuxer.NewEndpoint(liveness.IsHealthcheckPacket)
	defer endpoint.Close()

	buf := make([]byte, 1500)

	done := make(chan struct{})
	go func() {
		_, _ = endpoint.Receive(buf)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("endpoint unexpectedly received an unmatched datagram")
	case <-time.After(100 * time.Millisecond):
	}
}
