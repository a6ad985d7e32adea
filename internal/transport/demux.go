package transport

import (
	"context"
	"sync"

	"github.com/pion/logging"
	"github.com/pion/transport/v4/packetio"
)

// MatchFunc reports whether a raw inbound datagram belongs to the stream
// an Endpoint was created for.
type MatchFunc func(buffer []byte) bool

// maxBufferSize bounds how much undelivered data an Endpoint may hold
// before its buffer starts returning errors on Write.
const maxBufferSize = 1000 * 1000

// Demuxer reads datagrams from a single PacketReceiver and routes each one
// to the first registered Endpoint whose MatchFunc accepts it, splitting a
// shared socket's traffic into the video stream and the liveness
// (ping/pong) stream.
type Demuxer struct {
	lock      sync.RWMutex
	receiver  PacketReceiver
	endpoints []*Endpoint
	bufSize   int
	closed    chan struct{}
	log       logging.LeveledLogger
}

// Endpoint is one demultiplexed stream. It implements PacketReceiver by
// reading from an internal bounded buffer that Demuxer's read loop fills.
type Endpoint struct {
	demuxer *Demuxer
	match   MatchFunc
	buffer  *packetio.Buffer
}

// NewDemuxer starts reading from receiver in the background and returns a
// Demuxer ready to hand out Endpoints. ctx cancellation stops the read
// loop once its pending Receive returns; the loop then closes every
// registered Endpoint, which unblocks any Endpoint reads.
func NewDemuxer(ctx context.Context, receiver PacketReceiver, bufSize int, loggerFactory logging.LoggerFactory) *Demuxer {
	d := &Demuxer{
		receiver: receiver,
		bufSize:  bufSize,
		closed:   make(chan struct{}),
		log:      loggerFactory.NewLogger("demux"),
	}

	go d.readLoop(ctx)

	return d
}

// NewEndpoint registers a new demultiplexed stream matched by match.
// Datagrams are delivered in registration order: the first Endpoint whose
// MatchFunc accepts a datagram receives it, so a catch-all matcher
// (func([]byte) bool { return true }) must be registered last.
func (d *Demuxer) NewEndpoint(match MatchFunc) *Endpoint {
	e := &Endpoint{demuxer: d, match: match, buffer: packetio.NewBuffer()}
	e.buffer.SetLimitSize(maxBufferSize)

	d.lock.Lock()
	d.endpoints = append(d.endpoints, e)
	d.lock.Unlock()

	return e
}

// RemoveEndpoint unregisters e; subsequent datagrams matching it go to
// the next registered Endpoint that accepts them, or are logged and
// dropped if none does.
func (d *Demuxer) RemoveEndpoint(e *Endpoint) {
	d.lock.Lock()
	defer d.lock.Unlock()
	for i, candidate := range d.endpoints {
		if candidate == e {
			d.endpoints = append(d.endpoints[:i], d.endpoints[i+1:]...)
			return
		}
	}
}

func (d *Demuxer) readLoop(ctx context.Context) {
	defer func() {
		d.lock.RLock()
		for _, e := range d.endpoints {
			_ = e.buffer.Close()
		}
		d.lock.RUnlock()
		close(d.closed)
	}()

	buffer := make([]byte, d.bufSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := d.receiver.Receive(buffer)
		if err != nil {
			d.log.Warnf("demux: receive failed: %s", err)
			continue
		}

		d.dispatch(buffer[:n])
	}
}

func (d *Demuxer) dispatch(buffer []byte) {
	var endpoint *Endpoint

	d.lock.RLock()
	for _, e := range d.endpoints {
		if e.match(buffer) {
			endpoint = e
			break
		}
	}
	d.lock.RUnlock()

	if endpoint == nil {
		d.log.Warnf("demux: no endpoint for %d-byte datagram", len(buffer))
		return
	}

	if _, err := endpoint.buffer.Write(buffer); err != nil {
		d.log.Warnf("demux: endpoint buffer write failed: %s", err)
	}
}

// Receive implements PacketReceiver by reading the next datagram this
// Endpoint's MatchFunc accepted.
func (e *Endpoint) Receive(buffer []byte) (int, error) {
	return e.buffer.Read(buffer)
}

// Close releases the endpoint's buffer and unregisters it from the Demuxer.
func (e *Endpoint) Close() error {
	err := e.buffer.Close()
	e.demuxer.RemoveEndpoint(e)
	return err
}
