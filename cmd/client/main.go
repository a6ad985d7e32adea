// Command client runs the receive side of the video transport. It binds a
// single UDP socket and demultiplexes it into the video stream and the
// liveness (ping/pong) stream: video datagrams are decoded, reassembled,
// and handed to a codec decoder, while liveness Pings are answered with a
// Pong on the same socket, so both channels can share one port.
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/logging"

	"github.com/nimbus-stream/videolink/internal/codec"
	"github.com/nimbus-stream/videolink/internal/transport"
	"github.com/nimbus-stream/videolink/pkg/liveness"
	"github.com/nimbus-stream/videolink/pkg/reassembly"
	"github.com/nimbus-stream/videolink/pkg/videopacket"
)

type config struct {
	bind              string
	remote            string
	maxPacketBytes    int
	maxInFlightFrames int
}

func parseFlags() *config {
	cfg := &config{}
	bind := flag.String("bind", ":9000", "local UDP address to bind")
	remote := flag.String("remote", "127.0.0.1:0", "remote UDP address to receive frames from")
	maxPacketBytes := flag.Int("max-packet-bytes", 1500, "maximum size of one inbound datagram")
	maxInFlightFrames := flag.Int("max-in-flight-frames", 32, "maximum number of partially received frames held at once")
	flag.Parse()

	cfg.bind = *bind
	cfg.remote = *remote
	cfg.maxPacketBytes = *maxPacketBytes
	cfg.maxInFlightFrames = *maxInFlightFrames

	// Track which flags were explicitly set so environment overrides never
	// clobber a value the operator passed on the command line.
	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })
	applyClientEnvOverrides(cfg, setFlags)

	return cfg
}

// applyClientEnvOverrides maps VIDEOLINK_CLIENT_* environment variables
// onto cfg, skipping any field whose flag was explicitly set.
func applyClientEnvOverrides(cfg *config, setFlags map[string]struct{}) {
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }

	if _, ok := setFlags["bind"]; !ok {
		if v, ok := get("VIDEOLINK_CLIENT_BIND"); ok && v != "" {
			cfg.bind = v
		}
	}
	if _, ok := setFlags["remote"]; !ok {
		if v, ok := get("VIDEOLINK_CLIENT_REMOTE"); ok && v != "" {
			cfg.remote = v
		}
	}
	if _, ok := setFlags["max-packet-bytes"]; !ok {
		if v, ok := get("VIDEOLINK_CLIENT_MAX_PACKET_BYTES"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				cfg.maxPacketBytes = n
			}
		}
	}
	if _, ok := setFlags["max-in-flight-frames"]; !ok {
		if v, ok := get("VIDEOLINK_CLIENT_MAX_IN_FLIGHT_FRAMES"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				cfg.maxInFlightFrames = n
			}
		}
	}
}

func main() {
	cfg := parseFlags()
	loggerFactory := logging.NewDefaultLoggerFactory()
	log := loggerFactory.NewLogger("client")

	runID := uuid.New()
	log.Infof("starting client run=%s bind=%s", runID, cfg.bind)

	localAddr, err := net.ResolveUDPAddr("udp", cfg.bind)
	if err != nil {
		log.Errorf("resolve bind address: %s", err)
		os.Exit(1)
	}
	remoteAddr, err := net.ResolveUDPAddr("udp", cfg.remote)
	if err != nil {
		log.Errorf("resolve remote address: %s", err)
		os.Exit(1)
	}

	conn, err := transport.Dial(localAddr, remoteAddr, loggerFactory)
	if err != nil {
		log.Errorf("dial: %s", err)
		os.Exit(1)
	}
	defer conn.Close()
	log.Infof("listening at %s", conn.LocalAddr())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	demuxer := transport.NewDemuxer(ctx, conn, cfg.maxPacketBytes, loggerFactory)
	livenessEndpoint := demuxer.NewEndpoint(liveness.IsHealthcheckPacket)
	videoEndpoint := demuxer.NewEndpoint(func([]byte) bool { return true })

	var packetsReceived, framesReceived uint64

	go respondToLiveness(conn, livenessEndpoint, loggerFactory.NewLogger("client-liveness"))
	go reportStats(&packetsReceived, &framesReceived, log)

	reassembler := reassembly.New(cfg.maxInFlightFrames)
	var decoder codec.PassthroughCodec

	buffer := make([]byte, cfg.maxPacketBytes)

	for {
		n, err := videoEndpoint.Receive(buffer)
		if err != nil {
			log.Errorf("receive: %s", err)
			return
		}

		packet, err := videopacket.DecodePacket(buffer[:n])
		if err != nil {
			log.Warnf("decode packet failed: %s", err)
			continue
		}
		atomic.AddUint64(&packetsReceived, 1)

		frame, err := reassembler.PushPacket(packet)
		if err != nil {
			log.Warnf("reassembly failed for frame %d: %s", packet.Header.FrameIdentifier, err)
			continue
		}
		if frame == nil {
			continue
		}

		if _, err := decoder.Decode(frame.Payload); err != nil {
			log.Warnf("decode frame %d failed: %s", frame.FrameIdentifier, err)
			continue
		}
		atomic.AddUint64(&framesReceived, 1)
	}
}

// respondToLiveness answers every Ping delivered to endpoint with a Pong
// carrying the same timestamp, sent back over conn's connected socket,
// while the main loop keeps handling video traffic on the same port.
func respondToLiveness(conn *transport.UDPTransport, endpoint *transport.Endpoint, log logging.LeveledLogger) {
	buffer := make([]byte, liveness.Length)
	for {
		n, err := endpoint.Receive(buffer)
		if err != nil {
			log.Warnf("liveness endpoint closed: %s", err)
			return
		}

		packet, err := liveness.Decode(buffer[:n])
		if err != nil {
			log.Warnf("decode liveness packet failed: %s", err)
			continue
		}
		if packet.Kind != liveness.Ping {
			continue
		}

		pong := liveness.HealthcheckPacket{Kind: liveness.Pong, TimestampNanos: packet.TimestampNanos}.Encode()
		if _, err := conn.Send(pong[:]); err != nil {
			log.Warnf("send pong failed: %s", err)
		}
	}
}

func reportStats(packetsReceived, framesReceived *uint64, log logging.LeveledLogger) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		log.Infof("frames received: %d, packets received: %d",
			atomic.LoadUint64(framesReceived), atomic.LoadUint64(packetsReceived))
	}
}
