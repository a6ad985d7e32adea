// Command host runs the frame-generation side of the video transport: it
// synthesizes frames on a fixed interval, encodes them, packetizes the
// encoded bytes, and sends each resulting datagram over a connected UDP
// socket.
package main

import (
	"flag"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pion/logging"
	"github.com/pion/randutil"

	"github.com/nimbus-stream/videolink/internal/codec"
	"github.com/nimbus-stream/videolink/internal/transport"
	"github.com/nimbus-stream/videolink/pkg/sequence"
	"github.com/nimbus-stream/videolink/pkg/videopacket"
)

type config struct {
	bind            string
	remote          string
	payloadBytes    int
	maxPayloadBytes int
	frameInterval   time.Duration
}

func parseFlags() *config {
	cfg := &config{}
	bind := flag.String("bind", ":0", "local UDP address to bind")
	remote := flag.String("remote", "127.0.0.1:9000", "remote UDP address to send frames to")
	payloadBytes := flag.Int("payload-bytes", 64*1024, "size in bytes of each synthesized frame")
	maxPayloadBytes := flag.Int("max-payload-bytes", 1200, "maximum payload size of one outbound datagram")
	frameInterval := flag.Duration("frame-interval", 33*time.Millisecond, "interval between synthesized frames")
	flag.Parse()

	cfg.bind = *bind
	cfg.remote = *remote
	cfg.payloadBytes = *payloadBytes
	cfg.maxPayloadBytes = *maxPayloadBytes
	cfg.frameInterval = *frameInterval

	// Track which flags were explicitly set so environment overrides never
	// clobber a value the operator passed on the command line.
	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })
	applyHostEnvOverrides(cfg, setFlags)

	return cfg
}

// applyHostEnvOverrides maps VIDEOLINK_HOST_* environment variables onto
// cfg, skipping any field whose flag was explicitly set.
func applyHostEnvOverrides(cfg *config, setFlags map[string]struct{}) {
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }

	if _, ok := setFlags["bind"]; !ok {
		if v, ok := get("VIDEOLINK_HOST_BIND"); ok && v != "" {
			cfg.bind = v
		}
	}
	if _, ok := setFlags["remote"]; !ok {
		if v, ok := get("VIDEOLINK_HOST_REMOTE"); ok && v != "" {
			cfg.remote = v
		}
	}
	if _, ok := setFlags["payload-bytes"]; !ok {
		if v, ok := get("VIDEOLINK_HOST_PAYLOAD_BYTES"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				cfg.payloadBytes = n
			}
		}
	}
	if _, ok := setFlags["max-payload-bytes"]; !ok {
		if v, ok := get("VIDEOLINK_HOST_MAX_PAYLOAD_BYTES"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				cfg.maxPayloadBytes = n
			}
		}
	}
	if _, ok := setFlags["frame-interval"]; !ok {
		if v, ok := get("VIDEOLINK_HOST_FRAME_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				cfg.frameInterval = d
			}
		}
	}
}

func main() {
	cfg := parseFlags()
	loggerFactory := logging.NewDefaultLoggerFactory()
	log := loggerFactory.NewLogger("host")

	runID := uuid.New()
	log.Infof("starting host run=%s remote=%s frame-interval=%s", runID, cfg.remote, cfg.frameInterval)

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
	log.Infof("bound at %s", conn.LocalAddr())

	initialSeq := sequence.New(randutil.NewMathRandomGenerator().Uint32())
	packetizer := videopacket.NewPacketizer(videopacket.PacketizerConfig{MaxPayloadBytes: cfg.maxPayloadBytes}, initialSeq)

	var encoder codec.PassthroughCodec

	ticker := time.NewTicker(cfg.frameInterval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(time.Second)
	defer statsTicker.Stop()

	var frameIdentifier uint32
	var framesSent, packetsSent uint64

	raw := make([]byte, cfg.payloadBytes)

	for {
		select {
		case <-ticker.C:
			frame := codec.RawFrame{
				PixelFormat: codec.PixelFormatRGBA8,
				Timestamp:   time.Duration(frameIdentifier) * cfg.frameInterval,
				Data:        raw,
			}

			encoded, err := encoder.Encode(frame)
			if err != nil {
				log.Warnf("encode failed, skipping frame %d: %s", frameIdentifier, err)
				continue
			}

			packets, err := packetizer.Packetize(frameIdentifier, uint64(time.Now().UnixNano()), encoded.Data)
			if err != nil {
				log.Warnf("packetize failed, skipping frame %d: %s", frameIdentifier, err)
				continue
			}

			for _, packet := range packets {
				buffer := videopacket.EncodePacket(packet)
				if _, err := conn.Send(buffer); err != nil {
					log.Warnf("send failed for frame %d chunk %d: %s", frameIdentifier, packet.Header.ChunkIndex, err)
					continue
				}
				packetsSent++
			}

			framesSent++
			frameIdentifier++

		case <-statsTicker.C:
			log.Infof("frames sent: %d, packets sent: %d", framesSent, packetsSent)
		}
	}
}
