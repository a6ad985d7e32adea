// Command healthcheck is a standalone liveness tool for the ping/pong
// protocol in pkg/liveness. In listen mode it answers every Ping with a
// Pong carrying the same timestamp. In ping mode it sends Pings on an
// interval and logs the round-trip time measured for each Pong received.
package main

import (
	"errors"
	"flag"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pion/logging"

	"github.com/nimbus-stream/videolink/internal/transport"
	"github.com/nimbus-stream/videolink/pkg/liveness"
)

type config struct {
	mode     string
	bind     string
	remote   string
	interval time.Duration
}

func parseFlags() *config {
	cfg := &config{}
	mode := flag.String("mode", "listen", "operating mode: listen|ping")
	bind := flag.String("bind", ":9001", "local UDP address to bind")
	remote := flag.String("remote", "127.0.0.1:9001", "remote UDP address")
	interval := flag.Duration("interval", time.Second, "interval between Pings in ping mode")
	flag.Parse()

	cfg.mode = *mode
	cfg.bind = *bind
	cfg.remote = *remote
	cfg.interval = *interval

	// Track which flags were explicitly set so environment overrides never
	// clobber a value the operator passed on the command line.
	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })
	applyHealthcheckEnvOverrides(cfg, setFlags)

	return cfg
}

// applyHealthcheckEnvOverrides maps VIDEOLINK_HEALTHCHECK_* environment
// variables onto cfg, skipping any field whose flag was explicitly set.
func applyHealthcheckEnvOverrides(cfg *config, setFlags map[string]struct{}) {
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }

	if _, ok := setFlags["mode"]; !ok {
		if v, ok := get("VIDEOLINK_HEALTHCHECK_MODE"); ok && v != "" {
			cfg.mode = v
		}
	}
	if _, ok := setFlags["bind"]; !ok {
		if v, ok := get("VIDEOLINK_HEALTHCHECK_BIND"); ok && v != "" {
			cfg.bind = v
		}
	}
	if _, ok := setFlags["remote"]; !ok {
		if v, ok := get("VIDEOLINK_HEALTHCHECK_REMOTE"); ok && v != "" {
			cfg.remote = v
		}
	}
	if _, ok := setFlags["interval"]; !ok {
		if v, ok := get("VIDEOLINK_HEALTHCHECK_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				cfg.interval = d
			}
		}
	}
}

func main() {
	cfg := parseFlags()
	loggerFactory := logging.NewDefaultLoggerFactory()
	log := loggerFactory.NewLogger("healthcheck")

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

	switch cfg.mode {
	case "listen":
		runListen(conn, log)
	case "ping":
		runPing(conn, log, remoteAddr, cfg.interval)
	default:
		log.Errorf("unknown mode %q, want listen|ping", cfg.mode)
		os.Exit(1)
	}
}

func runListen(conn *transport.UDPTransport, log logging.LeveledLogger) {
	log.Infof("listening for Pings at %s", conn.LocalAddr())

	buffer := make([]byte, liveness.Length)
	for {
		n, err := conn.Receive(buffer)
		if err != nil {
			log.Warnf("receive failed: %s", err)
			continue
		}

		packet, err := liveness.Decode(buffer[:n])
		if err != nil {
			log.Warnf("decode failed: %s", err)
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

func runPing(conn *transport.UDPTransport, log logging.LeveledLogger, remote net.Addr, interval time.Duration) {
	log.Infof("pinging %s every %s", remote, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	buffer := make([]byte, liveness.Length)

	for range ticker.C {
		sentAt := time.Now()
		ping := liveness.HealthcheckPacket{Kind: liveness.Ping, TimestampNanos: uint64(sentAt.UnixNano())}.Encode()
		if _, err := conn.Send(ping[:]); err != nil {
			log.Warnf("send ping failed: %s", err)
			continue
		}

		if err := conn.SetReadTimeout(interval); err != nil {
			log.Warnf("set read timeout: %s", err)
		}
		n, err := conn.Receive(buffer)
		if err != nil {
			if isTimeout(err) {
				log.Warnf("no pong received within %s", interval)
				continue
			}
			log.Warnf("receive failed: %s", err)
			continue
		}

		pong, err := liveness.Decode(buffer[:n])
		if err != nil {
			log.Warnf("decode failed: %s", err)
			continue
		}
		if pong.Kind != liveness.Pong {
			continue
		}

		rtt := time.Since(sentAt)
		log.Infof("rtt=%s", rtt)
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
