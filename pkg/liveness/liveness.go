// Package liveness implements the 16-byte ping/pong healthcheck datagram
// that runs alongside the video transport for round-trip-time measurement.
package liveness

import (
	"encoding/binary"
	"errors"
)

// Length is the fixed encoded size of a HealthcheckPacket.
const Length = 16

// magic identifies a liveness datagram so it can share a transport with
// video datagrams; see IsHealthcheckPacket.
var magic = [4]byte{'T', 'B', 'D', 'H'}

// Kind distinguishes a Ping from its Pong reply.
type Kind uint8

const (
	// Ping requests a Pong echoing the same timestamp.
	Ping Kind = 1
	// Pong is the reply to a Ping, carrying the Ping's timestamp unchanged.
	Pong Kind = 2
)

var (
	// ErrBufferTooSmall is returned when fewer than Length bytes are given.
	ErrBufferTooSmall = errors.New("liveness: buffer too small")
	// ErrInvalidMagic is returned when the first 4 bytes don't match "TBDH".
	ErrInvalidMagic = errors.New("liveness: invalid magic")
	// ErrInvalidKind is returned when byte 4 is not Ping or Pong.
	ErrInvalidKind = errors.New("liveness: invalid kind")
)

// HealthcheckPacket is a ping or pong liveness datagram.
//
//	bytes 0..4: magic "TBDH"
//	byte 4:     kind (1=Ping, 2=Pong)
//	bytes 5..8: reserved, zero on send, ignored on receive
//	bytes 8..16: timestamp_nanos (u64, big-endian)
type HealthcheckPacket struct {
	Kind           Kind
	TimestampNanos uint64
}

// Encode returns the 16-byte wire encoding of p.
func (p HealthcheckPacket) Encode() [Length]byte {
	var buffer [Length]byte
	copy(buffer[0:4], magic[:])
	buffer[4] = byte(p.Kind)
	binary.BigEndian.PutUint64(buffer[8:16], p.TimestampNanos)
	return buffer
}

// Decode parses a HealthcheckPacket from the first Length bytes of buffer.
func Decode(buffer []byte) (HealthcheckPacket, error) {
	if len(buffer) < Length {
		return HealthcheckPacket{}, ErrBufferTooSmall
	}

	if buffer[0] != magic[0] || buffer[1] != magic[1] || buffer[2] != magic[2] || buffer[3] != magic[3] {
		return HealthcheckPacket{}, ErrInvalidMagic
	}

	var kind Kind
	switch buffer[4] {
	case byte(Ping):
		kind = Ping
	case byte(Pong):
		kind = Pong
	default:
		return HealthcheckPacket{}, ErrInvalidKind
	}

	return HealthcheckPacket{
		Kind:           kind,
		TimestampNanos: binary.BigEndian.Uint64(buffer[8:16]),
	}, nil
}

// IsHealthcheckPacket is a best-effort, magic-prefix-only predicate used to
// disambiguate a liveness datagram from a video datagram when both share a
// transport. A video packet whose SequenceNumber happens to equal
// 0x54424448 ("TBDH" as a big-endian u32) will be misidentified; callers
// multiplexing both kinds on one socket should prefer separate sockets.
func IsHealthcheckPacket(buffer []byte) bool {
	return len(buffer) >= Length &&
		buffer[0] == magic[0] && buffer[1] == magic[1] && buffer[2] == magic[2] && buffer[3] == magic[3]
}
