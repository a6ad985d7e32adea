package videopacket

import (
	"errors"
	"math"

	"github.com/nimbus-stream/videolink/pkg/sequence"
)

var (
	// ErrEmptyPayload is returned when Packetize is given a zero-length
	// encoded frame. It does not mutate the packetizer's sequence counter.
	ErrEmptyPayload = errors.New("videopacket: payload is empty")
	// ErrPayloadTooLarge is returned when max_payload_bytes is zero or the
	// resulting chunk count would overflow a u16. It does not mutate the
	// packetizer's sequence counter.
	ErrPayloadTooLarge = errors.New("videopacket: payload too large")
)

// PacketizerConfig configures a Packetizer.
type PacketizerConfig struct {
	// MaxPayloadBytes bounds the payload of every chunk; every chunk but
	// the last carries exactly this many bytes. Header bytes are not
	// counted against this limit.
	MaxPayloadBytes int
}

// Packetizer fragments one encoded frame at a time into ordered Packets,
// assigning each a sequence number from a single wrapping counter. A
// Packetizer is single-owner mutable state: it performs no internal
// synchronization and must be driven by one goroutine at a time.
type Packetizer struct {
	config             PacketizerConfig
	nextSequenceNumber sequence.Number
}

// NewPacketizer returns a Packetizer that starts assigning sequence numbers
// at initialSequenceNumber.
func NewPacketizer(config PacketizerConfig, initialSequenceNumber sequence.Number) *Packetizer {
	return &Packetizer{
		config:             config,
		nextSequenceNumber: initialSequenceNumber,
	}
}

// Packetize splits payload into ordered chunks of at most
// config.MaxPayloadBytes bytes each and returns one Packet per chunk, in
// ascending ChunkIndex order. Every packet returned shares frameIdentifier,
// timestampNanos and ChunksTotal.
func (p *Packetizer) Packetize(frameIdentifier uint32, timestampNanos uint64, payload []byte) ([]Packet, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}

	if p.config.MaxPayloadBytes <= 0 {
		return nil, ErrPayloadTooLarge
	}

	chunksTotal64 := (len(payload) + p.config.MaxPayloadBytes - 1) / p.config.MaxPayloadBytes
	if chunksTotal64 > math.MaxUint16 {
		return nil, ErrPayloadTooLarge
	}
	chunksTotal := uint16(chunksTotal64)

	packets := make([]Packet, 0, chunksTotal)
	for chunkIndex := 0; chunkIndex < int(chunksTotal); chunkIndex++ {
		start := chunkIndex * p.config.MaxPayloadBytes
		end := start + p.config.MaxPayloadBytes
		if end > len(payload) {
			end = len(payload)
		}

		chunk := make([]byte, end-start)
		copy(chunk, payload[start:end])

		packets = append(packets, Packet{
			Header: Header{
				SequenceNumber:  p.nextSequenceNumber.Value(),
				TimestampNanos:  timestampNanos,
				FrameIdentifier: frameIdentifier,
				ChunkIndex:      uint16(chunkIndex),
				ChunksTotal:     chunksTotal,
			},
			Payload: chunk,
		})
		p.nextSequenceNumber = p.nextSequenceNumber.Next()
	}

	return packets, nil
}
