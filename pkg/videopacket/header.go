// Package videopacket implements the wire format and stateful packetizer
// for the video datagram: a 20-byte big-endian header followed by an
// opaque chunk payload.
package videopacket

import (
	"encoding/binary"
	"errors"
)

// HeaderLength is the fixed size, in bytes, of an encoded Header.
const HeaderLength = 4 + 8 + 4 + 2 + 2

const (
	seqNumOffset      = 0
	timestampOffset   = 4
	frameIDOffset     = 12
	chunkIndexOffset  = 16
	chunksTotalOffset = 18
)

var (
	// ErrBufferTooSmall is returned when EncodeHeader, DecodeHeader or
	// DecodePacket is given fewer bytes than HeaderLength.
	ErrBufferTooSmall = errors.New("videopacket: buffer too small")
)

// Header is the fixed 20-byte header shared by every chunk of a frame.
//
//	 0                   1                   2                   3
//	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//	+---------------------------------------------------------------+
//	|                     sequence_number (u32)                     |
//	+---------------------------------------------------------------+
//	|                                                               |
//	|                     timestamp_nanos (u64)                     |
//	+---------------------------------------------------------------+
//	|                    frame_identifier (u32)                     |
//	+---------------------------------------------------------------+
//	|        chunk_index (u16)      |      chunks_total (u16)       |
//	+---------------------------------------------------------------+
type Header struct {
	SequenceNumber  uint32
	TimestampNanos  uint64
	FrameIdentifier uint32
	ChunkIndex      uint16
	ChunksTotal     uint16
}

// EncodeHeader writes h into buffer as exactly HeaderLength bytes.
func EncodeHeader(h Header, buffer []byte) error {
	if len(buffer) < HeaderLength {
		return ErrBufferTooSmall
	}

	binary.BigEndian.PutUint32(buffer[seqNumOffset:], h.SequenceNumber)
	binary.BigEndian.PutUint64(buffer[timestampOffset:], h.TimestampNanos)
	binary.BigEndian.PutUint32(buffer[frameIDOffset:], h.FrameIdentifier)
	binary.BigEndian.PutUint16(buffer[chunkIndexOffset:], h.ChunkIndex)
	binary.BigEndian.PutUint16(buffer[chunksTotalOffset:], h.ChunksTotal)

	return nil
}

// DecodeHeader reads the first HeaderLength bytes of buffer into a Header.
// Bytes past HeaderLength are ignored; they belong to the payload.
func DecodeHeader(buffer []byte) (Header, error) {
	if len(buffer) < HeaderLength {
		return Header{}, ErrBufferTooSmall
	}

	return Header{
		SequenceNumber:  binary.BigEndian.Uint32(buffer[seqNumOffset:]),
		TimestampNanos:  binary.BigEndian.Uint64(buffer[timestampOffset:]),
		FrameIdentifier: binary.BigEndian.Uint32(buffer[frameIDOffset:]),
		ChunkIndex:      binary.BigEndian.Uint16(buffer[chunkIndexOffset:]),
		ChunksTotal:     binary.BigEndian.Uint16(buffer[chunksTotalOffset:]),
	}, nil
}
