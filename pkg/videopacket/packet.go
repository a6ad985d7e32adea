package videopacket

// Packet is a single framed datagram: a fixed header plus an opaque chunk
// of an encoded frame's payload. Exactly one Packet is carried per
// datagram on the wire.
type Packet struct {
	Header  Header
	Payload []byte
}

// EncodePacket concatenates the header and payload into a freshly
// allocated buffer of length HeaderLength+len(payload).
func EncodePacket(p Packet) []byte {
	buffer := make([]byte, HeaderLength+len(p.Payload))
	// buffer is always sized correctly, so EncodeHeader cannot fail here.
	_ = EncodeHeader(p.Header, buffer[:HeaderLength])
	copy(buffer[HeaderLength:], p.Payload)
	return buffer
}

// DecodePacket splits buffer into a header and a payload tail slice. The
// payload aliases buffer; callers that reuse buffer across calls must copy
// it before retaining the returned Packet.
func DecodePacket(buffer []byte) (Packet, error) {
	if len(buffer) < HeaderLength {
		return Packet{}, ErrBufferTooSmall
	}

	header, err := DecodeHeader(buffer[:HeaderLength])
	if err != nil {
		return Packet{}, err
	}

	return Packet{
		Header:  header,
		Payload: buffer[HeaderLength:],
	}, nil
}
