// Package codec defines the opaque boundary between raw captured frames
// and the encoded bytes the core framing/reassembly subsystem transports.
// The core never interprets encoded bytes; it is purely a Payloader-style
// capability consumed by cmd/host and cmd/client.
package codec

import "time"

// PixelFormat names the layout of RawFrame.Data. Only the formats actually
// exercised by PassthroughCodec are enumerated; a hardware encoder would
// add more without the core needing to know about them.
type PixelFormat int

const (
	// PixelFormatRGBA8 is 8-bit RGBA, 4 bytes per pixel.
	PixelFormatRGBA8 PixelFormat = iota
)

// RawFrame is one uncompressed captured frame, standing in for whatever a
// platform capture API would hand the encoder. Width/Height/PixelFormat
// describe Data; actual capture is out of scope for this module.
type RawFrame struct {
	Width       int
	Height      int
	PixelFormat PixelFormat
	Timestamp   time.Duration
	Data        []byte
}

// EncodedFrame is the opaque output of an Encoder: bytes the packetizer
// fragments, plus a Keyframe flag the core does not interpret but which a
// real codec (or future loss-recovery policy) may use.
type EncodedFrame struct {
	Data     []byte
	Keyframe bool
}

// Encoder turns a RawFrame into an EncodedFrame. Implementations own
// whatever state a real encoder needs (reference frames, bitrate control,
// hardware handles); the core only ever sees Data as opaque bytes.
type Encoder interface {
	Encode(frame RawFrame) (EncodedFrame, error)
}

// Decoder turns previously encoded bytes back into a RawFrame.
type Decoder interface {
	Decode(data []byte) (RawFrame, error)
}

// PassthroughCodec is a null codec: Encode and Decode copy bytes through
// unchanged and every frame reports Keyframe: true, since there is no
// inter-frame reference to break. It exists so cmd/host and cmd/client
// have a real Encoder/Decoder to depend on without requiring platform
// capture or a hardware codec.
type PassthroughCodec struct{}

// Encode implements Encoder.
func (PassthroughCodec) Encode(frame RawFrame) (EncodedFrame, error) {
	data := make([]byte, len(frame.Data))
	copy(data, frame.Data)
	return EncodedFrame{Data: data, Keyframe: true}, nil
}

// Decode implements Decoder.
func (PassthroughCodec) Decode(data []byte) (RawFrame, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return RawFrame{Data: out}, nil
}
