// Package sequence provides a wrapping 32-bit packet sequence counter.
package sequence

// Number is a per-packet monotonic counter that wraps at 2^32. It is
// diagnostic only: the reassembler does not use it to order chunks.
type Number struct {
	value uint32
}

// New constructs a Number from a raw value.
func New(value uint32) Number {
	return Number{value: value}
}

// Value returns the underlying u32.
func (n Number) Value() uint32 {
	return n.value
}

// Next returns the wrapping successor of n.
func (n Number) Next() Number {
	return Number{value: n.value + 1}
}
