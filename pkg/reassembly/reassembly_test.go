package reassembly

import (
	"math/rand"
	"testing"

	"github.com/nimbus-stream/videolink/pkg/videopacket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func packet(frameID uint32, chunkIndex, chunksTotal uint16, timestampNanos uint64, payload string) videopacket.Packet {
	return videopacket.Packet{
		Header: videopacket.Header{
			SequenceNumber:  1,
			TimestampNanos:  timestampNanos,
			FrameIdentifier: frameID,
			ChunkIndex:      chunkIndex,
			ChunksTotal:     chunksTotal,
		},
		Payload: []byte(payload),
	}
}

// In-order chunks complete the frame with its identifier and timestamp.
func TestReassembleInOrderChunks(t *testing.T) {
	r := New(4)

	first := packet(7, 0, 2, 10, "hello ")
	second := packet(7, 1, 2, 10, "world")

	frame, err := r.PushPacket(first)
	require.NoError(t, err)
	assert.Nil(t, frame)

	frame, err = r.PushPacket(second)
	require.NoError(t, err)
	require.NotNil(t, frame)
	assert.Equal(t, "hello world", string(frame.Payload))
	assert.Equal(t, uint32(7), frame.FrameIdentifier)
	assert.Equal(t, uint64(10), frame.TimestampNanos)
}

// S2 out-of-order chunks.
func TestReassembleOutOfOrderChunks(t *testing.T) {
	r := New(4)

	first := packet(7, 1, 2, 10, "world")
	second := packet(7, 0, 2, 10, "hello ")

	frame, err := r.PushPacket(first)
	require.NoError(t, err)
	assert.Nil(t, frame)

	frame, err = r.PushPacket(second)
	require.NoError(t, err)
	require.NotNil(t, frame)
	assert.Equal(t, "hello world", string(frame.Payload))
}

// S3 duplicate tolerance.
func TestIgnoresDuplicateChunks(t *testing.T) {
	r := New(4)

	first := packet(7, 0, 2, 10, "hello ")
	duplicate := packet(7, 0, 2, 10, "hello ")
	second := packet(7, 1, 2, 10, "world")

	frame, err := r.PushPacket(first)
	require.NoError(t, err)
	assert.Nil(t, frame)

	frame, err = r.PushPacket(duplicate)
	require.NoError(t, err)
	assert.Nil(t, frame)

	frame, err = r.PushPacket(second)
	require.NoError(t, err)
	require.NotNil(t, frame)
	assert.Equal(t, "hello world", string(frame.Payload))
}

// S4 eviction of the oldest (smallest-keyed) frame when capacity is exceeded.
func TestEvictsOldestFrameWhenOverCapacity(t *testing.T) {
	r := New(2)

	_, err := r.PushPacket(packet(1, 0, 2, 0, "a"))
	require.NoError(t, err)
	_, err = r.PushPacket(packet(2, 0, 2, 0, "b"))
	require.NoError(t, err)
	_, err = r.PushPacket(packet(3, 0, 2, 0, "c"))
	require.NoError(t, err)

	assert.LessOrEqual(t, r.Len(), 2)

	// frame 1 was evicted after the third push; completing frames 2 and
	// 3 still succeeds.
	frame, err := r.PushPacket(packet(2, 1, 2, 0, "bb"))
	require.NoError(t, err)
	require.NotNil(t, frame)
	assert.Equal(t, "bbb", string(frame.Payload))

	frame, err = r.PushPacket(packet(3, 1, 2, 0, "cc"))
	require.NoError(t, err)
	require.NotNil(t, frame)
	assert.Equal(t, "ccc", string(frame.Payload))

	// frame 1's single chunk is gone: sending its other chunk now starts
	// a brand new assembly rather than completing the evicted one, so no
	// frame emerges.
	frame, err = r.PushPacket(packet(1, 1, 2, 0, "!"))
	require.NoError(t, err)
	assert.Nil(t, frame)
}

// S5 invalid chunk index.
func TestRejectsInvalidChunkIndex(t *testing.T) {
	r := New(4)
	_, err := r.PushPacket(packet(7, 2, 2, 0, "oops"))
	assert.ErrorIs(t, err, ErrInvalidChunkIndex)
	assert.Equal(t, 0, r.Len())
}

func TestRejectsZeroChunksTotal(t *testing.T) {
	r := New(4)
	_, err := r.PushPacket(packet(7, 0, 0, 0, "oops"))
	assert.ErrorIs(t, err, ErrInvalidChunkIndex)
}

// S6 inconsistent chunk count.
func TestRejectsInconsistentChunkCounts(t *testing.T) {
	r := New(4)

	_, err := r.PushPacket(packet(7, 0, 2, 0, "hello "))
	require.NoError(t, err)

	_, err = r.PushPacket(packet(7, 1, 3, 0, "world"))
	assert.ErrorIs(t, err, ErrInconsistentChunkCount)

	// a follow-up consistent packet still completes the frame.
	frame, err := r.PushPacket(packet(7, 1, 2, 0, "world"))
	require.NoError(t, err)
	require.NotNil(t, frame)
	assert.Equal(t, "hello world", string(frame.Payload))
}

func TestOrderIndependenceAcrossPermutations(t *testing.T) {
	original := []byte("the quick brown fox jumps over the lazy dog")

	packets := []videopacket.Packet{
		packet(42, 0, 4, 5, "the quick "),
		packet(42, 1, 4, 5, "brown fox "),
		packet(42, 2, 4, 5, "jumps over "),
		packet(42, 3, 4, 5, "the lazy dog"),
	}

	for trial := 0; trial < 20; trial++ {
		r := New(4)
		perm := rand.Perm(len(packets))

		var frame *ReassembledFrame
		completions := 0
		for _, idx := range perm {
			f, err := r.PushPacket(packets[idx])
			require.NoError(t, err)
			if f != nil {
				completions++
				frame = f
			}
		}

		assert.Equal(t, 1, completions)
		require.NotNil(t, frame)
		assert.Equal(t, string(original), string(frame.Payload))
	}
}

func TestBoundedMemory(t *testing.T) {
	r := New(3)
	for id := uint32(0); id < 50; id++ {
		_, err := r.PushPacket(packet(id, 0, 2, 0, "x"))
		require.NoError(t, err)
		assert.LessOrEqual(t, r.Len(), 3)
	}
}

func TestAtMostOneCompletionPerCall(t *testing.T) {
	r := New(4)
	frame, err := r.PushPacket(packet(1, 0, 1, 0, "solo"))
	require.NoError(t, err)
	require.NotNil(t, frame)
	assert.Equal(t, "solo", string(frame.Payload))
	assert.Equal(t, 0, r.Len())
}
