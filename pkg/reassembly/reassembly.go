// Package reassembly implements the bounded, out-of-order, duplicate
// tolerant frame reassembler that is the receive-side counterpart of
// videopacket.Packetizer.
//
// Eviction orders frame identifiers as plain uint32 values. A sender that
// wraps frame_identifier back to a small value after passing
// 0xFFFFFFFF can have its newest frames evicted ahead of older ones
// still in flight; this known limitation is accepted rather than worked
// around.
package reassembly

import (
	"container/heap"
	"errors"

	"github.com/nimbus-stream/videolink/pkg/videopacket"
)

var (
	// ErrInvalidChunkIndex is returned when a packet's ChunkIndex is not
	// strictly less than its ChunksTotal. The offending packet is
	// discarded; no assembly is created or mutated.
	ErrInvalidChunkIndex = errors.New("reassembly: invalid chunk index")
	// ErrInconsistentChunkCount is returned when a packet reports a
	// ChunksTotal different from the one recorded by the first packet
	// seen for its FrameIdentifier. The offending packet is discarded;
	// the existing assembly is retained untouched.
	ErrInconsistentChunkCount = errors.New("reassembly: inconsistent chunk count")
)

// ReassembledFrame is a whole encoded frame, concatenated from its chunks
// in ascending ChunkIndex order.
type ReassembledFrame struct {
	FrameIdentifier uint32
	TimestampNanos  uint64
	Payload         []byte
}

// frameAssembly tracks the chunks received so far for one frame id. The
// timestamp is first-packet-wins: later mismatches are not checked, since
// a conforming sender never varies it for one frame identifier.
//
// heapIndex is maintained by frameIDHeap so a completed or evicted
// assembly can be removed from the heap in O(log n) instead of leaking a
// stale entry for the lifetime of the process.
type frameAssembly struct {
	frameIdentifier uint32
	timestampNanos  uint64
	chunksTotal     uint16
	receivedCount   uint16
	chunks          [][]byte
	heapIndex       int
}

// frameIDHeap is a min-heap over live assemblies, ordered by
// frame_identifier, used to find the eviction victim in O(log n).
// Wrap-around of frame_identifier is a known, accepted limitation: id 0
// sorts before id 2^32-1 even when 0 was received after the wrap.
type frameIDHeap []*frameAssembly

func (h frameIDHeap) Len() int { return len(h) }
func (h frameIDHeap) Less(i, j int) bool {
	return h[i].frameIdentifier < h[j].frameIdentifier
}
func (h frameIDHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}
func (h *frameIDHeap) Push(x interface{}) {
	assembly := x.(*frameAssembly)
	assembly.heapIndex = len(*h)
	*h = append(*h, assembly)
}
func (h *frameIDHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.heapIndex = -1
	*h = old[:n-1]
	return item
}

// FrameReassembler buffers packets for up to maxInFlightFrames frames at
// once and assembles a ReassembledFrame as soon as every chunk of a frame
// has arrived, regardless of arrival order. It is single-owner mutable
// state: it performs no internal synchronization and must be driven by one
// goroutine at a time.
type FrameReassembler struct {
	maxInFlightFrames int
	assemblies        map[uint32]*frameAssembly
	order             frameIDHeap
}

// New constructs a FrameReassembler that keeps at most maxInFlightFrames
// incomplete assemblies alive at once.
func New(maxInFlightFrames int) *FrameReassembler {
	return &FrameReassembler{
		maxInFlightFrames: maxInFlightFrames,
		assemblies:        make(map[uint32]*frameAssembly),
		order:             frameIDHeap{},
	}
}

// PushPacket feeds one packet into the reassembler. It returns a non-nil
// ReassembledFrame exactly when that packet completed its frame; at most
// one frame ever completes per call.
func (r *FrameReassembler) PushPacket(packet videopacket.Packet) (*ReassembledFrame, error) {
	header := packet.Header

	if header.ChunkIndex >= header.ChunksTotal {
		return nil, ErrInvalidChunkIndex
	}

	assembly, ok := r.assemblies[header.FrameIdentifier]
	if !ok {
		assembly = &frameAssembly{
			frameIdentifier: header.FrameIdentifier,
			timestampNanos:  header.TimestampNanos,
			chunksTotal:     header.ChunksTotal,
			chunks:          make([][]byte, header.ChunksTotal),
		}
		r.assemblies[header.FrameIdentifier] = assembly
		heap.Push(&r.order, assembly)
	}

	if assembly.chunksTotal != header.ChunksTotal {
		return nil, ErrInconsistentChunkCount
	}

	if assembly.chunks[header.ChunkIndex] == nil {
		payload := make([]byte, len(packet.Payload))
		copy(payload, packet.Payload)
		assembly.chunks[header.ChunkIndex] = payload
		assembly.receivedCount++
	}

	if assembly.receivedCount == assembly.chunksTotal {
		frame := &ReassembledFrame{
			FrameIdentifier: assembly.frameIdentifier,
			TimestampNanos:  assembly.timestampNanos,
			Payload:         concatenate(assembly.chunks),
		}
		r.remove(assembly)
		return frame, nil
	}

	r.evictIfNeeded()
	return nil, nil
}

// evictIfNeeded removes the smallest-keyed live assembly until the
// in-flight bound is satisfied.
func (r *FrameReassembler) evictIfNeeded() {
	for len(r.assemblies) > r.maxInFlightFrames {
		victim := r.order[0]
		r.remove(victim)
	}
}

// remove deletes assembly from both the map and the heap.
func (r *FrameReassembler) remove(assembly *frameAssembly) {
	delete(r.assemblies, assembly.frameIdentifier)
	heap.Remove(&r.order, assembly.heapIndex)
}

// Len reports the number of live in-flight assemblies.
func (r *FrameReassembler) Len() int {
	return len(r.assemblies)
}

func concatenate(chunks [][]byte) []byte {
	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}

	out := make([]byte, 0, total)
	for _, chunk := range chunks {
		out = append(out, chunk...)
	}
	return out
}
