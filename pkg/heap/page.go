// Package heap implements the table heap: an unordered, append-mostly
// sequence of slotted pages holding tuples, routed entirely through the
// buffer pool. Deletes are tombstones; the space they free is reclaimed
// only by never allocating past a page's declared capacity, matching the
// teaching scope of the rest of this core (no vacuum/compaction pass).
package heap

import (
	"encoding/binary"

	"coredb/pkg/page"
	"coredb/pkg/primitives"
)

// slottedHeader occupies the front of every heap page: page_type (reusing
// page.HeaderPageType's numeric space with a heap-specific tag),
// tuple_count, next_page_id (forward link so a full scan can walk the
// heap), free_space_offset (end of the tuple data region, growing down
// from the end of the page as the slot array grows up from the header).
const (
	heapPageTypeTag = 0x4845_4150 // "HEAP" in ascii-ish hex, distinct from B+ tree page types
	heapHeaderLen   = 4 + 4 + 4 + 4
	slotLen         = 4 + 4 + 1 // offset, length, tombstone flag
)

type slot struct {
	offset    uint32
	length    uint32
	tombstone bool
}

// HeapPage is the decoded form of one table-heap page.
type HeapPage struct {
	NextPageID primitives.PageID
	Slots      []slot
	freeStart  uint32 // end of the slot array
	freeEnd    uint32 // start of the tuple data region (grows downward)
	raw        []byte
}

// NewHeapPage initializes an empty heap page in a freshly allocated frame's
// backing buffer.
func NewHeapPage() *HeapPage {
	raw := make([]byte, page.Size)
	binary.LittleEndian.PutUint32(raw[0:4], heapPageTypeTag)
	binary.LittleEndian.PutUint32(raw[4:8], 0)
	binary.LittleEndian.PutUint32(raw[8:12], uint32(primitives.InvalidPageID))
	binary.LittleEndian.PutUint32(raw[12:16], page.Size)
	return &HeapPage{
		NextPageID: primitives.InvalidPageID,
		freeStart:  heapHeaderLen,
		freeEnd:    page.Size,
		raw:        raw,
	}
}

// DecodeHeapPage parses a raw page previously written by Encode.
func DecodeHeapPage(raw []byte) *HeapPage {
	count := binary.LittleEndian.Uint32(raw[4:8])
	next := primitives.PageID(binary.LittleEndian.Uint32(raw[8:12]))
	freeEnd := binary.LittleEndian.Uint32(raw[12:16])

	slots := make([]slot, count)
	off := heapHeaderLen
	for i := uint32(0); i < count; i++ {
		slots[i] = slot{
			offset:    binary.LittleEndian.Uint32(raw[off : off+4]),
			length:    binary.LittleEndian.Uint32(raw[off+4 : off+8]),
			tombstone: raw[off+8] != 0,
		}
		off += slotLen
	}

	return &HeapPage{
		NextPageID: next,
		Slots:      slots,
		freeStart:  uint32(off),
		freeEnd:    freeEnd,
		raw:        append([]byte(nil), raw...),
	}
}

// Encode serializes the page back into a Size-byte buffer.
func (h *HeapPage) Encode() []byte {
	buf := make([]byte, page.Size)
	binary.LittleEndian.PutUint32(buf[0:4], heapPageTypeTag)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(h.Slots)))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(h.NextPageID))
	binary.LittleEndian.PutUint32(buf[12:16], h.freeEnd)

	off := heapHeaderLen
	for _, s := range h.Slots {
		binary.LittleEndian.PutUint32(buf[off:off+4], s.offset)
		binary.LittleEndian.PutUint32(buf[off+4:off+8], s.length)
		if s.tombstone {
			buf[off+8] = 1
		}
		off += slotLen
	}
	copy(buf[h.freeEnd:], h.raw[h.freeEnd:])
	return buf
}

// freeSpace returns how many bytes remain between the slot array and the
// tuple data region, less the room one more slot entry needs.
func (h *HeapPage) freeSpace() int {
	return int(h.freeEnd) - int(h.freeStart) - slotLen
}

// InsertTuple appends data into the page's tuple region and a new slot for
// it, returning the slot index. Returns false if there is not enough
// remaining space.
func (h *HeapPage) InsertTuple(data []byte) (uint32, bool) {
	if h.freeSpace() < len(data) {
		return 0, false
	}
	newFreeEnd := h.freeEnd - uint32(len(data))
	if int(newFreeEnd) < 0 {
		return 0, false
	}

	copy(h.raw[newFreeEnd:h.freeEnd], data)
	h.freeEnd = newFreeEnd

	h.Slots = append(h.Slots, slot{offset: h.freeEnd, length: uint32(len(data))})
	h.freeStart += slotLen
	return uint32(len(h.Slots) - 1), true
}

// GetTuple returns the bytes stored at slotIdx, or false if the slot is a
// tombstone or out of range.
func (h *HeapPage) GetTuple(slotIdx uint32) ([]byte, bool) {
	if int(slotIdx) >= len(h.Slots) {
		return nil, false
	}
	s := h.Slots[slotIdx]
	if s.tombstone {
		return nil, false
	}
	return h.raw[s.offset : s.offset+s.length], true
}

// DeleteTuple tombstones a slot; its bytes remain in place but are no
// longer visible.
func (h *HeapPage) DeleteTuple(slotIdx uint32) bool {
	if int(slotIdx) >= len(h.Slots) {
		return false
	}
	if h.Slots[slotIdx].tombstone {
		return false
	}
	h.Slots[slotIdx].tombstone = true
	return true
}

// IsTombstone reports whether a slot has been deleted.
func (h *HeapPage) IsTombstone(slotIdx uint32) bool {
	if int(slotIdx) >= len(h.Slots) {
		return true
	}
	return h.Slots[slotIdx].tombstone
}
