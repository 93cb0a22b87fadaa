// Package page defines the on-disk byte layout of B+ tree pages: a common
// header shared by leaf and internal pages, plus their respective key/value
// arrays. Keys are fixed at 8 bytes (int64), one of the template
// instantiations the page layout's design allows; see DESIGN.md for why this
// core only ships that one.
package page

import (
	"encoding/binary"

	"coredb/pkg/primitives"
)

// Size is the fixed page size in bytes, matching the disk manager's unit of
// I/O.
const Size = 4096

// PageType discriminates a raw page's interpretation.
type PageType uint32

const (
	InvalidPageType PageType = 0
	LeafPageType    PageType = 1
	InternalPageType PageType = 2
	HeaderPageType  PageType = 3
)

const headerLen = 4 + 4 + 4 + 4 + 4 // page_type, size, max_size, parent_page_id, lsn

// Header is the common prefix of every B+ tree page.
type Header struct {
	PageType     PageType
	Size         int32
	MaxSize      int32
	ParentPageID primitives.PageID
	LSN          primitives.LSN
}

func decodeHeader(buf []byte) Header {
	return Header{
		PageType:     PageType(binary.LittleEndian.Uint32(buf[0:4])),
		Size:         int32(binary.LittleEndian.Uint32(buf[4:8])),
		MaxSize:      int32(binary.LittleEndian.Uint32(buf[8:12])),
		ParentPageID: primitives.PageID(binary.LittleEndian.Uint32(buf[12:16])),
		LSN:          primitives.LSN(binary.LittleEndian.Uint32(buf[16:20])),
	}
}

func encodeHeader(buf []byte, h Header) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.PageType))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.Size))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(h.MaxSize))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(h.ParentPageID))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(h.LSN))
}

// PeekType reads just the page type from a raw 4096-byte page, used by the
// btree to decide which decoder to run without a second disk read.
func PeekType(raw []byte) PageType {
	return PageType(binary.LittleEndian.Uint32(raw[0:4]))
}

// PeekSizes reads just the occupancy fields of a raw page's header, letting
// the btree's latch-crabbing decide whether a node is "safe" without
// decoding its full key/child arrays.
func PeekSizes(raw []byte) (size, maxSize int32) {
	h := decodeHeader(raw)
	return h.Size, h.MaxSize
}

const leafHeaderLen = headerLen + 4 // + next_page_id
const entryLen = 8 + 8              // int64 key + uint64 RID

// LeafPage holds an ordered (key, RID) array plus a forward link to the
// right sibling, per the common leaf layout.
type LeafPage struct {
	Header
	NextPageID primitives.PageID
	Keys       []int64
	Values     []primitives.RID
}

// NewLeafPage creates an empty leaf with the given max size, parented under
// parent (primitives.InvalidPageID for the root).
func NewLeafPage(maxSize int32, parent primitives.PageID) *LeafPage {
	return &LeafPage{
		Header: Header{
			PageType:     LeafPageType,
			Size:         0,
			MaxSize:      maxSize,
			ParentPageID: parent,
		},
		NextPageID: primitives.InvalidPageID,
	}
}

// Serialize writes the leaf into a fresh Size-byte buffer.
func (l *LeafPage) Serialize() []byte {
	buf := make([]byte, Size)
	l.Header.Size = int32(len(l.Keys))
	encodeHeader(buf, l.Header)
	binary.LittleEndian.PutUint32(buf[headerLen:headerLen+4], uint32(l.NextPageID))

	off := leafHeaderLen
	for i := range l.Keys {
		binary.LittleEndian.PutUint64(buf[off:off+8], uint64(l.Keys[i]))
		binary.LittleEndian.PutUint64(buf[off+8:off+16], uint64(l.Values[i]))
		off += entryLen
	}
	return buf
}

// DeserializeLeafPage parses a raw page previously written by Serialize.
func DeserializeLeafPage(raw []byte) *LeafPage {
	h := decodeHeader(raw)
	l := &LeafPage{
		Header:     h,
		NextPageID: primitives.PageID(binary.LittleEndian.Uint32(raw[headerLen : headerLen+4])),
	}
	l.Keys = make([]int64, h.Size)
	l.Values = make([]primitives.RID, h.Size)
	off := leafHeaderLen
	for i := 0; i < int(h.Size); i++ {
		l.Keys[i] = int64(binary.LittleEndian.Uint64(raw[off : off+8]))
		l.Values[i] = primitives.RID(binary.LittleEndian.Uint64(raw[off+8 : off+16]))
		off += entryLen
	}
	return l
}

const internalEntryLen = 8 + 4 // int64 key + uint32 child page id

// InternalPage holds an ordered array of (key, child_page_id) pairs; slot
// 0's key is unused (the first child covers everything below Keys[1]).
type InternalPage struct {
	Header
	Keys     []int64
	Children []primitives.PageID
}

// NewInternalPage creates an empty internal page.
func NewInternalPage(maxSize int32, parent primitives.PageID) *InternalPage {
	return &InternalPage{
		Header: Header{
			PageType:     InternalPageType,
			Size:         0,
			MaxSize:      maxSize,
			ParentPageID: parent,
		},
	}
}

// Serialize writes the internal page into a fresh Size-byte buffer.
func (p *InternalPage) Serialize() []byte {
	buf := make([]byte, Size)
	p.Header.Size = int32(len(p.Children))
	encodeHeader(buf, p.Header)

	off := headerLen
	for i := range p.Children {
		binary.LittleEndian.PutUint64(buf[off:off+8], uint64(p.Keys[i]))
		binary.LittleEndian.PutUint32(buf[off+8:off+12], uint32(p.Children[i]))
		off += internalEntryLen
	}
	return buf
}

// DeserializeInternalPage parses a raw page previously written by Serialize.
func DeserializeInternalPage(raw []byte) *InternalPage {
	h := decodeHeader(raw)
	p := &InternalPage{Header: h}
	p.Keys = make([]int64, h.Size)
	p.Children = make([]primitives.PageID, h.Size)
	off := headerLen
	for i := 0; i < int(h.Size); i++ {
		p.Keys[i] = int64(binary.LittleEndian.Uint64(raw[off : off+8]))
		p.Children[i] = primitives.PageID(binary.LittleEndian.Uint32(raw[off+8 : off+12]))
		off += internalEntryLen
	}
	return p
}

// IsFull reports whether a leaf has reached its max size (the insert path
// must split before adding past this point).
func (l *LeafPage) IsFull() bool { return int(l.Header.Size) >= int(l.MaxSize) || len(l.Keys) >= int(l.MaxSize) }

// IsFull reports whether an internal page has reached its max size (child
// count, not separator count).
func (p *InternalPage) IsFull() bool { return len(p.Children) >= int(p.MaxSize) }

// MinSize is ceil(max_size/2), the minimum occupancy a non-root page must
// keep after a delete before the tree rebalances.
func MinSize(maxSize int32) int {
	return int((maxSize + 1) / 2)
}
