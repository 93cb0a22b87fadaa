package btree

import (
	"encoding/binary"

	"coredb/pkg/buffer"
	"coredb/pkg/primitives"
)

// The header page (page 0) is a simple linear directory of
// (name-length, name, root-page-id) records, rewritten wholesale on every
// update. Index counts are small enough in this core that this beats
// building a slotted-page layout just for the directory.

func readHeaderEntries(data []byte) map[string]primitives.PageID {
	entries := map[string]primitives.PageID{}
	count := binary.LittleEndian.Uint32(data[0:4])
	off := 4
	for i := uint32(0); i < count; i++ {
		nameLen := int(binary.LittleEndian.Uint32(data[off : off+4]))
		off += 4
		name := string(data[off : off+nameLen])
		off += nameLen
		root := primitives.PageID(binary.LittleEndian.Uint32(data[off : off+4]))
		off += 4
		entries[name] = root
	}
	return entries
}

func writeHeaderEntries(entries map[string]primitives.PageID) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(entries)))
	for name, root := range entries {
		var nameLenBuf [4]byte
		binary.LittleEndian.PutUint32(nameLenBuf[:], uint32(len(name)))
		buf = append(buf, nameLenBuf[:]...)
		buf = append(buf, name...)
		var rootBuf [4]byte
		binary.LittleEndian.PutUint32(rootBuf[:], uint32(root))
		buf = append(buf, rootBuf[:]...)
	}
	return buf
}

// GetRootPageID looks up name's root page id in the header page, returning
// ok=false if the index has no root yet (an empty tree).
func GetRootPageID(bpm *buffer.Manager, name string) (primitives.PageID, bool) {
	frame, ok := bpm.FetchPage(headerPageID)
	if !ok {
		return primitives.InvalidPageID, false
	}
	frame.RLock()
	entries := readHeaderEntries(frame.Data)
	frame.RUnlock()
	bpm.UnpinPage(headerPageID, false)

	root, found := entries[name]
	return root, found
}

// SetRootPageID persists name's new root page id into the header page.
func SetRootPageID(bpm *buffer.Manager, name string, root primitives.PageID) {
	frame, ok := bpm.FetchPage(headerPageID)
	if !ok {
		return
	}
	frame.Lock()
	entries := readHeaderEntries(frame.Data)
	entries[name] = root
	encoded := writeHeaderEntries(entries)
	copy(frame.Data, make([]byte, len(frame.Data)))
	copy(frame.Data, encoded)
	frame.Unlock()
	bpm.UnpinPage(headerPageID, true)
}

const headerPageID primitives.PageID = 0
