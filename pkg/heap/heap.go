package heap

import (
	"coredb/pkg/buffer"
	"coredb/pkg/primitives"
	"coredb/pkg/tuple"
)

// TableHeap is an unordered sequence of heap pages linked in allocation
// order, all access routed through the buffer pool.
type TableHeap struct {
	bpm         *buffer.Manager
	firstPageID primitives.PageID
	lastPageID  primitives.PageID
}

// NewTableHeap allocates the heap's first page.
func NewTableHeap(bpm *buffer.Manager) *TableHeap {
	pid, frame, ok := bpm.NewPage()
	if !ok {
		panic("heap: buffer pool exhausted creating the first heap page")
	}
	hp := NewHeapPage()
	copy(frame.Data, hp.Encode())
	bpm.UnpinPage(pid, true)

	return &TableHeap{bpm: bpm, firstPageID: pid, lastPageID: pid}
}

// OpenTableHeap resumes an existing heap given its first page id.
func OpenTableHeap(bpm *buffer.Manager, firstPageID primitives.PageID) *TableHeap {
	th := &TableHeap{bpm: bpm, firstPageID: firstPageID, lastPageID: firstPageID}
	pid := firstPageID
	for {
		frame, ok := bpm.FetchPage(pid)
		if !ok {
			break
		}
		frame.RLock()
		hp := DecodeHeapPage(frame.Data)
		frame.RUnlock()
		bpm.UnpinPage(pid, false)
		if hp.NextPageID == primitives.InvalidPageID {
			th.lastPageID = pid
			break
		}
		pid = hp.NextPageID
	}
	return th
}

// FirstPageID exposes the heap's starting page, e.g. for catalog bookkeeping.
func (th *TableHeap) FirstPageID() primitives.PageID { return th.firstPageID }

// InsertTuple appends t to the last page of the heap, allocating a fresh
// page (linked via NextPageID) when the last one is full. Returns the
// tuple's new RID.
func (th *TableHeap) InsertTuple(t *tuple.Tuple) (primitives.RID, bool) {
	frame, ok := th.bpm.FetchPage(th.lastPageID)
	if !ok {
		return 0, false
	}
	frame.Lock()
	hp := DecodeHeapPage(frame.Data)
	slotIdx, inserted := hp.InsertTuple(t.Data)
	if inserted {
		copy(frame.Data, hp.Encode())
		frame.Unlock()
		th.bpm.UnpinPage(th.lastPageID, true)
		return primitives.NewRID(th.lastPageID, slotIdx), true
	}
	frame.Unlock()
	th.bpm.UnpinPage(th.lastPageID, false)

	newPageID, newFrame, ok := th.bpm.NewPage()
	if !ok {
		return 0, false
	}
	newHP := NewHeapPage()
	slotIdx, inserted = newHP.InsertTuple(t.Data)
	if !inserted {
		th.bpm.UnpinPage(newPageID, false)
		return 0, false
	}
	copy(newFrame.Data, newHP.Encode())
	th.bpm.UnpinPage(newPageID, true)

	oldFrame, ok := th.bpm.FetchPage(th.lastPageID)
	if ok {
		oldFrame.Lock()
		oldHP := DecodeHeapPage(oldFrame.Data)
		oldHP.NextPageID = newPageID
		copy(oldFrame.Data, oldHP.Encode())
		oldFrame.Unlock()
		th.bpm.UnpinPage(th.lastPageID, true)
	}

	th.lastPageID = newPageID
	return primitives.NewRID(newPageID, slotIdx), true
}

// GetTuple reads the tuple named by rid, or false if it has been deleted.
func (th *TableHeap) GetTuple(rid primitives.RID) (*tuple.Tuple, bool) {
	frame, ok := th.bpm.FetchPage(rid.PageID())
	if !ok {
		return nil, false
	}
	frame.RLock()
	hp := DecodeHeapPage(frame.Data)
	data, found := hp.GetTuple(rid.Slot())
	frame.RUnlock()
	th.bpm.UnpinPage(rid.PageID(), false)
	if !found {
		return nil, false
	}
	return tuple.FromBytes(append([]byte(nil), data...)), true
}

// DeleteTuple tombstones rid's slot.
func (th *TableHeap) DeleteTuple(rid primitives.RID) bool {
	frame, ok := th.bpm.FetchPage(rid.PageID())
	if !ok {
		return false
	}
	frame.Lock()
	hp := DecodeHeapPage(frame.Data)
	deleted := hp.DeleteTuple(rid.Slot())
	if deleted {
		copy(frame.Data, hp.Encode())
	}
	frame.Unlock()
	th.bpm.UnpinPage(rid.PageID(), deleted)
	return deleted
}

// Iterator scans every live tuple in the heap in page/slot order.
type Iterator struct {
	th        *TableHeap
	pageID    primitives.PageID
	slotIdx   uint32
	page      *HeapPage
	exhausted bool
}

// NewIterator starts a scan at the heap's first page.
func (th *TableHeap) NewIterator() *Iterator {
	it := &Iterator{th: th, pageID: th.firstPageID}
	it.loadPage()
	it.advanceToLive()
	return it
}

func (it *Iterator) loadPage() {
	frame, ok := it.th.bpm.FetchPage(it.pageID)
	if !ok {
		it.exhausted = true
		return
	}
	frame.RLock()
	it.page = DecodeHeapPage(frame.Data)
	frame.RUnlock()
	it.th.bpm.UnpinPage(it.pageID, false)
	it.slotIdx = 0
}

func (it *Iterator) advanceToLive() {
	for !it.exhausted {
		if it.page == nil {
			it.exhausted = true
			return
		}
		if int(it.slotIdx) < len(it.page.Slots) {
			if !it.page.IsTombstone(it.slotIdx) {
				return
			}
			it.slotIdx++
			continue
		}
		if it.page.NextPageID == primitives.InvalidPageID {
			it.exhausted = true
			return
		}
		it.pageID = it.page.NextPageID
		it.loadPage()
	}
}

// Valid reports whether the iterator sits on a live tuple.
func (it *Iterator) Valid() bool { return !it.exhausted }

// Current returns the tuple and RID the iterator sits on.
func (it *Iterator) Current() (*tuple.Tuple, primitives.RID) {
	data, _ := it.page.GetTuple(it.slotIdx)
	rid := primitives.NewRID(it.pageID, it.slotIdx)
	return tuple.FromBytes(append([]byte(nil), data...)), rid
}

// Next advances to the next live tuple.
func (it *Iterator) Next() {
	if it.exhausted {
		return
	}
	it.slotIdx++
	it.advanceToLive()
}
