// Package buffer implements the bounded-memory buffer pool manager: a fixed
// array of frames backed by disk, with pin counts, dirty tracking, and
// eviction resolved through an LRU-K replacer. The page_id -> frame_id
// mapping is kept in an extendible hash table rather than a plain Go map,
// mirroring the page table the rest of the core treats as a first-class
// component.
package buffer

import (
	"sync"

	"coredb/pkg/dberr"
	"coredb/pkg/disk"
	"coredb/pkg/hashtable"
	"coredb/pkg/logging"
	"coredb/pkg/page"
	"coredb/pkg/primitives"
	"coredb/pkg/replacer"
)

// Frame is one slot of the buffer pool. At most one page is resident in a
// frame at a time; FrameID is stable for the process lifetime, while the
// PageID it holds changes across evictions.
type Frame struct {
	mu       sync.RWMutex
	FrameID  uint64
	PageID   primitives.PageID
	Data     []byte
	PinCount int
	IsDirty  bool
}

// Lock / Unlock / RLock / RUnlock expose the frame's own latch, used by the
// btree package for the page-level latch-crabbing protocol. The buffer
// pool's own mutex only protects pool bookkeeping (page table, free list,
// replacer), never page contents.
func (f *Frame) Lock()    { f.mu.Lock() }
func (f *Frame) Unlock()  { f.mu.Unlock() }
func (f *Frame) RLock()   { f.mu.RLock() }
func (f *Frame) RUnlock() { f.mu.RUnlock() }

// Manager is the buffer pool. A single mutex protects the free list, page
// table, replacer, and per-frame pin/dirty bookkeeping; page *contents* are
// protected independently by each Frame's own latch.
type Manager struct {
	mu        sync.Mutex
	disk      *disk.Manager
	frames    []*Frame
	pageTable *hashtable.ExtendibleHashTable[primitives.PageID, uint64]
	replacer  *replacer.LRUKReplacer
	freeList  []uint64
}

func pageIDHash(id primitives.PageID) uint64 {
	x := uint64(id)
	x = (x ^ (x >> 16)) * 0x45d9f3b
	x = (x ^ (x >> 16)) * 0x45d9f3b
	return x ^ (x >> 16)
}

// NewManager creates a pool of poolSize frames over disk, evicting via
// LRU-K with history depth k.
func NewManager(disk *disk.Manager, poolSize int, k int) *Manager {
	m := &Manager{
		disk:      disk,
		frames:    make([]*Frame, poolSize),
		pageTable: hashtable.New[primitives.PageID, uint64](pageIDHash),
		replacer:  replacer.NewLRUKReplacer(poolSize, k),
		freeList:  make([]uint64, poolSize),
	}
	for i := 0; i < poolSize; i++ {
		m.frames[i] = &Frame{FrameID: uint64(i), PageID: primitives.InvalidPageID}
		m.freeList[i] = uint64(poolSize - 1 - i)
	}
	return m
}

// reserveFrame obtains a free frame, flushing and evicting the LRU-K victim
// if the free list is exhausted. Returns nil if every frame is pinned.
// Caller must hold m.mu.
func (m *Manager) reserveFrame() *Frame {
	if n := len(m.freeList); n > 0 {
		id := m.freeList[n-1]
		m.freeList = m.freeList[:n-1]
		return m.frames[id]
	}

	victimID, ok := m.replacer.Evict()
	if !ok {
		return nil
	}

	victim := m.frames[victimID]
	victim.mu.Lock()
	if victim.PinCount != 0 {
		victim.mu.Unlock()
		logging.Error("buffer: replacer chose a pinned frame", "frame_id", victimID)
		return nil
	}
	if victim.IsDirty {
		if err := m.disk.WritePage(victim.PageID, victim.Data); err != nil {
			logging.Error("buffer: flush on eviction failed", "page_id", victim.PageID, "error", err)
		}
		victim.IsDirty = false
	}
	m.pageTable.Remove(victim.PageID)
	victim.mu.Unlock()
	return victim
}

// NewPage allocates a fresh page, pins it, and returns its id and frame.
// Returns ok=false if every frame is pinned.
func (m *Manager) NewPage() (primitives.PageID, *Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	frame := m.reserveFrame()
	if frame == nil {
		return 0, nil, false
	}

	pid := m.disk.AllocatePage()

	frame.mu.Lock()
	frame.PageID = pid
	frame.Data = make([]byte, page.Size)
	frame.PinCount = 1
	frame.IsDirty = false
	frame.mu.Unlock()

	m.pageTable.Insert(pid, frame.FrameID)
	m.replacer.RecordAccess(frame.FrameID)
	m.replacer.SetEvictable(frame.FrameID, false)
	return pid, frame, true
}

// FetchPage returns the frame holding pageID, pinning it and reading it
// from disk first if not already resident. Returns ok=false if a fetch
// would require eviction but every frame is pinned.
func (m *Manager) FetchPage(pageID primitives.PageID) (*Frame, bool) {
	m.mu.Lock()

	if frameID, hit := m.pageTable.Find(pageID); hit {
		frame := m.frames[frameID]
		frame.mu.Lock()
		frame.PinCount++
		frame.mu.Unlock()
		m.replacer.RecordAccess(frameID)
		m.replacer.SetEvictable(frameID, false)
		m.mu.Unlock()
		return frame, true
	}

	frame := m.reserveFrame()
	if frame == nil {
		m.mu.Unlock()
		return nil, false
	}

	data, err := m.disk.ReadPage(pageID)
	if err != nil {
		logging.Error("buffer: read page failed", "page_id", pageID, "error", err)
		m.freeList = append(m.freeList, frame.FrameID)
		m.mu.Unlock()
		return nil, false
	}

	frame.mu.Lock()
	frame.PageID = pageID
	frame.Data = data
	frame.PinCount = 1
	frame.IsDirty = false
	frame.mu.Unlock()

	m.pageTable.Insert(pageID, frame.FrameID)
	m.replacer.RecordAccess(frame.FrameID)
	m.replacer.SetEvictable(frame.FrameID, false)
	m.mu.Unlock()
	return frame, true
}

// UnpinPage decrements a page's pin count, marking it dirty if isDirty (a
// page is never un-marked dirty by unpinning, only by a successful flush).
// When the pin count reaches zero the frame becomes eligible for eviction.
// Returns false if the page is not resident or already unpinned to zero.
func (m *Manager) UnpinPage(pageID primitives.PageID, isDirty bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	frameID, hit := m.pageTable.Find(pageID)
	if !hit {
		return false
	}

	frame := m.frames[frameID]
	frame.mu.Lock()
	defer frame.mu.Unlock()

	if frame.PinCount <= 0 {
		return false
	}
	if isDirty {
		frame.IsDirty = true
	}
	frame.PinCount--
	if frame.PinCount == 0 {
		m.replacer.SetEvictable(frameID, true)
	}
	return true
}

// FlushPage writes a resident page's bytes to disk and clears its dirty
// flag, independent of pin state. Returns false if the page is not
// resident.
func (m *Manager) FlushPage(pageID primitives.PageID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushLocked(pageID)
}

func (m *Manager) flushLocked(pageID primitives.PageID) bool {
	frameID, hit := m.pageTable.Find(pageID)
	if !hit {
		return false
	}

	frame := m.frames[frameID]
	frame.mu.Lock()
	defer frame.mu.Unlock()

	if err := m.disk.WritePage(pageID, frame.Data); err != nil {
		logging.Error("buffer: flush failed", "page_id", pageID, "error", err)
		return false
	}
	frame.IsDirty = false
	return true
}

// FlushAll writes every resident, mapped page to disk.
func (m *Manager) FlushAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for _, frame := range m.frames {
		frame.mu.RLock()
		pid := frame.PageID
		resident := pid != primitives.InvalidPageID
		frame.mu.RUnlock()
		if !resident {
			continue
		}
		if _, hit := m.pageTable.Find(pid); !hit {
			continue
		}
		if !m.flushLocked(pid) && firstErr == nil {
			firstErr = dberr.New(dberr.ErrCategorySystem, "BUFFER_FLUSH_ALL_FAILED", "flush all pages failed partway through")
		}
	}
	return firstErr
}

// DeletePage removes a page from the pool and deallocates it on disk.
// Unknown pages return true (nothing to do); pinned pages return false.
// Dirty content is discarded, never flushed.
func (m *Manager) DeletePage(pageID primitives.PageID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	frameID, hit := m.pageTable.Find(pageID)
	if !hit {
		return true
	}

	frame := m.frames[frameID]
	frame.mu.Lock()
	if frame.PinCount > 0 {
		frame.mu.Unlock()
		return false
	}
	frame.PageID = primitives.InvalidPageID
	frame.Data = nil
	frame.IsDirty = false
	frame.mu.Unlock()

	m.pageTable.Remove(pageID)
	m.replacer.Remove(frameID)
	m.freeList = append(m.freeList, frameID)
	m.disk.DeallocatePage(pageID)
	return true
}

// PoolSize returns the number of frames in the pool.
func (m *Manager) PoolSize() int { return len(m.frames) }
