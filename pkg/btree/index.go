// Package btree implements a disk-backed B+ tree index over the buffer
// pool: search, insert with node splitting, delete with merge/redistribute,
// and a forward leaf-linked iterator. Concurrent access is coordinated with
// latch crabbing: a root latch guarding the tree's root pointer, plus a
// read/write latch per page, released as soon as a node is provably "safe"
// from the structural change in flight.
package btree

import (
	"sync"

	"coredb/pkg/buffer"
	"coredb/pkg/page"
	"coredb/pkg/primitives"
)

// Index is a single B+ tree keyed on int64, one of the fixed-width key
// instantiations the page layout supports.
type Index struct {
	bpm             *buffer.Manager
	name            string
	leafMaxSize     int32
	internalMaxSize int32

	rootLatch  sync.RWMutex
	rootPageID primitives.PageID
}

// Open loads (or lazily creates on first insert) the index named name,
// backed by bpm. leafMaxSize and internalMaxSize bound node occupancy.
func Open(bpm *buffer.Manager, name string, leafMaxSize, internalMaxSize int32) *Index {
	root, ok := GetRootPageID(bpm, name)
	if !ok {
		root = primitives.InvalidPageID
	}
	return &Index{
		bpm:             bpm,
		name:            name,
		leafMaxSize:     leafMaxSize,
		internalMaxSize: internalMaxSize,
		rootPageID:      root,
	}
}

// IsEmpty reports whether the tree has no root yet.
func (idx *Index) IsEmpty() bool {
	idx.rootLatch.RLock()
	defer idx.rootLatch.RUnlock()
	return idx.rootPageID == primitives.InvalidPageID
}

type ancestorEntry struct {
	frame  *buffer.Frame
	pageID primitives.PageID
}

func loadLeaf(frame *buffer.Frame) *page.LeafPage {
	return page.DeserializeLeafPage(frame.Data)
}

func storeLeaf(frame *buffer.Frame, l *page.LeafPage) {
	copy(frame.Data, l.Serialize())
}

func loadInternal(frame *buffer.Frame) *page.InternalPage {
	return page.DeserializeInternalPage(frame.Data)
}

func storeInternal(frame *buffer.Frame, p *page.InternalPage) {
	copy(frame.Data, p.Serialize())
}

// findKey binary-searches a sorted key slice, returning the position of an
// exact match (found=true) or the insertion point that keeps the slice
// sorted (found=false).
func findKey(keys []int64, key int64) (pos int, found bool) {
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case keys[mid] == key:
			return mid, true
		case keys[mid] < key:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return lo, false
}

// findChildIndex returns the index of the child to descend into for key:
// the largest i in [1, len(Keys)) with Keys[i] <= key, or 0 if key is
// smaller than every real separator.
func findChildIndex(internal *page.InternalPage, key int64) int {
	lo, hi := 1, len(internal.Keys)-1
	res := 0
	for lo <= hi {
		mid := (lo + hi) / 2
		if internal.Keys[mid] <= key {
			res = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return res
}

func indexOfChild(parent *page.InternalPage, childID primitives.PageID) int {
	for i, c := range parent.Children {
		if c == childID {
			return i
		}
	}
	return -1
}

func isSafeToInsert(frame *buffer.Frame) bool {
	size, maxSize := page.PeekSizes(frame.Data)
	return size < maxSize
}

func isSafeToDelete(frame *buffer.Frame) bool {
	size, maxSize := page.PeekSizes(frame.Data)
	return int(size) > page.MinSize(maxSize)
}

// releaseAncestors unlocks and unpins every held frame in ancestors. Only
// the last entry (the node the caller just finished writing, if any) is
// unpinned dirty; everything above it was left untouched.
func (idx *Index) releaseAncestors(ancestors []ancestorEntry, lastDirty bool) {
	for i, a := range ancestors {
		dirty := i == len(ancestors)-1 && lastDirty
		a.frame.Unlock()
		idx.bpm.UnpinPage(a.pageID, dirty)
	}
}

// setChildParent rewrites a page's parent_page_id in place. Used whenever a
// child migrates to a new parent during a split, merge, or redistribute.
func (idx *Index) setChildParent(childID primitives.PageID, parentID primitives.PageID) {
	frame, ok := idx.bpm.FetchPage(childID)
	if !ok {
		return
	}
	frame.Lock()
	if page.PeekType(frame.Data) == page.LeafPageType {
		l := loadLeaf(frame)
		l.ParentPageID = parentID
		storeLeaf(frame, l)
	} else {
		p := loadInternal(frame)
		p.ParentPageID = parentID
		storeInternal(frame, p)
	}
	frame.Unlock()
	idx.bpm.UnpinPage(childID, true)
}
