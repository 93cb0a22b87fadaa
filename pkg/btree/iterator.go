package btree

import (
	"coredb/pkg/buffer"
	"coredb/pkg/page"
	"coredb/pkg/primitives"
)

// Iterator walks leaf entries in ascending key order via the forward
// sibling links, holding a read latch on at most one leaf at a time.
// Copying an Iterator is forbidden: it owns a pinned, latched frame.
type Iterator struct {
	idx     *Index
	frame   *buffer.Frame
	pageID  primitives.PageID
	leaf    *page.LeafPage
	pos     int
	exhausted bool
}

// NewIterator starts an iterator at the leftmost leaf of the tree.
func (idx *Index) NewIterator() *Iterator {
	idx.rootLatch.RLock()
	root := idx.rootPageID
	if root == primitives.InvalidPageID {
		idx.rootLatch.RUnlock()
		return &Iterator{idx: idx, exhausted: true}
	}

	frame, ok := idx.bpm.FetchPage(root)
	if !ok {
		idx.rootLatch.RUnlock()
		return &Iterator{idx: idx, exhausted: true}
	}
	frame.RLock()
	idx.rootLatch.RUnlock()

	curFrame, curID := frame, root
	for page.PeekType(curFrame.Data) != page.LeafPageType {
		internal := loadInternal(curFrame)
		childID := internal.Children[0]
		childFrame, ok := idx.bpm.FetchPage(childID)
		if !ok {
			curFrame.RUnlock()
			idx.bpm.UnpinPage(curID, false)
			return &Iterator{idx: idx, exhausted: true}
		}
		childFrame.RLock()
		curFrame.RUnlock()
		idx.bpm.UnpinPage(curID, false)
		curFrame, curID = childFrame, childID
	}

	return &Iterator{idx: idx, frame: curFrame, pageID: curID, leaf: loadLeaf(curFrame)}
}

// Seek starts an iterator positioned at the first key >= key.
func (idx *Index) Seek(key int64) *Iterator {
	idx.rootLatch.RLock()
	root := idx.rootPageID
	if root == primitives.InvalidPageID {
		idx.rootLatch.RUnlock()
		return &Iterator{idx: idx, exhausted: true}
	}

	frame, ok := idx.bpm.FetchPage(root)
	if !ok {
		idx.rootLatch.RUnlock()
		return &Iterator{idx: idx, exhausted: true}
	}
	frame.RLock()
	idx.rootLatch.RUnlock()

	curFrame, curID := frame, root
	for page.PeekType(curFrame.Data) != page.LeafPageType {
		internal := loadInternal(curFrame)
		childIdx := findChildIndex(internal, key)
		childID := internal.Children[childIdx]
		childFrame, ok := idx.bpm.FetchPage(childID)
		if !ok {
			curFrame.RUnlock()
			idx.bpm.UnpinPage(curID, false)
			return &Iterator{idx: idx, exhausted: true}
		}
		childFrame.RLock()
		curFrame.RUnlock()
		idx.bpm.UnpinPage(curID, false)
		curFrame, curID = childFrame, childID
	}

	leaf := loadLeaf(curFrame)
	pos, _ := findKey(leaf.Keys, key)
	it := &Iterator{idx: idx, frame: curFrame, pageID: curID, leaf: leaf, pos: pos}
	if pos >= len(leaf.Keys) {
		// Every key here is < key; the first larger one starts the next leaf.
		it.pos = pos - 1
		it.Next()
	}
	return it
}

// Valid reports whether the iterator currently sits on an entry.
func (it *Iterator) Valid() bool {
	return !it.exhausted && it.leaf != nil && it.pos < len(it.leaf.Keys)
}

// Key and RID return the entry the iterator currently sits on. Only valid
// when Valid() is true.
func (it *Iterator) Key() int64           { return it.leaf.Keys[it.pos] }
func (it *Iterator) RID() primitives.RID  { return it.leaf.Values[it.pos] }

// Next advances the iterator, crossing to the next leaf via its sibling
// link when the current one is exhausted.
func (it *Iterator) Next() {
	if it.exhausted {
		return
	}
	it.pos++
	for it.leaf != nil && it.pos >= len(it.leaf.Keys) {
		next := it.leaf.NextPageID
		it.frame.RUnlock()
		it.idx.bpm.UnpinPage(it.pageID, false)

		if next == primitives.InvalidPageID {
			it.exhausted = true
			it.frame = nil
			it.leaf = nil
			return
		}

		frame, ok := it.idx.bpm.FetchPage(next)
		if !ok {
			it.exhausted = true
			it.frame = nil
			it.leaf = nil
			return
		}
		frame.RLock()
		it.frame = frame
		it.pageID = next
		it.leaf = loadLeaf(frame)
		it.pos = 0
	}
}

// Close releases the iterator's held leaf latch and pin, if any. Callers
// must call Close once done, including when stopping early.
func (it *Iterator) Close() {
	if it.frame == nil {
		return
	}
	it.frame.RUnlock()
	it.idx.bpm.UnpinPage(it.pageID, false)
	it.frame = nil
	it.leaf = nil
	it.exhausted = true
}
