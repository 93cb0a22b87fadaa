package btree

import (
	"coredb/pkg/page"
	"coredb/pkg/primitives"
)

// Get returns the RID stored under key, if present. Read-only traversals
// crab downward with read latches, releasing each ancestor as soon as its
// child is latched, since a reader never needs to retrace its path.
func (idx *Index) Get(key int64) (primitives.RID, bool) {
	idx.rootLatch.RLock()
	root := idx.rootPageID
	if root == primitives.InvalidPageID {
		idx.rootLatch.RUnlock()
		return 0, false
	}

	frame, ok := idx.bpm.FetchPage(root)
	if !ok {
		idx.rootLatch.RUnlock()
		return 0, false
	}
	frame.RLock()
	idx.rootLatch.RUnlock()

	curFrame, curID := frame, root
	for {
		switch {
		case page.PeekType(curFrame.Data) == page.LeafPageType:
			leaf := loadLeaf(curFrame)
			pos, found := findKey(leaf.Keys, key)
			curFrame.RUnlock()
			idx.bpm.UnpinPage(curID, false)
			if !found {
				return 0, false
			}
			return leaf.Values[pos], true
		default:
			internal := loadInternal(curFrame)
			childIdx := findChildIndex(internal, key)
			childID := internal.Children[childIdx]

			childFrame, ok := idx.bpm.FetchPage(childID)
			if !ok {
				curFrame.RUnlock()
				idx.bpm.UnpinPage(curID, false)
				return 0, false
			}
			childFrame.RLock()

			curFrame.RUnlock()
			idx.bpm.UnpinPage(curID, false)

			curFrame, curID = childFrame, childID
		}
	}
}
