package btree

import (
	"coredb/pkg/page"
	"coredb/pkg/primitives"
)

// Insert adds (key, rid) to the tree, returning false if key already
// exists. Uses optimistic latch crabbing: ancestor latches (and the root
// latch) are released as soon as a node is provably safe from the
// insertion's structural effects, so most inserts only ever hold a single
// page latch by the time they reach the leaf.
func (idx *Index) Insert(key int64, rid primitives.RID) bool {
	idx.rootLatch.Lock()
	rootHeld := true

	if idx.rootPageID == primitives.InvalidPageID {
		leafID, leafFrame, ok := idx.bpm.NewPage()
		if !ok {
			idx.rootLatch.Unlock()
			return false
		}
		leaf := page.NewLeafPage(idx.leafMaxSize, primitives.InvalidPageID)
		leaf.Keys = []int64{key}
		leaf.Values = []primitives.RID{rid}
		storeLeaf(leafFrame, leaf)
		idx.bpm.UnpinPage(leafID, true)

		idx.rootPageID = leafID
		SetRootPageID(idx.bpm, idx.name, leafID)
		idx.rootLatch.Unlock()
		return true
	}

	var ancestors []ancestorEntry
	curID := idx.rootPageID
	curFrame, ok := idx.bpm.FetchPage(curID)
	if !ok {
		idx.rootLatch.Unlock()
		return false
	}
	curFrame.Lock()

	if isSafeToInsert(curFrame) {
		idx.rootLatch.Unlock()
		rootHeld = false
	}
	ancestors = append(ancestors, ancestorEntry{curFrame, curID})

	for page.PeekType(curFrame.Data) != page.LeafPageType {
		internal := loadInternal(curFrame)
		childIdx := findChildIndex(internal, key)
		childID := internal.Children[childIdx]

		childFrame, ok := idx.bpm.FetchPage(childID)
		if !ok {
			idx.releaseAncestors(ancestors, false)
			if rootHeld {
				idx.rootLatch.Unlock()
			}
			return false
		}
		childFrame.Lock()

		if isSafeToInsert(childFrame) {
			idx.releaseAncestors(ancestors, false)
			ancestors = ancestors[:0]
			if rootHeld {
				idx.rootLatch.Unlock()
				rootHeld = false
			}
		}
		ancestors = append(ancestors, ancestorEntry{childFrame, childID})
		curFrame, curID = childFrame, childID
	}

	leaf := loadLeaf(curFrame)
	pos, found := findKey(leaf.Keys, key)
	if found {
		idx.releaseAncestors(ancestors, false)
		if rootHeld {
			idx.rootLatch.Unlock()
		}
		return false
	}

	leaf.Keys = insertInt64At(leaf.Keys, pos, key)
	leaf.Values = insertRIDAt(leaf.Values, pos, rid)

	if len(leaf.Keys) <= int(leaf.MaxSize) {
		storeLeaf(curFrame, leaf)
		idx.releaseAncestors(ancestors, true)
		if rootHeld {
			idx.rootLatch.Unlock()
		}
		return true
	}

	// Overflow: split the leaf.
	n := len(leaf.Keys)
	leftCount := (n + 1) / 2

	newLeafID, newLeafFrame, ok := idx.bpm.NewPage()
	if !ok {
		// No frame to complete the split; leave leaf state as-is (it still
		// contains the inserted key beyond max_size, a soft overflow) and
		// surface failure to the caller.
		storeLeaf(curFrame, leaf)
		idx.releaseAncestors(ancestors, true)
		if rootHeld {
			idx.rootLatch.Unlock()
		}
		return false
	}

	newLeaf := page.NewLeafPage(idx.leafMaxSize, primitives.InvalidPageID)
	newLeaf.Keys = append([]int64(nil), leaf.Keys[leftCount:]...)
	newLeaf.Values = append([]primitives.RID(nil), leaf.Values[leftCount:]...)
	newLeaf.NextPageID = leaf.NextPageID

	leaf.Keys = leaf.Keys[:leftCount]
	leaf.Values = leaf.Values[:leftCount]
	leaf.NextPageID = newLeafID

	storeLeaf(curFrame, leaf)
	storeLeaf(newLeafFrame, newLeaf)

	separator := newLeaf.Keys[0]
	leftID := curID

	curFrame.Unlock()
	idx.bpm.UnpinPage(leftID, true)
	idx.bpm.UnpinPage(newLeafID, true)

	idx.insertIntoParent(ancestors[:len(ancestors)-1], leftID, separator, newLeafID, &rootHeld)
	return true
}

// insertIntoParent installs (leftID, sepKey, rightID) into the immediate
// parent held at the top of ancestors, splitting that parent (and
// recursing further up) if it overflows, or allocating a brand new root if
// leftID was the root.
func (idx *Index) insertIntoParent(ancestors []ancestorEntry, leftID primitives.PageID, sepKey int64, rightID primitives.PageID, rootHeld *bool) {
	if len(ancestors) == 0 {
		newRootID, newRootFrame, ok := idx.bpm.NewPage()
		if !ok {
			if *rootHeld {
				idx.rootLatch.Unlock()
				*rootHeld = false
			}
			return
		}
		newRoot := page.NewInternalPage(idx.internalMaxSize, primitives.InvalidPageID)
		newRoot.Children = []primitives.PageID{leftID, rightID}
		newRoot.Keys = []int64{0, sepKey}
		storeInternal(newRootFrame, newRoot)
		idx.bpm.UnpinPage(newRootID, true)

		idx.setChildParent(leftID, newRootID)
		idx.setChildParent(rightID, newRootID)

		idx.rootPageID = newRootID
		SetRootPageID(idx.bpm, idx.name, newRootID)
		if *rootHeld {
			idx.rootLatch.Unlock()
			*rootHeld = false
		}
		return
	}

	parentEntry := ancestors[len(ancestors)-1]
	parent := loadInternal(parentEntry.frame)

	insertPos := indexOfChild(parent, leftID) + 1
	parent.Children = insertPageIDAt(parent.Children, insertPos, rightID)
	parent.Keys = insertInt64At(parent.Keys, insertPos, sepKey)

	idx.setChildParent(rightID, parentEntry.pageID)

	if len(parent.Children) <= int(idx.internalMaxSize) {
		storeInternal(parentEntry.frame, parent)
		idx.releaseAncestors(ancestors, true)
		if *rootHeld {
			idx.rootLatch.Unlock()
			*rootHeld = false
		}
		return
	}

	n := len(parent.Children)
	leftCount := (n + 1) / 2

	leftChildren := append([]primitives.PageID(nil), parent.Children[:leftCount]...)
	leftKeys := append([]int64(nil), parent.Keys[:leftCount]...)
	rightChildren := append([]primitives.PageID(nil), parent.Children[leftCount:]...)
	rightKeys := make([]int64, len(rightChildren))
	copy(rightKeys[1:], parent.Keys[leftCount+1:])
	promoted := parent.Keys[leftCount]

	parent.Children = leftChildren
	parent.Keys = leftKeys
	storeInternal(parentEntry.frame, parent)

	newInternalID, newInternalFrame, ok := idx.bpm.NewPage()
	if !ok {
		parentEntry.frame.Unlock()
		idx.bpm.UnpinPage(parentEntry.pageID, true)
		idx.releaseAncestors(ancestors[:len(ancestors)-1], false)
		if *rootHeld {
			idx.rootLatch.Unlock()
			*rootHeld = false
		}
		return
	}
	newInternal := page.NewInternalPage(idx.internalMaxSize, primitives.InvalidPageID)
	newInternal.Children = rightChildren
	newInternal.Keys = rightKeys
	storeInternal(newInternalFrame, newInternal)
	idx.bpm.UnpinPage(newInternalID, true)

	for _, childID := range rightChildren {
		idx.setChildParent(childID, newInternalID)
	}

	parentEntry.frame.Unlock()
	idx.bpm.UnpinPage(parentEntry.pageID, true)

	idx.insertIntoParent(ancestors[:len(ancestors)-1], parentEntry.pageID, promoted, newInternalID, rootHeld)
}

func insertInt64At(s []int64, pos int, v int64) []int64 {
	s = append(s, 0)
	copy(s[pos+1:], s[pos:])
	s[pos] = v
	return s
}

func insertRIDAt(s []primitives.RID, pos int, v primitives.RID) []primitives.RID {
	s = append(s, 0)
	copy(s[pos+1:], s[pos:])
	s[pos] = v
	return s
}

func insertPageIDAt(s []primitives.PageID, pos int, v primitives.PageID) []primitives.PageID {
	s = append(s, 0)
	copy(s[pos+1:], s[pos:])
	s[pos] = v
	return s
}
