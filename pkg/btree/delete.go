package btree

import (
	"coredb/pkg/buffer"
	"coredb/pkg/page"
	"coredb/pkg/primitives"
)

// Delete removes key from the tree, returning false if it was absent. The
// root latch is held for the whole operation: demoting the root when its
// last internal child absorbs everything below it needs to rewrite
// rootPageID, and the simplest way to keep that correct is to never let a
// concurrent insert or delete observe a half-updated root pointer.
// Descent below the root still crabs with per-page latches, releasing an
// ancestor as soon as its child is provably safe from underflow.
func (idx *Index) Delete(key int64) bool {
	idx.rootLatch.Lock()
	defer idx.rootLatch.Unlock()

	if idx.rootPageID == primitives.InvalidPageID {
		return false
	}

	var ancestors []ancestorEntry
	curID := idx.rootPageID
	curFrame, ok := idx.bpm.FetchPage(curID)
	if !ok {
		return false
	}
	curFrame.Lock()
	ancestors = append(ancestors, ancestorEntry{curFrame, curID})

	for page.PeekType(curFrame.Data) != page.LeafPageType {
		internal := loadInternal(curFrame)
		childIdx := findChildIndex(internal, key)
		childID := internal.Children[childIdx]

		childFrame, ok := idx.bpm.FetchPage(childID)
		if !ok {
			idx.releaseAncestors(ancestors, false)
			return false
		}
		childFrame.Lock()

		if isSafeToDelete(childFrame) {
			idx.releaseAncestors(ancestors, false)
			ancestors = ancestors[:0]
		}
		ancestors = append(ancestors, ancestorEntry{childFrame, childID})
		curFrame, curID = childFrame, childID
	}

	leaf := loadLeaf(curFrame)
	pos, found := findKey(leaf.Keys, key)
	if !found {
		idx.releaseAncestors(ancestors, false)
		return false
	}

	leaf.Keys = append(leaf.Keys[:pos], leaf.Keys[pos+1:]...)
	leaf.Values = append(leaf.Values[:pos], leaf.Values[pos+1:]...)
	storeLeaf(curFrame, leaf)

	idx.deleteEntry(ancestors)
	return true
}

// deleteEntry rebalances ancestors[len(ancestors)-1] (already modified by
// the caller) after one of its entries was removed, merging or
// redistributing with a sibling as needed, and recursing into its parent
// when a merge deletes a child from it.
func (idx *Index) deleteEntry(ancestors []ancestorEntry) {
	cur := ancestors[len(ancestors)-1]

	if cur.pageID == idx.rootPageID {
		idx.handleRootAfterDelete(cur)
		return
	}

	typ := page.PeekType(cur.frame.Data)
	var curSize, maxSize int32
	if typ == page.LeafPageType {
		l := loadLeaf(cur.frame)
		curSize, maxSize = int32(len(l.Keys)), l.MaxSize
	} else {
		p := loadInternal(cur.frame)
		curSize, maxSize = int32(len(p.Children)), p.MaxSize
	}

	if curSize >= int32(page.MinSize(maxSize)) {
		idx.releaseAncestors(ancestors, true)
		return
	}

	parentEntry := ancestors[len(ancestors)-2]
	parent := loadInternal(parentEntry.frame)
	curPos := indexOfChild(parent, cur.pageID)

	siblingIsRight := curPos+1 < len(parent.Children)
	var siblingPos int
	if siblingIsRight {
		siblingPos = curPos + 1
	} else {
		siblingPos = curPos - 1
	}
	siblingID := parent.Children[siblingPos]

	siblingFrame, ok := idx.bpm.FetchPage(siblingID)
	if !ok {
		idx.releaseAncestors(ancestors, true)
		return
	}
	siblingFrame.Lock()

	var leftFrame, rightFrame = cur.frame, siblingFrame
	var leftID, rightID, rightPos = cur.pageID, siblingID, siblingPos
	if !siblingIsRight {
		leftFrame, rightFrame = siblingFrame, cur.frame
		leftID, rightID, rightPos = siblingID, cur.pageID, curPos
	}
	separator := parent.Keys[rightPos]

	if typ == page.LeafPageType {
		idx.rebalanceLeaf(ancestors, parentEntry, parent, leftFrame, leftID, rightFrame, rightID, rightPos, separator, cur, siblingFrame, siblingID, siblingIsRight)
	} else {
		idx.rebalanceInternal(ancestors, parentEntry, parent, leftFrame, leftID, rightFrame, rightID, rightPos, separator, cur, siblingFrame, siblingID, siblingIsRight)
	}
}

func (idx *Index) rebalanceLeaf(
	ancestors []ancestorEntry, parentEntry ancestorEntry, parent *page.InternalPage,
	leftFrame *buffer.Frame, leftID primitives.PageID, rightFrame *buffer.Frame, rightID primitives.PageID,
	rightPos int, separator int64,
	cur ancestorEntry, siblingFrame *buffer.Frame, siblingID primitives.PageID, siblingIsRight bool,
) {
	left := loadLeaf(leftFrame)
	right := loadLeaf(rightFrame)

	if len(left.Keys)+len(right.Keys) <= int(left.MaxSize) {
		left.Keys = append(left.Keys, right.Keys...)
		left.Values = append(left.Values, right.Values...)
		left.NextPageID = right.NextPageID
		storeLeaf(leftFrame, left)

		leftFrame.Unlock()
		idx.bpm.UnpinPage(leftID, true)
		rightFrame.Unlock()
		idx.bpm.UnpinPage(rightID, true)
		idx.bpm.DeletePage(rightID)

		parent.Keys = append(parent.Keys[:rightPos], parent.Keys[rightPos+1:]...)
		parent.Children = append(parent.Children[:rightPos], parent.Children[rightPos+1:]...)
		storeInternal(parentEntry.frame, parent)

		idx.deleteEntry(ancestors[:len(ancestors)-1])
		return
	}

	if siblingIsRight {
		movedKey, movedVal := right.Keys[0], right.Values[0]
		right.Keys = right.Keys[1:]
		right.Values = right.Values[1:]
		left.Keys = append(left.Keys, movedKey)
		left.Values = append(left.Values, movedVal)
		parent.Keys[rightPos] = right.Keys[0]
	} else {
		n := len(left.Keys)
		movedKey, movedVal := left.Keys[n-1], left.Values[n-1]
		left.Keys = left.Keys[:n-1]
		left.Values = left.Values[:n-1]
		right.Keys = append([]int64{movedKey}, right.Keys...)
		right.Values = append([]primitives.RID{movedVal}, right.Values...)
		parent.Keys[rightPos] = movedKey
	}
	storeLeaf(leftFrame, left)
	storeLeaf(rightFrame, right)
	storeInternal(parentEntry.frame, parent)

	cur.frame.Unlock()
	idx.bpm.UnpinPage(cur.pageID, true)
	siblingFrame.Unlock()
	idx.bpm.UnpinPage(siblingID, true)
	idx.releaseAncestors(ancestors[:len(ancestors)-1], true)
}

func (idx *Index) rebalanceInternal(
	ancestors []ancestorEntry, parentEntry ancestorEntry, parent *page.InternalPage,
	leftFrame *buffer.Frame, leftID primitives.PageID, rightFrame *buffer.Frame, rightID primitives.PageID,
	rightPos int, separator int64,
	cur ancestorEntry, siblingFrame *buffer.Frame, siblingID primitives.PageID, siblingIsRight bool,
) {
	left := loadInternal(leftFrame)
	right := loadInternal(rightFrame)

	if len(left.Children)+len(right.Children) <= int(left.MaxSize) {
		rightKeys := append([]int64{separator}, right.Keys[1:]...)
		left.Keys = append(left.Keys, rightKeys...)
		left.Children = append(left.Children, right.Children...)
		storeInternal(leftFrame, left)

		for _, childID := range right.Children {
			idx.setChildParent(childID, leftID)
		}

		leftFrame.Unlock()
		idx.bpm.UnpinPage(leftID, true)
		rightFrame.Unlock()
		idx.bpm.UnpinPage(rightID, true)
		idx.bpm.DeletePage(rightID)

		parent.Keys = append(parent.Keys[:rightPos], parent.Keys[rightPos+1:]...)
		parent.Children = append(parent.Children[:rightPos], parent.Children[rightPos+1:]...)
		storeInternal(parentEntry.frame, parent)

		idx.deleteEntry(ancestors[:len(ancestors)-1])
		return
	}

	if siblingIsRight {
		movedChild := right.Children[0]
		left.Children = append(left.Children, movedChild)
		left.Keys = append(left.Keys, separator)
		newSeparator := right.Keys[1]

		right.Children = right.Children[1:]
		right.Keys = append([]int64{0}, right.Keys[2:]...)

		parent.Keys[rightPos] = newSeparator
		idx.setChildParent(movedChild, leftID)
	} else {
		n := len(left.Children)
		movedChild := left.Children[n-1]
		newSeparator := left.Keys[n-1]

		left.Children = left.Children[:n-1]
		left.Keys = left.Keys[:n-1]

		right.Children = append([]primitives.PageID{movedChild}, right.Children...)
		newRightKeys := make([]int64, len(right.Keys)+1)
		newRightKeys[1] = separator
		copy(newRightKeys[2:], right.Keys[1:])
		right.Keys = newRightKeys

		parent.Keys[rightPos] = newSeparator
		idx.setChildParent(movedChild, rightID)
	}
	storeInternal(leftFrame, left)
	storeInternal(rightFrame, right)
	storeInternal(parentEntry.frame, parent)

	cur.frame.Unlock()
	idx.bpm.UnpinPage(cur.pageID, true)
	siblingFrame.Unlock()
	idx.bpm.UnpinPage(siblingID, true)
	idx.releaseAncestors(ancestors[:len(ancestors)-1], true)
}

// handleRootAfterDelete shrinks the tree's height when the root is an
// internal page left with a single child, or clears rootPageID entirely
// when a leaf root becomes empty.
func (idx *Index) handleRootAfterDelete(cur ancestorEntry) {
	if page.PeekType(cur.frame.Data) == page.InternalPageType {
		internal := loadInternal(cur.frame)
		if len(internal.Children) == 1 {
			newRootID := internal.Children[0]
			idx.rootPageID = newRootID
			SetRootPageID(idx.bpm, idx.name, newRootID)
			idx.setChildParent(newRootID, primitives.InvalidPageID)

			cur.frame.Unlock()
			idx.bpm.UnpinPage(cur.pageID, false)
			idx.bpm.DeletePage(cur.pageID)
			return
		}
		cur.frame.Unlock()
		idx.bpm.UnpinPage(cur.pageID, true)
		return
	}

	leaf := loadLeaf(cur.frame)
	if len(leaf.Keys) == 0 {
		idx.rootPageID = primitives.InvalidPageID
		SetRootPageID(idx.bpm, idx.name, primitives.InvalidPageID)
		cur.frame.Unlock()
		idx.bpm.UnpinPage(cur.pageID, false)
		idx.bpm.DeletePage(cur.pageID)
		return
	}
	cur.frame.Unlock()
	idx.bpm.UnpinPage(cur.pageID, true)
}
