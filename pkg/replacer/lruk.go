// Package replacer implements the LRU-K page replacement policy used by the
// buffer pool to choose which unpinned frame to evict.
package replacer

import (
	"container/list"
	"sync"
)

const infDistance = ^uint64(0)

// frameState tracks the access history of one evictable frame. history
// keeps only the last k timestamps, the only ones that matter for the
// backward k-distance calculation.
type frameState struct {
	history   *list.List // access timestamps, oldest first, len <= k
	evictable bool
}

// LRUKReplacer picks an eviction victim by backward k-distance: the gap
// between the current timestamp and the k-th most recent access. A frame
// with fewer than k recorded accesses has infinite backward k-distance and
// is preferred for eviction over any frame that has been accessed k times;
// ties among infinite-distance frames break by earliest first access (pure
// LRU among the under-observed frames).
type LRUKReplacer struct {
	mu       sync.Mutex
	k        int
	frames   map[uint64]*frameState
	size     int // number of evictable frames
	capacity int
	clock    uint64
}

// NewLRUKReplacer creates a replacer over capacity frames, each identified
// by an opaque frame id in RecordAccess/Evict calls.
func NewLRUKReplacer(capacity, k int) *LRUKReplacer {
	return &LRUKReplacer{
		k:        k,
		frames:   make(map[uint64]*frameState),
		capacity: capacity,
	}
}

// RecordAccess logs an access to frameID at the current logical timestamp.
// A frame is created untracked-but-not-evictable on its first access; the
// caller must call SetEvictable once it is safe to reclaim.
func (r *LRUKReplacer) RecordAccess(frameID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clock++

	fs, ok := r.frames[frameID]
	if !ok {
		fs = &frameState{history: list.New()}
		r.frames[frameID] = fs
	}

	fs.history.PushBack(r.clock)
	if fs.history.Len() > r.k {
		fs.history.Remove(fs.history.Front())
	}
}

// SetEvictable marks a frame's eviction eligibility. The buffer pool sets
// this to false while a frame is pinned and true once its pin count drops
// to zero.
func (r *LRUKReplacer) SetEvictable(frameID uint64, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fs, ok := r.frames[frameID]
	if !ok {
		return
	}
	if fs.evictable == evictable {
		return
	}
	fs.evictable = evictable
	if evictable {
		r.size++
	} else {
		r.size--
	}
}

// Evict chooses and removes the victim frame with the largest backward
// k-distance, clearing its history. Returns false if no evictable frame
// exists.
func (r *LRUKReplacer) Evict() (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		victimID       uint64
		found          bool
		worstDistance  uint64
		worstFirstSeen uint64
	)

	for id, fs := range r.frames {
		if !fs.evictable {
			continue
		}

		distance := infDistance
		firstSeen := fs.history.Front().Value.(uint64)
		if fs.history.Len() >= r.k {
			kth := fs.history.Front().Value.(uint64)
			distance = r.clock - kth
		}

		if !found ||
			distance > worstDistance ||
			(distance == infDistance && worstDistance == infDistance && firstSeen < worstFirstSeen) {
			found = true
			victimID = id
			worstDistance = distance
			worstFirstSeen = firstSeen
		}
	}

	if !found {
		return 0, false
	}

	delete(r.frames, victimID)
	r.size--
	return victimID, true
}

// Remove drops a frame's access history entirely, used when a page is
// deleted from the buffer pool outright. It is an error (a no-op here) to
// remove a pinned frame; callers must SetEvictable(true) first per the
// buffer pool's own invariant checks.
func (r *LRUKReplacer) Remove(frameID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fs, ok := r.frames[frameID]
	if !ok {
		return
	}
	if !fs.evictable {
		return
	}
	r.size--
	delete(r.frames, frameID)
}

// Size returns the number of frames currently eligible for eviction.
func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}
