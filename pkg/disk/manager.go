// Package disk implements the byte-level page store the buffer pool reads
// through and writes back to: a flat file of fixed-size pages behind an
// afero.Fs, so the whole core can run against an in-memory filesystem in
// tests and a real one in production without touching call sites.
package disk

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/spf13/afero"

	"coredb/pkg/dberr"
	"coredb/pkg/page"
	"coredb/pkg/primitives"
)

// HeaderPageID is reserved for the index-name -> root-page-id directory.
const HeaderPageID primitives.PageID = 0

// Manager is the disk-backed page store. Page 0 is never handed out by
// AllocatePage; it is reserved for the header page the btree package uses
// to look up and persist each index's root page id.
type Manager struct {
	fs       afero.Fs
	path     string
	mu       sync.Mutex
	file     afero.File
	nextPage atomic.Uint32
}

// New opens (creating if absent) the single flat page file at path on fs,
// sizing nextPage from the file's current length.
func New(fs afero.Fs, path string) (*Manager, error) {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, dberr.Wrap(err, "DISK_STAT_FAILED", "New", "disk")
	}

	f, err := fs.OpenFile(path, pageFileFlags, 0o640)
	if err != nil {
		return nil, dberr.Wrap(err, "DISK_OPEN_FAILED", "New", "disk")
	}

	m := &Manager{fs: fs, path: path, file: f}

	if !exists {
		if err := m.writeAt(HeaderPageID, make([]byte, page.Size)); err != nil {
			return nil, err
		}
		m.nextPage.Store(1)
		return m, nil
	}

	info, err := f.Stat()
	if err != nil {
		return nil, dberr.Wrap(err, "DISK_STAT_FAILED", "New", "disk")
	}
	pages := uint32(info.Size() / page.Size)
	if pages == 0 {
		pages = 1
	}
	m.nextPage.Store(pages)
	return m, nil
}

const pageFileFlags = os.O_RDWR | os.O_CREATE

// ReadPage fills a Size-byte buffer with the contents of pageID.
func (m *Manager) ReadPage(pageID primitives.PageID) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, page.Size)
	off := int64(pageID) * page.Size
	n, err := m.file.ReadAt(buf, off)
	if err != nil && n != page.Size {
		return nil, dberr.Wrap(err, "DISK_READ_FAILED", "ReadPage", "disk")
	}
	return buf, nil
}

// WritePage persists exactly Size bytes at pageID's offset.
func (m *Manager) WritePage(pageID primitives.PageID, data []byte) error {
	if len(data) != page.Size {
		return dberr.New(dberr.ErrCategoryData, "DISK_BAD_PAGE_LEN",
			fmt.Sprintf("write page %d: got %d bytes, want %d", pageID, len(data), page.Size))
	}
	return m.writeAt(pageID, data)
}

func (m *Manager) writeAt(pageID primitives.PageID, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	off := int64(pageID) * page.Size
	if _, err := m.file.WriteAt(data, off); err != nil {
		return dberr.Wrap(err, "DISK_WRITE_FAILED", "WritePage", "disk")
	}
	return nil
}

// AllocatePage reserves and returns the next page id, monotonically
// increasing and never reused even after DeallocatePage. The file is
// extended with a zeroed page at the new id so that a reopen sizes
// nextPage past every id already handed out; a failed extension still
// leaves the id allocated.
func (m *Manager) AllocatePage() primitives.PageID {
	pid := primitives.PageID(m.nextPage.Add(1) - 1)
	_ = m.writeAt(pid, make([]byte, page.Size))
	return pid
}

// DeallocatePage is a bookkeeping no-op in this core: freed pages are never
// reclaimed or reused, so there is nothing to record beyond the buffer
// pool dropping its mapping.
func (m *Manager) DeallocatePage(primitives.PageID) {}

// Close flushes and closes the underlying file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.file.Sync(); err != nil {
		return dberr.Wrap(err, "DISK_SYNC_FAILED", "Close", "disk")
	}
	return m.file.Close()
}
