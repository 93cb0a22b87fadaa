package disk

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"

	"coredb/pkg/page"
	"coredb/pkg/primitives"
)

func TestNewReservesHeaderPage(t *testing.T) {
	fs := afero.NewMemMapFs()
	m, err := New(fs, "/data/pages.db")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Close()

	buf, err := m.ReadPage(HeaderPageID)
	if err != nil {
		t.Fatalf("ReadPage(0): %v", err)
	}
	if len(buf) != page.Size {
		t.Fatalf("ReadPage(0) len = %d; want %d", len(buf), page.Size)
	}

	first := m.AllocatePage()
	if first == HeaderPageID {
		t.Fatalf("AllocatePage() = header page id; want a fresh page")
	}
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	fs := afero.NewMemMapFs()
	m, err := New(fs, "/data/pages.db")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Close()

	pid := m.AllocatePage()
	want := bytes.Repeat([]byte{0xAB}, page.Size)
	if err := m.WritePage(pid, want); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	got, err := m.ReadPage(pid)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("ReadPage returned different bytes than written")
	}
}

func TestAllocatePageIsMonotonicAndNeverReused(t *testing.T) {
	fs := afero.NewMemMapFs()
	m, err := New(fs, "/data/pages.db")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Close()

	seen := map[primitives.PageID]bool{}
	for i := 0; i < 10; i++ {
		pid := m.AllocatePage()
		if seen[pid] {
			t.Fatalf("AllocatePage returned duplicate id %d", pid)
		}
		seen[pid] = true
	}
}

func TestWritePageRejectsWrongLength(t *testing.T) {
	fs := afero.NewMemMapFs()
	m, err := New(fs, "/data/pages.db")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Close()

	pid := m.AllocatePage()
	if err := m.WritePage(pid, []byte{1, 2, 3}); err == nil {
		t.Fatalf("WritePage with bad length: got nil error")
	}
}

func TestReopenPreservesNextPageCounter(t *testing.T) {
	fs := afero.NewMemMapFs()
	m1, err := New(fs, "/data/pages.db")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m1.AllocatePage()
	m1.AllocatePage()
	if err := m1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	m2, err := New(fs, "/data/pages.db")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer m2.Close()

	pid := m2.AllocatePage()
	if pid < 3 {
		t.Fatalf("AllocatePage() after reopen = %d; want >= 3", pid)
	}
}
