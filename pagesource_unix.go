//go:build unix

package gc

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// unixPageSource implements OSPageSource with mmap/madvise, the
// default OSPageSource on Linux, Darwin and the BSDs (spec.md §4.1:
// "MADV_FREE preferred, falling back to MADV_DONTNEED").
type unixPageSource struct {
	madviseFree bool // whether MADV_FREE is supported on this kernel
}

func newOSPageSource() OSPageSource {
	return &unixPageSource{madviseFree: true}
}

func (s *unixPageSource) MapBlock(n int) (uintptr, []byte, error) {
	mem, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return 0, nil, fmt.Errorf("gc: mmap %d bytes: %w", n, err)
	}
	base := uintptr(unsafe.Pointer(&mem[0]))
	return base, mem, nil
}

func (s *unixPageSource) Decommit(base uintptr, n int) {
	mem := unsafe.Slice((*byte)(unsafe.Pointer(base)), n)
	if s.madviseFree {
		if err := unix.Madvise(mem, unix.MADV_FREE); err == nil {
			return
		}
		// MADV_FREE unsupported on this kernel (e.g. Linux < 4.5);
		// stop trying it and fall back for the rest of the process.
		s.madviseFree = false
	}
	_ = unix.Madvise(mem, unix.MADV_DONTNEED)
}

func (s *unixPageSource) Recommit(base uintptr, n int) error {
	// Neither MADV_FREE nor MADV_DONTNEED unmaps the range; the pages
	// are simply re-faulted in lazily on first touch, so there is
	// nothing to undo here.
	return nil
}
