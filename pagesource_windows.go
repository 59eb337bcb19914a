//go:build windows

package gc

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// windowsPageSource implements OSPageSource with VirtualAlloc/VirtualFree
// (spec.md §4.1: "on Windows VirtualFree(MEM_DECOMMIT)").
type windowsPageSource struct{}

func newOSPageSource() OSPageSource {
	return windowsPageSource{}
}

func (windowsPageSource) MapBlock(n int) (uintptr, []byte, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(n), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return 0, nil, fmt.Errorf("gc: VirtualAlloc %d bytes: %w", n, err)
	}
	mem := unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
	return addr, mem, nil
}

func (windowsPageSource) Decommit(base uintptr, n int) {
	// VirtualFree(MEM_DECOMMIT) unmaps the physical pages but keeps the
	// address range reserved, unlike MADV_FREE on unix.
	_ = windows.VirtualFree(base, uintptr(n), windows.MEM_DECOMMIT)
}

func (windowsPageSource) Recommit(base uintptr, n int) error {
	_, err := windows.VirtualAlloc(base, uintptr(n), windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil {
		return fmt.Errorf("gc: VirtualAlloc (recommit) %d bytes: %w", n, err)
	}
	return nil
}
