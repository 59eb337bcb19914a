package gc

// OSPageSource is the external collaborator spec.md §1 calls "the OS
// page allocator": it maps and decommits raw memory. This package never
// talks to the kernel directly outside of pagesource_unix.go and
// pagesource_windows.go, which implement this contract with
// golang.org/x/sys; everything else (the clean/to_madvise/madvised
// pools, the block-at-a-time sourcing policy) lives in pagealloc.go and
// only ever calls through this interface.
type OSPageSource interface {
	// MapBlock reserves and commits a fresh, page-aligned block of n
	// bytes from the OS, zeroed. n is always a multiple of PageSize.
	MapBlock(n int) (base uintptr, mem []byte, err error)
	// Decommit hints that the OS may reclaim the physical pages backing
	// [base, base+n), without unmapping the virtual address range
	// (MADV_FREE/MADV_DONTNEED, or VirtualFree(MEM_DECOMMIT) on
	// Windows - spec.md §4.1).
	Decommit(base uintptr, n int)
	// Recommit undoes Decommit, touching the range so it is safe to
	// write into again (a no-op everywhere but Windows, where decommit
	// actually unmaps the pages).
	Recommit(base uintptr, n int) error
}
