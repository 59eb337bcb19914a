// Package gc implements the core of a non-moving, precise, generational,
// stop-the-world mark-and-sweep collector for a managed-language runtime.
//
// A Collector owns every process-wide piece of mutable GC state (the page
// source, the permanent arena, the finalizer lists, the safepoint slot);
// Mutators are the per-thread allocators that register with it. Mutators
// allocate through Pool (small objects), the big-object list (large
// objects) and the permanent arena (immortal data); a write barrier
// invoked on every store of a pointer into an old object keeps a
// remembered set so the mark phase does not have to rescan all of the
// old generation.
//
// See pool.go and bigobj.go for the allocation fast paths, mark.go and
// sweep.go for the collection phases, and collector.go for how a cycle
// is driven end to end.
package gc
