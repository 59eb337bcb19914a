package gc

// StackPoolSweeper is the external collaborator spec.md §1 calls out as
// out of scope in its own right - the task/thread-local storage
// provider that owns per-thread GC frame-chain pools - but which sweep
// must still invoke at the right point in C8's step order (spec.md
// §4.8 step 2: "sweep_stack_pools"). A Collector with no sweeper
// configured simply skips this step.
type StackPoolSweeper interface {
	// SweepStackPools reclaims stack-pool chunks the sweeper itself owns
	// that did not survive this cycle. full mirrors every other sweep
	// step's quick/full distinction: a quick sweep's caller must not
	// assume an old, unmarked chunk is dead.
	SweepStackPools(full bool)
}

// ForeignObjectSweeper is the out-of-scope foreign finalizer dispatch
// collaborator (spec.md §1), invoked at C8 step 3 (spec.md §4.8
// "sweep_foreign_objs: dispatch per-object sweepfunc, compact
// scheduling list"). Unlike a managed finalizer, a foreign object's own
// sweepfunc decides whether and how to run, and owns compacting its own
// scheduling list; this package only needs to call it at the right
// point in the sweep order.
type ForeignObjectSweeper interface {
	SweepForeignObjects(full bool)
}
