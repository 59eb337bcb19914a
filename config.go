package gc

import (
	"os"
	"runtime"

	"github.com/rs/zerolog"
)

// PromoteAge is how many sweeps (quick or full) a young object must
// survive marked before it is promoted to OLD (spec.md §6:
// "PROMOTE_AGE = 1"). sweepPage does not read it; its single per-cell
// age bit promotes on the next marked sweep after the first survival.
const PromoteAge = 1

// PermPoolSize is the slab size the permanent arena maps at a time
// (spec.md §6: "GC_PERM_POOL_SIZE = 2 MiB").
const PermPoolSize = 2 << 20

// PoolLimit is the cutoff above which a permanent-arena request
// bypasses the slab allocator and maps directly from the OS
// (spec.md §4.4).
const PoolLimit = PermPoolSize / 8

// Tunables holds every knob spec.md §6 names, scoped to one Collector
// instead of the teacher's process-wide package vars (see DESIGN.md,
// "mutable shared state").
type Tunables struct {
	// DefaultCollectInterval is the allocation budget between
	// automatic cycles before any heuristic adjustment
	// (spec.md: "5600*1024*word on 64-bit").
	DefaultCollectInterval uint64
	// MaxCollectInterval upper-clamps the interval retune computes.
	// Zero means no clamp.
	MaxCollectInterval uint64
	// MaxTotalMemory is the soft ceiling past which every cycle
	// becomes full. Zero means unlimited.
	MaxTotalMemory uint64
	// ConservativeGCSupport enables InternalObjBasePtr, forcing a full
	// sweep on first enable so age bits become meaningful (spec.md §6,
	// §9 open question).
	ConservativeGCSupport bool
	// LazyPageCap bounds how many fully-empty pages a quick sweep will
	// keep parked in their pool instead of returning to the page
	// allocator (spec.md §4.8 step 6).
	LazyPageCap int
}

// DefaultTunables returns the spec.md §6 defaults. MaxCollectInterval
// is totalmem/cpus/2 when totalSystemMemoryHint reports a size; that
// hint always returns 0, so the default is the int32-max clamp.
func DefaultTunables() Tunables {
	maxInterval := uint64(1<<31 - 1)
	if mem := totalSystemMemoryHint(); mem > 0 {
		cpus := uint64(runtime.NumCPU())
		if cpus == 0 {
			cpus = 1
		}
		maxInterval = mem / cpus / 2
	}
	return Tunables{
		DefaultCollectInterval: 5600 * 1024 * uint64(WordSize),
		MaxCollectInterval:     maxInterval,
		MaxTotalMemory:         0,
		ConservativeGCSupport:  false,
		LazyPageCap:            100,
	}
}

// totalSystemMemoryHint is deliberately conservative: this package has
// no portable "total physical memory" primitive in the standard
// library or in its dependency set, so it returns 0 (meaning "use the
// int32-max clamp above") rather than shelling out to /proc or WMI.
// A caller that knows its machine's memory size should set
// MaxCollectInterval explicitly via WithMaxCollectInterval.
func totalSystemMemoryHint() uint64 { return 0 }

// Option configures a Collector at construction time.
type Option func(*Collector)

// WithTunables overrides every tunable at once.
func WithTunables(t Tunables) Option {
	return func(c *Collector) { c.tunables = t }
}

// WithMaxTotalMemory sets the soft heap ceiling.
func WithMaxTotalMemory(n uint64) Option {
	return func(c *Collector) { c.tunables.MaxTotalMemory = n }
}

// WithMaxCollectInterval overrides the auto-tuned clamp.
func WithMaxCollectInterval(n uint64) Option {
	return func(c *Collector) { c.tunables.MaxCollectInterval = n }
}

// WithConservativeGC turns on InternalObjBasePtr support.
func WithConservativeGC() Option {
	return func(c *Collector) { c.tunables.ConservativeGCSupport = true }
}

// WithLogger replaces the default logger (a Warn-level zerolog console
// writer to stderr, so debug output is silent unless a caller asks).
func WithLogger(l zerolog.Logger) Option {
	return func(c *Collector) { c.log = l }
}

// WithStackPoolSweeper wires the C8 step-2 collaborator (spec.md §4.8).
func WithStackPoolSweeper(s StackPoolSweeper) Option {
	return func(c *Collector) { c.stackPools = s }
}

// WithForeignObjectSweeper wires the C8 step-3 collaborator (spec.md §4.8).
func WithForeignObjectSweeper(s ForeignObjectSweeper) Option {
	return func(c *Collector) { c.foreignObjs = s }
}

func defaultLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger().
		Level(zerolog.WarnLevel)
}
