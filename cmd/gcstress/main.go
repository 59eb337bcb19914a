// Command gcstress drives the collector against a toy object graph, to
// exercise allocation, the write barrier, and both sweep kinds outside
// of a unit test.
package main

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	gc "github.com/embedded-rt/gcrt"
)

// toyObj is the payload a toyOracle hands out addresses for. Real
// embedders keep their own object representation entirely; this one
// exists only so the demo has something to allocate and link.
type toyObj struct {
	fields []uintptr
}

// toyOracle is the minimal TypeOracle this demo needs: every type is
// the same shape (a fixed number of pointer fields), and "byte offset"
// is reinterpreted as a field index, which TypeOracle's doc comment
// explicitly allows ("in the oracle's own units per Width").
type toyOracle struct {
	objects map[uintptr]*toyObj
	fields  int
}

func newToyOracle(fields int) *toyOracle {
	return &toyOracle{objects: make(map[uintptr]*toyObj), fields: fields}
}

// register associates addr, a real value* the collector just handed
// out, with a fresh payload. The oracle never invents addresses of its
// own: every object it can describe was allocated through a Mutator
// first.
func (o *toyOracle) register(addr uintptr) {
	o.objects[addr] = &toyObj{fields: make([]uintptr, o.fields)}
}

func (o *toyOracle) SizeOf(t gc.TypeRef) uintptr { return uintptr(8 * 4) }

func (o *toyOracle) Layout(t gc.TypeRef) gc.Layout {
	offsets := make([]uint32, o.fields)
	for i := range offsets {
		offsets[i] = uint32(i)
	}
	return gc.Layout{Desc: gc.FieldDescObj, Width: gc.OffsetWidth32, Offsets: offsets}
}

func (o *toyOracle) DynMark(c *gc.Collector, mut *gc.Mutator, obj uintptr) gc.MarkBits { return 0 }

func (o *toyOracle) ReadSlot(obj uintptr, byteOffset uintptr, width gc.PtrOffsetWidth) uintptr {
	ob, ok := o.objects[obj]
	if !ok || int(byteOffset) >= len(ob.fields) {
		return 0
	}
	return ob.fields[byteOffset]
}

func (o *toyOracle) link(obj uintptr, slot int, target uintptr) {
	o.objects[obj].fields[slot] = target
}

func main() {
	root := &cobra.Command{
		Use:   "gcstress",
		Short: "Exercise the collector with a randomly linked object graph",
	}

	var objects, cycles, fields int
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Allocate objects, link them randomly, and run collections",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress(objects, cycles, fields)
		},
	}
	runCmd.Flags().IntVar(&objects, "objects", 10000, "objects to allocate per cycle")
	runCmd.Flags().IntVar(&cycles, "cycles", 5, "allocation/collection cycles to run")
	runCmd.Flags().IntVar(&fields, "fields", 3, "pointer fields per object")
	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runStress(objects, cycles, fields int) error {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger().Level(zerolog.InfoLevel)

	oracle := newToyOracle(fields)
	c := gc.NewCollector(oracle, gc.WithLogger(log))
	mut := c.NewMutator()

	var roots []uintptr
	for cycle := 0; cycle < cycles; cycle++ {
		for i := 0; i < objects; i++ {
			addr, err := mut.AllocTyped(0)
			if err != nil {
				return fmt.Errorf("alloc: %w", err)
			}
			oracle.register(addr)
			if len(roots) > 0 && fields > 0 {
				target := roots[rand.Intn(len(roots))]
				oracle.link(addr, 0, target)
				mut.QueueBinding(addr, target, func() uintptr { return target })
			}
			if i%97 == 0 {
				roots = append(roots, addr)
				mut.AddRoot(addr)
			}
		}
		kind := gc.CollectAuto
		if cycle == cycles-1 {
			kind = gc.CollectFull
		}
		if err := c.Collect(kind); err != nil {
			return fmt.Errorf("collect: %w", err)
		}
		stats := c.Num()
		log.Info().
			Uint64("cycles", stats.Cycles).
			Uint64("full_cycles", stats.FullCycles).
			Int64("live_bytes", stats.LiveBytes).
			Bool("last_full", stats.LastWasFull).
			Msg("collection complete")
	}
	return nil
}
