package gc

// stubOracle is a minimal TypeOracle for tests that only need a
// Collector/Mutator to exist, not to scan a real object graph.
type stubOracle struct {
	size   uintptr
	layout Layout
}

func (s *stubOracle) SizeOf(t TypeRef) uintptr { return s.size }
func (s *stubOracle) Layout(t TypeRef) Layout  { return s.layout }
func (s *stubOracle) DynMark(c *Collector, mut *Mutator, obj uintptr) MarkBits {
	return 0
}
func (s *stubOracle) ReadSlot(obj uintptr, byteOffset uintptr, width PtrOffsetWidth) uintptr {
	return 0
}

// linkedOracle is a small test double that models objects as a fixed
// number of pointer-sized fields, keyed by their real collector
// address, so mark.go's scan path can be exercised end to end.
type linkedOracle struct {
	fields  int
	objects map[uintptr][]uintptr
}

func newLinkedOracle(fields int) *linkedOracle {
	return &linkedOracle{fields: fields, objects: make(map[uintptr][]uintptr)}
}

func (o *linkedOracle) register(addr uintptr) {
	o.objects[addr] = make([]uintptr, o.fields)
}

func (o *linkedOracle) link(addr uintptr, slot int, target uintptr) {
	o.objects[addr][slot] = target
}

func (o *linkedOracle) SizeOf(t TypeRef) uintptr { return 32 }

func (o *linkedOracle) Layout(t TypeRef) Layout {
	offsets := make([]uint32, o.fields)
	for i := range offsets {
		offsets[i] = uint32(i)
	}
	return Layout{Desc: FieldDescObj, Width: OffsetWidth32, Offsets: offsets}
}

func (o *linkedOracle) DynMark(c *Collector, mut *Mutator, obj uintptr) MarkBits { return 0 }

func (o *linkedOracle) ReadSlot(obj uintptr, byteOffset uintptr, width PtrOffsetWidth) uintptr {
	fs, ok := o.objects[obj]
	if !ok || int(byteOffset) >= len(fs) {
		return 0
	}
	return fs[byteOffset]
}
