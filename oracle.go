package gc

// FieldDescType selects how the mark engine scans an object's fields
// (spec.md §4.7). It is supplied by the type layout oracle, an external
// collaborator this package only ever consumes through TypeOracle.
type FieldDescType uint8

const (
	// FieldDescObj: fixed pointer slots inside a single object, at
	// 1/2/4-byte offsets depending on object size (obj8/16/32).
	FieldDescObj FieldDescType = 0
	// FieldDescArray: a contiguous array of pointer-sized slots
	// (objarray), or an array of small structs each union-tagged with
	// an inline pointer layout (array8/array16).
	FieldDescArray FieldDescType = 1
	// FieldDescSpecial: one of the named special layouts - a GC frame
	// chain (stack), an exception backtrace (excstack), or a module
	// binding hash table (module_binding). Which one is resolved by
	// the oracle via Special.
	FieldDescSpecial FieldDescType = 2
	// FieldDescDynamic: delegate entirely to DynMark.
	FieldDescDynamic FieldDescType = 3
)

// SpecialLayout distinguishes the three FieldDescSpecial shapes.
type SpecialLayout uint8

const (
	SpecialStack SpecialLayout = iota
	SpecialExcStack
	SpecialModuleBinding
)

// PtrOffsetWidth is the slot width obj8/obj16/obj32 and array8/array16
// use to pack a pointer-offset table compactly (spec.md §4.7).
type PtrOffsetWidth uint8

const (
	OffsetWidth8 PtrOffsetWidth = iota
	OffsetWidth16
	OffsetWidth32
)

// Layout is everything the mark engine needs to scan one object,
// handed back by TypeOracle.Layout.
type Layout struct {
	Desc    FieldDescType
	Special SpecialLayout  // meaningful only when Desc == FieldDescSpecial
	Width   PtrOffsetWidth // meaningful for Desc Obj/Array
	// Offsets is the pointer-offset table: byte offsets into the object
	// (Obj) or into each element, added to i*ArrayElemStride (Array), in
	// the oracle's own units per Width.
	Offsets []uint32
	// ArrayLen is the element count for FieldDescArray.
	ArrayLen int
	// ArrayElemStride is the byte stride between elements for
	// FieldDescArray.
	ArrayElemStride uintptr
}

// MarkBits is the bitmask DynMark returns: bit 0 set means "this
// parent now references a young object" (nptr low bit, spec.md §4.7),
// bit 1 set means "push the parent onto the remembered set" (the
// oracle-computed dynamic layout decided a barrier edge exists).
type MarkBits uint8

const (
	MarkRefersYoung MarkBits = 1 << 0
	MarkNeedsRemset MarkBits = 1 << 1
)

// TypeOracle is the external type-layout collaborator spec.md §1 keeps
// out of scope: "provides pointer offsets per type". This package only
// calls it, never implements it for a concrete language - callers wire
// up their own compiler/runtime's type metadata.
type TypeOracle interface {
	// SizeOf returns the object size in bytes for t, excluding the
	// header word.
	SizeOf(t TypeRef) uintptr
	// Layout returns how to scan an object of type t.
	Layout(t TypeRef) Layout
	// DynMark is called for FieldDescType 3 (dynamic): it is handed
	// the collector and the object pointer and returns the composite
	// bits mark.go folds into the parent's nptr/remset decision. This
	// package exports no helper for marking children from DynMark, and
	// the mark engine does not scan a dynamic object's fields itself.
	DynMark(c *Collector, mut *Mutator, obj uintptr) MarkBits
	// ReadSlot returns the child value stored width bytes wide at
	// byteOffset into obj. Like TypeRef, the object's payload bytes are
	// never this package's to dereference directly - they belong to the
	// host language runtime that owns obj's actual memory; this package
	// only ever asks the oracle to read a slot on its behalf and never
	// writes one.
	ReadSlot(obj uintptr, byteOffset uintptr, width PtrOffsetWidth) uintptr
}
