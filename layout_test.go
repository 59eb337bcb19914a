package gc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderLoadAndType(t *testing.T) {
	h := NewHeader(TypeRef(0x4242))
	bits, typ := h.Load()
	require.Equal(t, Clean, bits)
	require.Equal(t, TypeRef(0x4242), typ)
}

func TestHeaderSwapPreservesType(t *testing.T) {
	h := NewHeader(TypeRef(7))
	prev := h.swap(Marked)
	require.Equal(t, Clean, prev)
	bits, typ := h.Load()
	require.Equal(t, Marked, bits)
	require.Equal(t, TypeRef(7), typ)
}

func TestDemoteAfterSweepYoungPromotion(t *testing.T) {
	h := NewHeader(TypeRef(1))
	h.swap(Marked)
	h.demoteAfterSweep(false, true)
	require.Equal(t, Old, h.Bits())
}

func TestDemoteAfterSweepYoungMarkedWithoutPromotionBecomesClean(t *testing.T) {
	h := NewHeader(TypeRef(1))
	h.swap(Marked)
	h.demoteAfterSweep(false, false)
	require.Equal(t, Clean, h.Bits())
}

func TestDemoteAfterSweepOldMarkedQuickSweepUntouched(t *testing.T) {
	h := NewHeader(TypeRef(1))
	h.swap(OldMarked)
	h.demoteAfterSweep(false, false)
	require.Equal(t, OldMarked, h.Bits(), "quick sweep must preserve OLD_MARKED")
}

func TestDemoteAfterSweepOldMarkedFullSweepDemotes(t *testing.T) {
	h := NewHeader(TypeRef(1))
	h.swap(OldMarked)
	h.demoteAfterSweep(true, false)
	require.Equal(t, Old, h.Bits())
}

func TestRetagMarkedAndOldMarked(t *testing.T) {
	h := NewHeader(TypeRef(1))
	h.swap(Old)
	h.retagMarked()
	require.Equal(t, Marked, h.Bits())
	h.retagOldMarked()
	require.Equal(t, OldMarked, h.Bits())
}

func TestGCBitsString(t *testing.T) {
	require.Equal(t, "clean", Clean.String())
	require.Equal(t, "marked", Marked.String())
	require.Equal(t, "old", Old.String())
	require.Equal(t, "old_marked", OldMarked.String())
}
