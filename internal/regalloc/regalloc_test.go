package regalloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinyrange-pi/m68kjit/internal/emit"
)

func smallPool() []emit.Reg {
	return []emit.Reg{0, 1, 2}
}

func TestMapReadIsIdempotent(t *testing.T) {
	buf := emit.NewBuffer()
	a := New(buf, smallPool())

	r1 := a.MapRead(D(2))
	r2 := a.MapRead(D(2))
	require.Equal(t, r1, r2, "repeated MapRead for the same guest register must return the same host register")
}

func TestMapWriteSkipsReload(t *testing.T) {
	buf := emit.NewBuffer()
	a := New(buf, smallPool())

	before := buf.Len()
	a.MapWrite(D(0))
	require.Equal(t, before, buf.Len(), "MapWrite must not emit a load for a register never read")
}

func TestMarkDirtyThenFlushSpills(t *testing.T) {
	buf := emit.NewBuffer()
	a := New(buf, smallPool())

	r := a.MapWrite(D(1))
	a.MarkDirty(D(1))
	require.True(t, a.IsGuestMapped(r))

	before := buf.Len()
	a.FlushAllDirty()
	require.Greater(t, buf.Len(), before, "FlushAllDirty must emit a spill for a dirty mapped register")

	// A second flush is a no-op since the dirty bit was cleared.
	after := buf.Len()
	a.FlushAllDirty()
	require.Equal(t, after, buf.Len())
}

func TestAllocTmpDoesNotAliasGuestMapping(t *testing.T) {
	buf := emit.NewBuffer()
	a := New(buf, smallPool())

	a.MapRead(D(0))
	a.MapRead(D(1))
	tmp := a.AllocTmp() // takes the pool's third and last free slot; D(0)/D(1) occupy the other two
	require.False(t, a.IsGuestMapped(tmp))
	a.Free(tmp)
}

func TestFreeingGuestMappedRegisterIsNoop(t *testing.T) {
	buf := emit.NewBuffer()
	a := New(buf, smallPool())

	r := a.MapRead(D(0))
	a.Free(r) // Free only releases AllocTmp/CopyRead scratch registers
	require.True(t, a.IsGuestMapped(r), "Free must not drop a guest mapping")
}

func TestEvictionPrefersNonDirtyLRU(t *testing.T) {
	buf := emit.NewBuffer()
	a := New(buf, smallPool())

	a.MapRead(D(0))
	a.MapRead(D(1))
	a.MapWrite(D(2))
	a.MarkDirty(D(2))

	// Pool exhausted: D(0) is the least-recently-touched non-dirty
	// mapping and must be the one evicted, not the dirty D(2).
	a.MapRead(D(3))
	require.False(t, a.guestToHostHas(D(0)), "D(0) should have been evicted")
	require.True(t, a.guestToHostHas(D(2)), "dirty D(2) must survive eviction")
}

// guestToHostHas is a small test-only accessor; production code never
// needs to ask this directly since MapRead/MapWrite already resolve
// the mapping transparently.
func (a *Allocator) guestToHostHas(g GuestReg) bool {
	_, ok := a.guestToHost[g]
	return ok
}
