// Package regalloc implements the RegAllocator (§4.2): it maps 68K
// data/address registers onto a pool of AArch64 general registers,
// tracking dirty state and spilling to guest.State on eviction.
//
// The dense array-of-struct layout below follows the wazero AArch64
// backend's clobbered-register bookkeeping and spec.md §9's explicit
// instruction not to hide dirty/LRU/reverse-map behind interior
// mutability: this is the hot path, and every field is touched on
// nearly every emitted instruction.
package regalloc

import (
	"github.com/tinyrange-pi/m68kjit/internal/emit"
	"github.com/tinyrange-pi/m68kjit/internal/guest"
)

// GuestReg names a guest register the allocator can back: D0-D7,
// A0-A7, or the pseudo-register for "none" (scratch).
type GuestReg struct {
	IsAddr bool
	Index  int // 0-7
}

var noGuestReg = GuestReg{Index: -1}

func (g GuestReg) valid() bool { return g.Index >= 0 }

func dataReg(n int) GuestReg { return GuestReg{IsAddr: false, Index: n} }
func addrReg(n int) GuestReg { return GuestReg{IsAddr: true, Index: n} }

// D returns the GuestReg for D<n>.
func D(n int) GuestReg { return dataReg(n) }

// A returns the GuestReg for A<n>.
func A(n int) GuestReg { return addrReg(n) }

func (g GuestReg) offset() uintptr {
	if g.IsAddr {
		return guest.OffA(g.Index)
	}
	return guest.OffD(g.Index)
}

// slot is the per-host-register bookkeeping record: mapping, dirty
// bit, and an LRU generation token.
type slot struct {
	mapped  bool
	guest   GuestReg
	dirty   bool
	lruGen  uint64
	scratch bool // allocated via AllocTmp, not guest-backed
	loaded  bool // guest value has already been materialized into the host register
}

// Allocator is the RegAllocator. One instance is created per
// translation unit (Ctx).
type Allocator struct {
	buf  *emit.Buffer
	pool []emit.Reg
	slot []slot // parallel to pool
	gen  uint64

	// guestToHost is the guest->host half of the two parallel maps
	// (§3 "two parallel maps (guest→host, host→guest)"); hostToGuest
	// is represented by slot[i].guest plus slot[i].mapped.
	guestToHost map[GuestReg]int // value is index into pool/slot
}

// New creates an allocator operating over buf, backed by pool (the
// AArch64 registers available after reserving the ABI-pinned set).
func New(buf *emit.Buffer, pool []emit.Reg) *Allocator {
	a := &Allocator{
		buf:         buf,
		pool:        append([]emit.Reg(nil), pool...),
		guestToHost: make(map[GuestReg]int, 16),
	}
	a.slot = make([]slot, len(a.pool))
	return a
}

func (a *Allocator) touch(i int) {
	a.gen++
	a.slot[i].lruGen = a.gen
}

func (a *Allocator) hostReg(i int) emit.Reg { return a.pool[i] }

// findFree returns the index of an unmapped pool slot, or -1.
func (a *Allocator) findFree() int {
	for i := range a.slot {
		if !a.slot[i].mapped {
			return i
		}
	}
	return -1
}

// evict picks a victim per the policy in §4.2: least-recently-mapped
// non-dirty register first; if only dirty candidates remain, spill
// the oldest non-scratch slot.
func (a *Allocator) evict() int {
	best := -1
	for i := range a.slot {
		if a.slot[i].scratch {
			continue
		}
		if a.slot[i].dirty {
			continue
		}
		if best == -1 || a.slot[i].lruGen < a.slot[best].lruGen {
			best = i
		}
	}
	if best != -1 {
		a.dropMapping(best)
		return best
	}
	for i := range a.slot {
		if a.slot[i].scratch {
			continue
		}
		if best == -1 || a.slot[i].lruGen < a.slot[best].lruGen {
			best = i
		}
	}
	if best == -1 {
		return -1
	}
	a.spill(best)
	a.dropMapping(best)
	return best
}

func (a *Allocator) dropMapping(i int) {
	if a.slot[i].mapped && a.slot[i].guest.valid() {
		delete(a.guestToHost, a.slot[i].guest)
	}
	a.slot[i] = slot{}
}

// spill writes a dirty host register's value back to guest.State.
func (a *Allocator) spill(i int) {
	if !a.slot[i].dirty || !a.slot[i].guest.valid() {
		return
	}
	a.buf.StrwImm(a.hostReg(i), emit.RegCtx, uint32(a.slot[i].guest.offset()))
}

func (a *Allocator) load(i int, g GuestReg) {
	a.buf.LdrwImm(a.hostReg(i), emit.RegCtx, uint32(g.offset()))
}

// acquireSlotFor finds or makes room for guest register g, without
// deciding yet whether to load it.
func (a *Allocator) acquireSlotFor(g GuestReg) int {
	if i, ok := a.guestToHost[g]; ok {
		a.touch(i)
		return i
	}
	i := a.findFree()
	if i == -1 {
		i = a.evict()
	}
	if i == -1 {
		// Pool fully exhausted by simultaneous live temporaries.
		// Correctness-wise this cannot happen with this pool size
		// under the emitter contract (§4.2 "Failure semantics");
		// callers that hit it abort block translation (see
		// fixup.ErrAllocatorExhausted).
		panic("regalloc: pool exhausted")
	}
	a.slot[i] = slot{mapped: true, guest: g}
	a.guestToHost[g] = i
	a.touch(i)
	return i
}

// MapRead returns a host register currently holding g's value,
// loading it from guest.State if not already mapped. Idempotent:
// repeated calls for the same g within one handler return the same
// host register (§4.2).
func (a *Allocator) MapRead(g GuestReg) emit.Reg {
	i := a.acquireSlotFor(g)
	if !a.slot[i].loaded {
		a.load(i, g)
		a.slot[i].loaded = true
	}
	return a.hostReg(i)
}

// MapWrite returns a host register that will receive g's new value.
// The allocator skips the reload when it can prove the previous
// contents are dead, i.e. whenever this is the first MapWrite/MapRead
// touch of g in the current slot lifetime.
func (a *Allocator) MapWrite(g GuestReg) emit.Reg {
	i := a.acquireSlotFor(g)
	a.slot[i].loaded = true // a write need not load first
	return a.hostReg(i)
}

// CopyRead returns a fresh host register containing a copy of g's
// value, independent of any existing mapping, for handlers that will
// clobber the value but must preserve the canonical mapping.
func (a *Allocator) CopyRead(g GuestReg) emit.Reg {
	src := a.MapRead(g)
	tmp := a.AllocTmp()
	a.buf.MovRR(tmp, src)
	return tmp
}

// AllocTmp returns a non-guest-backed scratch register.
func (a *Allocator) AllocTmp() emit.Reg {
	i := a.findFree()
	if i == -1 {
		i = a.evict()
	}
	if i == -1 {
		panic("regalloc: pool exhausted")
	}
	a.slot[i] = slot{mapped: true, guest: noGuestReg, scratch: true, loaded: true}
	a.touch(i)
	return a.hostReg(i)
}

// Free releases a host register obtained from AllocTmp or CopyRead.
// Freeing a guest-mapped register is a no-op: guest mappings are only
// released by eviction or FlushAllDirty.
func (a *Allocator) Free(r emit.Reg) {
	for i := range a.slot {
		if a.hostReg(i) == r && a.slot[i].scratch {
			a.slot[i] = slot{}
			return
		}
	}
}

// MarkDirty records that the mapped host register for g now holds
// the authoritative new guest value and must be written back before
// its slot is released.
func (a *Allocator) MarkDirty(g GuestReg) {
	i, ok := a.guestToHost[g]
	if !ok {
		return
	}
	a.slot[i].dirty = true
}

// IsGuestMapped reports whether r currently backs some guest
// register (as opposed to being a free scratch temp).
func (a *Allocator) IsGuestMapped(r emit.Reg) bool {
	for i := range a.slot {
		if a.hostReg(i) == r {
			return a.slot[i].mapped && !a.slot[i].scratch
		}
	}
	return false
}

// FlushAllDirty spills every mapped dirty register to guest.State and
// clears their dirty bits, without dropping the mappings. Called
// before exception emission, block exit, or any host call that may
// trap (§4.2).
func (a *Allocator) FlushAllDirty() {
	for i := range a.slot {
		if a.slot[i].mapped && a.slot[i].dirty && a.slot[i].guest.valid() {
			a.spill(i)
			a.slot[i].dirty = false
		}
	}
}

// FlushFPUDirty is a no-op here: FPU emulation is out of scope (§1),
// but the entry point is kept so block-close call sites mirror
// spec.md's contract exactly and a future FPU module has a home.
func (a *Allocator) FlushFPUDirty() {}

// Reset clears all mappings without spilling, for starting a fresh
// block; FlushAllDirty must be called first if dirty state must
// survive.
func (a *Allocator) Reset() {
	for i := range a.slot {
		a.slot[i] = slot{}
	}
	for k := range a.guestToHost {
		delete(a.guestToHost, k)
	}
	a.gen = 0
}
