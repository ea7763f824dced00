// Package ccengine implements the CondCodeEngine (§4.3): it decouples
// the guest {X,N,Z,V,C} flag model from host AArch64 NZCV, committing
// lazily and tracking which mirror bits are currently stale.
package ccengine

import (
	"github.com/tinyrange-pi/m68kjit/internal/emit"
	"github.com/tinyrange-pi/m68kjit/internal/guest"
	"github.com/tinyrange-pi/m68kjit/internal/jitlog"
)

// CarrySense distinguishes add-like from subtract-like host
// operations, since 68K C is the complement of host C for subtracts
// (§4.3, §3 "alternate encodings").
type CarrySense int

const (
	CarryAddLike CarrySense = iota
	CarrySubLike
)

// Mask bits, aliases of guest.CCR_* for readability in this package.
const (
	MaskX = guest.CCR_X
	MaskN = guest.CCR_N
	MaskZ = guest.CCR_Z
	MaskV = guest.CCR_V
	MaskC = guest.CCR_C
)

// host NZCV bit positions as read by MRS Xt, NZCV (PSTATE order).
const (
	hostN = 31
	hostZ = 30
	hostC = 29
	hostV = 28
)

// mirror bit positions within the CCR alternate encoding.
const (
	mirrorC = 0
	mirrorV = 1
	mirrorZ = 2
	mirrorN = 3
	mirrorX = 4
)

// Engine is the CC-State record (§3 "Its lifecycle: reset at block
// start; updated after every emit that clobbers or produces host
// NZCV; fully materialized into the CCR mirror before any emit that
// needs the mirror in memory").
type Engine struct {
	buf *emit.Buffer

	// liveInHost is the set of guest flag bits whose current,
	// authoritative value sits in host NZCV (not yet committed to the
	// CCR mirror register).
	liveInHost uint8

	// staleInMirror is the set of bits whose CCR-mirror-register copy
	// does not reflect liveInHost (i.e. needs a commit before the
	// mirror is read or spilled to guest.State.SR).
	staleInMirror uint8

	lastProducerSize int // 1, 2, or 4; width of the last flag-producing op

	tmp emit.Reg // scratch register the engine may clobber freely
}

// New creates a CondCodeEngine writing into buf. tmp must be a
// scratch AArch64 register reserved by the caller for this engine's
// exclusive use during flag materialization.
func New(buf *emit.Buffer, tmp emit.Reg) *Engine {
	return &Engine{buf: buf, tmp: tmp}
}

// Reset clears CC-State at block start.
func (e *Engine) Reset() {
	e.liveInHost = 0
	e.staleInMirror = 0
	e.lastProducerSize = 4
}

// ccr is the CCR-mirror host register (§6 entry ABI: "another holds
// the CCR mirror").
var ccr = emit.RegCCR

// NoteProducer records that the most recently emitted AArch64
// instruction produced host NZCV representing the result width
// needed by the pending guest flag update (§4.3 first bullet): from
// this point, host NZCV is authoritative for the named mask bits and
// the mirror is stale for them.
func (e *Engine) NoteProducer(mask uint8, size int) {
	e.liveInHost |= mask
	e.staleInMirror |= mask
	e.lastProducerSize = size
}

// NeedFlags ensures the listed guest flags, when read next, come from
// the CCR mirror: it commits any host-NZCV-resident bits in mask that
// are currently stale in the mirror.
func (e *Engine) NeedFlags(mask uint8) {
	pending := mask & e.staleInMirror
	if pending == 0 {
		return
	}
	e.commitOne(pending, MaskN, hostN, mirrorN, CarryAddLike)
	e.commitOne(pending, MaskZ, hostZ, mirrorZ, CarryAddLike)
	e.commitOne(pending, MaskV, hostV, mirrorV, CarryAddLike)
	e.commitOne(pending, MaskC, hostC, mirrorC, CarryAddLike)
	e.staleInMirror &^= pending
}

// commitOne copies a single host NZCV bit into a single mirror bit,
// re-reading NZCV each time so earlier BFI writes to the mirror
// register (which shares no state with NZCV) never disturb it.
func (e *Engine) commitOne(pending, bit uint8, hostPos, mirrorPos uint, sense CarrySense) {
	if pending&bit == 0 {
		return
	}
	e.buf.MrsNZCV(e.tmp)
	e.buf.Ubfx(e.tmp, e.tmp, hostPos, 1)
	if bit == MaskC && sense == CarrySubLike {
		e.invert1(e.tmp)
	}
	e.buf.Bfi(ccr, e.tmp, mirrorPos, 1)
}

// invert1 flips bit 0 of r in place: r = 1 - r, equivalent to XOR #1
// for a single-bit value. AArch64 has no EOR-immediate-by-register
// helper exposed here, so this is done with NEG+ADD.
func (e *Engine) invert1(r emit.Reg) {
	e.buf.Neg(r, r)
	e.buf.AddImm(r, r, 1)
}

// commitAll runs commitOne for every bit in mask, then optionally
// copies C into X (CommitNZCVX), and clears staleness for mask.
func (e *Engine) commitAll(mask uint8, sense CarrySense, withX bool) {
	e.commitOne(mask, MaskN, hostN, mirrorN, sense)
	e.commitOne(mask, MaskZ, hostZ, mirrorZ, sense)
	e.commitOne(mask, MaskC, hostC, mirrorC, sense)
	e.commitOne(mask, MaskV, hostV, mirrorV, sense)
	if withX {
		e.commitOne(MaskC, MaskC, hostC, mirrorX, sense)
		e.staleInMirror &^= MaskX
	}
	e.staleInMirror &^= mask
}

// CommitNZClearVC: after the last data-processing emit, transfer N
// and Z from host to the mirror and clear V and C in the alternate
// form (§4.3).
func (e *Engine) CommitNZClearVC() {
	e.commitOne(MaskN, MaskN, hostN, mirrorN, CarryAddLike)
	e.commitOne(MaskZ, MaskZ, hostZ, mirrorZ, CarryAddLike)
	e.staleInMirror &^= MaskN | MaskZ
	e.clearBits(MaskV | MaskC)
}

// CommitNZCV transfers all four {N,Z,V,C}, honoring carry sense.
func (e *Engine) CommitNZCV(sense CarrySense) {
	e.commitAll(MaskN|MaskZ|MaskV|MaskC, sense, false)
}

// CommitNZCVX is CommitNZCV plus X updated from C.
func (e *Engine) CommitNZCVX(sense CarrySense) {
	e.commitAll(MaskN|MaskZ|MaskV|MaskC, sense, true)
}

// clearBits clears the given mirror bits directly, without touching
// host flags.
func (e *Engine) clearBits(mask uint8) {
	e.buf.LoadImm32Compact(e.tmp, uint32(mask))
	e.buf.BicRR(ccr, ccr, e.tmp)
}

// SetZOnly/SetNOnly let a handler skip full materialization when it
// only needs to update one bit directly in the mirror (§4.3 "Handlers
// that want Z-only or N-only can skip full materialization by
// emitting a mask-and-set on the CCR mirror directly"). zero/negative
// are host predicates already known to the emitter, not re-derived
// from NZCV.
func (e *Engine) SetZOnly(zero bool) {
	e.setBit(MaskZ, zero)
	e.staleInMirror &^= MaskZ
	e.liveInHost &^= MaskZ
}

func (e *Engine) SetNOnly(negative bool) {
	e.setBit(MaskN, negative)
	e.staleInMirror &^= MaskN
	e.liveInHost &^= MaskN
}

func (e *Engine) setBit(bit uint8, set bool) {
	e.buf.LoadImm32Compact(e.tmp, uint32(bit))
	if set {
		e.buf.OrrRR(ccr, ccr, e.tmp)
	} else {
		e.buf.BicRR(ccr, ccr, e.tmp)
	}
}

// StaleMask returns the bits currently stale in the mirror, exposed
// for tests and for BlockCloser's pre-exit NeedFlags(AllBits) call.
func (e *Engine) StaleMask() uint8 { return e.staleInMirror }

// AllBits is the full {X,N,Z,V,C} mask.
const AllBits = MaskX | MaskN | MaskZ | MaskV | MaskC

// NoteFastPathSingleBit logs the §9 diagnostic when a caller is about
// to take a Z-only or N-only fast path for an update mask that is
// exactly one bit. The general Commit* path remains the one actually
// used (see DESIGN.md "Open Question decisions"); this is purely
// informational instrumentation.
func NoteFastPathSingleBit(insn string, mask uint8) {
	if mask == MaskN || mask == MaskZ {
		jitlog.FastPathSingleFlag(insn, mask)
	}
}
