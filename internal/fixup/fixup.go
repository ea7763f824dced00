// Package fixup implements the BlockCloser and FixupTable (§4.6):
// the trailer of pending branch patches and end-of-block markers
// interleaved with emitted code, plus return-address inlining for
// BSR/RTS.
//
// Grounded on tinyrange-rtg/std/compiler/backend.go's CallFixup /
// JumpFixup structs and the jumpFixups resolution loop in
// compileFuncArm64 (backend_aarch64.go), generalized from intra-
// function jump patching to inter-block chaining.
package fixup

import (
	"errors"

	"github.com/tinyrange-pi/m68kjit/internal/ccengine"
	"github.com/tinyrange-pi/m68kjit/internal/emit"
	"github.com/tinyrange-pi/m68kjit/internal/guest"
	"github.com/tinyrange-pi/m68kjit/internal/jitctx"
	"github.com/tinyrange-pi/m68kjit/internal/jitlog"
)

// ErrAllocatorExhausted is returned by Translate when a handler hits
// the RegAllocator pool-exhaustion case (§4.2 "Failure semantics").
// It is the one place an "error" condition in the core crosses a Go
// error boundary rather than becoming a guest exception, because it
// reflects a translator resource limit, not a 68K architectural
// condition.
var ErrAllocatorExhausted = errors.New("fixup: register allocator pool exhausted mid-block")

// Table owns the trailer: fixups plus the compiled block's closed
// state, used by BlockCloser.
type Table struct {
	buf *emit.Buffer
}

// New creates a fixup table writing into buf.
func New(buf *emit.Buffer) *Table {
	return &Table{buf: buf}
}

// EmitCondBranchPlaceholder emits a B.cond with a zero displacement
// and records a FixupConditionalBranch entry naming the guest target;
// the dispatcher resolves it later by calling PatchToOffset once the
// target block exists, or leaves it pointing at the shared
// exit-to-dispatcher stub otherwise.
func EmitCondBranchPlaceholder(c *jitctx.Ctx, buf *emit.Buffer, cond emit.Cond, guestTarget uint32) {
	off := buf.BCond(cond, 0)
	c.AddFixup(jitctx.Fixup{EmitOffset: int(off), Kind: jitctx.FixupConditionalBranch, Target: guestTarget})
}

// EmitExitBlock emits an unconditional branch with a zero displacement
// and records a FixupExitBlock entry naming the guest target, used by
// BRA and BSR's non-inlined case: unlike EmitCondBranchPlaceholder
// there is no not-taken path to account for.
func EmitExitBlock(c *jitctx.Ctx, buf *emit.Buffer, guestTarget uint32) {
	off := buf.B(0)
	c.AddFixup(jitctx.Fixup{EmitOffset: int(off), Kind: jitctx.FixupExitBlock, Target: guestTarget})
}

// EmitLocalExit emits the trailer marker for a fall-off/explicit exit
// that simply resumes the dispatcher from guest.State.PC: materialize
// flags, flush dirty registers, and RET. It does not store PC; the
// caller stores the resume PC into guest.State.PC before calling it.
func EmitLocalExit(c *jitctx.Ctx, buf *emit.Buffer, cc *ccengine.Engine, flush func()) {
	cc.NeedFlags(ccengine.AllBits)
	flush()
	buf.Ret()
	c.AddFixup(jitctx.Fixup{EmitOffset: int(buf.Here()), Kind: jitctx.FixupLocalExit})
	c.Closed = true
}

// EmitDoubleExit records two simultaneous fixups for two branch sites
// converging on the same exit code (§4.6 "double-exit"): used when a
// handler emits a taken-branch and a fallthrough that both want to
// leave the block through one shared tail.
func EmitDoubleExit(c *jitctx.Ctx, tailOffset int, targetA, targetB uint32) {
	c.AddFixup(jitctx.Fixup{EmitOffset: tailOffset, Kind: jitctx.FixupDoubleExit, Target: targetA})
	c.AddFixup(jitctx.Fixup{EmitOffset: tailOffset, Kind: jitctx.FixupDoubleExit, Target: targetB})
}

// EmitException materializes flags, flushes dirty registers, stores
// faultPC into guest.State.PC and records a FixupException entry; the
// dispatcher resolves it by rewriting the placeholder branch into a
// call to the shared exception trampoline for that vector (§4.5's
// "emitters may raise an exception by exiting the block early" note
// for CHK/TRAP/TRAPV/zero-divide/illegal/privilege-violation).
// Raising an exception always closes the block.
func EmitException(c *jitctx.Ctx, buf *emit.Buffer, cc *ccengine.Engine, tmp emit.Reg, flush func(), vector int, faultPC uint32) {
	cc.NeedFlags(ccengine.AllBits)
	flush()
	buf.LoadImm32Compact(tmp, faultPC)
	buf.StrwImm(tmp, emit.RegCtx, uint32(guest.OffPC))
	off := buf.B(0)
	c.AddFixup(jitctx.Fixup{EmitOffset: int(off), Kind: jitctx.FixupException, Target: faultPC, Vector: vector})
	c.Closed = true
}

// PatchChain rewrites a previously emitted conditional branch in
// place to point at a newly compiled target block's entry, per §4.6
// "The dispatcher is expected to parse the trailer and, upon later
// compilation of the target block, rewrite the conditional branch in
// place to point to the new block's entry." relWords is the signed
// word distance from the branch site to the new entry point.
func PatchChain(buf *emit.Buffer, f jitctx.Fixup, relWords int32) {
	existing := buf.Peek(emit.Offset(f.EmitOffset))
	if existing&0xFF000010 == 0x54000000 {
		buf.PatchBCond(emit.Offset(f.EmitOffset), relWords)
	} else {
		buf.PatchB(emit.Offset(f.EmitOffset), relWords)
	}
}

// TryInlineReturn implements BSR/RTS return-address inlining (§4.6):
// when a BSR is followed closely by an RTS to a known address, the
// BSR emitter pushes the expected return PC; RTS later checks the
// top-of-stack guest return PC against the expectation and, on match,
// falls through inside the same translation unit instead of exiting.
func TryInlineReturn(c *jitctx.Ctx, expectedReturnPC uint32) bool {
	ok := c.PushReturn(jitctx.ReturnSlot{ExpectedReturnPC: expectedReturnPC})
	if !ok {
		jitlog.Logger.Debug().Msg("return-stack full, BSR will not inline")
	}
	return ok
}

// ResolveReturn pops the most recent inlining expectation and reports
// whether actualReturnPC matches it, i.e. whether the RTS may fall
// through rather than exit.
func ResolveReturn(c *jitctx.Ctx, actualReturnPC uint32) bool {
	slot, ok := c.PopReturn()
	if !ok {
		return false
	}
	return slot.ExpectedReturnPC == actualReturnPC
}
