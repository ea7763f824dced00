// Package xlate defines Block, the per-translation-unit bundle handed
// to every opcode emitter: the pieces a handler needs to decode one
// more instruction, allocate registers, and touch condition codes,
// without each emitter file importing four packages individually.
//
// Block exists to break the import cycle that would otherwise form
// between internal/decode (which names the handler function type) and
// the translator package root (which owns block assembly): both sides
// import xlate instead of each other.
package xlate

import (
	"github.com/tinyrange-pi/m68kjit/internal/ccengine"
	"github.com/tinyrange-pi/m68kjit/internal/ea"
	"github.com/tinyrange-pi/m68kjit/internal/emit"
	"github.com/tinyrange-pi/m68kjit/internal/fixup"
	"github.com/tinyrange-pi/m68kjit/internal/jitctx"
	"github.com/tinyrange-pi/m68kjit/internal/regalloc"
)

// Block bundles one translation unit's collaborators (§3): the
// TranslationContext, EmitBuffer, RegAllocator, CondCodeEngine, and
// FixupTable, plus the scratch register the CondCodeEngine was handed
// at construction so emitters sharing it don't need to recompute it.
type Block struct {
	Ctx   *jitctx.Ctx
	Buf   *emit.Buffer
	Alloc *regalloc.Allocator
	CC    *ccengine.Engine
	Fixup *fixup.Table

	// Scratch is a host register reserved for handler-local temporaries
	// that must not alias anything the RegAllocator hands out, e.g.
	// multi-step EA resolution before a destination register exists.
	Scratch emit.Reg
}

// New assembles a Block over a freshly created Ctx/Buffer, wiring the
// RegAllocator's pool and the CondCodeEngine's scratch register from
// the ABI-pinned constants in package emit.
func New(ctx *jitctx.Ctx, buf *emit.Buffer, scratch emit.Reg) *Block {
	alloc := regalloc.New(buf, emit.AllocPool)
	cc := ccengine.New(buf, scratch)
	return &Block{
		Ctx:     ctx,
		Buf:     buf,
		Alloc:   alloc,
		CC:      cc,
		Fixup:   fixup.New(buf),
		Scratch: scratch,
	}
}

// DecodeEA resolves an effective address operand at the block's
// current cursor, a thin pass-through kept here so emitters only ever
// reach into Block rather than importing internal/ea directly for the
// common case.
func (blk *Block) DecodeEA(modeField, regField uint16) (ea.EA, error) {
	return ea.Decode(blk.Ctx, modeField, regField)
}

// FlushForExit materializes every architecturally visible guest flag
// and spills dirty registers, the common prefix of every block-exit
// path (§4.6).
func (blk *Block) FlushForExit() {
	blk.CC.NeedFlags(ccengine.AllBits)
	blk.Alloc.FlushAllDirty()
	blk.Alloc.FlushFPUDirty()
}

// RaiseException closes the block through fixup.EmitException, used
// by any handler whose 68K semantics include a conditional fault:
// zero-divide, CHK's bounds trap, TRAP/TRAPV, illegal/unimplemented
// opcodes, and privilege violations.
func (blk *Block) RaiseException(vector int, faultPC uint32) {
	tmp := blk.Alloc.AllocTmp()
	fixup.EmitException(blk.Ctx, blk.Buf, blk.CC, tmp, func() {
		blk.Alloc.FlushAllDirty()
		blk.Alloc.FlushFPUDirty()
	}, vector, faultPC)
	blk.Alloc.Free(tmp)
}
