// BRA/BSR/Bcc, opcode line 0x6.
//
// Grounded on tinyrange-rtg/std/compiler/backend.go's CallFixup/
// JumpFixup resolution pattern (internal/fixup), generalized to
// inter-block guest-PC-keyed chaining, plus the BSR/RTS return-address
// inlining contract in internal/fixup.TryInlineReturn.
package emit68k

import (
	"github.com/tinyrange-pi/m68kjit/internal/ccengine"
	"github.com/tinyrange-pi/m68kjit/internal/decode"
	"github.com/tinyrange-pi/m68kjit/internal/emit"
	"github.com/tinyrange-pi/m68kjit/internal/fixup"
	"github.com/tinyrange-pi/m68kjit/internal/regalloc"
	"github.com/tinyrange-pi/m68kjit/internal/xlate"
)

func init() {
	decode.Register(6, 0xFF00, 0x6000, decode.OpcodeDef{Name: "BRA", Emit: emitBRA, BaseLength: 1})
	decode.Register(6, 0xFF00, 0x6100, decode.OpcodeDef{Name: "BSR", Emit: emitBSR, BaseLength: 1})
	decode.Register(6, 0xF000, 0x6000, decode.OpcodeDef{Name: "Bcc", Emit: emitBcc, BaseLength: 1})
}

// branchTarget resolves BRA/BSR/Bcc's displacement, which is either
// the 8-bit field in the opcode itself, or (when that field is 0x00 /
// 0xFF) a 16-/32-bit extension word per the 68020+ long-branch forms.
func branchTarget(blk *xlate.Block, opcode uint16) uint32 {
	disp8 := int8(opcode & 0xFF)
	base := blk.Ctx.GuestPCCursor
	switch disp8 {
	case 0:
		ext := int16(blk.Ctx.ReadNext16())
		return uint32(int32(base) + int32(ext))
	case -1:
		ext := int32(blk.Ctx.ReadNext32())
		return uint32(int32(base) + ext)
	default:
		return uint32(int32(base) + int32(disp8))
	}
}

func emitBRA(blk *xlate.Block, opcode uint16) (int, error) {
	target := branchTarget(blk, opcode)
	blk.FlushForExit()
	fixup.EmitExitBlock(blk.Ctx, blk.Buf, target)
	blk.Ctx.Closed = true
	return 1, nil
}

func emitBSR(blk *xlate.Block, opcode uint16) (int, error) {
	target := branchTarget(blk, opcode)
	returnPC := blk.Ctx.GuestPCCursor

	sp := blk.Alloc.MapRead(regalloc.A(7))
	blk.Buf.SubImm(sp, sp, 4)
	ret := blk.Alloc.AllocTmp()
	blk.Buf.LoadImm32Compact(ret, returnPC)
	blk.Buf.StrwImm(ret, sp, 0)
	blk.Alloc.Free(ret)
	blk.Alloc.MarkDirty(regalloc.A(7))

	if fixup.TryInlineReturn(blk.Ctx, returnPC) {
		// Translation continues into the subroutine body at target. The
		// matching RTS, if it appears before the block closes, resolves
		// this via fixup.ResolveReturn and falls through to returnPC
		// instead of exiting; nothing further to emit at the call site.
		blk.Ctx.GuestPCCursor = target
		return 1, nil
	}
	blk.FlushForExit()
	fixup.EmitExitBlock(blk.Ctx, blk.Buf, target)
	blk.Ctx.Closed = true
	return 1, nil
}

func emitBcc(blk *xlate.Block, opcode uint16) (int, error) {
	condField := (opcode >> 8) & 0xF
	target := branchTarget(blk, opcode)

	// condField 0 (BRA) and 1 (BSR) are claimed by the dedicated
	// registrations above and never reach this handler.

	// The taken path leaves this translation unit for another compiled
	// block (or the dispatcher stub), which starts from clean
	// architectural state; flush before the branch so both outcomes
	// observe consistent GuestState. The not-taken path simply falls
	// through into whatever this block translates next.
	blk.CC.NeedFlags(ccengine.AllBits)
	blk.Buf.MsrNZCV(emit.RegCCR)
	blk.FlushForExit()
	fixup.EmitCondBranchPlaceholder(blk.Ctx, blk.Buf, cond68kToAArch64[condField], target)
	return 1, nil
}
