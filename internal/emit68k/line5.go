// ADDQ/SUBQ, Scc, and DBcc, opcode line 0x5.
//
// Grounded on original_source/src/M68k_LINE5.c for DBcc's expansion
// (decrement only the low word of the counter register, branch while
// not-equal-to-(-1) and condition false) and Scc's all-ones/all-zeros
// store contract.
package emit68k

import (
	"github.com/tinyrange-pi/m68kjit/internal/ccengine"
	"github.com/tinyrange-pi/m68kjit/internal/decode"
	"github.com/tinyrange-pi/m68kjit/internal/ea"
	"github.com/tinyrange-pi/m68kjit/internal/emit"
	"github.com/tinyrange-pi/m68kjit/internal/fixup"
	"github.com/tinyrange-pi/m68kjit/internal/regalloc"
	"github.com/tinyrange-pi/m68kjit/internal/xlate"
)

// cond68kToAArch64 maps the 16 68K test conditions (bits 11:8 of a
// Scc/DBcc/Bcc/TRAPcc opcode) to the AArch64 condition the engine's
// alternate CCR encoding produces the same answer for. T/F (0/1) have
// no AArch64 equivalent and are handled as special cases by callers.
var cond68kToAArch64 = [16]emit.Cond{
	emit.CondAL, emit.CondAL, // T, F (F never taken; handled specially)
	emit.CondHI, emit.CondLS, // HI, LS
	emit.CondCC, emit.CondCS, // CC, CS
	emit.CondNE, emit.CondEQ, // NE, EQ
	emit.CondVC, emit.CondVS, // VC, VS
	emit.CondPL, emit.CondMI, // PL, MI
	emit.CondGE, emit.CondLT, // GE, LT
	emit.CondGT, emit.CondLE, // GT, LE
}

// dbfSlowdownPadInsns is the number of host NOPs inserted into a
// self-looping DBF when DBFSlowdown is requested; arbitrary but small
// enough not to dominate translated-block size.
const dbfSlowdownPadInsns = 8

func init() {
	// Registered narrowest-mask-first: ADDQ/SUBQ's mask only fixes the
	// add/sub opmode bit, so its free size field would otherwise claim
	// the bits7-6=11 space Scc/DBcc live in (size=11 isn't a real ADDQ/
	// SUBQ size) were it registered before them. DBcc is narrower than
	// Scc in turn (Scc's EA field is fully free; DBcc fixes all of it
	// except the 3-bit Dn) so it goes first of the two.
	decode.Register(5, 0xF0F8, 0x50C8, decode.OpcodeDef{Name: "DBcc", Emit: emitDBcc, BaseLength: 2})
	decode.Register(5, 0xF0C0, 0x50C0, decode.OpcodeDef{Name: "Scc", Emit: emitScc, HasEA: true, BaseLength: 1})
	decode.Register(5, 0xF100, 0x5000, decode.OpcodeDef{Name: "ADDQ", Emit: emitADDQ, SRSets: ccengine.AllBits, HasEA: true, BaseLength: 1})
	decode.Register(5, 0xF100, 0x5100, decode.OpcodeDef{Name: "SUBQ", Emit: emitSUBQ, SRSets: ccengine.AllBits, HasEA: true, BaseLength: 1})
}

func quickData(opcode uint16) uint32 {
	v := (opcode >> 9) & 7
	if v == 0 {
		return 8
	}
	return uint32(v)
}

func emitADDQ(blk *xlate.Block, opcode uint16) (int, error) {
	size := eaSize(opcode >> 6)
	e, err := decodeDestEA(blk, opcode)
	if err != nil {
		return 0, err
	}
	r := resources(blk)
	dst, err := ea.Load(r, size, ea.RegUnassigned, e, false)
	if err != nil {
		return 0, err
	}
	blk.Buf.AddsImm(dst, dst, quickData(opcode))
	if e.Mode == ea.ModeAn {
		// ADDQ to An never affects flags and always operates on the
		// full 32-bit address register (§ 68K reference manual).
	} else {
		commitArithX(blk, ccengine.CarryAddLike, size)
	}
	if err := ea.Store(r, size, dst, e); err != nil {
		return 0, err
	}
	blk.Alloc.Free(dst)
	return 1, nil
}

func emitSUBQ(blk *xlate.Block, opcode uint16) (int, error) {
	size := eaSize(opcode >> 6)
	e, err := decodeDestEA(blk, opcode)
	if err != nil {
		return 0, err
	}
	r := resources(blk)
	dst, err := ea.Load(r, size, ea.RegUnassigned, e, false)
	if err != nil {
		return 0, err
	}
	blk.Buf.SubsImm(dst, dst, quickData(opcode))
	if e.Mode != ea.ModeAn {
		commitArithX(blk, ccengine.CarrySubLike, size)
	}
	if err := ea.Store(r, size, dst, e); err != nil {
		return 0, err
	}
	blk.Alloc.Free(dst)
	return 1, nil
}

// emitScc sets the destination byte to all-ones if the condition
// holds, all-zeros otherwise; flags are materialized from the CCR
// mirror first since Scc is the first point a stale flag may actually
// be observed.
func emitScc(blk *xlate.Block, opcode uint16) (int, error) {
	condField := (opcode >> 8) & 0xF
	e, err := decodeDestEA(blk, opcode)
	if err != nil {
		return 0, err
	}
	r := resources(blk)
	dst, err := ea.Load(r, ea.SizeByte, ea.RegUnassigned, e, false)
	if err != nil {
		return 0, err
	}
	blk.CC.NeedFlags(ccengine.AllBits)
	blk.Buf.MsrNZCV(emit.RegCCR)
	switch condField {
	case 0: // T
		blk.Buf.LoadImm32Compact(dst, 0xFF)
	case 1: // F
		blk.Buf.LoadImm32Compact(dst, 0)
	default:
		blk.Buf.CSet(dst, cond68kToAArch64[condField])
		negate(blk, dst)
	}
	if err := ea.Store(r, ea.SizeByte, dst, e); err != nil {
		return 0, err
	}
	blk.Alloc.Free(dst)
	return 1, nil
}

// negate turns a CSET's 0/1 result into Scc's 0x00/0xFF by negating
// it (0 stays 0, 1 becomes all-ones under two's complement).
func negate(blk *xlate.Block, r emit.Reg) {
	blk.Buf.Neg(r, r)
}

// emitDBcc implements "decrement and branch": if the condition is
// false, decrement the low word of the counter register and, unless
// it wrapped from 0 to -1, branch back; otherwise fall through.
func emitDBcc(blk *xlate.Block, opcode uint16) (int, error) {
	condField := (opcode >> 8) & 0xF
	dn := int(opcode & 7)
	instrStart := blk.Ctx.GuestPCCursor - 2
	disp := int16(blk.Ctx.ReadNext16())
	target := uint32(int32(instrStart) + 2 + int32(disp))

	if condField == 0 { // DBT never loops
		return 1, nil
	}

	if condField == 1 && target == instrStart && blk.Ctx.DBFSlowdown {
		// DBF branching straight back to itself is the classic 68K
		// busy-wait idiom; pad the host loop body so it burns closer
		// to the cycles the original hardware would have.
		for i := 0; i < dbfSlowdownPadInsns; i++ {
			blk.Buf.Nop()
		}
	}

	skipOff := emit.Offset(-1)
	if condField != 1 { // DBF/DBRA always takes the decrement path
		blk.CC.NeedFlags(ccengine.AllBits)
		blk.Buf.MsrNZCV(emit.RegCCR)
		skipOff = blk.Buf.BCond(cond68kToAArch64[condField], 0)
	}

	ctr := blk.Alloc.MapRead(regalloc.D(dn))
	tmp := blk.Alloc.AllocTmp()
	blk.Buf.Sbfx(tmp, ctr, 0, 16)
	blk.Buf.SubImm(tmp, tmp, 1)
	blk.Buf.Bfi(ctr, tmp, 0, 16)
	blk.Alloc.MarkDirty(regalloc.D(dn))
	// tmp+1 == 0 iff the decremented counter just wrapped from 0 to -1:
	// the loop-exhausted case, which falls through instead of looping.
	blk.Buf.AddsImm(tmp, tmp, 1)
	blk.Alloc.Free(tmp)
	fixup.EmitCondBranchPlaceholder(blk.Ctx, blk.Buf, emit.CondNE, target)

	if skipOff >= 0 {
		rel := int32(blk.Buf.Here()-skipOff) / 4
		blk.Buf.PatchBCond(skipOff, rel)
	}
	return 1, nil
}
