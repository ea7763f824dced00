// OR, DIVU, DIVS, and SBCD, opcode line 0x8.
//
// OR shares its <ea>,Dn / Dn,<ea> shape with AND/ADD/SUB (see
// dyadic.go); opmode 011/111 alias the same line to the word divides,
// mapped onto AArch64 UDIV/SDIV with an explicit zero-divisor trap
// since AArch64 division by zero silently yields 0 rather than
// faulting. SBCD is decimal subtract-with-extend, grounded on
// original_source/src/M68k_LINE8.c's nibble-borrow construction.
package emit68k

import (
	"github.com/tinyrange-pi/m68kjit/internal/ccengine"
	"github.com/tinyrange-pi/m68kjit/internal/decode"
	"github.com/tinyrange-pi/m68kjit/internal/ea"
	"github.com/tinyrange-pi/m68kjit/internal/emit"
	"github.com/tinyrange-pi/m68kjit/internal/guest"
	"github.com/tinyrange-pi/m68kjit/internal/regalloc"
	"github.com/tinyrange-pi/m68kjit/internal/xlate"
)

func init() {
	decode.Register(8, 0xF1F0, 0x8100, decode.OpcodeDef{Name: "SBCD", Emit: emitSBCD, SRSets: ccengine.MaskZ | ccengine.MaskX | ccengine.MaskC, BaseLength: 1})
	decode.Register(8, 0xF000, 0x8000, decode.OpcodeDef{Name: "OR/DIVU/DIVS", Emit: emitOR, HasEA: true, BaseLength: 1})
}

func emitOR(blk *xlate.Block, opcode uint16) (int, error) {
	opmode := (opcode >> 6) & 7
	if opmode == 3 {
		return emitDIV(blk, opcode, false)
	}
	if opmode == 7 {
		return emitDIV(blk, opcode, true)
	}
	return dyadicDnEA(blk, opcode,
		func(dst, a, b emit.Reg) { blk.Buf.OrrRR(dst, a, b) },
		func(result emit.Reg, size ea.Size) { commitLogical(blk, result, size) },
		true)
}

// emitDIV implements DIVU/DIVS Dn,<ea>: a 32-bit dividend divided by
// a 16-bit source, producing a 16-bit quotient in the low word and a
// 16-bit remainder in the high word of Dn. Divide by zero raises
// VectorZeroDivide instead of reaching the host division.
func emitDIV(blk *xlate.Block, opcode uint16, signed bool) (int, error) {
	dn := int((opcode >> 9) & 7)
	faultPC := blk.Ctx.GuestPCCursor - 2
	e, err := decodeDestEA(blk, opcode)
	if err != nil {
		return 0, err
	}
	r := resources(blk)
	src, err := ea.Load(r, ea.SizeWord, ea.RegUnassigned, e, true)
	if err != nil {
		return 0, err
	}

	blk.Buf.CmpImm(src, 0)
	skip := blk.Buf.BCond(emit.CondNE, 0)
	blk.RaiseException(guest.VectorZeroDivide, faultPC)
	rel := int32(blk.Buf.Here()-skip) / 4
	blk.Buf.PatchBCond(skip, rel)

	dividend := blk.Alloc.MapRead(regalloc.D(dn))
	divisor := src
	if signed {
		blk.Buf.Sbfx(divisor, divisor, 0, 16)
	} else {
		blk.Buf.Ubfx(divisor, divisor, 0, 16)
	}
	quot := blk.Alloc.AllocTmp()
	rem := blk.Alloc.AllocTmp()
	if signed {
		blk.Buf.Sdiv(quot, dividend, divisor)
	} else {
		blk.Buf.Udiv(quot, dividend, divisor)
	}
	prod := blk.Alloc.AllocTmp()
	blk.Buf.Mul(prod, quot, divisor)
	blk.Buf.SubRR(rem, dividend, prod)
	blk.Alloc.Free(prod)

	blk.Buf.Bfi(dividend, quot, 0, 16)
	blk.Buf.Bfi(dividend, rem, 16, 16)
	blk.Alloc.MarkDirty(regalloc.D(dn))

	blk.Buf.TstRR(quot, quot)
	blk.CC.NoteProducer(ccengine.MaskN|ccengine.MaskZ, 2)
	blk.CC.CommitNZClearVC()

	blk.Alloc.Free(quot)
	blk.Alloc.Free(rem)
	if src != ea.RegUnassigned && !blk.Alloc.IsGuestMapped(src) {
		blk.Alloc.Free(src)
	}
	return 1, nil
}

// emitSBCD implements BCD subtract-with-extend between two data
// registers or two predecrementing address-indirect bytes: subtract
// nibble by nibble with decimal borrow correction. X is read directly
// out of the CCR mirror register's bit 4, since it only ever changes
// via an explicit commit and is never resident in host NZCV between
// commits.
func emitSBCD(blk *xlate.Block, opcode uint16) (int, error) {
	rx := int((opcode >> 9) & 7)
	ry := int(opcode & 7)
	memoryForm := opcode&0x0008 != 0

	var src, dst, dstAddr emit.Reg
	if memoryForm {
		srcAddr := blk.Alloc.MapRead(regalloc.A(ry))
		blk.Buf.SubImm(srcAddr, srcAddr, 1)
		blk.Alloc.MarkDirty(regalloc.A(ry))
		dstAddr = blk.Alloc.MapRead(regalloc.A(rx))
		blk.Buf.SubImm(dstAddr, dstAddr, 1)
		blk.Alloc.MarkDirty(regalloc.A(rx))
		src = blk.Alloc.AllocTmp()
		blk.Buf.LdrbImm(src, srcAddr, 0)
		dst = blk.Alloc.AllocTmp()
		blk.Buf.LdrbImm(dst, dstAddr, 0)
	} else {
		src = blk.Alloc.CopyRead(regalloc.D(ry))
		dst = blk.Alloc.MapRead(regalloc.D(rx))
	}

	xIn := blk.Alloc.AllocTmp()
	blk.Buf.Ubfx(xIn, emit.RegCCR, 4, 1)

	loDst := blk.Alloc.AllocTmp()
	blk.Buf.AndRR(loDst, dst, mustConst(blk, 0xF))
	loSrc := blk.Alloc.AllocTmp()
	blk.Buf.AndRR(loSrc, src, mustConst(blk, 0xF))
	loResult := blk.Alloc.AllocTmp()
	blk.Buf.SubRR(loResult, loDst, loSrc)
	blk.Buf.SubRR(loResult, loResult, xIn)
	blk.Buf.CmpImm(loResult, 0)
	loBorrow := blk.Alloc.AllocTmp()
	blk.Buf.CSet(loBorrow, emit.CondLT)

	result := blk.Alloc.AllocTmp()
	blk.Buf.SubRR(result, dst, src)
	blk.Buf.SubRR(result, result, xIn)
	correction := blk.Alloc.AllocTmp()
	blk.Buf.Mul(correction, loBorrow, mustConst(blk, 6))
	blk.Buf.SubRR(result, result, correction)

	blk.Buf.CmpImm(result, 0)
	hiBorrow := blk.Alloc.AllocTmp()
	blk.Buf.CSet(hiBorrow, emit.CondLT)
	blk.Buf.Mul(correction, hiBorrow, mustConst(blk, 0x60))
	blk.Buf.SubRR(result, result, correction)

	blk.Buf.AndRR(result, result, mustConst(blk, 0xFF))
	blk.Buf.MovRR(dst, result)

	if memoryForm {
		blk.Buf.StrbImm(dst, dstAddr, 0)
	} else {
		blk.Alloc.MarkDirty(regalloc.D(rx))
	}

	// Z: cleared if the result is non-zero, left unchanged otherwise
	// (68K reference manual); C and X both take the final borrow-out.
	blk.Buf.CmpImm(result, 0)
	nonzero := blk.Alloc.AllocTmp()
	blk.Buf.CSet(nonzero, emit.CondNE)
	blk.Buf.LslImm(nonzero, nonzero, 2) // mirror Z bit
	blk.Buf.BicRR(emit.RegCCR, emit.RegCCR, nonzero)

	blk.Buf.Bfi(emit.RegCCR, hiBorrow, 0, 1) // mirror C
	blk.Buf.Bfi(emit.RegCCR, hiBorrow, 4, 1) // mirror X, tied to C per SBCD

	blk.Alloc.Free(xIn)
	blk.Alloc.Free(loDst)
	blk.Alloc.Free(loSrc)
	blk.Alloc.Free(loResult)
	blk.Alloc.Free(loBorrow)
	blk.Alloc.Free(result)
	blk.Alloc.Free(correction)
	blk.Alloc.Free(hiBorrow)
	blk.Alloc.Free(nonzero)
	return 1, nil
}
