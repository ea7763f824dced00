// AND, MULU, MULS, ABCD, EXG, opcode line 0xC.
//
// Shares AND's <ea>,Dn / Dn,<ea> shape with OR (dyadic.go); opmode
// 011/111 alias to the word multiplies (32-bit product, no overflow
// detection per the 68000 baseline — 68020's 32x32 extension is out
// of scope); EXG and ABCD share opmode 100 the same way SBCD/OR and
// CMPM/EOR overlap, distinguished by the low mode/register bits.
package emit68k

import (
	"github.com/tinyrange-pi/m68kjit/internal/ccengine"
	"github.com/tinyrange-pi/m68kjit/internal/decode"
	"github.com/tinyrange-pi/m68kjit/internal/ea"
	"github.com/tinyrange-pi/m68kjit/internal/emit"
	"github.com/tinyrange-pi/m68kjit/internal/regalloc"
	"github.com/tinyrange-pi/m68kjit/internal/xlate"
)

func init() {
	decode.Register(0xC, 0xF1F8, 0xC140, decode.OpcodeDef{Name: "EXG-DD", Emit: emitEXGData, BaseLength: 1})
	decode.Register(0xC, 0xF1F8, 0xC148, decode.OpcodeDef{Name: "EXG-AA", Emit: emitEXGAddr, BaseLength: 1})
	decode.Register(0xC, 0xF1F8, 0xC188, decode.OpcodeDef{Name: "EXG-DA", Emit: emitEXGDataAddr, BaseLength: 1})
	decode.Register(0xC, 0xF1F0, 0xC100, decode.OpcodeDef{Name: "ABCD", Emit: emitABCD, SRSets: ccengine.MaskZ | ccengine.MaskX | ccengine.MaskC, BaseLength: 1})
	decode.Register(0xC, 0xF000, 0xC000, decode.OpcodeDef{Name: "AND/MULU/MULS", Emit: emitAND, HasEA: true, BaseLength: 1})
}

func emitAND(blk *xlate.Block, opcode uint16) (int, error) {
	opmode := (opcode >> 6) & 7
	if opmode == 3 {
		return emitMUL(blk, opcode, false)
	}
	if opmode == 7 {
		return emitMUL(blk, opcode, true)
	}
	return dyadicDnEA(blk, opcode,
		func(dst, a, b emit.Reg) { blk.Buf.AndRR(dst, a, b) },
		func(result emit.Reg, size ea.Size) { commitLogical(blk, result, size) },
		true)
}

// emitMUL implements MULU/MULS Dn,<ea>: a 16-bit source times the low
// 16 bits of Dn, producing a 32-bit product that replaces Dn whole.
func emitMUL(blk *xlate.Block, opcode uint16, signed bool) (int, error) {
	dn := int((opcode >> 9) & 7)
	e, err := decodeDestEA(blk, opcode)
	if err != nil {
		return 0, err
	}
	r := resources(blk)
	src, err := ea.Load(r, ea.SizeWord, ea.RegUnassigned, e, false)
	if err != nil {
		return 0, err
	}
	if signed {
		blk.Buf.Sbfx(src, src, 0, 16)
	} else {
		blk.Buf.Ubfx(src, src, 0, 16)
	}
	dst := blk.Alloc.MapRead(regalloc.D(dn))
	lo16 := blk.Alloc.AllocTmp()
	if signed {
		blk.Buf.Sbfx(lo16, dst, 0, 16)
	} else {
		blk.Buf.Ubfx(lo16, dst, 0, 16)
	}
	blk.Buf.Mul(dst, lo16, src)
	blk.Alloc.Free(lo16)
	blk.Alloc.MarkDirty(regalloc.D(dn))

	blk.Buf.TstRR(dst, dst)
	blk.CC.NoteProducer(ccengine.MaskN|ccengine.MaskZ, 4)
	blk.CC.CommitNZClearVC()

	if src != ea.RegUnassigned && !blk.Alloc.IsGuestMapped(src) {
		blk.Alloc.Free(src)
	}
	return 1, nil
}

func emitEXGData(blk *xlate.Block, opcode uint16) (int, error) {
	return exgSwap(blk, regalloc.D(int((opcode>>9)&7)), regalloc.D(int(opcode&7)))
}

func emitEXGAddr(blk *xlate.Block, opcode uint16) (int, error) {
	return exgSwap(blk, regalloc.A(int((opcode>>9)&7)), regalloc.A(int(opcode&7)))
}

func emitEXGDataAddr(blk *xlate.Block, opcode uint16) (int, error) {
	return exgSwap(blk, regalloc.D(int((opcode>>9)&7)), regalloc.A(int(opcode&7)))
}

// exgSwap exchanges the full 32-bit contents of two guest registers.
// CCR is unaffected.
func exgSwap(blk *xlate.Block, x, y regalloc.GuestReg) (int, error) {
	rx := blk.Alloc.MapRead(x)
	ry := blk.Alloc.MapRead(y)
	tmp := blk.Alloc.AllocTmp()
	blk.Buf.MovRR(tmp, rx)
	rxNew := blk.Alloc.MapWrite(x)
	blk.Buf.MovRR(rxNew, ry)
	ryNew := blk.Alloc.MapWrite(y)
	blk.Buf.MovRR(ryNew, tmp)
	blk.Alloc.Free(tmp)
	blk.Alloc.MarkDirty(x)
	blk.Alloc.MarkDirty(y)
	return 1, nil
}

// emitABCD implements BCD add-with-extend, the mirror of SBCD's
// nibble-correction shape with addition in place of subtraction.
func emitABCD(blk *xlate.Block, opcode uint16) (int, error) {
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
	blk.Buf.AddRR(loResult, loDst, loSrc)
	blk.Buf.AddRR(loResult, loResult, xIn)
	blk.Buf.CmpImm(loResult, 9)
	loCarry := blk.Alloc.AllocTmp()
	blk.Buf.CSet(loCarry, emit.CondGT)

	result := blk.Alloc.AllocTmp()
	blk.Buf.AddRR(result, dst, src)
	blk.Buf.AddRR(result, result, xIn)
	correction := blk.Alloc.AllocTmp()
	blk.Buf.Mul(correction, loCarry, mustConst(blk, 6))
	blk.Buf.AddRR(result, result, correction)

	blk.Buf.CmpImm(result, 0x99)
	hiCarry := blk.Alloc.AllocTmp()
	blk.Buf.CSet(hiCarry, emit.CondGT)
	blk.Buf.Mul(correction, hiCarry, mustConst(blk, 0x60))
	blk.Buf.AddRR(result, result, correction)

	blk.Buf.AndRR(result, result, mustConst(blk, 0xFF))
	blk.Buf.MovRR(dst, result)

	if memoryForm {
		blk.Buf.StrbImm(dst, dstAddr, 0)
	} else {
		blk.Alloc.MarkDirty(regalloc.D(rx))
	}

	blk.Buf.CmpImm(result, 0)
	nonzero := blk.Alloc.AllocTmp()
	blk.Buf.CSet(nonzero, emit.CondNE)
	blk.Buf.LslImm(nonzero, nonzero, 2) // mirror Z bit
	blk.Buf.BicRR(emit.RegCCR, emit.RegCCR, nonzero)

	blk.Buf.Bfi(emit.RegCCR, hiCarry, 0, 1) // mirror C
	blk.Buf.Bfi(emit.RegCCR, hiCarry, 4, 1) // mirror X, tied to C

	blk.Alloc.Free(xIn)
	blk.Alloc.Free(loDst)
	blk.Alloc.Free(loSrc)
	blk.Alloc.Free(loResult)
	blk.Alloc.Free(loCarry)
	blk.Alloc.Free(result)
	blk.Alloc.Free(correction)
	blk.Alloc.Free(hiCarry)
	blk.Alloc.Free(nonzero)
	return 1, nil
}
