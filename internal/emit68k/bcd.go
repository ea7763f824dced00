// NBCD, opcode line 0x4's single-operand BCD negate. Shares its
// nibble-borrow construction with SBCD (line8.go), with the source
// operand fixed at zero: NBCD dst computes 0 - dst - X in BCD.
package emit68k

import (
	"github.com/tinyrange-pi/m68kjit/internal/ccengine"
	"github.com/tinyrange-pi/m68kjit/internal/decode"
	"github.com/tinyrange-pi/m68kjit/internal/ea"
	"github.com/tinyrange-pi/m68kjit/internal/emit"
	"github.com/tinyrange-pi/m68kjit/internal/xlate"
)

func init() {
	decode.Register(4, 0xFFC0, 0x4800, decode.OpcodeDef{Name: "NBCD", Emit: emitNBCD, SRSets: ccengine.MaskZ | ccengine.MaskX | ccengine.MaskC, HasEA: true, BaseLength: 1})
}

// emitNBCD implements BCD negate-with-extend: 0 - dst - X, nibble by
// nibble with decimal borrow correction, the same shape emitSBCD uses
// with its source pinned to zero.
func emitNBCD(blk *xlate.Block, opcode uint16) (int, error) {
	e, err := decodeDestEA(blk, opcode)
	if err != nil {
		return 0, err
	}
	r := resources(blk)
	dst, err := ea.Load(r, ea.SizeByte, ea.RegUnassigned, e, false)
	if err != nil {
		return 0, err
	}

	xIn := blk.Alloc.AllocTmp()
	blk.Buf.Ubfx(xIn, emit.RegCCR, 4, 1)

	loDst := blk.Alloc.AllocTmp()
	blk.Buf.AndRR(loDst, dst, mustConst(blk, 0xF))
	loResult := blk.Alloc.AllocTmp()
	blk.Buf.Neg(loResult, loDst)
	blk.Buf.SubRR(loResult, loResult, xIn)
	blk.Buf.CmpImm(loResult, 0)
	loBorrow := blk.Alloc.AllocTmp()
	blk.Buf.CSet(loBorrow, emit.CondLT)

	result := blk.Alloc.AllocTmp()
	blk.Buf.Neg(result, dst)
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
	if err := ea.Store(r, ea.SizeByte, dst, e); err != nil {
		return 0, err
	}

	// Z: cleared if the result is non-zero, left unchanged otherwise;
	// C and X both take the final borrow-out, same rule as SBCD.
	blk.Buf.CmpImm(result, 0)
	nonzero := blk.Alloc.AllocTmp()
	blk.Buf.CSet(nonzero, emit.CondNE)
	blk.Buf.LslImm(nonzero, nonzero, 2)
	blk.Buf.BicRR(emit.RegCCR, emit.RegCCR, nonzero)

	blk.Buf.Bfi(emit.RegCCR, hiBorrow, 0, 1)
	blk.Buf.Bfi(emit.RegCCR, hiBorrow, 4, 1)

	blk.Alloc.Free(xIn)
	blk.Alloc.Free(loDst)
	blk.Alloc.Free(loResult)
	blk.Alloc.Free(loBorrow)
	blk.Alloc.Free(result)
	blk.Alloc.Free(correction)
	blk.Alloc.Free(hiBorrow)
	blk.Alloc.Free(nonzero)
	blk.Alloc.Free(dst)
	return 1, nil
}
