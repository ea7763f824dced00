// Shared dispatch shape for the "<op> <ea>,Dn" / "<op> Dn,<ea>"
// family: OR, AND, ADD, SUB, CMP and friends all decode a 3-bit
// register field plus a direction bit plus a 2-bit size field the
// same way; only the host op and the flag commit differ.
package emit68k

import (
	"github.com/tinyrange-pi/m68kjit/internal/ea"
	"github.com/tinyrange-pi/m68kjit/internal/emit"
	"github.com/tinyrange-pi/m68kjit/internal/regalloc"
	"github.com/tinyrange-pi/m68kjit/internal/xlate"
)

// dyadicDnEA implements the common two-operand shape where bit 8
// selects direction (0: <ea> op Dn -> Dn, 1: Dn op <ea> -> <ea>) and
// bits 7:6 carry the size. commit receives the result and is
// responsible for flag handling; storeToEA controls whether the
// direction-1 case writes back to memory (false for CMP, which never
// writes).
func dyadicDnEA(blk *xlate.Block, opcode uint16, op func(dst, a, b emit.Reg), commit func(result emit.Reg, size ea.Size), storeToEA bool) (int, error) {
	dn := int((opcode >> 9) & 7)
	toEA := opcode&0x0100 != 0
	size := eaSize(opcode >> 6)
	e, err := decodeDestEA(blk, opcode)
	if err != nil {
		return 0, err
	}
	r := resources(blk)

	if !toEA {
		src, err := ea.Load(r, size, ea.RegUnassigned, e, true)
		if err != nil {
			return 0, err
		}
		dst := blk.Alloc.MapRead(regalloc.D(dn))
		op(dst, dst, src)
		commit(dst, size)
		blk.Alloc.MarkDirty(regalloc.D(dn))
		if src != ea.RegUnassigned && !blk.Alloc.IsGuestMapped(src) {
			blk.Alloc.Free(src)
		}
		return 1, nil
	}

	dnReg := blk.Alloc.MapRead(regalloc.D(dn))
	dst, err := ea.Load(r, size, ea.RegUnassigned, e, false)
	if err != nil {
		return 0, err
	}
	op(dst, dst, dnReg)
	commit(dst, size)
	if storeToEA {
		if err := ea.Store(r, size, dst, e); err != nil {
			return 0, err
		}
	}
	blk.Alloc.Free(dst)
	return 1, nil
}
