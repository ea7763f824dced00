// MOVE.B/W/L and MOVEA.W/L, opcode lines 0x1 (byte), 0x3 (word), 0x2
// (long). The destination field at bits 11:6 uses the same mode/reg
// encoding as a normal EA but with mode and register swapped relative
// to the source field at bits 5:0.
//
// Grounded on original_source/src/M68k_LINE1.c-equivalent MOVE
// handling folded into the LINE0-adjacent move emitter, generalized
// here into one shared dispatch per size.
package emit68k

import (
	"github.com/tinyrange-pi/m68kjit/internal/ccengine"
	"github.com/tinyrange-pi/m68kjit/internal/decode"
	"github.com/tinyrange-pi/m68kjit/internal/ea"
	"github.com/tinyrange-pi/m68kjit/internal/xlate"
)

func init() {
	moveSR := ccengine.MaskN | ccengine.MaskZ
	decode.Register(1, 0x0000, 0x0000, decode.OpcodeDef{Name: "MOVE.B", Emit: moveSize(ea.SizeByte), SRSets: moveSR, HasEA: true, BaseLength: 1})
	decode.Register(3, 0x0000, 0x0000, decode.OpcodeDef{Name: "MOVE.W", Emit: moveSize(ea.SizeWord), SRSets: moveSR, HasEA: true, BaseLength: 1})
	decode.Register(2, 0x0000, 0x0000, decode.OpcodeDef{Name: "MOVE.L", Emit: moveSize(ea.SizeLong), SRSets: moveSR, HasEA: true, BaseLength: 1})
}

// destEA decodes the swapped destination field at bits 11:6: mode at
// 8:6, register at 11:9.
func destEA(blk *xlate.Block, opcode uint16) (ea.EA, error) {
	mode := (opcode >> 6) & 7
	reg := (opcode >> 9) & 7
	return blk.DecodeEA(mode, reg)
}

// moveSize returns the shared MOVE handler for one operand size; the
// destination-mode-1 case (An) is MOVEA, which does not touch flags
// and sign-extends word sources to 32 bits.
func moveSize(size ea.Size) func(*xlate.Block, uint16) (int, error) {
	return func(blk *xlate.Block, opcode uint16) (int, error) {
		srcE, err := decodeDestEA(blk, opcode)
		if err != nil {
			return 0, err
		}
		r := resources(blk)
		isMOVEA := (opcode>>6)&7 == 1
		loadSize := size
		if isMOVEA && size == ea.SizeWord {
			loadSize = ea.SizeWord | ea.SignExtendBit
		}
		src, err := ea.Load(r, loadSize, ea.RegUnassigned, srcE, true)
		if err != nil {
			return 0, err
		}
		dstE, err := destEA(blk, opcode)
		if err != nil {
			return 0, err
		}
		storeSize := size
		if isMOVEA {
			storeSize = ea.SizeLong
		}
		if err := ea.Store(r, storeSize, src, dstE); err != nil {
			return 0, err
		}
		if !isMOVEA {
			commitLogical(blk, src, size)
		}
		if src != ea.RegUnassigned && !blk.Alloc.IsGuestMapped(src) {
			blk.Alloc.Free(src)
		}
		return 1, nil
	}
}

