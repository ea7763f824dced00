// MOVEQ, opcode line 0x7: an 8-bit sign-extended immediate loaded
// directly into a data register, setting N/Z and clearing V/C.
package emit68k

import (
	"github.com/tinyrange-pi/m68kjit/internal/ccengine"
	"github.com/tinyrange-pi/m68kjit/internal/decode"
	"github.com/tinyrange-pi/m68kjit/internal/regalloc"
	"github.com/tinyrange-pi/m68kjit/internal/xlate"
)

func init() {
	decode.Register(7, 0x0100, 0x0000, decode.OpcodeDef{
		Name:    "MOVEQ",
		Emit:    emitMOVEQ,
		SRSets:  ccengine.MaskN | ccengine.MaskZ,
		BaseLength: 1,
	})
}

func emitMOVEQ(blk *xlate.Block, opcode uint16) (int, error) {
	dn := int((opcode >> 9) & 7)
	imm := int32(int8(opcode & 0xFF))
	dst := blk.Alloc.MapWrite(regalloc.D(dn))
	blk.Buf.LoadImm32Compact(dst, uint32(imm))
	blk.Alloc.MarkDirty(regalloc.D(dn))
	blk.Buf.TstRR(dst, dst)
	blk.CC.NoteProducer(ccengine.MaskN|ccengine.MaskZ, 4)
	blk.CC.CommitNZClearVC()
	return 1, nil
}
