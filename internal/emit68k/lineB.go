// CMP, CMPA, CMPM, EOR, opcode line 0xB.
//
// CMPM's (Ay)+,(Ax)+ encoding reuses the same opmode range as EOR but
// with the ea mode field fixed to address-register-direct, a mode EOR
// never legally targets; CMPM's narrower pattern is registered first
// so EOR's broad catch-all only fills what CMPM left nil, the same
// trick line9/lineD use for SUBX/ADDX against SUB/ADD.
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
	for _, pattern := range []uint16{0xB108, 0xB148, 0xB188} { // sizes 00/01/10 only; 11 is CMPA.L
		decode.Register(0xB, 0xF1F8, pattern, decode.OpcodeDef{Name: "CMPM", Emit: emitCMPM, SRSets: ccengine.AllBits &^ ccengine.MaskX, BaseLength: 1})
	}
	decode.Register(0xB, 0xF000, 0xB000, decode.OpcodeDef{Name: "CMP/CMPA/EOR", Emit: emitCMPEOR, HasEA: true, BaseLength: 1})
}

func emitCMPEOR(blk *xlate.Block, opcode uint16) (int, error) {
	opmode := (opcode >> 6) & 7
	switch opmode {
	case 3:
		return emitCMPA(blk, opcode, ea.SizeWord)
	case 7:
		return emitCMPA(blk, opcode, ea.SizeLong)
	case 0, 1, 2:
		size := eaSize(opcode >> 6)
		dn := int((opcode >> 9) & 7)
		e, err := decodeDestEA(blk, opcode)
		if err != nil {
			return 0, err
		}
		r := resources(blk)
		src, err := ea.Load(r, size, ea.RegUnassigned, e, true)
		if err != nil {
			return 0, err
		}
		dnReg := blk.Alloc.MapRead(regalloc.D(dn))
		tmp := blk.Alloc.AllocTmp()
		blk.Buf.SubsRR(tmp, dnReg, src)
		commitArith(blk, ccengine.CarrySubLike, size)
		blk.Alloc.Free(tmp)
		if src != ea.RegUnassigned && !blk.Alloc.IsGuestMapped(src) {
			blk.Alloc.Free(src)
		}
		return 1, nil
	default: // 4,5,6: EOR Dn,<ea>
		return dyadicDnEA(blk, opcode,
			func(dst, a, b emit.Reg) { blk.Buf.EorRR(dst, a, b) },
			func(result emit.Reg, size ea.Size) { commitLogical(blk, result, size) },
			true)
	}
}

// emitCMPA compares the full address register against a sign-extended
// source; like all CMP forms it never writes back, only sets flags.
func emitCMPA(blk *xlate.Block, opcode uint16, size ea.Size) (int, error) {
	an := int((opcode >> 9) & 7)
	e, err := decodeDestEA(blk, opcode)
	if err != nil {
		return 0, err
	}
	r := resources(blk)
	src, err := ea.Load(r, size, ea.RegUnassigned, e, true)
	if err != nil {
		return 0, err
	}
	if size == ea.SizeWord {
		blk.Buf.Sbfx(src, src, 0, 16)
	}
	dst := blk.Alloc.MapRead(regalloc.A(an))
	blk.Buf.CmpRR(dst, src)
	commitArith(blk, ccengine.CarrySubLike, ea.SizeLong)
	if src != ea.RegUnassigned && !blk.Alloc.IsGuestMapped(src) {
		blk.Alloc.Free(src)
	}
	return 1, nil
}

// emitCMPM implements CMPM (Ay)+,(Ax)+: both operands post-increment
// regardless of the compare outcome.
func emitCMPM(blk *xlate.Block, opcode uint16) (int, error) {
	size := eaSize(opcode >> 6)
	ax := int((opcode >> 9) & 7)
	ay := int(opcode & 7)
	r := resources(blk)
	srcEA := ea.EA{Mode: ea.ModeAnPostInc, Reg: ay}
	dstEA := ea.EA{Mode: ea.ModeAnPostInc, Reg: ax}
	src, err := ea.Load(r, size, ea.RegUnassigned, srcEA, true)
	if err != nil {
		return 0, err
	}
	dst, err := ea.Load(r, size, ea.RegUnassigned, dstEA, true)
	if err != nil {
		return 0, err
	}
	tmp := blk.Alloc.AllocTmp()
	blk.Buf.SubsRR(tmp, dst, src)
	commitArith(blk, ccengine.CarrySubLike, size)
	blk.Alloc.Free(tmp)
	if src != ea.RegUnassigned && !blk.Alloc.IsGuestMapped(src) {
		blk.Alloc.Free(src)
	}
	if dst != ea.RegUnassigned && !blk.Alloc.IsGuestMapped(dst) {
		blk.Alloc.Free(dst)
	}
	return 1, nil
}
