// SUB, SUBA, SUBX, opcode line 0x9.
//
// Shares its <ea>,Dn / Dn,<ea> shape with OR/AND/ADD (dyadic.go);
// opmode 011/111 alias to SUBA (address-register destination, word
// source sign-extended to long, no flags); SUBX's register/
// predecrement-memory pair claims its narrower pattern first so the
// broader SUB registration only fills what SUBX left nil.
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
	for _, pattern := range []uint16{0x9100, 0x9140, 0x9180} { // sizes 00/01/10 only; 11 is SUBA.L
		decode.Register(9, 0xF1F0, pattern, decode.OpcodeDef{Name: "SUBX", Emit: emitSUBX, SRSets: ccengine.AllBits, BaseLength: 1})
	}
	decode.Register(9, 0xF000, 0x9000, decode.OpcodeDef{Name: "SUB/SUBA", Emit: emitSUB, HasEA: true, BaseLength: 1})
}

func emitSUB(blk *xlate.Block, opcode uint16) (int, error) {
	opmode := (opcode >> 6) & 7
	if opmode == 3 {
		return emitSUBA(blk, opcode, ea.SizeWord)
	}
	if opmode == 7 {
		return emitSUBA(blk, opcode, ea.SizeLong)
	}
	return dyadicDnEA(blk, opcode,
		func(dst, a, b emit.Reg) { blk.Buf.SubsRR(dst, a, b) },
		func(result emit.Reg, size ea.Size) { commitArithX(blk, ccengine.CarrySubLike, size) },
		true)
}

// emitSUBA implements SUBA.W/L: the source is loaded and sign-extended
// to 32 bits regardless of size, subtracted from the full address
// register; SUBA never touches CCR.
func emitSUBA(blk *xlate.Block, opcode uint16, size ea.Size) (int, error) {
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
	blk.Buf.SubRR(dst, dst, src)
	blk.Alloc.MarkDirty(regalloc.A(an))
	if src != ea.RegUnassigned && !blk.Alloc.IsGuestMapped(src) {
		blk.Alloc.Free(src)
	}
	return 1, nil
}

// emitSUBX implements SUBX Dy,Dx / SUBX -(Ay),-(Ax), subtracting with
// the incoming X flag, per commitExtend's extend-form flag contract.
func emitSUBX(blk *xlate.Block, opcode uint16) (int, error) {
	size := eaSize(opcode >> 6)
	rx := int((opcode >> 9) & 7)
	ry := int(opcode & 7)
	memoryForm := opcode&0x0008 != 0

	r := resources(blk)
	var src, dst emit.Reg
	var srcEA, dstEA ea.EA
	if memoryForm {
		srcEA = ea.EA{Mode: ea.ModeAnPreDec, Reg: ry}
		dstEA = ea.EA{Mode: ea.ModeAnPreDec, Reg: rx}
		var err error
		src, err = ea.Load(r, size, ea.RegUnassigned, srcEA, true)
		if err != nil {
			return 0, err
		}
		dst, err = ea.Load(r, size, ea.RegUnassigned, dstEA, false)
		if err != nil {
			return 0, err
		}
	} else {
		src = blk.Alloc.CopyRead(regalloc.D(ry))
		dst = blk.Alloc.MapRead(regalloc.D(rx))
	}

	xIn := blk.Alloc.AllocTmp()
	blk.Buf.Ubfx(xIn, emit.RegCCR, 4, 1)
	blk.Buf.SubsRR(dst, dst, src)
	blk.Buf.SubsRR(dst, dst, xIn)
	blk.Alloc.Free(xIn)

	commitExtend(blk, dst, ccengine.CarrySubLike, size)

	if memoryForm {
		storeAtMappedAddr(blk, size, rx, dst)
		blk.Alloc.Free(src)
		blk.Alloc.Free(dst)
	} else {
		blk.Alloc.MarkDirty(regalloc.D(rx))
		if !blk.Alloc.IsGuestMapped(src) {
			blk.Alloc.Free(src)
		}
	}
	return 1, nil
}
