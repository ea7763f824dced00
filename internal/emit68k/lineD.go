// ADD, ADDA, ADDX, opcode line 0xD. Mirrors line9.go's SUB/SUBA/SUBX
// shape with CarryAddLike sense and the reciprocal opmode assignment.
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
	for _, pattern := range []uint16{0xD100, 0xD140, 0xD180} { // sizes 00/01/10 only; 11 is ADDA.L
		decode.Register(0xD, 0xF1F0, pattern, decode.OpcodeDef{Name: "ADDX", Emit: emitADDX, SRSets: ccengine.AllBits, BaseLength: 1})
	}
	decode.Register(0xD, 0xF000, 0xD000, decode.OpcodeDef{Name: "ADD/ADDA", Emit: emitADD, HasEA: true, BaseLength: 1})
}

func emitADD(blk *xlate.Block, opcode uint16) (int, error) {
	opmode := (opcode >> 6) & 7
	if opmode == 3 {
		return emitADDA(blk, opcode, ea.SizeWord)
	}
	if opmode == 7 {
		return emitADDA(blk, opcode, ea.SizeLong)
	}
	return dyadicDnEA(blk, opcode,
		func(dst, a, b emit.Reg) { blk.Buf.AddsRR(dst, a, b) },
		func(result emit.Reg, size ea.Size) { commitArithX(blk, ccengine.CarryAddLike, size) },
		true)
}

func emitADDA(blk *xlate.Block, opcode uint16, size ea.Size) (int, error) {
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
	blk.Buf.AddRR(dst, dst, src)
	blk.Alloc.MarkDirty(regalloc.A(an))
	if src != ea.RegUnassigned && !blk.Alloc.IsGuestMapped(src) {
		blk.Alloc.Free(src)
	}
	return 1, nil
}

func emitADDX(blk *xlate.Block, opcode uint16) (int, error) {
	size := eaSize(opcode >> 6)
	rx := int((opcode >> 9) & 7)
	ry := int(opcode & 7)
	memoryForm := opcode&0x0008 != 0

	r := resources(blk)
	var src, dst emit.Reg
	if memoryForm {
		srcEA := ea.EA{Mode: ea.ModeAnPreDec, Reg: ry}
		dstEA := ea.EA{Mode: ea.ModeAnPreDec, Reg: rx}
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
	blk.Buf.AddsRR(dst, dst, src)
	blk.Buf.AddsRR(dst, dst, xIn)
	blk.Alloc.Free(xIn)

	commitExtend(blk, dst, ccengine.CarryAddLike, size)

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
