// LINK, UNLK, PEA, SWAP, EXT.W, EXT.L — the stack-frame and small
// register-reshaping instructions that share line 0x4's opmode-1 and
// opmode-10/11 blocks with MOVEM (movem.go) and, for SWAP, with PEA.
//
// Grounded on original_source/src/M68k_LINE4.c's LINK/UNLK/PEA/SWAP/EXT
// emitters; SWAP/EXT's narrow register-direct patterns are registered
// before PEA's/MOVEM's broader control-addressing patterns the same
// way line4.go carves MOVE-from-SR out of NEGX.
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
	decode.Register(4, 0xFFF8, 0x4E50, decode.OpcodeDef{Name: "LINK", Emit: emitLINK, BaseLength: 2})
	decode.Register(4, 0xFFF8, 0x4E58, decode.OpcodeDef{Name: "UNLK", Emit: emitUNLK, BaseLength: 1})

	decode.Register(4, 0xFFF8, 0x4840, decode.OpcodeDef{Name: "SWAP", Emit: emitSWAP, SRSets: ccengine.MaskN | ccengine.MaskZ, BaseLength: 1})
	decode.Register(4, 0xFFC0, 0x4840, decode.OpcodeDef{Name: "PEA", Emit: emitPEA, HasEA: true, BaseLength: 1})

	decode.Register(4, 0xFFF8, 0x4880, decode.OpcodeDef{Name: "EXTW", Emit: emitEXTW, SRSets: ccengine.MaskN | ccengine.MaskZ, BaseLength: 1})
	decode.Register(4, 0xFFF8, 0x48C0, decode.OpcodeDef{Name: "EXTL", Emit: emitEXTL, SRSets: ccengine.MaskN | ccengine.MaskZ, BaseLength: 1})
}

// emitLINK implements LINK An,#disp: push An, copy A7 to An, then add
// the sign-extended 16-bit displacement to A7. A7 itself as the
// operand is the one legitimate special case (push the pre-push A7,
// not the post-push one), matching the reference manual's note.
func emitLINK(blk *xlate.Block, opcode uint16) (int, error) {
	an := int(opcode & 7)
	disp := int32(int16(blk.Ctx.ReadNext16()))

	sp := blk.Alloc.MapRead(regalloc.A(7))
	var pushed emit.Reg
	if an == 7 {
		pushed = blk.Alloc.AllocTmp()
		blk.Buf.MovRR(pushed, sp)
	} else {
		pushed = blk.Alloc.MapRead(regalloc.A(an))
	}
	blk.Buf.SubImm(sp, sp, 4)
	blk.Buf.StrwImm(pushed, sp, 0)
	if an == 7 {
		blk.Alloc.Free(pushed)
	}

	if an != 7 {
		dst := blk.Alloc.MapWrite(regalloc.A(an))
		blk.Buf.MovRR(dst, sp)
		blk.Alloc.MarkDirty(regalloc.A(an))
	}

	if disp < 0 {
		blk.Buf.SubImm(sp, sp, uint32(-disp))
	} else if disp > 0 {
		blk.Buf.AddImm(sp, sp, uint32(disp))
	}
	blk.Alloc.MarkDirty(regalloc.A(7))
	return 1, nil
}

// emitUNLK implements UNLK An: A7 <- An, then pop An from the new A7.
func emitUNLK(blk *xlate.Block, opcode uint16) (int, error) {
	an := int(opcode & 7)
	src := blk.Alloc.MapRead(regalloc.A(an))
	sp := blk.Alloc.MapWrite(regalloc.A(7))
	blk.Buf.MovRR(sp, src)
	blk.Alloc.MarkDirty(regalloc.A(7))

	dst := blk.Alloc.MapWrite(regalloc.A(an))
	blk.Buf.LdrwImm(dst, sp, 0)
	blk.Buf.AddImm(sp, sp, 4)
	blk.Alloc.MarkDirty(regalloc.A(an))
	return 1, nil
}

// emitPEA pushes an effective address without dereferencing it.
func emitPEA(blk *xlate.Block, opcode uint16) (int, error) {
	e, err := decodeDestEA(blk, opcode)
	if err != nil {
		return 0, err
	}
	r := resources(blk)
	addr, err := ea.Load(r, ea.SizeAddrOnly, ea.RegUnassigned, e, true)
	if err != nil {
		return 0, err
	}
	sp := blk.Alloc.MapRead(regalloc.A(7))
	blk.Buf.SubImm(sp, sp, 4)
	blk.Buf.StrwImm(addr, sp, 0)
	blk.Alloc.MarkDirty(regalloc.A(7))
	if addr != ea.RegUnassigned && !blk.Alloc.IsGuestMapped(addr) {
		blk.Alloc.Free(addr)
	}
	return 1, nil
}

// emitSWAP exchanges the high and low 16-bit halves of Dn.
func emitSWAP(blk *xlate.Block, opcode uint16) (int, error) {
	dn := int(opcode & 7)
	dst := blk.Alloc.MapRead(regalloc.D(dn))
	tmp := blk.Alloc.AllocTmp()
	blk.Buf.Ubfx(tmp, dst, 16, 16)
	blk.Buf.Bfi(tmp, dst, 16, 16)
	blk.Buf.MovRR(dst, tmp)
	blk.Alloc.Free(tmp)
	blk.Alloc.MarkDirty(regalloc.D(dn))
	commitLogical(blk, dst, ea.SizeLong)
	return 1, nil
}

// emitEXTW sign-extends the low byte of Dn into the low word, leaving
// the upper word untouched.
func emitEXTW(blk *xlate.Block, opcode uint16) (int, error) {
	dn := int(opcode & 7)
	dst := blk.Alloc.MapRead(regalloc.D(dn))
	ext := blk.Alloc.AllocTmp()
	blk.Buf.Sbfx(ext, dst, 0, 8)
	blk.Buf.Bfi(dst, ext, 0, 16)
	blk.Alloc.Free(ext)
	blk.Alloc.MarkDirty(regalloc.D(dn))
	word := blk.Alloc.AllocTmp()
	blk.Buf.Sbfx(word, dst, 0, 16)
	commitLogical(blk, word, ea.SizeWord)
	blk.Alloc.Free(word)
	return 1, nil
}

// emitEXTL sign-extends the low word of Dn into the full long.
func emitEXTL(blk *xlate.Block, opcode uint16) (int, error) {
	dn := int(opcode & 7)
	dst := blk.Alloc.MapRead(regalloc.D(dn))
	blk.Buf.Sbfx(dst, dst, 0, 16)
	blk.Alloc.MarkDirty(regalloc.D(dn))
	commitLogical(blk, dst, ea.SizeLong)
	return 1, nil
}
