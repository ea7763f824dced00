// ASL/ASR/LSL/LSR/ROL/ROR/ROXL/ROXR, opcode line 0xE.
//
// Register form (bits 7:6 != 11) shifts/rotates a data register by an
// immediate 1-8 or by the low 6 bits of another data register; memory
// form (bits 7:6 == 11) always shifts a single word in memory by
// exactly one bit. Flag synthesis follows original_source/src/
// M68k_LINEE.c's per-type N/Z/V/C/X table; since AArch64's barrel
// shifter doesn't expose a carry-out the way the 68K's does, carry is
// extracted by hand from the pre-shift operand (common.go-style direct
// CCR mirror writes, the same idiom as commitExtend).
//
// Byte/word shifts and rotates operate on the full 32-bit host
// register the same way the dyadic arithmetic family does (dyadic.go);
// ROL/ROR's host ROR wraps at 64 bits rather than at the operand's
// declared width, a known gap shared with the rest of this package's
// width handling rather than something special-cased here.
//
// 68020+ bitfield instructions (BFTST/BFEXTU/BFEXTS/BFFFO/BFCHG/
// BFCLR/BFSET/BFINS) also decode against line E but are registered and
// implemented separately, in bitfield.go: their extension-word operand
// (offset/width, each independently immediate or register-indexed)
// doesn't fit this file's compile-time-count/register-count split.
package emit68k

import (
	"github.com/tinyrange-pi/m68kjit/internal/ccengine"
	"github.com/tinyrange-pi/m68kjit/internal/decode"
	"github.com/tinyrange-pi/m68kjit/internal/ea"
	"github.com/tinyrange-pi/m68kjit/internal/emit"
	"github.com/tinyrange-pi/m68kjit/internal/regalloc"
	"github.com/tinyrange-pi/m68kjit/internal/xlate"
)

type shiftKind int

const (
	shiftAS shiftKind = iota
	shiftLS
	shiftROX
	shiftRO
)

func init() {
	// Bitfield opcodes (bitfield.go) share line E's 1110-prefix with
	// Shift/Rotate but fix bit 11 (always 0 for every real shift/rotate
	// opmode, whose 2-bit type field tops out at bits11:10) and bits
	// 7:6 (always 11, the memory-operand marker bitfield needs and
	// memory-shift also happens to use). Registering them here, before
	// the Shift/Rotate catch-all below, keeps that broad pattern from
	// claiming these slots first — the same narrowest-first-within-
	// init ordering line5.go's DBcc/Scc/ADDQ/SUBQ registrations rely
	// on, rather than leaning on cross-file init order.
	registerBitfieldOpcodes()
	decode.Register(0xE, 0xF000, 0xE000, decode.OpcodeDef{Name: "Shift/Rotate", Emit: emitShiftDispatch, HasEA: true, BaseLength: 1})
}

func emitShiftDispatch(blk *xlate.Block, opcode uint16) (int, error) {
	if (opcode>>6)&3 == 3 {
		return emitShiftMem(blk, opcode)
	}
	return emitShiftReg(blk, opcode)
}

// emitShiftReg implements the register shift/rotate form: 1110 ccc d
// ss i tt rrr (ccc=count/reg, d=direction, ss=size, i=imm/reg select,
// tt=type, rrr=register being shifted).
func emitShiftReg(blk *xlate.Block, opcode uint16) (int, error) {
	countField := int((opcode >> 9) & 7)
	left := opcode&0x0100 != 0
	size := eaSize(opcode >> 6)
	useRegCount := opcode&0x0020 != 0
	kind := shiftKind((opcode >> 3) & 3)
	rn := int(opcode & 7)

	width := uint(opSizeBits(size) * 8)
	dst := blk.Alloc.MapRead(regalloc.D(rn))

	if !useRegCount {
		count := uint(countField)
		if count == 0 {
			count = 8
		}
		doShift(blk, dst, count, width, left, kind)
	} else {
		countReg := blk.Alloc.MapRead(regalloc.D(countField))
		count := blk.Alloc.AllocTmp()
		blk.Buf.AndRR(count, countReg, mustConst(blk, 0x3F))
		doShiftVar(blk, dst, count, width, left, kind)
		blk.Alloc.Free(count)
	}

	blk.Alloc.MarkDirty(regalloc.D(rn))
	return 1, nil
}

// emitShiftMem implements the memory single-bit form: 1110 tt d 11
// mmmmmm, always word size, count fixed at one.
func emitShiftMem(blk *xlate.Block, opcode uint16) (int, error) {
	kind := shiftKind((opcode >> 10) & 3)
	left := opcode&0x0200 != 0
	e, err := decodeDestEA(blk, opcode)
	if err != nil {
		return 0, err
	}
	r := resources(blk)
	dst, err := ea.Load(r, ea.SizeWord, ea.RegUnassigned, e, false)
	if err != nil {
		return 0, err
	}

	doShift(blk, dst, 1, 16, left, kind)

	if err := ea.Store(r, ea.SizeWord, dst, e); err != nil {
		return 0, err
	}
	blk.Alloc.Free(dst)
	return 1, nil
}

// doShift performs a compile-time-known-count shift/rotate of width
// bits in place in dst, then commits flags.
func doShift(blk *xlate.Block, dst emit.Reg, count, width uint, left bool, kind shiftKind) {
	carry := blk.Alloc.AllocTmp()
	original := blk.Alloc.AllocTmp()
	blk.Buf.MovRR(original, dst)

	switch kind {
	case shiftAS:
		if left {
			blk.Buf.Ubfx(carry, original, width-count, 1)
			blk.Buf.LslImm(dst, dst, count)
		} else {
			blk.Buf.Ubfx(carry, original, count-1, 1)
			signExtendTo32(blk.Buf, dst, sizeOfWidth(width))
			blk.Buf.AsrImm(dst, dst, count)
		}
	case shiftLS:
		if left {
			blk.Buf.Ubfx(carry, original, width-count, 1)
			blk.Buf.LslImm(dst, dst, count)
		} else {
			blk.Buf.Ubfx(carry, original, count-1, 1)
			blk.Buf.LsrImm(dst, dst, count)
		}
	case shiftRO:
		if left {
			blk.Buf.Ubfx(carry, original, width-count, 1)
			blk.Buf.RorImm(dst, dst, width-(count%width))
		} else {
			blk.Buf.Ubfx(carry, original, count-1, 1)
			blk.Buf.RorImm(dst, dst, count)
		}
	case shiftROX:
		xIn := blk.Alloc.AllocTmp()
		blk.Buf.Ubfx(xIn, emit.RegCCR, 4, 1)
		if left {
			blk.Buf.Ubfx(carry, original, width-count, 1)
			blk.Buf.LslImm(dst, dst, count)
			blk.Buf.Bfi(dst, xIn, count-1, 1)
		} else {
			blk.Buf.Ubfx(carry, original, count-1, 1)
			blk.Buf.LsrImm(dst, dst, count)
			blk.Buf.Bfi(dst, xIn, width-count, 1)
		}
		blk.Alloc.Free(xIn)
	}

	vBit := aslOverflowBit(blk, original, dst, kind, left, sizeOfWidth(width))
	commitShiftFlags(blk, dst, carry, vBit, sizeOfWidth(width), kind != shiftRO)
	if vBit != emit.XZR {
		blk.Alloc.Free(vBit)
	}
	blk.Alloc.Free(carry)
	blk.Alloc.Free(original)
}

// doShiftVar is doShift's register-count counterpart: count is a
// runtime value (already masked to 0-63), so width-dependent immediate
// bitfield ops aren't available and count==0 must be checked explicitly
// (68K leaves the operand and X unchanged and clears C when count is
// zero, except ROXx which sets C from the untouched X).
func doShiftVar(blk *xlate.Block, dst emit.Reg, count emit.Reg, width uint, left bool, kind shiftKind) {
	blk.Buf.CmpImm(count, 0)
	zeroSkip := blk.Buf.BCond(emit.CondNE, 0)

	// count == 0: value unchanged, V and C cleared (C = X for ROXx).
	carryZero := blk.Alloc.AllocTmp()
	if kind == shiftROX {
		blk.Buf.Ubfx(carryZero, emit.RegCCR, 4, 1)
	} else {
		blk.Buf.MovRR(carryZero, emit.XZR)
	}
	commitShiftFlags(blk, dst, carryZero, emit.XZR, sizeOfWidth(width), kind != shiftRO)
	blk.Alloc.Free(carryZero)
	doneSkip := blk.Buf.B(0)

	zeroRel := int32(blk.Buf.Here()-zeroSkip) / 4
	blk.Buf.PatchBCond(zeroSkip, zeroRel)

	carry := blk.Alloc.AllocTmp()
	original := blk.Alloc.AllocTmp()
	blk.Buf.MovRR(original, dst)
	countM1 := blk.Alloc.AllocTmp()
	blk.Buf.SubImm(countM1, count, 1)
	widthMinusCount := blk.Alloc.AllocTmp()
	blk.Buf.LoadImm32Compact(widthMinusCount, uint32(width))
	blk.Buf.SubRR(widthMinusCount, widthMinusCount, count)

	switch kind {
	case shiftAS:
		if left {
			blk.Buf.LsrRR(carry, original, widthMinusCount)
			blk.Buf.AndRR(carry, carry, mustConst(blk, 1))
			blk.Buf.LslRR(dst, dst, count)
		} else {
			blk.Buf.LsrRR(carry, original, countM1)
			blk.Buf.AndRR(carry, carry, mustConst(blk, 1))
			signExtendTo32(blk.Buf, dst, sizeOfWidth(width))
			blk.Buf.AsrRR(dst, dst, count)
		}
	case shiftLS:
		if left {
			blk.Buf.LsrRR(carry, original, widthMinusCount)
			blk.Buf.AndRR(carry, carry, mustConst(blk, 1))
			blk.Buf.LslRR(dst, dst, count)
		} else {
			blk.Buf.LsrRR(carry, original, countM1)
			blk.Buf.AndRR(carry, carry, mustConst(blk, 1))
			blk.Buf.LsrRR(dst, dst, count)
		}
	case shiftRO:
		if left {
			blk.Buf.LsrRR(carry, original, widthMinusCount)
			blk.Buf.AndRR(carry, carry, mustConst(blk, 1))
			blk.Buf.RorRR(dst, dst, widthMinusCount)
		} else {
			blk.Buf.LsrRR(carry, original, countM1)
			blk.Buf.AndRR(carry, carry, mustConst(blk, 1))
			blk.Buf.RorRR(dst, dst, count)
		}
	case shiftROX:
		xIn := blk.Alloc.AllocTmp()
		blk.Buf.Ubfx(xIn, emit.RegCCR, 4, 1)
		if left {
			blk.Buf.LsrRR(carry, original, widthMinusCount)
			blk.Buf.AndRR(carry, carry, mustConst(blk, 1))
			blk.Buf.LslRR(dst, dst, count)
			shift := blk.Alloc.AllocTmp()
			blk.Buf.SubImm(shift, count, 1)
			blk.Buf.LslRR(xIn, xIn, shift)
			blk.Buf.OrrRR(dst, dst, xIn)
			blk.Alloc.Free(shift)
		} else {
			blk.Buf.LsrRR(carry, original, countM1)
			blk.Buf.AndRR(carry, carry, mustConst(blk, 1))
			blk.Buf.LsrRR(dst, dst, count)
			blk.Buf.LslRR(xIn, xIn, widthMinusCount)
			blk.Buf.OrrRR(dst, dst, xIn)
		}
		blk.Alloc.Free(xIn)
	}

	vBit := aslOverflowBit(blk, original, dst, kind, left, sizeOfWidth(width))
	commitShiftFlags(blk, dst, carry, vBit, sizeOfWidth(width), kind != shiftRO)
	if vBit != emit.XZR {
		blk.Alloc.Free(vBit)
	}

	blk.Alloc.Free(carry)
	blk.Alloc.Free(original)
	blk.Alloc.Free(countM1)
	blk.Alloc.Free(widthMinusCount)

	doneRel := int32(blk.Buf.Here()-doneSkip) / 4
	blk.Buf.PatchB(doneSkip, doneRel)
}

func sizeOfWidth(width uint) ea.Size {
	switch width {
	case 8:
		return ea.SizeByte
	case 16:
		return ea.SizeWord
	default:
		return ea.SizeLong
	}
}

// aslOverflowBit computes V for ASL as "sign bit changed", approximating
// the full 68K rule of checking every bit shifted through the sign
// position; returns emit.XZR (meaning "always clear") for every other
// shift/rotate type, which never sets V.
func aslOverflowBit(blk *xlate.Block, original, shifted emit.Reg, kind shiftKind, left bool, size ea.Size) emit.Reg {
	if kind != shiftAS || !left {
		return emit.XZR
	}
	origSign := blk.Alloc.AllocTmp()
	blk.Buf.MovRR(origSign, original)
	signExtendTo32(blk.Buf, origSign, size)
	newSign := blk.Alloc.AllocTmp()
	blk.Buf.MovRR(newSign, shifted)
	signExtendTo32(blk.Buf, newSign, size)
	blk.Buf.EorRR(origSign, origSign, newSign)
	blk.Buf.Ubfx(origSign, origSign, 31, 1)
	blk.Alloc.Free(newSign)
	return origSign
}

// commitShiftFlags sets N/Z from a sign-extended copy of result, C
// from the supplied carry bit (already 0/1), X the same way when setX
// (every type but plain rotates), and V from vBit (emit.XZR meaning
// "always clear").
func commitShiftFlags(blk *xlate.Block, result, carry, vBit emit.Reg, size ea.Size, setX bool) {
	signed := blk.Alloc.AllocTmp()
	blk.Buf.MovRR(signed, result)
	signExtendTo32(blk.Buf, signed, size)
	blk.Buf.TstRR(signed, signed)
	blk.CC.NoteProducer(ccengine.MaskN|ccengine.MaskZ, opSizeBits(size))
	blk.CC.CommitNZClearVC()
	blk.Alloc.Free(signed)

	mask := blk.Alloc.AllocTmp()
	bits := uint32(ccengine.MaskC)
	if setX {
		bits |= uint32(ccengine.MaskX)
	}
	blk.Buf.LoadImm32Compact(mask, bits)
	blk.Buf.BicRR(emit.RegCCR, emit.RegCCR, mask)
	blk.Buf.Bfi(emit.RegCCR, carry, 0, 1)
	if setX {
		blk.Buf.Bfi(emit.RegCCR, carry, 4, 1)
	}
	if vBit != emit.XZR {
		blk.Buf.Bfi(emit.RegCCR, vBit, 1, 1)
	}
	blk.Alloc.Free(mask)
}
