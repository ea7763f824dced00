// Package emit68k implements the PerInstrEmitter family (§4.5): one
// handler per 68K mnemonic, each registered against the opcode
// patterns it covers in internal/decode's per-line tables.
//
// Grounded on original_source/src/M68k_LINE{0,4,5,C,E}.c and
// M68k_MULDIV.c for exact semantics, with emission style (acquire
// registers -> compute -> commit flags -> free) modeled on
// tinyrange-rtg/std/compiler/backend_aarch64.go's compileInstArm64/
// compileBinOpArm64 shape.
package emit68k

import (
	"github.com/tinyrange-pi/m68kjit/internal/ccengine"
	"github.com/tinyrange-pi/m68kjit/internal/ea"
	"github.com/tinyrange-pi/m68kjit/internal/emit"
	"github.com/tinyrange-pi/m68kjit/internal/regalloc"
	"github.com/tinyrange-pi/m68kjit/internal/xlate"
)

// resources builds an ea.Resources view over blk, the shape every
// handler needs to call ea.Decode/Load/Store.
func resources(blk *xlate.Block) *ea.Resources {
	return &ea.Resources{Buf: blk.Buf, Alloc: blk.Alloc, Ctx: blk.Ctx}
}

// eaSize maps a 2-bit 68K size field (as used by most line4/5/6/8/9/B/C/D
// opcodes: 00=byte,01=word,10=long) to ea.Size.
func eaSize(field uint16) ea.Size {
	switch field & 3 {
	case 0:
		return ea.SizeByte
	case 1:
		return ea.SizeWord
	default:
		return ea.SizeLong
	}
}

// opSizeBits returns the AArch64 op "width" signal carried alongside
// an ea.Size for CondCodeEngine.NoteProducer calls.
func opSizeBits(s ea.Size) int {
	switch s {
	case ea.SizeByte:
		return 1
	case ea.SizeWord:
		return 2
	default:
		return 4
	}
}

// modeReg splits the low 6 bits of an opcode into (mode, reg).
func modeReg(opcode uint16) (mode, reg uint16) {
	return (opcode >> 3) & 7, opcode & 7
}

// decodeDestEA is the common "decode the low 6 bits as an EA" step
// shared by almost every handler.
func decodeDestEA(blk *xlate.Block, opcode uint16) (ea.EA, error) {
	mode, reg := modeReg(opcode)
	return blk.DecodeEA(mode, reg)
}

// commitLogical emits a flag-producing TST on result (needed because
// the plain AND/ORR/EOR/MOV forms used to compute it never touch
// NZCV) and commits N/Z, clearing V/C in the mirror — the contract
// shared by AND/OR/EOR/MOVE/CLR/logical shifts-by-zero (§4.3
// commit_nz_clear_vc).
func commitLogical(blk *xlate.Block, result emit.Reg, size ea.Size) {
	masked := result
	if size != ea.SizeLong {
		masked = blk.Alloc.AllocTmp()
		blk.Buf.MovRR(masked, result)
		signExtendTo32(blk.Buf, masked, size)
	}
	blk.Buf.TstRR(masked, masked)
	if masked != result {
		blk.Alloc.Free(masked)
	}
	blk.CC.NoteProducer(ccengine.MaskN|ccengine.MaskZ, opSizeBits(size))
	blk.CC.CommitNZClearVC()
}

// commitArith commits all four flags honoring carry sense, the
// contract shared by ADD/SUB-family ops (§4.3 commit_nzcv).
func commitArith(blk *xlate.Block, sense ccengine.CarrySense, size ea.Size) {
	blk.CC.NoteProducer(ccengine.AllBits&^ccengine.MaskX, opSizeBits(size))
	blk.CC.CommitNZCV(sense)
}

// commitArithX is commitArith plus X latched from C, for ADD/SUB/NEG
// (not CMP, which never touches X).
func commitArithX(blk *xlate.Block, sense ccengine.CarrySense, size ea.Size) {
	blk.CC.NoteProducer(ccengine.AllBits, opSizeBits(size))
	blk.CC.CommitNZCVX(sense)
}

// commitExtend commits N/V/C/X for the ADDX/SUBX/NEGX family via the
// normal carry-sense-aware path, then corrects Z: the extend forms
// clear Z if the result is non-zero but leave it unchanged otherwise,
// rather than the plain copy of host Z that CommitNZCVX performs
// (§4.3's extend-form exception to commit_nzcv).
func commitExtend(blk *xlate.Block, result emit.Reg, sense ccengine.CarrySense, size ea.Size) {
	oldZ := blk.Alloc.AllocTmp()
	blk.Buf.Ubfx(oldZ, emit.RegCCR, 2, 1) // mirror Z bit, before this commit

	blk.CC.NoteProducer(ccengine.AllBits&^ccengine.MaskX, opSizeBits(size))
	blk.CC.CommitNZCVX(sense)

	zeroFlag := blk.Alloc.AllocTmp()
	blk.Buf.Ubfx(zeroFlag, emit.RegCCR, 2, 1)
	blk.Buf.AndRR(oldZ, oldZ, zeroFlag) // oldZ if result==0, else 0
	blk.Buf.LslImm(oldZ, oldZ, 2)
	mask := blk.Alloc.AllocTmp()
	blk.Buf.LoadImm32Compact(mask, uint32(ccengine.MaskZ))
	blk.Buf.BicRR(emit.RegCCR, emit.RegCCR, mask)
	blk.Buf.OrrRR(emit.RegCCR, emit.RegCCR, oldZ)

	blk.Alloc.Free(oldZ)
	blk.Alloc.Free(zeroFlag)
	blk.Alloc.Free(mask)
}

// storeAtMappedAddr writes src to the memory already addressed by An,
// without re-applying the pre/post adjustment ea.Store would: used
// after SUBX/ADDX already consumed a -(An) operand via ea.Load
// and must write the result back through the same, already-adjusted
// address rather than decrementing An a second time.
func storeAtMappedAddr(blk *xlate.Block, size ea.Size, an int, src emit.Reg) {
	addr := blk.Alloc.MapRead(addrReg(an))
	switch size {
	case ea.SizeByte:
		blk.Buf.StrbImm(src, addr, 0)
	case ea.SizeWord:
		blk.Buf.StrhImm(src, addr, 0)
	default:
		blk.Buf.StrwImm(src, addr, 0)
	}
}

// signExtendTo32 sign-extends the low `width` bits of r into r itself,
// used after narrow loads that EA already zero/sign-extended per its
// own contract but before a host compare/arith needs the full 32-bit
// guest-visible value (e.g. byte/word immediate compares).
func signExtendTo32(buf *emit.Buffer, r emit.Reg, size ea.Size) {
	switch size {
	case ea.SizeByte:
		buf.Sbfx(r, r, 0, 8)
	case ea.SizeWord:
		buf.Sbfx(r, r, 0, 16)
	}
}

// fetchImmediate reads the size-appropriate immediate operand
// following the opcode word, per §4.1's "closed function of mode/
// register/size" extension-word accounting: byte/word immediates are
// one extension word (byte packed into the low 8 bits), long is two.
func fetchImmediate(blk *xlate.Block, size ea.Size) uint32 {
	switch size {
	case ea.SizeByte:
		return uint32(blk.Ctx.ReadNext16() & 0xFF)
	case ea.SizeWord:
		return uint32(blk.Ctx.ReadNext16())
	default:
		return blk.Ctx.ReadNext32()
	}
}

// dataReg/addrReg are local shorthands kept to avoid importing
// regalloc under two different names across every handler file.
func dataReg(n int) regalloc.GuestReg { return regalloc.D(n) }
func addrReg(n int) regalloc.GuestReg { return regalloc.A(n) }
