package emit

// AArch64 instruction encoders. Register and condition constants and
// the MOVZ/MOVK/MOVN/immediate-load family are adapted directly from
// tinyrange-rtg/std/compiler/aarch64.go; the rest (load/store pair,
// atomics, bitfield, barrier, conditional-select forms) are added to
// cover what the 68K emitter families need that a stack-machine
// compiler backend never does.

// Reg identifies an AArch64 general register 0-30, or 31 for SP/XZR
// depending on instruction class.
type Reg uint8

const (
	X0  Reg = 0
	X1  Reg = 1
	X2  Reg = 2
	X3  Reg = 3
	X4  Reg = 4
	X16 Reg = 16 // IP0, intra-procedure scratch
	X17 Reg = 17 // IP1
	FP  Reg = 29
	LR  Reg = 30
	SP  Reg = 31
	XZR Reg = 31
)

// Reserved host register roles, fixed for the lifetime of a compiled
// block per the entry ABI (§6): ctx pointer, CCR mirror, translated
// PC shadow, frame/link, platform register. These are excluded from
// RegAllocator's pool.
const (
	RegCtx     Reg = 19 // X19: &guest.State
	RegCCR     Reg = 20 // X20: CCR mirror, alternate encoding, low byte
	RegPCShad  Reg = 21 // X21: translated PC shadow
	RegFP      Reg = 29 // X29
	RegLR      Reg = 30 // X30
	RegSP      Reg = 31 // X31 / XZR context-dependent
	RegScratch Reg = 18 // X18: platform register on most ABIs, repurposed here as the CondCodeEngine's own working temporary
)

// AllocPool is the set of host registers available to RegAllocator,
// i.e. all 31 minus the reserved set above. X18 is also excluded
// (platform register on most AArch64 ABIs).
var AllocPool = []Reg{
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17,
	22, 23, 24, 25, 26, 27, 28,
}

// Cond is an AArch64 condition code for B.cond / CSET / CSEL.
type Cond uint8

const (
	CondEQ Cond = 0x0
	CondNE Cond = 0x1
	CondCS Cond = 0x2 // unsigned >=, carry set
	CondCC Cond = 0x3 // unsigned <, carry clear
	CondMI Cond = 0x4
	CondPL Cond = 0x5
	CondVS Cond = 0x6
	CondVC Cond = 0x7
	CondHI Cond = 0x8
	CondLS Cond = 0x9
	CondGE Cond = 0xA
	CondLT Cond = 0xB
	CondGT Cond = 0xC
	CondLE Cond = 0xD
	CondAL Cond = 0xE
)

// Invert returns the logical negation of a condition code (bit 0
// flipped), used when an emitter wants to branch around a case
// rather than into it.
func (c Cond) Invert() Cond { return c ^ 1 }

func r5(v Reg) uint32 { return uint32(v) & 0x1f }

// === Immediate loading ===

// MovZ emits MOVZ Rd, #imm16, LSL #shift (shift = 0,16,32,48).
func (b *Buffer) MovZ(rd Reg, imm16 uint16, shift uint) Offset {
	hw := uint32(shift / 16)
	return b.Write(0xD2800000 | (hw << 21) | (uint32(imm16) << 5) | r5(rd))
}

// MovK emits MOVK Rd, #imm16, LSL #shift.
func (b *Buffer) MovK(rd Reg, imm16 uint16, shift uint) Offset {
	hw := uint32(shift / 16)
	return b.Write(0xF2800000 | (hw << 21) | (uint32(imm16) << 5) | r5(rd))
}

// MovN emits MOVN Rd, #imm16, LSL #shift.
func (b *Buffer) MovN(rd Reg, imm16 uint16, shift uint) Offset {
	hw := uint32(shift / 16)
	return b.Write(0x92800000 | (hw << 21) | (uint32(imm16) << 5) | r5(rd))
}

// LoadImm64 loads a full 64-bit value using a fixed 4-instruction
// MOVZ/MOVK sequence so the site is patchable at a known length.
func (b *Buffer) LoadImm64(rd Reg, val uint64) {
	b.MovZ(rd, uint16(val), 0)
	b.MovK(rd, uint16(val>>16), 16)
	b.MovK(rd, uint16(val>>32), 32)
	b.MovK(rd, uint16(val>>48), 48)
}

// LoadImm32Compact loads a 32-bit value with the fewest instructions,
// for guest immediates that never need patching.
func (b *Buffer) LoadImm32Compact(rd Reg, val uint32) {
	if val == 0 {
		b.Write(0x52800000 | r5(rd)) // MOVZ Wd, #0
		return
	}
	inv := ^val
	if inv <= 0xFFFF {
		b.Write(0x12800000 | (uint32(uint16(inv)) << 5) | r5(rd)) // MOVN Wd
		return
	}
	first := true
	for shift := uint(0); shift < 32; shift += 16 {
		chunk := uint16(val >> shift)
		if chunk != 0 || shift == 0 {
			if first {
				b.Write(0x52800000 | ((uint32(shift) / 16) << 21) | (uint32(chunk) << 5) | r5(rd))
				first = false
			} else {
				b.Write(0x72800000 | ((uint32(shift) / 16) << 21) | (uint32(chunk) << 5) | r5(rd))
			}
		}
	}
}

// === Data processing, register ===

func dpReg(base uint32, rd, rn, rm Reg) uint32 {
	return base | (uint32(rm&0x1f) << 16) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f)
}

func (b *Buffer) AddRR(rd, rn, rm Reg) Offset  { return b.Write(dpReg(0x8B000000, rd, rn, rm)) }
func (b *Buffer) AddsRR(rd, rn, rm Reg) Offset { return b.Write(dpReg(0xAB000000, rd, rn, rm)) }
func (b *Buffer) SubRR(rd, rn, rm Reg) Offset  { return b.Write(dpReg(0xCB000000, rd, rn, rm)) }
func (b *Buffer) SubsRR(rd, rn, rm Reg) Offset { return b.Write(dpReg(0xEB000000, rd, rn, rm)) }
func (b *Buffer) AndRR(rd, rn, rm Reg) Offset  { return b.Write(dpReg(0x8A000000, rd, rn, rm)) }
func (b *Buffer) AndsRR(rd, rn, rm Reg) Offset { return b.Write(dpReg(0xEA000000, rd, rn, rm)) }
func (b *Buffer) OrrRR(rd, rn, rm Reg) Offset  { return b.Write(dpReg(0xAA000000, rd, rn, rm)) }
func (b *Buffer) EorRR(rd, rn, rm Reg) Offset  { return b.Write(dpReg(0xCA000000, rd, rn, rm)) }
func (b *Buffer) BicRR(rd, rn, rm Reg) Offset  { return b.Write(dpReg(0x8A200000, rd, rn, rm)) }

// MovRR emits MOV Xd, Xn (alias for ORR Xd, XZR, Xn).
func (b *Buffer) MovRR(rd, rn Reg) Offset { return b.OrrRR(rd, XZR, rn) }

// Mul emits MUL Rd, Rn, Rm (alias of MADD Rd, Rn, Rm, XZR).
func (b *Buffer) Mul(rd, rn, rm Reg) Offset {
	return b.Write(0x9B007C00 | (uint32(rm&0x1f) << 16) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}

// SMulh emits SMULH Xd, Xn, Xm (high 64 bits of signed 64x64 product).
func (b *Buffer) SMulh(rd, rn, rm Reg) Offset {
	return b.Write(0x9B407C00 | (uint32(rm&0x1f) << 16) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}

// UMulh emits UMULH Xd, Xn, Xm.
func (b *Buffer) UMulh(rd, rn, rm Reg) Offset {
	return b.Write(0x9BC07C00 | (uint32(rm&0x1f) << 16) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}

// Msub emits MSUB Rd, Rn, Rm, Ra (Rd = Ra - Rn*Rm).
func (b *Buffer) Msub(rd, rn, rm, ra Reg) Offset {
	return b.Write(0x9B008000 | (uint32(rm&0x1f) << 16) | (uint32(ra&0x1f) << 10) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}

func (b *Buffer) Sdiv(rd, rn, rm Reg) Offset {
	return b.Write(0x9AC00C00 | (uint32(rm&0x1f) << 16) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}
func (b *Buffer) Udiv(rd, rn, rm Reg) Offset {
	return b.Write(0x9AC00800 | (uint32(rm&0x1f) << 16) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}

func (b *Buffer) Neg(rd, rm Reg) Offset  { return b.SubRR(rd, XZR, rm) }
func (b *Buffer) Negs(rd, rm Reg) Offset { return b.SubsRR(rd, XZR, rm) }
func (b *Buffer) Mvn(rd, rm Reg) Offset  { return b.Write(dpReg(0xAA200000, rd, XZR, rm)) }

// === Data processing, immediate ===

func (b *Buffer) AddImm(rd, rn Reg, imm12 uint32) Offset {
	return b.Write(0x91000000 | ((imm12 & 0xFFF) << 10) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}
func (b *Buffer) SubImm(rd, rn Reg, imm12 uint32) Offset {
	return b.Write(0xD1000000 | ((imm12 & 0xFFF) << 10) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}
func (b *Buffer) AddsImm(rd, rn Reg, imm12 uint32) Offset {
	return b.Write(0xB1000000 | ((imm12 & 0xFFF) << 10) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}
func (b *Buffer) SubsImm(rd, rn Reg, imm12 uint32) Offset {
	return b.Write(0xF1000000 | ((imm12 & 0xFFF) << 10) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}
func (b *Buffer) CmpImm(rn Reg, imm12 uint32) Offset { return b.SubsImm(XZR, rn, imm12) }
func (b *Buffer) CmpRR(rn, rm Reg) Offset            { return b.SubsRR(XZR, rn, rm) }
func (b *Buffer) TstRR(rn, rm Reg) Offset             { return b.AndsRR(XZR, rn, rm) }

// === Shifts ===

func (b *Buffer) LslImm(rd, rn Reg, shift uint) Offset {
	// UBFM alias: LSL Rd,Rn,#s == UBFM Rd,Rn,#(-s mod 64),#(63-s)
	immr := (64 - shift) % 64
	imms := 63 - shift
	return b.Write(0xD3400000 | (uint32(immr&0x3f) << 16) | (uint32(imms&0x3f) << 10) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}
func (b *Buffer) LsrImm(rd, rn Reg, shift uint) Offset {
	return b.Write(0xD340FC00 | (uint32(shift&0x3f) << 16) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}
func (b *Buffer) AsrImm(rd, rn Reg, shift uint) Offset {
	return b.Write(0x9340FC00 | (uint32(shift&0x3f) << 16) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}
func (b *Buffer) LslRR(rd, rn, rm Reg) Offset {
	return b.Write(0x9AC02000 | (uint32(rm&0x1f) << 16) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}
func (b *Buffer) LsrRR(rd, rn, rm Reg) Offset {
	return b.Write(0x9AC02400 | (uint32(rm&0x1f) << 16) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}
func (b *Buffer) AsrRR(rd, rn, rm Reg) Offset {
	return b.Write(0x9AC02800 | (uint32(rm&0x1f) << 16) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}
func (b *Buffer) RorRR(rd, rn, rm Reg) Offset {
	return b.Write(0x9AC02C00 | (uint32(rm&0x1f) << 16) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}
func (b *Buffer) RorImm(rd, rn Reg, shift uint) Offset {
	// EXTR Rd,Rn,Rn,#shift is ROR Rd,Rn,#shift
	return b.Write(0x93C00000 | (uint32(rn&0x1f) << 16) | (uint32(shift&0x3f) << 10) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}

// === Bitfield ===

// Ubfx emits UBFX Rd, Rn, #lsb, #width (unsigned bitfield extract).
func (b *Buffer) Ubfx(rd, rn Reg, lsb, width uint) Offset {
	imms := lsb + width - 1
	return b.Write(0xD3400000 | (uint32(lsb&0x3f) << 16) | (uint32(imms&0x3f) << 10) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}

// Sbfx emits SBFX Rd, Rn, #lsb, #width (signed bitfield extract).
func (b *Buffer) Sbfx(rd, rn Reg, lsb, width uint) Offset {
	imms := lsb + width - 1
	return b.Write(0x93400000 | (uint32(lsb&0x3f) << 16) | (uint32(imms&0x3f) << 10) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}

// Bfi emits BFI Rd, Rn, #lsb, #width (bitfield insert, preserves the
// rest of Rd) — used to reinsert a narrow ALU result back into a
// 32-bit guest register home (§4.5 "Immediate arithmetic").
func (b *Buffer) Bfi(rd, rn Reg, lsb, width uint) Offset {
	immr := (64 - lsb) % 64
	imms := width - 1
	return b.Write(0xB3400000 | (uint32(immr&0x3f) << 16) | (uint32(imms&0x3f) << 10) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}

// Clz emits CLZ Rd, Rn (count leading zeros, 64-bit form).
func (b *Buffer) Clz(rd, rn Reg) Offset {
	return b.Write(0xDAC01000 | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}

// Rbit emits RBIT Rd, Rn (reverse bit order, 64-bit form).
func (b *Buffer) Rbit(rd, rn Reg) Offset {
	return b.Write(0xDAC00000 | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}

// === Load/store ===

// LdrImm emits LDR Xd, [Xn, #imm] (unsigned 12-bit scaled offset,
// 64-bit form).
func (b *Buffer) LdrImm(rd, rn Reg, imm uint32) Offset {
	return b.Write(0xF9400000 | ((imm / 8 & 0xFFF) << 10) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}

// StrImm emits STR Xd, [Xn, #imm] (64-bit form).
func (b *Buffer) StrImm(rd, rn Reg, imm uint32) Offset {
	return b.Write(0xF9000000 | ((imm / 8 & 0xFFF) << 10) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}

// LdrwImm / StrwImm are the 32-bit (W-register) forms, used for
// guest Dn/An homes which are 32 bits wide.
func (b *Buffer) LdrwImm(rd, rn Reg, imm uint32) Offset {
	return b.Write(0xB9400000 | ((imm / 4 & 0xFFF) << 10) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}
func (b *Buffer) StrwImm(rd, rn Reg, imm uint32) Offset {
	return b.Write(0xB9000000 | ((imm / 4 & 0xFFF) << 10) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}

// LdrhImm / StrhImm are the 16-bit (halfword) forms.
func (b *Buffer) LdrhImm(rd, rn Reg, imm uint32) Offset {
	return b.Write(0x79400000 | ((imm / 2 & 0xFFF) << 10) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}
func (b *Buffer) StrhImm(rd, rn Reg, imm uint32) Offset {
	return b.Write(0x79000000 | ((imm / 2 & 0xFFF) << 10) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}

// LdrbImm / StrbImm are the 8-bit (byte) forms.
func (b *Buffer) LdrbImm(rd, rn Reg, imm uint32) Offset {
	return b.Write(0x39400000 | ((imm & 0xFFF) << 10) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}
func (b *Buffer) StrbImm(rd, rn Reg, imm uint32) Offset {
	return b.Write(0x39000000 | ((imm & 0xFFF) << 10) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}

// LdrsbImm / LdrshImm / LdrswImm are sign-extending loads into a
// 64-bit (X) destination, used by EA decode's "sign-extend to 32
// bits" high-bit-of-size contract.
func (b *Buffer) LdrsbImm(rd, rn Reg, imm uint32) Offset {
	return b.Write(0x39800000 | ((imm & 0xFFF) << 10) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}
func (b *Buffer) LdrshImm(rd, rn Reg, imm uint32) Offset {
	return b.Write(0x79800000 | ((imm / 2 & 0xFFF) << 10) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}
func (b *Buffer) LdrswImm(rd, rn Reg, imm uint32) Offset {
	return b.Write(0xB9800000 | ((imm / 4 & 0xFFF) << 10) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}

// Stp / Ldp emit STP/LDP Xt1, Xt2, [Xn, #imm]! or [Xn], #imm style
// pre/post-index forms (imm is a signed multiple of 8, range
// -512..504). Used by the prologue/epilogue and by MOVEM's
// pair-fusion optimization (§4.5 "MOVEM").
func (b *Buffer) Stp(rt1, rt2, rn Reg, imm int32) Offset {
	simm := uint32(imm/8) & 0x7f
	return b.Write(0xA9000000 | (simm << 15) | (uint32(rt2&0x1f) << 10) | (uint32(rn&0x1f) << 5) | uint32(rt1&0x1f))
}
func (b *Buffer) StpPreIndex(rt1, rt2, rn Reg, imm int32) Offset {
	simm := uint32(imm/8) & 0x7f
	return b.Write(0xA9800000 | (simm << 15) | (uint32(rt2&0x1f) << 10) | (uint32(rn&0x1f) << 5) | uint32(rt1&0x1f))
}
func (b *Buffer) Ldp(rt1, rt2, rn Reg, imm int32) Offset {
	simm := uint32(imm/8) & 0x7f
	return b.Write(0xA9400000 | (simm << 15) | (uint32(rt2&0x1f) << 10) | (uint32(rn&0x1f) << 5) | uint32(rt1&0x1f))
}
func (b *Buffer) LdpPostIndex(rt1, rt2, rn Reg, imm int32) Offset {
	simm := uint32(imm/8) & 0x7f
	return b.Write(0xA8C00000 | (simm << 15) | (uint32(rt2&0x1f) << 10) | (uint32(rn&0x1f) << 5) | uint32(rt1&0x1f))
}

// LdrReg / StrReg emit LDR/STR Xt, [Xn, Xm] (register offset, no
// extend/shift) — used when EA decode has computed a byte address in
// a register rather than a small immediate (§4.4 "base+scaled-offset
// add followed by a zero-offset load").
func (b *Buffer) LdrReg(rt, rn, rm Reg) Offset {
	return b.Write(0xF8606800 | (uint32(rm&0x1f) << 16) | (uint32(rn&0x1f) << 5) | uint32(rt&0x1f))
}
func (b *Buffer) StrReg(rt, rn, rm Reg) Offset {
	return b.Write(0xF8206800 | (uint32(rm&0x1f) << 16) | (uint32(rn&0x1f) << 5) | uint32(rt&0x1f))
}
func (b *Buffer) LdrwReg(rt, rn, rm Reg) Offset {
	return b.Write(0xB8606800 | (uint32(rm&0x1f) << 16) | (uint32(rn&0x1f) << 5) | uint32(rt&0x1f))
}
func (b *Buffer) StrwReg(rt, rn, rm Reg) Offset {
	return b.Write(0xB8206800 | (uint32(rm&0x1f) << 16) | (uint32(rn&0x1f) << 5) | uint32(rt&0x1f))
}

// === Atomics (CAS/CAS2/TAS, §4.5, §5) ===

// Ldaxr / Stlxr emit the load-exclusive-acquire / store-exclusive-
// release pair used to build CAS/TAS retry loops by hand on targets
// where a plain CAS instruction isn't used, or for the byte form
// which spec.md says "always uses load-exclusive/store-exclusive".
func (b *Buffer) LdaxrW(rt, rn Reg) Offset {
	return b.Write(0x885FFC00 | (uint32(rn&0x1f) << 5) | uint32(rt&0x1f))
}
func (b *Buffer) StlxrW(rs, rt, rn Reg) Offset {
	return b.Write(0x8800FC00 | (uint32(rs&0x1f) << 16) | (uint32(rn&0x1f) << 5) | uint32(rt&0x1f))
}
func (b *Buffer) LdaxrbB(rt, rn Reg) Offset {
	return b.Write(0x085FFC00 | (uint32(rn&0x1f) << 5) | uint32(rt&0x1f))
}
func (b *Buffer) StlxrbB(rs, rt, rn Reg) Offset {
	return b.Write(0x0800FC00 | (uint32(rs&0x1f) << 16) | (uint32(rn&0x1f) << 5) | uint32(rt&0x1f))
}

// CasalW emits CASAL Ws, Wt, [Xn] (atomic compare-and-swap, acquire+
// release, 32-bit) — used for naturally aligned word/long CAS.
func (b *Buffer) CasalW(rs, rt, rn Reg) Offset {
	return b.Write(0x88E0FC00 | (uint32(rs&0x1f) << 16) | (uint32(rn&0x1f) << 5) | uint32(rt&0x1f))
}

// Dmb emits DMB ISH (inner-shareable full barrier), emitted after the
// store-release that commits a CAS/CAS2 per §5 "Ordering".
func (b *Buffer) Dmb() Offset { return b.Write(0xD5033BBF) }

// === Branches ===

// B emits an unconditional branch; target is filled in later via
// Patch once the destination offset is known.
func (b *Buffer) B(relWords int32) Offset {
	return b.Write(0x14000000 | (uint32(relWords) & 0x03FFFFFF))
}

// Bl emits BL (branch with link), used to call translator-internal
// helper routines (e.g. divide-by-zero exception prologue).
func (b *Buffer) Bl(relWords int32) Offset {
	return b.Write(0x94000000 | (uint32(relWords) & 0x03FFFFFF))
}

// Br emits BR Xn (register branch), used for the dispatcher exit.
func (b *Buffer) Br(rn Reg) Offset { return b.Write(0xD61F0000 | (uint32(rn&0x1f) << 5)) }

// Ret emits RET (RET LR), the compiled-block exit per the entry ABI.
func (b *Buffer) Ret() Offset { return b.Write(0xD65F03C0) }

// BCond emits B.cond with a signed word (4-byte) offset, usually 0 as a
// placeholder; PatchBCond fills in the real target once known.
func (b *Buffer) BCond(cond Cond, relWords int32) Offset {
	return b.Write(0x54000000 | ((uint32(relWords) & 0x7FFFF) << 5) | uint32(cond&0xf))
}

// PatchBCond rewrites the branch-offset field of a B.cond already
// emitted at off, preserving its condition.
func (b *Buffer) PatchBCond(off Offset, relWords int32) {
	existing := b.Peek(off)
	cond := existing & 0xf
	b.Patch(off, 0x54000000|((uint32(relWords)&0x7FFFF)<<5)|cond)
}

// PatchB rewrites the offset field of an unconditional B already
// emitted at off.
func (b *Buffer) PatchB(off Offset, relWords int32) {
	b.Patch(off, 0x14000000|(uint32(relWords)&0x03FFFFFF))
}

// Cbz / Cbnz emit CBZ/CBNZ Xt, label (compare-and-branch), used by
// DBcc's counter-1/carry test and by the zero-count shift guard.
func (b *Buffer) Cbz(rt Reg, relWords int32) Offset {
	return b.Write(0xB4000000 | ((uint32(relWords) & 0x7FFFF) << 5) | uint32(rt&0x1f))
}
func (b *Buffer) Cbnz(rt Reg, relWords int32) Offset {
	return b.Write(0xB5000000 | ((uint32(relWords) & 0x7FFFF) << 5) | uint32(rt&0x1f))
}

// === Conditional select ===

// CSet emits CSET Xd, cond (Xd = 1 if cond else 0).
func (b *Buffer) CSet(rd Reg, cond Cond) Offset {
	inv := cond.Invert()
	return b.Write(0x9A9F07E0 | (uint32(inv&0xf) << 12) | uint32(rd&0x1f))
}

// CSel emits CSEL Xd, Xn, Xm, cond.
func (b *Buffer) CSel(rd, rn, rm Reg, cond Cond) Offset {
	return b.Write(0x9A800000 | (uint32(rm&0x1f) << 16) | (uint32(cond&0xf) << 12) | (uint32(rn&0x1f) << 5) | uint32(rd&0x1f))
}

// === Flag <-> register transfer ===

// MrsNZCV emits MRS Xt, NZCV (read the flags register into a GPR,
// used when the CondCodeEngine needs to inspect host flags without
// immediately branching).
func (b *Buffer) MrsNZCV(rt Reg) Offset { return b.Write(0xD53B4200 | uint32(rt&0x1f)) }

// MsrNZCV emits MSR NZCV, Xt (write bits 31:28 of a GPR into N,Z,C,V),
// used when materializing the CCR mirror back into host flags before
// a conditional branch that must observe guest-derived flags.
func (b *Buffer) MsrNZCV(rt Reg) Offset { return b.Write(0xD51B4200 | uint32(rt&0x1f)) }

// === Nop ===

func (b *Buffer) Nop() Offset { return b.Write(0xD503201F) }

// Brk emits BRK #imm16, used as a trap for "should never reach here"
// translator-internal assertions (never guest-visible).
func (b *Buffer) Brk(imm16 uint16) Offset { return b.Write(0xD4200000 | (uint32(imm16) << 5)) }
