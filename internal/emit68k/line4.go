// Single-operand arithmetic/logical (NEGX/CLR/NEG/NOT/TST), the
// MOVE-from/to-SR/CCR family, TAS, CHK, LEA, JSR/JMP, TRAP and the
// supervisor/system-control group (RESET/NOP/STOP/RTE/RTS/TRAPV/RTR),
// opcode line 0x4. This is the 68K "miscellaneous" line and carries
// most of the control-transfer and supervisor-mode instructions.
//
// Grounded on original_source/src/M68k_LINE4.c (EMIT_CLR/EMIT_NOT/
// EMIT_NEG/EMIT_NEGX/EMIT_TST/EMIT_TAS, and the JSR/JMP/RTS/RTE/TRAP
// emitters further down the same file) for exact per-opcode semantics,
// with the opcode-space overlap resolution (narrow pattern registered
// before the broad one it's carved out of) following the same
// discipline line8.go/lineC.go already use for SBCD/ABCD.
package emit68k

import (
	"github.com/tinyrange-pi/m68kjit/internal/ccengine"
	"github.com/tinyrange-pi/m68kjit/internal/decode"
	"github.com/tinyrange-pi/m68kjit/internal/ea"
	"github.com/tinyrange-pi/m68kjit/internal/emit"
	"github.com/tinyrange-pi/m68kjit/internal/fixup"
	"github.com/tinyrange-pi/m68kjit/internal/guest"
	"github.com/tinyrange-pi/m68kjit/internal/regalloc"
	"github.com/tinyrange-pi/m68kjit/internal/xlate"
)

func init() {
	// MOVE from SR carves out NEGX's opmode-11 slot; MOVE from CCR
	// (68010+) carves out CLR's; MOVE to CCR carves out NEG's; MOVE to
	// SR carves out NOT's; TAS carves out TST's; ILLEGAL's fixed
	// encoding carves out a single slot of what would otherwise be
	// TAS. Each narrow registration below must run before the broad
	// family it overlaps.
	decode.Register(4, 0xFFFF, 0x4AFC, decode.OpcodeDef{Name: "ILLEGAL", Emit: emitILLEGAL, BaseLength: 1})

	decode.Register(4, 0xFFC0, 0x40C0, decode.OpcodeDef{Name: "MOVEfromSR", Emit: emitMoveFromSR, HasEA: true, BaseLength: 1})
	decode.Register(4, 0xFF00, 0x4000, decode.OpcodeDef{Name: "NEGX", Emit: emitNEGX, SRSets: ccengine.AllBits, HasEA: true, BaseLength: 1})

	decode.Register(4, 0xFFC0, 0x42C0, decode.OpcodeDef{Name: "MOVEfromCCR", Emit: emitMoveFromCCR, HasEA: true, BaseLength: 1})
	decode.Register(4, 0xFF00, 0x4200, decode.OpcodeDef{Name: "CLR", Emit: emitCLR, SRSets: ccengine.AllBits &^ ccengine.MaskX, HasEA: true, BaseLength: 1})

	decode.Register(4, 0xFFC0, 0x44C0, decode.OpcodeDef{Name: "MOVEtoCCR", Emit: emitMoveToCCR, HasEA: true, BaseLength: 1})
	decode.Register(4, 0xFF00, 0x4400, decode.OpcodeDef{Name: "NEG", Emit: emitNEG, SRSets: ccengine.AllBits, HasEA: true, BaseLength: 1})

	decode.Register(4, 0xFFC0, 0x46C0, decode.OpcodeDef{Name: "MOVEtoSR", Emit: emitMoveToSR, HasEA: true, BaseLength: 1})
	decode.Register(4, 0xFF00, 0x4600, decode.OpcodeDef{Name: "NOT", Emit: emitNOT, SRSets: ccengine.AllBits &^ ccengine.MaskX, HasEA: true, BaseLength: 1})

	decode.Register(4, 0xFFC0, 0x4AC0, decode.OpcodeDef{Name: "TAS", Emit: emitTAS, SRSets: ccengine.MaskN | ccengine.MaskZ, HasEA: true, BaseLength: 1})
	decode.Register(4, 0xFF00, 0x4A00, decode.OpcodeDef{Name: "TST", Emit: emitTST, SRSets: ccengine.AllBits &^ ccengine.MaskX, HasEA: true, BaseLength: 1})

	// CHK (opmode 110) and LEA (opmode 111) each occupy a whole 0x01C0
	// opmode block with the destination register free in bits 11:9.
	decode.Register(4, 0x01C0, 0x0180, decode.OpcodeDef{Name: "CHK", Emit: emitCHK, SRSets: ccengine.MaskN | ccengine.MaskZ | ccengine.MaskV | ccengine.MaskC, HasEA: true, BaseLength: 1})
	decode.Register(4, 0x01C0, 0x01C0, decode.OpcodeDef{Name: "LEA", Emit: emitLEA, HasEA: true, BaseLength: 1})

	decode.Register(4, 0xFFC0, 0x4E80, decode.OpcodeDef{Name: "JSR", Emit: emitJSR, HasEA: true, BaseLength: 1})
	decode.Register(4, 0xFFC0, 0x4EC0, decode.OpcodeDef{Name: "JMP", Emit: emitJMP, HasEA: true, BaseLength: 1})

	decode.Register(4, 0xFFF0, 0x4E40, decode.OpcodeDef{Name: "TRAP", Emit: emitTRAP, BaseLength: 1})

	decode.Register(4, 0xFFFF, 0x4E70, decode.OpcodeDef{Name: "RESET", Emit: emitRESET, BaseLength: 1})
	decode.Register(4, 0xFFFF, 0x4E71, decode.OpcodeDef{Name: "NOP", Emit: emitNOP, BaseLength: 1})
	decode.Register(4, 0xFFFF, 0x4E72, decode.OpcodeDef{Name: "STOP", Emit: emitSTOP, BaseLength: 2})
	decode.Register(4, 0xFFFF, 0x4E73, decode.OpcodeDef{Name: "RTE", Emit: emitRTE, BaseLength: 1})
	decode.Register(4, 0xFFFF, 0x4E75, decode.OpcodeDef{Name: "RTS", Emit: emitRTS, BaseLength: 1})
	decode.Register(4, 0xFFFF, 0x4E76, decode.OpcodeDef{Name: "TRAPV", Emit: emitTRAPV, SRNeeds: ccengine.MaskV, BaseLength: 1})
	decode.Register(4, 0xFFFF, 0x4E77, decode.OpcodeDef{Name: "RTR", Emit: emitRTR, BaseLength: 1})

	decode.Register(4, 0xFFF8, 0x4E60, decode.OpcodeDef{Name: "MOVEAntoUSP", Emit: emitMoveAnToUSP, BaseLength: 1})
	decode.Register(4, 0xFFF8, 0x4E68, decode.OpcodeDef{Name: "MOVEUSPtoAn", Emit: emitMoveUSPToAn, BaseLength: 1})
}

// faultPCOf returns the guest PC of the instruction currently being
// translated, i.e. the cursor before this opcode's own extension
// words (if any) were consumed; callers needing to push an exception
// frame pass this in as the faulting PC.
func faultPCOf(blk *xlate.Block, opcode uint16) uint32 {
	return blk.Ctx.GuestPCCursor - 2
}

// loadSRWord reads the full 16-bit guest.State.SR (supervisor byte +
// CCR mirror's external image) into a fresh temp. The CCR mirror
// register itself is authoritative for the low byte only once flags
// have been materialized, so callers that need the low byte call
// blk.CC.NeedFlags(ccengine.AllBits) first and OR RegCCR in instead of
// trusting whatever stale low byte sits in guest.State.SR.
func loadSRWord(blk *xlate.Block) emit.Reg {
	tmp := blk.Alloc.AllocTmp()
	blk.Buf.LdrhImm(tmp, emit.RegCtx, uint32(guest.OffSR))
	return tmp
}

// materializedSR returns a temp holding the guest-visible 16-bit SR
// value: the supervisor byte from guest.State.SR, ORed with the
// materialized CCR mirror in the low byte.
func materializedSR(blk *xlate.Block) emit.Reg {
	blk.CC.NeedFlags(ccengine.AllBits)
	sr := loadSRWord(blk)
	blk.Buf.AndRR(sr, sr, mustConst(blk, 0xFF00))
	ccrByte := blk.Alloc.AllocTmp()
	blk.Buf.AndRR(ccrByte, emit.RegCCR, mustConst(blk, 0xFF))
	blk.Buf.OrrRR(sr, sr, ccrByte)
	blk.Alloc.Free(ccrByte)
	return sr
}

// requireSupervisor emits the privilege check every supervisor-only
// handler in this file needs: load SR, test S, and when S is clear
// branch into a privilege-violation exception exit. The check runs at
// guest runtime, so the code after it is still emitted for the S-set
// path; the result is always true.
func requireSupervisor(blk *xlate.Block, opcode uint16) bool {
	sr := loadSRWord(blk)
	blk.Buf.TstRR(sr, mustConst(blk, uint32(guest.SR_S)))
	skip := blk.Buf.BCond(emit.CondNE, 0)
	blk.RaiseException(guest.VectorPrivilegeViolation, faultPCOf(blk, opcode))
	rel := int32(blk.Buf.Here()-skip) / 4
	blk.Buf.PatchBCond(skip, rel)
	blk.Alloc.Free(sr)
	return true
}

func emitILLEGAL(blk *xlate.Block, opcode uint16) (int, error) {
	blk.RaiseException(guest.VectorIllegalInstruction, faultPCOf(blk, opcode))
	return 1, nil
}

// emitMoveFromSR stores the materialized 16-bit SR to the destination
// EA (word size; this core only models the guest-visible CCR byte of
// SR faithfully, per guest.State's comment, but the full word is still
// the contract callers observe).
func emitMoveFromSR(blk *xlate.Block, opcode uint16) (int, error) {
	e, err := decodeDestEA(blk, opcode)
	if err != nil {
		return 0, err
	}
	sr := materializedSR(blk)
	r := resources(blk)
	err = ea.Store(r, ea.SizeWord, sr, e)
	blk.Alloc.Free(sr)
	return 1, err
}

func emitMoveFromCCR(blk *xlate.Block, opcode uint16) (int, error) {
	e, err := decodeDestEA(blk, opcode)
	if err != nil {
		return 0, err
	}
	blk.CC.NeedFlags(ccengine.AllBits)
	ccrByte := blk.Alloc.AllocTmp()
	blk.Buf.AndRR(ccrByte, emit.RegCCR, mustConst(blk, 0xFF))
	r := resources(blk)
	err = ea.Store(r, ea.SizeWord, ccrByte, e)
	blk.Alloc.Free(ccrByte)
	return 1, err
}

func emitMoveToCCR(blk *xlate.Block, opcode uint16) (int, error) {
	e, err := decodeDestEA(blk, opcode)
	if err != nil {
		return 0, err
	}
	r := resources(blk)
	src, err := ea.Load(r, ea.SizeWord, ea.RegUnassigned, e, true)
	if err != nil {
		return 0, err
	}
	masked := blk.Alloc.AllocTmp()
	blk.Buf.AndRR(masked, src, mustConst(blk, 0xFF))
	blk.Buf.BicRR(emit.RegCCR, emit.RegCCR, mustConst(blk, 0xFF))
	blk.Buf.OrrRR(emit.RegCCR, emit.RegCCR, masked)
	blk.CC.Reset()
	blk.Alloc.Free(masked)
	if src != ea.RegUnassigned && !blk.Alloc.IsGuestMapped(src) {
		blk.Alloc.Free(src)
	}
	return 1, nil
}

// emitMoveToSR is privileged and, like every supervisor transition
// (§4.5), closes the block unconditionally once emitted: S/M changes
// may swap which stack backs A7 and may unmask interrupts, both of
// which a later instruction in the same translation unit must not
// observe stale.
func emitMoveToSR(blk *xlate.Block, opcode uint16) (int, error) {
	requireSupervisor(blk, opcode)
	e, err := decodeDestEA(blk, opcode)
	if err != nil {
		return 0, err
	}
	r := resources(blk)
	src, err := ea.Load(r, ea.SizeWord, ea.RegUnassigned, e, true)
	if err != nil {
		return 0, err
	}
	newA7 := swapStackOnSRChange(blk, src)
	blk.Buf.StrhImm(src, emit.RegCtx, uint32(guest.OffSR))
	ccrByte := blk.Alloc.AllocTmp()
	blk.Buf.AndRR(ccrByte, src, mustConst(blk, 0xFF))
	blk.Buf.BicRR(emit.RegCCR, emit.RegCCR, mustConst(blk, 0xFF))
	blk.Buf.OrrRR(emit.RegCCR, emit.RegCCR, ccrByte)
	blk.CC.Reset()
	blk.Alloc.Free(ccrByte)
	if newA7 {
		blk.Alloc.MarkDirty(regalloc.A(7))
	}
	blk.Buf.LoadImm32Compact(blk.Scratch, blk.Ctx.GuestPCCursor)
	blk.Buf.StrwImm(blk.Scratch, emit.RegCtx, uint32(guest.OffPC))
	fixup.EmitLocalExit(blk.Ctx, blk.Buf, blk.CC, func() {
		blk.Alloc.FlushAllDirty()
		blk.Alloc.FlushFPUDirty()
	})
	return 1, nil
}

// swapStackOnSRChange implements §4.5's supervisor-transition recipe
// step 3: on an M or S change, write the old A7 back to the stack
// slot it came from and load the new one. newSR is the about-to-be-
// installed SR value (still held in a temp, not yet stored).
// Reports whether A7 was touched, so the caller knows to mark it
// dirty.
func swapStackOnSRChange(blk *xlate.Block, newSR emit.Reg) bool {
	oldSR := loadSRWord(blk)
	changed := blk.Alloc.AllocTmp()
	blk.Buf.EorRR(changed, oldSR, newSR)
	blk.Buf.AndRR(changed, changed, mustConst(blk, uint32(guest.SR_S|guest.SR_M)))
	blk.Buf.CmpImm(changed, 0)
	skip := blk.Buf.BCond(emit.CondEQ, 0)

	a7 := blk.Alloc.MapRead(regalloc.A(7))
	oldOff := blk.Alloc.AllocTmp()
	newOff := blk.Alloc.AllocTmp()
	oldStackOffset(blk, oldSR, oldOff)
	oldStackOffset(blk, newSR, newOff)
	blk.Buf.StrwReg(a7, emit.RegCtx, oldOff)
	blk.Buf.LdrwReg(a7, emit.RegCtx, newOff)
	blk.Alloc.Free(oldOff)
	blk.Alloc.Free(newOff)

	rel := int32(blk.Buf.Here()-skip) / 4
	blk.Buf.PatchBCond(skip, rel)
	blk.Alloc.Free(changed)
	blk.Alloc.Free(oldSR)
	return true
}

// oldStackOffset materializes, into dst, the byte offset of the
// guest.State stack-pointer field backing A7 for the (S,M) bits found
// in srVal: USP when S=0, MSP when S=1,M=1, else ISP.
func oldStackOffset(blk *xlate.Block, srVal emit.Reg, dst emit.Reg) {
	sBit := blk.Alloc.AllocTmp()
	blk.Buf.AndRR(sBit, srVal, mustConst(blk, uint32(guest.SR_S)))
	mBit := blk.Alloc.AllocTmp()
	blk.Buf.AndRR(mBit, srVal, mustConst(blk, uint32(guest.SR_M)))

	blk.Buf.LoadImm32Compact(dst, uint32(guest.OffUSP))
	blk.Buf.CmpImm(sBit, 0)
	uspSkip := blk.Buf.BCond(emit.CondEQ, 0)
	blk.Buf.LoadImm32Compact(dst, uint32(guest.OffISP))
	blk.Buf.CmpImm(mBit, 0)
	mSkip := blk.Buf.BCond(emit.CondEQ, 0)
	blk.Buf.LoadImm32Compact(dst, uint32(guest.OffMSP))
	rel := int32(blk.Buf.Here()-mSkip) / 4
	blk.Buf.PatchBCond(mSkip, rel)
	relU := int32(blk.Buf.Here()-uspSkip) / 4
	blk.Buf.PatchBCond(uspSkip, relU)

	blk.Alloc.Free(sBit)
	blk.Alloc.Free(mBit)
}

func emitMoveAnToUSP(blk *xlate.Block, opcode uint16) (int, error) {
	requireSupervisor(blk, opcode)
	an := int(opcode & 7)
	src := blk.Alloc.MapRead(regalloc.A(an))
	blk.Buf.StrwImm(src, emit.RegCtx, uint32(guest.OffUSP))
	return 1, nil
}

func emitMoveUSPToAn(blk *xlate.Block, opcode uint16) (int, error) {
	requireSupervisor(blk, opcode)
	an := int(opcode & 7)
	dst := blk.Alloc.MapWrite(regalloc.A(an))
	blk.Buf.LdrwImm(dst, emit.RegCtx, uint32(guest.OffUSP))
	blk.Alloc.MarkDirty(regalloc.A(an))
	return 1, nil
}

func emitCLR(blk *xlate.Block, opcode uint16) (int, error) {
	size := eaSize(opcode >> 6)
	e, err := decodeDestEA(blk, opcode)
	if err != nil {
		return 0, err
	}
	zero := blk.Alloc.AllocTmp()
	blk.Buf.LoadImm32Compact(zero, 0)
	r := resources(blk)
	if err := ea.Store(r, size, zero, e); err != nil {
		return 0, err
	}
	commitLogical(blk, zero, size)
	blk.Alloc.Free(zero)
	return 1, nil
}

func emitNEG(blk *xlate.Block, opcode uint16) (int, error) {
	size := eaSize(opcode >> 6)
	e, err := decodeDestEA(blk, opcode)
	if err != nil {
		return 0, err
	}
	r := resources(blk)
	dst, err := ea.Load(r, size, ea.RegUnassigned, e, false)
	if err != nil {
		return 0, err
	}
	blk.Buf.Negs(dst, dst)
	commitArithX(blk, ccengine.CarrySubLike, size)
	if err := ea.Store(r, size, dst, e); err != nil {
		return 0, err
	}
	blk.Alloc.Free(dst)
	return 1, nil
}

// emitNEGX computes dst = 0 - dst - X as 0 - (dst + X): X is added to
// the operand first, and one flag-setting negate then produces the
// result and its NZCV together.
func emitNEGX(blk *xlate.Block, opcode uint16) (int, error) {
	size := eaSize(opcode >> 6)
	e, err := decodeDestEA(blk, opcode)
	if err != nil {
		return 0, err
	}
	r := resources(blk)
	dst, err := ea.Load(r, size, ea.RegUnassigned, e, false)
	if err != nil {
		return 0, err
	}
	xIn := blk.Alloc.AllocTmp()
	blk.Buf.Ubfx(xIn, emit.RegCCR, 4, 1)
	blk.Buf.AddRR(dst, dst, xIn)
	blk.Buf.Negs(dst, dst)
	blk.Alloc.Free(xIn)
	commitExtend(blk, dst, ccengine.CarrySubLike, size)
	if err := ea.Store(r, size, dst, e); err != nil {
		return 0, err
	}
	blk.Alloc.Free(dst)
	return 1, nil
}

func emitNOT(blk *xlate.Block, opcode uint16) (int, error) {
	size := eaSize(opcode >> 6)
	e, err := decodeDestEA(blk, opcode)
	if err != nil {
		return 0, err
	}
	r := resources(blk)
	dst, err := ea.Load(r, size, ea.RegUnassigned, e, false)
	if err != nil {
		return 0, err
	}
	blk.Buf.Mvn(dst, dst)
	commitLogical(blk, dst, size)
	if err := ea.Store(r, size, dst, e); err != nil {
		return 0, err
	}
	blk.Alloc.Free(dst)
	return 1, nil
}

func emitTST(blk *xlate.Block, opcode uint16) (int, error) {
	size := eaSize(opcode >> 6)
	e, err := decodeDestEA(blk, opcode)
	if err != nil {
		return 0, err
	}
	r := resources(blk)
	src, err := ea.Load(r, size, ea.RegUnassigned, e, true)
	if err != nil {
		return 0, err
	}
	commitLogical(blk, src, size)
	if src != ea.RegUnassigned && !blk.Alloc.IsGuestMapped(src) {
		blk.Alloc.Free(src)
	}
	return 1, nil
}

// emitTAS emits a load-exclusive/OR-0x80/store-exclusive retry loop
// on a memory destination, or a plain OR on Dn (§4.5 "TAS").
func emitTAS(blk *xlate.Block, opcode uint16) (int, error) {
	mode, _ := modeReg(opcode)
	e, err := decodeDestEA(blk, opcode)
	if err != nil {
		return 0, err
	}
	r := resources(blk)
	if mode == 0 { // Dn: no atomicity needed, matches EMIT_TAS's register fast path
		dst, err := ea.Load(r, ea.SizeByte, ea.RegUnassigned, e, false)
		if err != nil {
			return 0, err
		}
		blk.Buf.TstRR(dst, dst)
		blk.CC.NoteProducer(ccengine.MaskN|ccengine.MaskZ, 1)
		blk.CC.CommitNZClearVC()
		blk.Buf.OrrRR(dst, dst, mustConst(blk, 0x80))
		if err := ea.Store(r, ea.SizeByte, dst, e); err != nil {
			return 0, err
		}
		blk.Alloc.Free(dst)
		return 1, nil
	}
	addr, err := ea.Load(r, ea.SizeAddrOnly, ea.RegUnassigned, e, true)
	if err != nil {
		return 0, err
	}
	retry := blk.Buf.Here()
	val := blk.Alloc.AllocTmp()
	blk.Buf.LdaxrbB(val, addr)
	blk.Buf.TstRR(val, val)
	blk.CC.NoteProducer(ccengine.MaskN|ccengine.MaskZ, 1)
	blk.CC.CommitNZClearVC()
	set := blk.Alloc.AllocTmp()
	blk.Buf.OrrRR(set, val, mustConst(blk, 0x80))
	status := blk.Alloc.AllocTmp()
	blk.Buf.StlxrbB(status, set, addr)
	blk.Buf.Cbnz(status, int32(retry-blk.Buf.Here())/4)
	blk.Alloc.Free(val)
	blk.Alloc.Free(set)
	blk.Alloc.Free(status)
	blk.Alloc.Free(addr)
	return 1, nil
}

// emitCHK traps (vector 6) if the low word of Dn, treated as signed,
// is negative or greater than the bound read from <ea>; it never
// modifies Dn.
func emitCHK(blk *xlate.Block, opcode uint16) (int, error) {
	dn := int((opcode >> 9) & 7)
	faultPC := faultPCOf(blk, opcode)
	e, err := decodeDestEA(blk, opcode)
	if err != nil {
		return 0, err
	}
	r := resources(blk)
	bound, err := ea.Load(r, ea.SizeWord|ea.SignExtendBit, ea.RegUnassigned, e, true)
	if err != nil {
		return 0, err
	}
	val := blk.Alloc.MapRead(regalloc.D(dn))
	narrow := blk.Alloc.AllocTmp()
	blk.Buf.Sbfx(narrow, val, 0, 16)

	blk.Buf.CmpImm(narrow, 0)
	negSkip := blk.Buf.BCond(emit.CondGE, 0)
	blk.CC.SetNOnly(true)
	blk.RaiseException(guest.VectorCHK, faultPC)
	relNeg := int32(blk.Buf.Here()-negSkip) / 4
	blk.Buf.PatchBCond(negSkip, relNeg)

	blk.Buf.CmpRR(narrow, bound)
	boundSkip := blk.Buf.BCond(emit.CondLE, 0)
	blk.CC.SetNOnly(false)
	blk.RaiseException(guest.VectorCHK, faultPC)
	relBound := int32(blk.Buf.Here()-boundSkip) / 4
	blk.Buf.PatchBCond(boundSkip, relBound)

	blk.Alloc.Free(narrow)
	if bound != ea.RegUnassigned && !blk.Alloc.IsGuestMapped(bound) {
		blk.Alloc.Free(bound)
	}
	return 1, nil
}

// emitLEA loads an effective address (never dereferenced) into An.
func emitLEA(blk *xlate.Block, opcode uint16) (int, error) {
	an := int((opcode >> 9) & 7)
	e, err := decodeDestEA(blk, opcode)
	if err != nil {
		return 0, err
	}
	r := resources(blk)
	dst := blk.Alloc.MapWrite(regalloc.A(an))
	addr, err := ea.Load(r, ea.SizeAddrOnly, dst, e, false)
	if err != nil {
		return 0, err
	}
	if addr != dst {
		blk.Buf.MovRR(dst, addr)
	}
	blk.Alloc.MarkDirty(regalloc.A(an))
	return 1, nil
}

// emitJMP computes the target address at guest runtime, stores it as
// the guest PC and exits to the dispatcher, for every addressing mode;
// no target is chained statically.
func emitJMP(blk *xlate.Block, opcode uint16) (int, error) {
	e, err := decodeDestEA(blk, opcode)
	if err != nil {
		return 0, err
	}
	r := resources(blk)
	addr, err := ea.Load(r, ea.SizeAddrOnly, ea.RegUnassigned, e, true)
	if err != nil {
		return 0, err
	}
	blk.Buf.StrwImm(addr, emit.RegCtx, uint32(guest.OffPC))
	fixup.EmitLocalExit(blk.Ctx, blk.Buf, blk.CC, func() {
		blk.Alloc.FlushAllDirty()
		blk.Alloc.FlushFPUDirty()
	})
	return 1, nil
}

func emitJSR(blk *xlate.Block, opcode uint16) (int, error) {
	e, err := decodeDestEA(blk, opcode)
	if err != nil {
		return 0, err
	}
	r := resources(blk)
	addr, err := ea.Load(r, ea.SizeAddrOnly, ea.RegUnassigned, e, true)
	if err != nil {
		return 0, err
	}
	returnPC := blk.Ctx.GuestPCCursor
	sp := blk.Alloc.MapRead(regalloc.A(7))
	blk.Buf.SubImm(sp, sp, 4)
	ret := blk.Alloc.AllocTmp()
	blk.Buf.LoadImm32Compact(ret, returnPC)
	blk.Buf.StrwImm(ret, sp, 0)
	blk.Alloc.Free(ret)
	blk.Alloc.MarkDirty(regalloc.A(7))

	blk.Buf.StrwImm(addr, emit.RegCtx, uint32(guest.OffPC))
	fixup.EmitLocalExit(blk.Ctx, blk.Buf, blk.CC, func() {
		blk.Alloc.FlushAllDirty()
		blk.Alloc.FlushFPUDirty()
	})
	return 1, nil
}

func emitTRAP(blk *xlate.Block, opcode uint16) (int, error) {
	n := uint8(opcode & 0xF)
	blk.RaiseException(guest.TrapVector(n), blk.Ctx.GuestPCCursor)
	return 1, nil
}

func emitTRAPV(blk *xlate.Block, opcode uint16) (int, error) {
	blk.CC.NeedFlags(ccengine.MaskV)
	blk.Buf.Ubfx(blk.Scratch, emit.RegCCR, 1, 1)
	blk.Buf.CmpImm(blk.Scratch, 0)
	skip := blk.Buf.BCond(emit.CondEQ, 0)
	blk.RaiseException(guest.VectorTRAPV, faultPCOf(blk, opcode))
	rel := int32(blk.Buf.Here()-skip) / 4
	blk.Buf.PatchBCond(skip, rel)
	return 1, nil
}

func emitRESET(blk *xlate.Block, opcode uint16) (int, error) {
	requireSupervisor(blk, opcode)
	// Hardware reset line pulse is a host-bridge concern (§1
	// Non-goals: MMU and hardware-level host-bridge I/O); RESET is
	// otherwise a no-op that merely consumes the opcode.
	return 1, nil
}

func emitNOP(blk *xlate.Block, opcode uint16) (int, error) {
	blk.Buf.Nop()
	return 1, nil
}

// emitSTOP sets SR from the following immediate word, then closes the
// block; the actual wait-for-interrupt loop is emitted as a tight
// poll of guest.State.INT, per §5 "Emitted code suspends only on the
// STOP instruction, implemented by emitting a wait-for-event loop
// polling the INT field."
func emitSTOP(blk *xlate.Block, opcode uint16) (int, error) {
	requireSupervisor(blk, opcode)
	imm := uint32(blk.Ctx.ReadNext16())
	tmp := blk.Alloc.AllocTmp()
	blk.Buf.LoadImm32Compact(tmp, imm)
	newA7 := swapStackOnSRChange(blk, tmp)
	blk.Buf.StrhImm(tmp, emit.RegCtx, uint32(guest.OffSR))
	ccrByte := blk.Alloc.AllocTmp()
	blk.Buf.AndRR(ccrByte, tmp, mustConst(blk, 0xFF))
	blk.Buf.BicRR(emit.RegCCR, emit.RegCCR, mustConst(blk, 0xFF))
	blk.Buf.OrrRR(emit.RegCCR, emit.RegCCR, ccrByte)
	blk.CC.Reset()
	blk.Alloc.Free(ccrByte)
	blk.Alloc.Free(tmp)
	if newA7 {
		blk.Alloc.MarkDirty(regalloc.A(7))
	}
	blk.Alloc.FlushAllDirty()
	blk.Alloc.FlushFPUDirty()

	spin := blk.Buf.Here()
	pend := blk.Alloc.AllocTmp()
	blk.Buf.LdrwImm(pend, emit.RegCtx, uint32(guest.OffINT))
	blk.Buf.CmpImm(pend, 0)
	blk.Buf.BCond(emit.CondEQ, int32(spin-blk.Buf.Here())/4)
	blk.Alloc.Free(pend)

	blk.Buf.LoadImm32Compact(blk.Scratch, blk.Ctx.GuestPCCursor)
	blk.Buf.StrwImm(blk.Scratch, emit.RegCtx, uint32(guest.OffPC))
	fixup.EmitLocalExit(blk.Ctx, blk.Buf, blk.CC, func() {})
	return 1, nil
}

// emitRTE pops a short exception stack frame: the SR word and the
// PC long (6 bytes). No format word or format-2 extra word is read or
// popped.
func emitRTE(blk *xlate.Block, opcode uint16) (int, error) {
	requireSupervisor(blk, opcode)
	sp := blk.Alloc.MapRead(regalloc.A(7))
	sr := blk.Alloc.AllocTmp()
	blk.Buf.LdrhImm(sr, sp, 0)
	pc := blk.Alloc.AllocTmp()
	blk.Buf.LdrwImm(pc, sp, 2)
	blk.Buf.AddImm(sp, sp, 6)

	frameWord := blk.Alloc.AllocTmp()
	blk.Buf.Ubfx(frameWord, sr, 12, 3) // SR bits 14:12; the value is not used
	_ = frameWord                      // the frame's format word, if any, is left on the stack
	blk.Alloc.Free(frameWord)

	newA7 := swapStackOnSRChange(blk, sr)
	blk.Buf.StrhImm(sr, emit.RegCtx, uint32(guest.OffSR))
	ccrByte := blk.Alloc.AllocTmp()
	blk.Buf.AndRR(ccrByte, sr, mustConst(blk, 0xFF))
	blk.Buf.BicRR(emit.RegCCR, emit.RegCCR, mustConst(blk, 0xFF))
	blk.Buf.OrrRR(emit.RegCCR, emit.RegCCR, ccrByte)
	blk.CC.Reset()
	blk.Alloc.Free(ccrByte)
	blk.Alloc.Free(sr)
	blk.Alloc.MarkDirty(regalloc.A(7))
	if newA7 {
		blk.Alloc.MarkDirty(regalloc.A(7))
	}

	blk.Buf.StrwImm(pc, emit.RegCtx, uint32(guest.OffPC))
	blk.Alloc.Free(pc)
	fixup.EmitLocalExit(blk.Ctx, blk.Buf, blk.CC, func() {
		blk.Alloc.FlushAllDirty()
		blk.Alloc.FlushFPUDirty()
	})
	return 1, nil
}

func emitRTS(blk *xlate.Block, opcode uint16) (int, error) {
	sp := blk.Alloc.MapRead(regalloc.A(7))
	pc := blk.Alloc.AllocTmp()
	blk.Buf.LdrwImm(pc, sp, 0)
	blk.Buf.AddImm(sp, sp, 4)
	blk.Alloc.MarkDirty(regalloc.A(7))

	if fixup.ResolveReturn(blk.Ctx, blk.Ctx.GuestPCCursor) {
		// Inlined fall-through per §4.6: the matching BSR already
		// pushed this same expected return PC. A7 has already been
		// advanced past the popped return address above; no exit is
		// needed, so translation continues at the BSR's return address
		// with A7 restored, matching what the real return would have
		// left behind.
		blk.Alloc.Free(pc)
		return 1, nil
	}

	blk.Buf.StrwImm(pc, emit.RegCtx, uint32(guest.OffPC))
	blk.Alloc.Free(pc)
	fixup.EmitLocalExit(blk.Ctx, blk.Buf, blk.CC, func() {
		blk.Alloc.FlushAllDirty()
		blk.Alloc.FlushFPUDirty()
	})
	return 1, nil
}

func emitRTR(blk *xlate.Block, opcode uint16) (int, error) {
	sp := blk.Alloc.MapRead(regalloc.A(7))
	ccrWord := blk.Alloc.AllocTmp()
	blk.Buf.LdrhImm(ccrWord, sp, 0)
	pc := blk.Alloc.AllocTmp()
	blk.Buf.LdrwImm(pc, sp, 2)
	blk.Buf.AddImm(sp, sp, 6)
	blk.Alloc.MarkDirty(regalloc.A(7))

	blk.Buf.BicRR(emit.RegCCR, emit.RegCCR, mustConst(blk, 0xFF))
	masked := blk.Alloc.AllocTmp()
	blk.Buf.AndRR(masked, ccrWord, mustConst(blk, 0xFF))
	blk.Buf.OrrRR(emit.RegCCR, emit.RegCCR, masked)
	blk.CC.Reset()
	blk.Alloc.Free(masked)
	blk.Alloc.Free(ccrWord)

	blk.Buf.StrwImm(pc, emit.RegCtx, uint32(guest.OffPC))
	blk.Alloc.Free(pc)
	fixup.EmitLocalExit(blk.Ctx, blk.Buf, blk.CC, func() {
		blk.Alloc.FlushAllDirty()
		blk.Alloc.FlushFPUDirty()
	})
	return 1, nil
}
