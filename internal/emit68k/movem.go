// MOVEM, opcode line 0x4: transfers any subset of D0-D7/A0-A7 to or
// from memory in one instruction, addressed by a 16-bit register-list
// mask carried in the extension word immediately following the
// opcode. Shares opmode-100/101 (word) and opmode-110/111 (long) with
// EXT.W/EXT.L's register-direct forms (frame.go), which occupy the
// mode=000 slot MOVEM's memory-only addressing can't use.
//
// Grounded on original_source/src/M68k_LINE4.c's MOVEM emitter for the
// predecrement reversed-mask convention and the single-An-adjustment
// rule (§4.5's "MOVEM").
package emit68k

import (
	"github.com/tinyrange-pi/m68kjit/internal/decode"
	"github.com/tinyrange-pi/m68kjit/internal/ea"
	"github.com/tinyrange-pi/m68kjit/internal/emit"
	"github.com/tinyrange-pi/m68kjit/internal/regalloc"
	"github.com/tinyrange-pi/m68kjit/internal/xlate"
)

func init() {
	decode.Register(4, 0xFFC0, 0x4880, decode.OpcodeDef{Name: "MOVEMwStore", Emit: movemStore(ea.SizeWord), HasEA: true, BaseLength: 2})
	decode.Register(4, 0xFFC0, 0x48C0, decode.OpcodeDef{Name: "MOVEMlStore", Emit: movemStore(ea.SizeLong), HasEA: true, BaseLength: 2})
	decode.Register(4, 0xFFC0, 0x4C80, decode.OpcodeDef{Name: "MOVEMwLoad", Emit: movemLoad(ea.SizeWord), HasEA: true, BaseLength: 2})
	decode.Register(4, 0xFFC0, 0x4CC0, decode.OpcodeDef{Name: "MOVEMlLoad", Emit: movemLoad(ea.SizeLong), HasEA: true, BaseLength: 2})
}

// movemStep is the per-register address adjustment MOVEM applies:
// word transfers always step 2 bytes even though they sign-extend into
// a full long register.
func movemStep(size ea.Size) int32 {
	if size == ea.SizeWord {
		return 2
	}
	return 4
}

// movemGuestReg maps a normal-order mask bit index (0=D0..7=D7,
// 8=A0..15=A7) to its guest register.
func movemGuestReg(bit int) regalloc.GuestReg {
	if bit < 8 {
		return regalloc.D(bit)
	}
	return regalloc.A(bit - 8)
}

// movemPreDecGuestReg maps a predecrement-order mask bit index
// (reversed: 0=A7..7=A0, 8=D7..15=D0) to its guest register.
func movemPreDecGuestReg(bit int) regalloc.GuestReg {
	if bit < 8 {
		return regalloc.A(7 - bit)
	}
	return regalloc.D(15 - bit)
}

// movemStore returns an emitter for MOVEM reglist,<ea> (register to
// memory), dispatching -(An) through its reversed-mask, address-
// decrementing path and every other destination mode through the
// normal-order, address-incrementing path.
func movemStore(size ea.Size) decode.EmitFn {
	return func(blk *xlate.Block, opcode uint16) (int, error) {
		mask := uint16(blk.Ctx.ReadNext16())
		mode, reg := modeReg(opcode)
		step := int32(movemStep(size))

		if mode == 4 { // -(An)
			an := int(reg)
			addr := blk.Alloc.MapRead(regalloc.A(an))
			for i := 0; i < 16; i++ {
				if mask&(1<<uint(i)) == 0 {
					continue
				}
				src := blk.Alloc.MapRead(movemPreDecGuestReg(i))
				blk.Buf.SubImm(addr, addr, uint32(step))
				storeAtReg(blk, size, addr, src)
			}
			blk.Alloc.MarkDirty(regalloc.A(an))
			return 1, nil
		}

		e, err := blk.DecodeEA(mode, reg)
		if err != nil {
			return 0, err
		}
		r := resources(blk)
		base, err := ea.Load(r, ea.SizeAddrOnly, ea.RegUnassigned, e, true)
		if err != nil {
			return 0, err
		}
		off := int32(0)
		for i := 0; i < 16; i++ {
			if mask&(1<<uint(i)) == 0 {
				continue
			}
			src := blk.Alloc.MapRead(movemGuestReg(i))
			storeAtOffset(blk, size, base, off, src)
			off += step
		}
		if base != ea.RegUnassigned && !blk.Alloc.IsGuestMapped(base) {
			blk.Alloc.Free(base)
		}
		return 1, nil
	}
}

// movemLoad returns an emitter for MOVEM <ea>,reglist (memory to
// register). (An)+ advances the address as each register loads; every
// other source mode loads at increasing fixed offsets from a fixed
// base.
func movemLoad(size ea.Size) decode.EmitFn {
	return func(blk *xlate.Block, opcode uint16) (int, error) {
		mask := uint16(blk.Ctx.ReadNext16())
		mode, reg := modeReg(opcode)
		step := int32(movemStep(size))

		if mode == 3 { // (An)+
			an := int(reg)
			addr := blk.Alloc.MapRead(regalloc.A(an))
			for i := 0; i < 16; i++ {
				if mask&(1<<uint(i)) == 0 {
					continue
				}
				dst := blk.Alloc.MapWrite(movemGuestReg(i))
				loadFromReg(blk, size, dst, addr)
				blk.Alloc.MarkDirty(movemGuestReg(i))
				blk.Buf.AddImm(addr, addr, uint32(step))
			}
			blk.Alloc.MarkDirty(regalloc.A(an))
			return 1, nil
		}

		e, err := blk.DecodeEA(mode, reg)
		if err != nil {
			return 0, err
		}
		r := resources(blk)
		base, err := ea.Load(r, ea.SizeAddrOnly, ea.RegUnassigned, e, true)
		if err != nil {
			return 0, err
		}
		off := int32(0)
		for i := 0; i < 16; i++ {
			if mask&(1<<uint(i)) == 0 {
				continue
			}
			dst := blk.Alloc.MapWrite(movemGuestReg(i))
			loadFromOffset(blk, size, dst, base, off)
			blk.Alloc.MarkDirty(movemGuestReg(i))
			off += step
		}
		if base != ea.RegUnassigned && !blk.Alloc.IsGuestMapped(base) {
			blk.Alloc.Free(base)
		}
		return 1, nil
	}
}

func storeAtReg(blk *xlate.Block, size ea.Size, addr, src emit.Reg) {
	switch size {
	case ea.SizeWord:
		blk.Buf.StrhImm(src, addr, 0)
	default:
		blk.Buf.StrwImm(src, addr, 0)
	}
}

func storeAtOffset(blk *xlate.Block, size ea.Size, base emit.Reg, off int32, src emit.Reg) {
	switch size {
	case ea.SizeWord:
		blk.Buf.StrhImm(src, base, uint32(off))
	default:
		blk.Buf.StrwImm(src, base, uint32(off))
	}
}

// loadFromReg loads into dst from the address currently in addr,
// sign-extending word loads to the full 32-bit guest register home
// per MOVEM's "word transfers into registers are sign-extended" rule.
func loadFromReg(blk *xlate.Block, size ea.Size, dst, addr emit.Reg) {
	switch size {
	case ea.SizeWord:
		blk.Buf.LdrshImm(dst, addr, 0)
	default:
		blk.Buf.LdrwImm(dst, addr, 0)
	}
}

func loadFromOffset(blk *xlate.Block, size ea.Size, dst, base emit.Reg, off int32) {
	switch size {
	case ea.SizeWord:
		blk.Buf.LdrshImm(dst, base, uint32(off))
	default:
		blk.Buf.LdrwImm(dst, base, uint32(off))
	}
}
