// Package ea implements EffectiveAddress decode/load/store (§4.4):
// given a 6-bit addressing-mode field and an operand size, load the
// operand (or its address) into a named host register, consuming the
// right number of extension words. Grounded on
// original_source/src/M68k_EA.c, the file this package's name is
// taken from.
package ea

import (
	"fmt"

	"github.com/tinyrange-pi/m68kjit/internal/emit"
	"github.com/tinyrange-pi/m68kjit/internal/jitctx"
	"github.com/tinyrange-pi/m68kjit/internal/regalloc"
)

// Mode identifies the decoded addressing mode, per the 68020+ set
// named in §4.4.
type Mode int

const (
	ModeDn Mode = iota
	ModeAn
	ModeAnInd       // (An)
	ModeAnPostInc   // (An)+
	ModeAnPreDec    // -(An)
	ModeAnDisp      // (d16,An)
	ModeAnIndex     // (d8,An,Xn.size*scale)
	ModeAnIndexBD   // (bd,An,Xn.size*scale), word/long base + outer displacement, memory indirect
	ModePCDisp      // (d16,PC)
	ModePCIndex     // (d8,PC,Xn.size*scale)
	ModePCIndexBD   // (bd,PC,Xn.size*scale)
	ModeAbsWord     // absolute word
	ModeAbsLong     // absolute long
	ModeImmediate   // immediate
)

// Sentinel "unassigned" host register, per §4.4 "out_reg is
// unassigned (sentinel 0xff)".
const RegUnassigned = emit.Reg(0xff)

// EA is a fully decoded effective address: mode, register field, and
// (for modes with an extension word) the decoded extension.
type EA struct {
	Mode Mode
	Reg  int // register field, 0-7

	// Extension word contents, valid for modes that consume one.
	Disp16    int16
	IndexIsA  bool
	IndexReg  int
	IndexLong bool // index register is full 32 bits, not sign-extended word
	Scale     uint8
	BaseDisp  int32
	OuterDisp int32
	BaseSupp  bool
	IndexSupp bool
	Postindex bool
	Preindex  bool

	ExtWords int // number of 16-bit extension words this EA consumed
}

// Decode reads the 6-bit mode/register field from opcode bits 5:3
// (mode) and 2:0 (reg), plus any needed extension words from c, and
// returns the decoded EA. modeField/regField are passed explicitly
// since callers sometimes decode a register-direct special case
// (e.g. mode field fixed at 0b111) at the opcode's own bit positions
// rather than the standard 5:3/2:0 split.
func Decode(c *jitctx.Ctx, modeField, regField uint16) (EA, error) {
	switch modeField {
	case 0:
		return EA{Mode: ModeDn, Reg: int(regField)}, nil
	case 1:
		return EA{Mode: ModeAn, Reg: int(regField)}, nil
	case 2:
		return EA{Mode: ModeAnInd, Reg: int(regField)}, nil
	case 3:
		return EA{Mode: ModeAnPostInc, Reg: int(regField)}, nil
	case 4:
		return EA{Mode: ModeAnPreDec, Reg: int(regField)}, nil
	case 5:
		ext := c.ReadNext16()
		return EA{Mode: ModeAnDisp, Reg: int(regField), Disp16: int16(ext), ExtWords: 1}, nil
	case 6:
		return decodeIndexed(c, int(regField), false)
	case 7:
		switch regField {
		case 0:
			ext := c.ReadNext16()
			return EA{Mode: ModeAbsWord, Disp16: int16(ext), ExtWords: 1}, nil
		case 1:
			hi := c.ReadNext16()
			lo := c.ReadNext16()
			return EA{Mode: ModeAbsLong, BaseDisp: int32(uint32(hi)<<16 | uint32(lo)), ExtWords: 2}, nil
		case 2:
			ext := c.ReadNext16()
			return EA{Mode: ModePCDisp, Disp16: int16(ext), ExtWords: 1}, nil
		case 3:
			return decodeIndexed(c, 0, true)
		case 4:
			return EA{Mode: ModeImmediate, ExtWords: 0}, nil
		}
	}
	return EA{}, fmt.Errorf("ea: unsupported mode/reg %d/%d", modeField, regField)
}

// decodeIndexed parses the (d8,An,Xn) brief extension word and, for
// 68020+, the (bd,An,Xn) full extension word with memory-indirect
// pre/post-indexing, per original_source/src/M68k_EA.c.
func decodeIndexed(c *jitctx.Ctx, reg int, isPC bool) (EA, error) {
	ext := c.ReadNext16()
	e := EA{Reg: reg}
	if isPC {
		e.Mode = ModePCIndex
	} else {
		e.Mode = ModeAnIndex
	}
	e.IndexIsA = ext&0x8000 != 0
	e.IndexReg = int((ext >> 12) & 7)
	e.IndexLong = ext&0x0800 != 0
	e.Scale = uint8((ext >> 9) & 3)
	fullFormat := ext&0x0100 != 0
	e.ExtWords = 1

	if !fullFormat {
		e.Disp16 = int16(int8(ext & 0xFF))
		return e, nil
	}

	// Full extension word (68020+): base/index suppression, base and
	// outer displacement sizes, and memory-indirect pre/post-index.
	if isPC {
		e.Mode = ModePCIndexBD
	} else {
		e.Mode = ModeAnIndexBD
	}
	e.BaseSupp = ext&0x0080 != 0
	e.IndexSupp = ext&0x0040 != 0
	bdSize := (ext >> 4) & 3
	iis := ext & 7

	switch bdSize {
	case 2:
		e.BaseDisp = int32(int16(c.ReadNext16()))
		e.ExtWords++
	case 3:
		hi := c.ReadNext16()
		lo := c.ReadNext16()
		e.BaseDisp = int32(uint32(hi)<<16 | uint32(lo))
		e.ExtWords += 2
	}

	switch iis {
	case 0:
		// no memory indirection
	case 1, 2, 3:
		e.Postindex = false
		e.Preindex = true
	case 5, 6, 7:
		e.Postindex = true
		e.Preindex = false
	}
	if iis != 0 {
		odSize := iis & 3
		switch odSize {
		case 2:
			e.OuterDisp = int32(int16(c.ReadNext16()))
			e.ExtWords++
		case 3:
			hi := c.ReadNext16()
			lo := c.ReadNext16()
			e.OuterDisp = int32(uint32(hi)<<16 | uint32(lo))
			e.ExtWords += 2
		}
	}
	return e, nil
}

// ExtraWords returns how many 16-bit extension words a mode/reg pair
// will consume, without actually consuming them — used by
// insn_length (§4.1) which must be a pure function of the opcode and
// a closed function of the EA tail.
func ExtraWords(modeField, regField uint16, briefExt uint16) int {
	switch modeField {
	case 5:
		return 1
	case 6:
		if briefExt&0x0100 == 0 {
			return 1
		}
		n := 1
		if bd := (briefExt >> 4) & 3; bd == 2 {
			n++
		} else if bd == 3 {
			n += 2
		}
		if iis := briefExt & 7; iis != 0 {
			if od := iis & 3; od == 2 {
				n++
			} else if od == 3 {
				n += 2
			}
		}
		return n
	case 7:
		switch regField {
		case 0, 2:
			return 1
		case 1:
			return 2
		case 3:
			return 1 // caller must re-derive full length the same way as case 6 when the brief word signals full format
		}
	}
	return 0
}

// Size encodes the operand width; the high bit requests sign
// extension to 32 bits when loading a narrower value, matching
// spec.md §4.4's "the high bit of size signals sign-extend".
type Size int

const (
	SizeAddrOnly Size = 0
	SizeByte     Size = 1
	SizeWord     Size = 2
	SizeLong     Size = 4

	SignExtendBit Size = 0x80
)

func (s Size) width() int { return int(s &^ SignExtendBit) }
func (s Size) signExt() bool { return s&SignExtendBit != 0 }

// Resources bundles the per-block collaborators Load/Store need.
type Resources struct {
	Buf    *emit.Buffer
	Alloc  *regalloc.Allocator
	Ctx    *jitctx.Ctx
	ImmHi  uint32 // set by caller for ModeImmediate before calling Load
	ImmLo  uint32
}

// Load implements the load contract (§4.4): loads the operand (or,
// for address-only size, its address) into outReg, consuming
// extension words already accounted for by Decode. If outReg is
// RegUnassigned, a temp is allocated. readOnly lets the caller reuse
// an already-mapped register instead of forcing a copy.
func Load(r *Resources, size Size, outReg emit.Reg, e EA, readOnly bool) (emit.Reg, error) {
	switch e.Mode {
	case ModeDn:
		g := regalloc.D(e.Reg)
		if readOnly {
			return r.Alloc.MapRead(g), nil
		}
		return r.Alloc.CopyRead(g), nil

	case ModeAn:
		g := regalloc.A(e.Reg)
		if readOnly {
			return r.Alloc.MapRead(g), nil
		}
		return r.Alloc.CopyRead(g), nil

	case ModeImmediate:
		dst := outReg
		if dst == RegUnassigned {
			dst = r.Alloc.AllocTmp()
		}
		r.Buf.LoadImm32Compact(dst, r.ImmLo)
		return dst, nil

	case ModeAnInd:
		base := r.Alloc.MapRead(regalloc.A(e.Reg))
		return loadMem(r, size, outReg, base, 0)

	case ModeAnPostInc:
		base := r.Alloc.MapRead(regalloc.A(e.Reg))
		dst, err := loadMem(r, size, outReg, base, 0)
		if err != nil {
			return dst, err
		}
		inc := incrementFor(e.Reg, size)
		r.Buf.AddImm(base, base, uint32(inc))
		r.Alloc.MarkDirty(regalloc.A(e.Reg))
		return dst, nil

	case ModeAnPreDec:
		base := r.Alloc.MapRead(regalloc.A(e.Reg))
		dec := incrementFor(e.Reg, size)
		r.Buf.SubImm(base, base, uint32(dec))
		r.Alloc.MarkDirty(regalloc.A(e.Reg))
		return loadMem(r, size, outReg, base, 0)

	case ModeAnDisp:
		base := r.Alloc.MapRead(regalloc.A(e.Reg))
		return loadMem(r, size, outReg, base, int32(e.Disp16))

	case ModeAnIndex, ModeAnIndexBD:
		addr, err := effectiveAddrReg(r, e, false)
		if err != nil {
			return RegUnassigned, err
		}
		return loadMem(r, size, outReg, addr, 0)

	case ModePCDisp:
		dst := outReg
		if dst == RegUnassigned {
			dst = r.Alloc.AllocTmp()
		}
		addr := pcRelTarget(r, e.Disp16)
		r.Buf.LoadImm32Compact(dst, addr)
		if size != SizeAddrOnly {
			return loadMem(r, size, dst, dst, 0)
		}
		return dst, nil

	case ModePCIndex, ModePCIndexBD:
		addr, err := effectiveAddrReg(r, e, true)
		if err != nil {
			return RegUnassigned, err
		}
		return loadMem(r, size, outReg, addr, 0)

	case ModeAbsWord:
		dst := outReg
		if dst == RegUnassigned {
			dst = r.Alloc.AllocTmp()
		}
		r.Buf.LoadImm32Compact(dst, uint32(int32(e.Disp16)))
		if size != SizeAddrOnly {
			return loadMem(r, size, dst, dst, 0)
		}
		return dst, nil

	case ModeAbsLong:
		dst := outReg
		if dst == RegUnassigned {
			dst = r.Alloc.AllocTmp()
		}
		r.Buf.LoadImm32Compact(dst, uint32(e.BaseDisp))
		if size != SizeAddrOnly {
			return loadMem(r, size, dst, dst, 0)
		}
		return dst, nil
	}
	return RegUnassigned, fmt.Errorf("ea: load unsupported mode %v", e.Mode)
}

// Store implements the symmetric store contract (§4.4): byte/word
// stores into a register write only the low bits, preserving the
// high bits of the guest register's 32-bit home unless signExt is
// requested by the caller's size.
func Store(r *Resources, size Size, src emit.Reg, e EA) error {
	switch e.Mode {
	case ModeDn:
		dst := r.Alloc.MapRead(regalloc.D(e.Reg))
		storeIntoHome(r, size, dst, src)
		r.Alloc.MarkDirty(regalloc.D(e.Reg))
		return nil

	case ModeAn:
		dst := r.Alloc.MapWrite(regalloc.A(e.Reg))
		r.Buf.MovRR(dst, src)
		r.Alloc.MarkDirty(regalloc.A(e.Reg))
		return nil

	case ModeAnInd:
		base := r.Alloc.MapRead(regalloc.A(e.Reg))
		return storeMem(r, size, base, 0, src)

	case ModeAnPostInc:
		base := r.Alloc.MapRead(regalloc.A(e.Reg))
		if err := storeMem(r, size, base, 0, src); err != nil {
			return err
		}
		r.Buf.AddImm(base, base, uint32(incrementFor(e.Reg, size)))
		r.Alloc.MarkDirty(regalloc.A(e.Reg))
		return nil

	case ModeAnPreDec:
		base := r.Alloc.MapRead(regalloc.A(e.Reg))
		r.Buf.SubImm(base, base, uint32(incrementFor(e.Reg, size)))
		r.Alloc.MarkDirty(regalloc.A(e.Reg))
		return storeMem(r, size, base, 0, src)

	case ModeAnDisp:
		base := r.Alloc.MapRead(regalloc.A(e.Reg))
		return storeMem(r, size, base, int32(e.Disp16), src)

	case ModeAnIndex, ModeAnIndexBD:
		addr, err := effectiveAddrReg(r, e, false)
		if err != nil {
			return err
		}
		return storeMem(r, size, addr, 0, src)

	case ModeAbsWord:
		addr := r.Alloc.AllocTmp()
		r.Buf.LoadImm32Compact(addr, uint32(int32(e.Disp16)))
		err := storeMem(r, size, addr, 0, src)
		r.Alloc.Free(addr)
		return err

	case ModeAbsLong:
		addr := r.Alloc.AllocTmp()
		r.Buf.LoadImm32Compact(addr, uint32(e.BaseDisp))
		err := storeMem(r, size, addr, 0, src)
		r.Alloc.Free(addr)
		return err
	}
	return fmt.Errorf("ea: store unsupported mode %v", e.Mode)
}

// incrementFor returns the post/pre increment step for An, honoring
// the 68K rule that byte-size through A7 adjusts by 2 for stack
// alignment (§4.4).
func incrementFor(reg int, size Size) int {
	w := size.width()
	if w == 1 && reg == 7 {
		return 2
	}
	if w == 0 {
		return 4
	}
	return w
}

func loadMem(r *Resources, size Size, outReg, base emit.Reg, disp int32) (emit.Reg, error) {
	dst := outReg
	if dst == RegUnassigned {
		dst = r.Alloc.AllocTmp()
	}
	addr := base
	off := disp
	scale := int32(size.width())
	if scale == 0 {
		scale = 1
	}
	if disp < 0 || disp > 4095 || disp%scale != 0 {
		addr = r.Alloc.AllocTmp()
		r.Buf.LoadImm32Compact(addr, uint32(disp))
		r.Buf.Sbfx(addr, addr, 0, 32)
		r.Buf.AddRR(addr, addr, base)
		off = 0
	}
	switch size.width() {
	case 0:
		r.Buf.AddImm(dst, addr, uint32(off))
	case 1:
		if size.signExt() {
			r.Buf.LdrsbImm(dst, addr, uint32(off))
		} else {
			r.Buf.LdrbImm(dst, addr, uint32(off))
		}
	case 2:
		if size.signExt() {
			r.Buf.LdrshImm(dst, addr, uint32(off))
		} else {
			r.Buf.LdrhImm(dst, addr, uint32(off))
		}
	case 4:
		r.Buf.LdrwImm(dst, addr, uint32(off))
	}
	if addr != base {
		r.Alloc.Free(addr)
	}
	return dst, nil
}

func storeMem(r *Resources, size Size, base emit.Reg, disp int32, src emit.Reg) error {
	addr := base
	off := disp
	scale := int32(size.width())
	if scale == 0 {
		scale = 4
	}
	if disp < 0 || disp > 4095 || disp%scale != 0 {
		addr = r.Alloc.AllocTmp()
		r.Buf.LoadImm32Compact(addr, uint32(disp))
		r.Buf.Sbfx(addr, addr, 0, 32)
		r.Buf.AddRR(addr, addr, base)
		off = 0
	}
	switch size.width() {
	case 1:
		r.Buf.StrbImm(src, addr, uint32(off))
	case 2:
		r.Buf.StrhImm(src, addr, uint32(off))
	default:
		r.Buf.StrwImm(src, addr, uint32(off))
	}
	if addr != base {
		r.Alloc.Free(addr)
	}
	return nil
}

// storeIntoHome writes src into dst preserving the bits above the
// operand width, per the store contract's register-destination rule.
func storeIntoHome(r *Resources, size Size, dst, src emit.Reg) {
	if size.signExt() && (size.width() == 1 || size.width() == 2) {
		r.Buf.Sbfx(dst, src, 0, uint(size.width()*8))
		return
	}
	switch size.width() {
	case 1:
		r.Buf.Bfi(dst, src, 0, 8)
	case 2:
		r.Buf.Bfi(dst, src, 0, 16)
	default:
		r.Buf.MovRR(dst, src)
	}
}

// effectiveAddrReg computes the byte address for an indexed EA into a
// temp register: base (An or PC) + sign/zero-extended, scaled index +
// base displacement, honoring suppression flags (§4.4).
func effectiveAddrReg(r *Resources, e EA, isPC bool) (emit.Reg, error) {
	addr := r.Alloc.AllocTmp()
	if isPC {
		r.Buf.LoadImm32Compact(addr, pcRelTarget(r, 0))
	} else if !e.BaseSupp {
		base := r.Alloc.MapRead(regalloc.A(e.Reg))
		r.Buf.MovRR(addr, base)
	} else {
		r.Buf.LoadImm32Compact(addr, 0)
	}
	if e.BaseDisp != 0 {
		tmp := r.Alloc.AllocTmp()
		r.Buf.LoadImm32Compact(tmp, uint32(e.BaseDisp))
		r.Buf.AddRR(addr, addr, tmp)
		r.Alloc.Free(tmp)
	} else if e.Mode == ModeAnIndex || e.Mode == ModePCIndex {
		if e.Disp16 < 0 {
			r.Buf.SubImm(addr, addr, uint32(-int32(e.Disp16)))
		} else {
			r.Buf.AddImm(addr, addr, uint32(e.Disp16))
		}
	}
	addIndex := func() {
		if e.IndexSupp {
			return
		}
		idxGuest := regalloc.D(e.IndexReg)
		if e.IndexIsA {
			idxGuest = regalloc.A(e.IndexReg)
		}
		idx := r.Alloc.MapRead(idxGuest)
		scaled := r.Alloc.AllocTmp()
		if !e.IndexLong {
			r.Buf.Sbfx(scaled, idx, 0, 16)
		} else {
			r.Buf.MovRR(scaled, idx)
		}
		if e.Scale > 0 {
			r.Buf.LslImm(scaled, scaled, uint(e.Scale))
		}
		r.Buf.AddRR(addr, addr, scaled)
		r.Alloc.Free(scaled)
	}
	// Pre-indexed: the index joins the intermediate address before the
	// indirection. Post-indexed: it is added to the fetched pointer.
	if !e.Postindex {
		addIndex()
	}
	if e.Preindex || e.Postindex {
		r.Buf.LdrwImm(addr, addr, 0)
	}
	if e.Postindex {
		addIndex()
	}
	if e.OuterDisp != 0 {
		tmp := r.Alloc.AllocTmp()
		r.Buf.LoadImm32Compact(tmp, uint32(e.OuterDisp))
		r.Buf.AddRR(addr, addr, tmp)
		r.Alloc.Free(tmp)
	}
	return addr, nil
}

// pcRelTarget computes the absolute guest address a (d16,PC)-style
// displacement resolves to. The 68K PC value used as the base is the
// address of the extension word itself, i.e. cursor-2 at the time
// the displacement was read; callers pass 0 when the cursor is
// already positioned past the extension.
func pcRelTarget(r *Resources, disp int16) uint32 {
	return uint32(int32(r.Ctx.GuestPCCursor-2) + int32(disp))
}
