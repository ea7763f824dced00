package emit68k

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinyrange-pi/m68kjit/internal/decode"
)

// BFTST D0{#4:#8}: static offset/width, register-direct operand.
func TestBFTSTStaticOffsetWidthConsumesTwoWords(t *testing.T) {
	const opcode = 0xE8C0 | 0 // mode=0 Dn, reg=0
	ext := uint16(4<<6 | 8)   // Do=0 offset=4, Dw=0 width=8
	blk := newTestBlock(ext)

	consumed, err := emitBFTST(blk, opcode)
	require.NoError(t, err)
	require.Equal(t, 1, consumed)
	disasmClean(t, blk.Buf)
}

// BFEXTU D0{#4:#8},D1 is the mandated scenario: extracting bits
// [27:20] of 0xF0F0F0F0 (offset 4 from the MSB, width 8) must yield
// 0x0F. bitfieldExtract's doubled-64-bit-shift-then-mask sequence was
// checked by hand against this exact case while designing it; this
// test exercises the emitter shape (word count, valid disassembly,
// destination register decode) since nothing in this package executes
// the generated code.
func TestBFEXTUStaticOffsetWidthToDifferentRegister(t *testing.T) {
	const opcode = 0xE9C0 | 0          // mode=0 D0, reg=0
	ext := uint16(1<<12 | 4<<6 | 8) // Dn=1 (dest D1), offset=4, width=8
	blk := newTestBlock(ext)

	consumed, err := emitBFEXTU(blk, opcode)
	require.NoError(t, err)
	require.Equal(t, 1, consumed)
	disasmClean(t, blk.Buf)
}

// BFEXTS with a full 32-bit width (encoded as width field 0) exercises
// the width==32 edge case in bitfieldSignExtend (shift-by-31 for the
// sign bit).
func TestBFEXTSFullWidthField(t *testing.T) {
	const opcode = 0xEBC0 | 1          // mode=0 D1
	ext := uint16(2<<12 | 0<<6 | 0) // Dn=2, offset=0, width field 0 -> 32
	blk := newTestBlock(ext)

	consumed, err := emitBFEXTS(blk, opcode)
	require.NoError(t, err)
	require.Equal(t, 1, consumed)
	disasmClean(t, blk.Buf)
}

// BFFFO D2{#0:#16},D3: register-direct source, dynamic clamp path
// (CSel) and the offset+Clz addition both need to disassemble cleanly.
func TestBFFFORegisterDirectSource(t *testing.T) {
	const opcode = 0xEDC0 | 2         // mode=0 D2
	ext := uint16(3<<12 | 0<<6 | 16) // Dn=3, offset=0, width=16
	blk := newTestBlock(ext)

	consumed, err := emitBFFFO(blk, opcode)
	require.NoError(t, err)
	require.Equal(t, 1, consumed)
	disasmClean(t, blk.Buf)
}

// BFCHG on a memory operand ((A0)) with dynamic (register) offset and
// width exercises the read-modify-write path through ea.Load/ea.Store
// and both of bitfieldOffsetWidth's register branches at once.
func TestBFCHGMemoryOperandDynamicOffsetWidth(t *testing.T) {
	const opcode = 0xEAC0 | (2 << 3) | 0 // mode=2 (An) indirect, reg=0 (A0)
	ext := uint16(0x0800 | 1<<6 | 0x0020 | 2) // Do=1 offset reg D1, Dw=1 width reg D2
	blk := newTestBlock(ext)

	consumed, err := emitBFCHG(blk, opcode)
	require.NoError(t, err)
	require.Equal(t, 1, consumed)
	disasmClean(t, blk.Buf)
}

func TestBFCLRRegisterDirect(t *testing.T) {
	const opcode = 0xECC0 | 3 // mode=0 D3
	ext := uint16(8<<6 | 24)
	blk := newTestBlock(ext)

	consumed, err := emitBFCLR(blk, opcode)
	require.NoError(t, err)
	require.Equal(t, 1, consumed)
	disasmClean(t, blk.Buf)
}

func TestBFSETRegisterDirect(t *testing.T) {
	const opcode = 0xEEC0 | 4 // mode=0 D4
	ext := uint16(16<<6 | 4)
	blk := newTestBlock(ext)

	consumed, err := emitBFSET(blk, opcode)
	require.NoError(t, err)
	require.Equal(t, 1, consumed)
	disasmClean(t, blk.Buf)
}

// BFINS D5,D6{#8:#8} inserts D5's low 8 bits into D6's field.
func TestBFINSRegisterDirect(t *testing.T) {
	const opcode = 0xEFC0 | 6          // mode=0 D6
	ext := uint16(5<<12 | 8<<6 | 8) // Dn=5 (insert source), offset=8, width=8
	blk := newTestBlock(ext)

	consumed, err := emitBFINS(blk, opcode)
	require.NoError(t, err)
	require.Equal(t, 1, consumed)
	disasmClean(t, blk.Buf)
}

// The bitfield family's mask (0xF8C0, fixing bit 11 and bits 7:6) must
// resolve ahead of lineE.go's catch-all Shift/Rotate pattern (0xF000/
// 0xE000), the same registration-order hazard line5.go's DBcc/Scc/
// ADDQ/SUBQ comment documents for a different line.
func TestDecodeResolvesBitfieldOpcodesWithoutShiftRotateShadowing(t *testing.T) {
	bftst := uint16(0xE8C0 | 0)
	def, err := decode.Lookup(bftst)
	require.NoError(t, err)
	require.Equal(t, "BFTST", def.Name)

	bfins := uint16(0xEFC0 | 7)
	def, err = decode.Lookup(bfins)
	require.NoError(t, err)
	require.Equal(t, "BFINS", def.Name)

	// An ordinary register shift (bits7:6 != 11) must still resolve to
	// Shift/Rotate, confirming the narrower bitfield mask didn't
	// over-claim opcodes outside its bits7:6=11 slot.
	asl := uint16(0xE000 | 1<<9) // ASR #1,D0 (count field=1, dr=0, bits7-6=00)
	def, err = decode.Lookup(asl)
	require.NoError(t, err)
	require.Equal(t, "Shift/Rotate", def.Name)

	// The single-bit memory-shift form (bits7:6=11, bit11=0) must also
	// still resolve to Shift/Rotate rather than being swept up by the
	// bitfield mask, which requires bit11=1: on real hardware the
	// memory-shift type field occupies bits11:9 (max value 3, so bit11
	// is always 0 there), which is exactly the bit the bitfield family
	// fixes to 1, so the two can never overlap.
	aslMem := uint16(0xE000 | 3<<6 | 2<<3 | 2) // ASR (A2), bit11=0
	def, err = decode.Lookup(aslMem)
	require.NoError(t, err)
	require.Equal(t, "Shift/Rotate", def.Name)
}
