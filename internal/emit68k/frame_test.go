package emit68k

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinyrange-pi/m68kjit/internal/emit"
)

func disasmClean(t *testing.T, buf *emit.Buffer) {
	t.Helper()
	lines, err := emit.Disassemble(buf.Bytes())
	require.NoError(t, err)
	require.NotEmpty(t, lines)
	for _, l := range lines {
		require.NotContains(t, l, "<bad")
	}
}

// LINK A5,#-8: an ordinary link, no A7 special case.
func TestLINKOrdinaryRegisterConsumesOneInstruction(t *testing.T) {
	const opcode = 0x4E50 | 5
	blk := newTestBlock(0xFFF8) // disp = -8

	consumed, err := emitLINK(blk, opcode)
	require.NoError(t, err)
	require.Equal(t, 1, consumed)
	disasmClean(t, blk.Buf)
}

// LINK A7,#4 exercises the "push the pre-push A7" special case.
func TestLINKOnA7PushesPrePushStackPointer(t *testing.T) {
	const opcode = 0x4E50 | 7
	blk := newTestBlock(0x0004)

	consumed, err := emitLINK(blk, opcode)
	require.NoError(t, err)
	require.Equal(t, 1, consumed)
	disasmClean(t, blk.Buf)
}

func TestUNLKConsumesOneInstruction(t *testing.T) {
	const opcode = 0x4E58 | 3
	blk := newTestBlock()

	consumed, err := emitUNLK(blk, opcode)
	require.NoError(t, err)
	require.Equal(t, 1, consumed)
	disasmClean(t, blk.Buf)
}

// PEA (A2): mode=2 (An indirect), reg=2, pushes the address without
// dereferencing it.
func TestPEAIndirectModeConsumesOneInstruction(t *testing.T) {
	const opcode = 0x4840 | (2 << 3) | 2
	blk := newTestBlock()

	consumed, err := emitPEA(blk, opcode)
	require.NoError(t, err)
	require.Equal(t, 1, consumed)
	disasmClean(t, blk.Buf)
}

func TestSWAPConsumesOneInstructionAndCommitsNZ(t *testing.T) {
	const opcode = 0x4840 | 4
	blk := newTestBlock()

	consumed, err := emitSWAP(blk, opcode)
	require.NoError(t, err)
	require.Equal(t, 1, consumed)
	disasmClean(t, blk.Buf)
}

func TestEXTWConsumesOneInstructionAndSignExtendsByteToWord(t *testing.T) {
	const opcode = 0x4880 | 2
	blk := newTestBlock()

	consumed, err := emitEXTW(blk, opcode)
	require.NoError(t, err)
	require.Equal(t, 1, consumed)
	disasmClean(t, blk.Buf)
}

func TestEXTLConsumesOneInstructionAndSignExtendsWordToLong(t *testing.T) {
	const opcode = 0x48C0 | 2
	blk := newTestBlock()

	consumed, err := emitEXTL(blk, opcode)
	require.NoError(t, err)
	require.Equal(t, 1, consumed)
	disasmClean(t, blk.Buf)
}
