package emit68k

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinyrange-pi/m68kjit/internal/emit"
)

// NBCD Dn: mode=0 (Dn direct), reg=0.
func TestNBCDDirectModeConsumesOneWordAndEmitsValidCode(t *testing.T) {
	const opcode = 0x4800 | 0
	blk := newTestBlock()

	consumed, err := emitNBCD(blk, opcode)
	require.NoError(t, err)
	require.Equal(t, 1, consumed)
	require.NotZero(t, blk.Buf.Len())

	lines, derr := emit.Disassemble(blk.Buf.Bytes())
	require.NoError(t, derr)
	require.NotEmpty(t, lines)
	for _, l := range lines {
		require.NotContains(t, l, "<bad")
	}
}

// NBCD (A0): mode=2 (An indirect) exercises the EA-memory path rather
// than the register-direct one.
func TestNBCDMemoryModeConsumesOneWordAndEmitsValidCode(t *testing.T) {
	const opcode = 0x4800 | (2 << 3) | 0
	blk := newTestBlock()

	consumed, err := emitNBCD(blk, opcode)
	require.NoError(t, err)
	require.Equal(t, 1, consumed)

	lines, derr := emit.Disassemble(blk.Buf.Bytes())
	require.NoError(t, derr)
	for _, l := range lines {
		require.NotContains(t, l, "<bad")
	}
}
