package emit68k

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinyrange-pi/m68kjit/internal/ea"
	"github.com/tinyrange-pi/m68kjit/internal/emit"
	"github.com/tinyrange-pi/m68kjit/internal/regalloc"
)

func TestMovemGuestRegNormalOrderIsDThenA(t *testing.T) {
	require.Equal(t, regalloc.D(0), movemGuestReg(0))
	require.Equal(t, regalloc.D(7), movemGuestReg(7))
	require.Equal(t, regalloc.A(0), movemGuestReg(8))
	require.Equal(t, regalloc.A(7), movemGuestReg(15))
}

func TestMovemPreDecGuestRegIsReversed(t *testing.T) {
	require.Equal(t, regalloc.A(7), movemPreDecGuestReg(0))
	require.Equal(t, regalloc.A(0), movemPreDecGuestReg(7))
	require.Equal(t, regalloc.D(7), movemPreDecGuestReg(8))
	require.Equal(t, regalloc.D(0), movemPreDecGuestReg(15))
}

func TestMovemStepWordIsTwoLongIsFour(t *testing.T) {
	require.Equal(t, int32(2), movemStep(ea.SizeWord))
	require.Equal(t, int32(4), movemStep(ea.SizeLong))
}

// MOVEM.L D0/D1,(A0): mode=2 (An indirect), reg=0.
func TestMovemStoreToAnIndirectConsumesOneExtensionWordAndEmitsValidCode(t *testing.T) {
	const opcode = 0x48C0 | (2 << 3) | 0
	blk := newTestBlock(0x0003) // mask: D0, D1

	consumed, err := movemStore(ea.SizeLong)(blk, opcode)
	require.NoError(t, err)
	require.Equal(t, 1, consumed)
	require.NotZero(t, blk.Buf.Len())

	lines, derr := emit.Disassemble(blk.Buf.Bytes())
	require.NoError(t, derr)
	for _, l := range lines {
		require.NotContains(t, l, "<bad")
	}
}

// MOVEM.L (A0)+,D0/D1: mode=3 (postincrement), reg=0.
func TestMovemLoadFromPostIncrementAdvancesAddressPerRegister(t *testing.T) {
	const opcode = 0x4C80 | (3 << 3) | 0
	blk := newTestBlock(0x0003) // mask: D0, D1

	consumed, err := movemLoad(ea.SizeLong)(blk, opcode)
	require.NoError(t, err)
	require.Equal(t, 1, consumed)

	lines, derr := emit.Disassemble(blk.Buf.Bytes())
	require.NoError(t, derr)
	require.NotEmpty(t, lines)
	for _, l := range lines {
		require.NotContains(t, l, "<bad")
	}
}

// MOVEM.L D7/A7,-(A7): mode=4 (predecrement), reg=7; mask bit0 and
// bit8 (D0 and A0 in normal order) must both land through the
// reversed predecrement mapping (bit0=A7, bit8=D7) rather than the
// normal one.
func TestMovemStorePredecrementUsesReversedMaskAndDecrementsOncePerRegister(t *testing.T) {
	const opcode = 0x48C0 | (4 << 3) | 7
	mask := uint16(1<<0 | 1<<8)
	blk := newTestBlock(mask)

	consumed, err := movemStore(ea.SizeLong)(blk, opcode)
	require.NoError(t, err)
	require.Equal(t, 1, consumed)

	lines, derr := emit.Disassemble(blk.Buf.Bytes())
	require.NoError(t, derr)
	for _, l := range lines {
		require.NotContains(t, l, "<bad")
	}
}

func TestMovemStoreWithEmptyMaskEmitsNoTransfers(t *testing.T) {
	const opcode = 0x48C0 | (2 << 3) | 0
	blk := newTestBlock(0x0000)

	consumed, err := movemStore(ea.SizeLong)(blk, opcode)
	require.NoError(t, err)
	require.Equal(t, 1, consumed)
}
