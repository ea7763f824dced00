package emit68k

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinyrange-pi/m68kjit/internal/decode"
	"github.com/tinyrange-pi/m68kjit/internal/emit"
)

func countNops(t *testing.T, buf *emit.Buffer) int {
	t.Helper()
	lines, err := emit.Disassemble(buf.Bytes())
	require.NoError(t, err)
	n := 0
	for _, l := range lines {
		if strings.Contains(l, "nop") {
			n++
		}
	}
	return n
}

// DBT (condField=0, "T") never loops: it must return immediately after
// consuming the displacement word, without emitting any branch code.
func TestDBTNeverLoopsAndEmitsNoCode(t *testing.T) {
	const condField = 0
	const opcode = 0x5000 | (condField << 8) | 0x00C8 | 0 // dn=0
	blk := newTestBlock(0x0000)

	consumed, err := emitDBcc(blk, opcode)
	require.NoError(t, err)
	require.Equal(t, 1, consumed)
	require.Zero(t, blk.Buf.Len(), "DBT must not emit any host code")
}

// DBF (condField=1) branching back to its own start pads the loop body
// with NOPs when DBFSlowdown is requested.
func TestDBFSlowdownPadsSelfLoopWithNOPs(t *testing.T) {
	const condField = 1
	const opcode = 0x5000 | (condField << 8) | 0x00C8 | 0
	blk := newTestBlock(0xFFFE) // disp=-2 -> target == instrStart

	blk.Ctx.DBFSlowdown = true
	consumed, err := emitDBcc(blk, opcode)
	require.NoError(t, err)
	require.Equal(t, 1, consumed)
	require.GreaterOrEqual(t, countNops(t, blk.Buf), dbfSlowdownPadInsns)
}

// The same self-loop shape must not be padded when DBFSlowdown is off.
func TestDBFSlowdownOffEmitsNoPaddingOnSelfLoop(t *testing.T) {
	const condField = 1
	const opcode = 0x5000 | (condField << 8) | 0x00C8 | 0
	blk := newTestBlock(0xFFFE)

	blk.Ctx.DBFSlowdown = false
	consumed, err := emitDBcc(blk, opcode)
	require.NoError(t, err)
	require.Equal(t, 1, consumed)
	require.Zero(t, countNops(t, blk.Buf), "no padding must be emitted when DBFSlowdown is off")
}

// A DBF that branches somewhere other than its own start is not the
// busy-wait idiom and must never be padded, even with DBFSlowdown on.
func TestDBFSlowdownDoesNotPadNonSelfLoop(t *testing.T) {
	const condField = 1
	const opcode = 0x5000 | (condField << 8) | 0x00C8 | 0
	blk := newTestBlock(0x0010) // disp != -2 -> target != instrStart

	blk.Ctx.DBFSlowdown = true
	consumed, err := emitDBcc(blk, opcode)
	require.NoError(t, err)
	require.Equal(t, 1, consumed)
	require.Zero(t, countNops(t, blk.Buf))
}

// DBEQ (condField=7) takes the ordinary condition-check-then-decrement
// path and must produce disassemblable code regardless of slowdown.
func TestDBccOrdinaryConditionEmitsValidCode(t *testing.T) {
	const condField = 7 // EQ
	const opcode = 0x5000 | (condField << 8) | 0x00C8 | 1 // dn=1
	blk := newTestBlock(0x0020)

	consumed, err := emitDBcc(blk, opcode)
	require.NoError(t, err)
	require.Equal(t, 1, consumed)

	lines, derr := emit.Disassemble(blk.Buf.Bytes())
	require.NoError(t, derr)
	require.NotEmpty(t, lines)
	for _, l := range lines {
		require.NotContains(t, l, "<bad")
	}
}

// DBcc's mask must claim the bits7-3=11001 shape for every condition
// (including ones with bit8 set, e.g. LE), and neither Scc's broader
// EA-field mask nor ADDQ/SUBQ's broader size-field mask may shadow it
// given the registration order line5.go's init() establishes.
func TestDecodeResolvesDBccSccAndADDQWithoutShadowing(t *testing.T) {
	dbeq := uint16(0x0000 | (7 << 8) | 0x00C8 | 0) // DBEQ D0
	def, err := decode.Lookup(dbeq | 0x5000)
	require.NoError(t, err)
	require.Equal(t, "DBcc", def.Name)

	dble := uint16(0x0000 | (15 << 8) | 0x00C8 | 1) // DBLE D1, cond bit8 set
	def, err = decode.Lookup(dble | 0x5000)
	require.NoError(t, err)
	require.Equal(t, "DBcc", def.Name, "a condition with bit8 set must still resolve to DBcc, not fall through to Scc/illegal")

	seq := uint16((7 << 8) | 0x00C0 | 1) // SEQ D1 (mode=0 Dn direct, reg=1)
	def, err = decode.Lookup(seq | 0x5000)
	require.NoError(t, err)
	require.Equal(t, "Scc", def.Name)

	addqw := uint16((1 << 9) | (1 << 6)) // ADDQ #1,D0, word size, mode=0 reg=0
	def, err = decode.Lookup(addqw | 0x5000)
	require.NoError(t, err)
	require.Equal(t, "ADDQ", def.Name)
}
