package emit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// mnemonicOf is a small helper wrapping Mnemonic over the single word
// a Buffer method just wrote at off.
func mnemonicOf(t *testing.T, buf *Buffer, off Offset) string {
	t.Helper()
	word := buf.Peek(off)
	m, err := Mnemonic(word)
	require.NoError(t, err)
	return m
}

func TestEncodersSelfCheckViaDisassembler(t *testing.T) {
	cases := []struct {
		name string
		emit func(b *Buffer) Offset
		want string
	}{
		{"AddRR", func(b *Buffer) Offset { return b.AddRR(X0, X1, X2) }, "add"},
		{"SubsRR", func(b *Buffer) Offset { return b.SubsRR(X0, X1, X2) }, "subs"},
		{"AndRR", func(b *Buffer) Offset { return b.AndRR(X0, X1, X2) }, "and"},
		{"OrrRR", func(b *Buffer) Offset { return b.OrrRR(X0, X1, X2) }, "orr"},
		{"EorRR", func(b *Buffer) Offset { return b.EorRR(X0, X1, X2) }, "eor"},
		{"MovRR", func(b *Buffer) Offset { return b.MovRR(X0, X1) }, "mov"}, // ORR Xd,XZR,Xn decodes as its MOV alias
		{"Mul", func(b *Buffer) Offset { return b.Mul(X0, X1, X2) }, "mul"},
		{"Sdiv", func(b *Buffer) Offset { return b.Sdiv(X0, X1, X2) }, "sdiv"},
		{"Udiv", func(b *Buffer) Offset { return b.Udiv(X0, X1, X2) }, "udiv"},
		{"Neg", func(b *Buffer) Offset { return b.Neg(X0, X1) }, "neg"}, // SUB Xd,XZR,Xm decodes as its NEG alias
		{"AddImm", func(b *Buffer) Offset { return b.AddImm(X0, X1, 4) }, "add"},
		{"CmpImm", func(b *Buffer) Offset { return b.CmpImm(X1, 4) }, "cmp"}, // SUBS XZR,Xn,#imm decodes as its CMP alias
		{"LslImm", func(b *Buffer) Offset { return b.LslImm(X0, X1, 3) }, "lsl"}, // non-full-width UBFM decodes as its LSL alias
		{"LsrImm", func(b *Buffer) Offset { return b.LsrImm(X0, X1, 3) }, "lsr"}, // UBFM with imms=63 decodes as its LSR alias
		{"Clz", func(b *Buffer) Offset { return b.Clz(X0, X1) }, "clz"},
		{"Rbit", func(b *Buffer) Offset { return b.Rbit(X0, X1) }, "rbit"},
		{"LdrImm", func(b *Buffer) Offset { return b.LdrImm(X0, X1, 8) }, "ldr"},
		{"StrImm", func(b *Buffer) Offset { return b.StrImm(X0, X1, 8) }, "str"},
		{"LdrwImm", func(b *Buffer) Offset { return b.LdrwImm(X0, X1, 4) }, "ldr"},
		{"LdrsbImm", func(b *Buffer) Offset { return b.LdrsbImm(X0, X1, 1) }, "ldrsb"},
		{"Stp", func(b *Buffer) Offset { return b.Stp(X0, X1, X2, 0) }, "stp"},
		{"Ldp", func(b *Buffer) Offset { return b.Ldp(X0, X1, X2, 0) }, "ldp"},
		{"CSet", func(b *Buffer) Offset { return b.CSet(X0, CondEQ) }, "cset"},
		{"CSel", func(b *Buffer) Offset { return b.CSel(X0, X1, X2, CondEQ) }, "csel"},
		{"MrsNZCV", func(b *Buffer) Offset { return b.MrsNZCV(X0) }, "mrs"},
		{"MsrNZCV", func(b *Buffer) Offset { return b.MsrNZCV(X0) }, "msr"},
		{"Nop", func(b *Buffer) Offset { return b.Nop() }, "nop"},
		{"Ret", func(b *Buffer) Offset { return b.Ret() }, "ret"},
		{"Br", func(b *Buffer) Offset { return b.Br(X1) }, "br"},
		{"Dmb", func(b *Buffer) Offset { return b.Dmb() }, "dmb"},
		{"LdaxrW", func(b *Buffer) Offset { return b.LdaxrW(X0, X1) }, "ldaxr"},
		{"StlxrW", func(b *Buffer) Offset { return b.StlxrW(X0, X1, X2) }, "stlxr"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			buf := NewBuffer()
			off := c.emit(buf)
			got := mnemonicOf(t, buf, off)
			require.Equal(t, c.want, got)
		})
	}
}

func TestLoadImm32CompactRoundTripsThroughMovzMovk(t *testing.T) {
	// A value needing two halfwords must emit exactly two decodable
	// instructions, first a move-wide load then a MOVK that inserts
	// the upper half without disturbing the first.
	buf := NewBuffer()
	buf.LoadImm32Compact(X0, 0x12345678)
	require.Equal(t, 8, buf.Len())

	lines, err := Disassemble(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, lines, 2)
	for _, l := range lines {
		require.NotContains(t, l, "<bad")
	}
	secondWord := buf.Peek(4)
	m, err := Mnemonic(secondWord)
	require.NoError(t, err)
	require.Equal(t, "movk", m, "the second chunk of a multi-halfword constant must stay a MOVK, never a MOV alias")
}

func TestLoadImm32CompactZeroUsesSingleInstruction(t *testing.T) {
	buf := NewBuffer()
	buf.LoadImm32Compact(X0, 0)
	require.Equal(t, 4, buf.Len(), "zero must encode in exactly one instruction")
	_, err := Mnemonic(buf.Peek(0))
	require.NoError(t, err)
}

func TestLoadImm32CompactAllOnesUsesSingleInstruction(t *testing.T) {
	buf := NewBuffer()
	buf.LoadImm32Compact(X0, 0xFFFFFFFF)
	require.Equal(t, 4, buf.Len(), "all-ones must encode as a single MOVN")
	_, err := Mnemonic(buf.Peek(0))
	require.NoError(t, err)
}

func TestCondInvertFlipsLowBit(t *testing.T) {
	require.Equal(t, CondNE, CondEQ.Invert())
	require.Equal(t, CondEQ, CondNE.Invert())
	require.Equal(t, CondCC, CondCS.Invert())
}

func TestBufferPatchOverwritesWithoutGrowing(t *testing.T) {
	buf := NewBuffer()
	off := buf.Nop()
	require.Equal(t, 4, buf.Len())

	buf.Patch(off, 0) // garbage word, just checking length/offset bookkeeping
	require.Equal(t, 4, buf.Len())
	require.Equal(t, uint32(0), buf.Peek(off))
}

func TestBufferRewindDiscardsTail(t *testing.T) {
	buf := NewBuffer()
	mark := buf.Here()
	buf.Nop()
	buf.Nop()
	require.Equal(t, 8, buf.Len())

	buf.Rewind(mark)
	require.Equal(t, 0, buf.Len())
}

func TestAllocPoolExcludesReservedRegisters(t *testing.T) {
	reserved := map[Reg]bool{
		RegCtx: true, RegCCR: true, RegPCShad: true,
		RegFP: true, RegLR: true, RegSP: true, RegScratch: true,
	}
	for _, r := range AllocPool {
		require.False(t, reserved[r], "AllocPool must not contain reserved register %d", r)
	}
	// Register numbers 0-31 (31 being SP/XZR) minus the reserved set.
	require.Len(t, AllocPool, 32-len(reserved))
}
